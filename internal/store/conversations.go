package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matti-app/matti/backend/internal/model/chat"
)

const conversationColumns = `id, user_id, theme_id, messages, summary, is_archived, archived_at,
	bullying_detected, bullying_severity, bullying_follow_up_scheduled, initial_problem,
	conversation_count, intervention_start_date, intervention_end_date, outcome, resolution,
	action_completion_rate, version, created_at, updated_at`

func scanConversation(s scanner) (chat.Conversation, error) {
	var (
		c                       chat.Conversation
		messages                string
		summary, severity       sql.NullString
		initialProblem, resol   sql.NullString
		archivedAt              sql.NullTime
		interventionStart, iEnd sql.NullTime
		completionRate          sql.NullInt64
		theme, outcome          string
	)
	err := s.Scan(
		&c.ID, &c.UserID, &theme, &messages, &summary, &c.IsArchived, &archivedAt,
		&c.BullyingDetected, &severity, &c.BullyingFollowUpScheduled, &initialProblem,
		&c.ConversationCount, &interventionStart, &iEnd, &outcome, &resol,
		&completionRate, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return chat.Conversation{}, err
	}

	c.ThemeID = chat.ThemeID(theme)
	c.Outcome = chat.Outcome(outcome)
	c.Summary = stringPtr(summary)
	c.InitialProblem = stringPtr(initialProblem)
	c.Resolution = stringPtr(resol)
	c.ArchivedAt = timePtr(archivedAt)
	c.InterventionStartDate = timePtr(interventionStart)
	c.InterventionEndDate = timePtr(iEnd)
	c.ActionCompletionRate = intPtr(completionRate)
	if severity.Valid {
		sev := chat.BullyingSeverity(severity.String)
		c.BullyingSeverity = &sev
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	if err := json.Unmarshal([]byte(messages), &c.Messages); err != nil {
		return chat.Conversation{}, fmt.Errorf("decode messages of conversation %d: %w", c.ID, err)
	}
	if c.Messages == nil {
		c.Messages = []chat.Message{}
	}
	return c, nil
}

func encodeMessages(messages []chat.Message) (string, error) {
	if messages == nil {
		messages = []chat.Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("encode messages: %w", err)
	}
	return string(raw), nil
}

func severityArg(s *chat.BullyingSeverity) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

// ActiveConversation returns the non-archived conversation for a theme.
func (q *Queries) ActiveConversation(ctx context.Context, userID string, themeID chat.ThemeID) (chat.Conversation, error) {
	row := q.queryRow(ctx, `SELECT `+conversationColumns+` FROM conversations
		WHERE user_id = ? AND theme_id = ? AND is_archived = FALSE`, userID, string(themeID))
	c, err := scanConversation(row)
	if err != nil {
		return chat.Conversation{}, notFound(err)
	}
	return c, nil
}

// GetOrCreateActive returns the active conversation for a theme, creating an
// empty one when none exists. created reports whether a row was inserted.
func (q *Queries) GetOrCreateActive(ctx context.Context, userID string, themeID chat.ThemeID, now time.Time) (chat.Conversation, bool, error) {
	c, err := q.ActiveConversation(ctx, userID, themeID)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return chat.Conversation{}, false, err
	}

	ts := dbTime(now)
	row := q.queryRow(ctx, `INSERT INTO conversations
		(user_id, theme_id, messages, is_archived, bullying_detected, bullying_follow_up_scheduled,
		 conversation_count, outcome, version, created_at, updated_at)
		VALUES (?, ?, '[]', FALSE, FALSE, FALSE, 1, ?, 0, ?, ?)
		ON CONFLICT (user_id, theme_id) WHERE is_archived = FALSE DO NOTHING
		RETURNING `+conversationColumns,
		userID, string(themeID), string(chat.OutcomeInProgress), ts, ts)
	c, err = scanConversation(row)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return chat.Conversation{}, false, fmt.Errorf("insert conversation: %w", err)
	}

	// Lost the race against a concurrent insert for the same theme.
	c, err = q.ActiveConversation(ctx, userID, themeID)
	return c, false, err
}

// ConversationByID returns one of the user's conversations.
func (q *Queries) ConversationByID(ctx context.Context, userID string, id int64) (chat.Conversation, error) {
	row := q.queryRow(ctx, `SELECT `+conversationColumns+` FROM conversations
		WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanConversation(row)
	if err != nil {
		return chat.Conversation{}, notFound(err)
	}
	return c, nil
}

// LatestConversation returns the user's most recently updated conversation.
func (q *Queries) LatestConversation(ctx context.Context, userID string) (chat.Conversation, error) {
	row := q.queryRow(ctx, `SELECT `+conversationColumns+` FROM conversations
		WHERE user_id = ? ORDER BY updated_at DESC, id DESC LIMIT 1`, userID)
	c, err := scanConversation(row)
	if err != nil {
		return chat.Conversation{}, notFound(err)
	}
	return c, nil
}

// PreviousConversation returns the user's most recently updated conversation
// other than excludeID.
func (q *Queries) PreviousConversation(ctx context.Context, userID string, excludeID int64) (chat.Conversation, error) {
	row := q.queryRow(ctx, `SELECT `+conversationColumns+` FROM conversations
		WHERE user_id = ? AND id <> ? ORDER BY updated_at DESC, id DESC LIMIT 1`, userID, excludeID)
	c, err := scanConversation(row)
	if err != nil {
		return chat.Conversation{}, notFound(err)
	}
	return c, nil
}

// ListConversations returns the user's conversations, newest first.
func (q *Queries) ListConversations(ctx context.Context, userID string, limit int) ([]chat.Conversation, error) {
	rows, err := q.query(ctx, `SELECT `+conversationColumns+` FROM conversations
		WHERE user_id = ? ORDER BY updated_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []chat.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IdleConversations returns active conversations last updated before cutoff,
// oldest first, skipping the first offset of them.
func (q *Queries) IdleConversations(ctx context.Context, cutoff time.Time, limit, offset int) ([]chat.Conversation, error) {
	rows, err := q.query(ctx, `SELECT `+conversationColumns+` FROM conversations
		WHERE is_archived = FALSE AND updated_at < ? ORDER BY updated_at ASC, id ASC LIMIT ? OFFSET ?`,
		dbTime(cutoff), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list idle conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []chat.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateConversation writes every mutable field of c. The write only applies
// when the stored version still equals c.Version; otherwise ErrConflict is
// returned. On success c.Version and c.UpdatedAt reflect the stored row.
func (q *Queries) UpdateConversation(ctx context.Context, c *chat.Conversation, now time.Time) error {
	messages, err := encodeMessages(c.Messages)
	if err != nil {
		return err
	}
	ts := dbTime(now)
	res, err := q.exec(ctx, `UPDATE conversations SET
		messages = ?, summary = ?, is_archived = ?, archived_at = ?, bullying_detected = ?,
		bullying_severity = ?, bullying_follow_up_scheduled = ?, initial_problem = ?,
		conversation_count = ?, intervention_start_date = ?, intervention_end_date = ?,
		outcome = ?, resolution = ?, action_completion_rate = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		messages, nullString(c.Summary), c.IsArchived, nullTime(c.ArchivedAt), c.BullyingDetected,
		severityArg(c.BullyingSeverity), c.BullyingFollowUpScheduled, nullString(c.InitialProblem),
		c.ConversationCount, nullTime(c.InterventionStartDate), nullTime(c.InterventionEndDate),
		string(c.Outcome), nullString(c.Resolution), nullInt(c.ActionCompletionRate), ts,
		c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("update conversation %d: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation %d: %w", c.ID, err)
	}
	if n == 0 {
		return ErrConflict
	}
	c.Version++
	c.UpdatedAt = ts
	return nil
}

// SetActionCompletionRate stores the completed-action percentage of a conversation.
func (q *Queries) SetActionCompletionRate(ctx context.Context, conversationID int64, rate int) error {
	_, err := q.exec(ctx, `UPDATE conversations SET action_completion_rate = ?, version = version + 1
		WHERE id = ?`, rate, conversationID)
	if err != nil {
		return fmt.Errorf("set completion rate of conversation %d: %w", conversationID, err)
	}
	return nil
}

// DeleteConversation removes one of the user's conversations.
func (q *Queries) DeleteConversation(ctx context.Context, userID string, id int64) error {
	res, err := q.exec(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversationsByTheme removes every conversation of a theme, archived
// or not, and returns how many were deleted.
func (q *Queries) DeleteConversationsByTheme(ctx context.Context, userID string, themeID chat.ThemeID) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM conversations WHERE user_id = ? AND theme_id = ?`, userID, string(themeID))
	if err != nil {
		return 0, fmt.Errorf("delete %s conversations: %w", themeID, err)
	}
	return res.RowsAffected()
}

// CountConversations counts all stored conversations of a user.
func (q *Queries) CountConversations(ctx context.Context, userID string) (int, error) {
	var n int
	err := q.queryRow(ctx, `SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

// PruneArchived deletes the user's oldest archived conversations until at
// most keep conversations remain. Active conversations are never pruned.
func (q *Queries) PruneArchived(ctx context.Context, userID string, keep int) (int64, error) {
	total, err := q.CountConversations(ctx, userID)
	if err != nil {
		return 0, err
	}
	excess := total - keep
	if excess <= 0 {
		return 0, nil
	}

	res, err := q.exec(ctx, `DELETE FROM conversations WHERE id IN (
		SELECT id FROM conversations
		WHERE user_id = ? AND is_archived = TRUE
		ORDER BY updated_at ASC, id ASC LIMIT ?)`, userID, excess)
	if err != nil {
		return 0, fmt.Errorf("prune archived conversations: %w", err)
	}
	return res.RowsAffected()
}
