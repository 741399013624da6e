package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matti-app/matti/backend/internal/model/action"
	"github.com/matti-app/matti/backend/internal/model/chat"
)

const actionColumns = `a.id, a.user_id, a.theme_id, a.conversation_id, a.goal_id, a.sequence,
	a.is_active_step, a.action_text, a.action_type, a.status, a.follow_up_scheduled,
	a.follow_up_intervals, a.completed_at, a.created_at, a.updated_at`

func scanAction(s scanner, extra ...any) (action.Action, error) {
	var (
		a                      action.Action
		theme, status          string
		conversationID, goalID sql.NullInt64
		sequence               sql.NullInt64
		actionType             sql.NullString
		intervals              string
		completedAt            sql.NullTime
	)
	dest := []any{
		&a.ID, &a.UserID, &theme, &conversationID, &goalID, &sequence,
		&a.IsActiveStep, &a.ActionText, &actionType, &status, &a.FollowUpScheduled,
		&intervals, &completedAt, &a.CreatedAt, &a.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return action.Action{}, err
	}

	a.ThemeID = chat.ThemeID(theme)
	a.Status = action.Status(status)
	a.ConversationID = int64Ptr(conversationID)
	a.GoalID = int64Ptr(goalID)
	a.Sequence = intPtr(sequence)
	a.ActionType = stringPtr(actionType)
	a.CompletedAt = timePtr(completedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if err := json.Unmarshal([]byte(intervals), &a.FollowUpIntervals); err != nil {
		return action.Action{}, fmt.Errorf("decode follow-up intervals of action %d: %w", a.ID, err)
	}
	if a.FollowUpIntervals == nil {
		a.FollowUpIntervals = []int{}
	}
	return a, nil
}

func (q *Queries) listActions(ctx context.Context, query string, args ...any) ([]action.Action, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []action.Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateAction inserts a and one pending follow-up per entry of followUps.
// a.ID, a.CreatedAt and a.UpdatedAt are filled in from the stored row.
func (q *Queries) CreateAction(ctx context.Context, a *action.Action, followUps []time.Time, now time.Time) error {
	if a.FollowUpIntervals == nil {
		a.FollowUpIntervals = []int{}
	}
	intervals, err := json.Marshal(a.FollowUpIntervals)
	if err != nil {
		return fmt.Errorf("encode follow-up intervals: %w", err)
	}
	if a.Status == "" {
		a.Status = action.StatusPending
	}
	a.FollowUpScheduled = len(followUps) > 0

	ts := dbTime(now)
	err = q.queryRow(ctx, `INSERT INTO actions
		(user_id, theme_id, conversation_id, goal_id, sequence, is_active_step, action_text,
		 action_type, status, follow_up_scheduled, follow_up_intervals, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		a.UserID, string(a.ThemeID), nullInt64(a.ConversationID), nullInt64(a.GoalID), nullInt(a.Sequence),
		a.IsActiveStep, a.ActionText, nullString(a.ActionType), string(a.Status), a.FollowUpScheduled,
		string(intervals), ts, ts,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = ts, ts

	return q.AddFollowUps(ctx, a.ID, followUps, now)
}

// AddFollowUps schedules pending follow-ups for an action.
func (q *Queries) AddFollowUps(ctx context.Context, actionID int64, at []time.Time, now time.Time) error {
	for _, t := range at {
		_, err := q.exec(ctx, `INSERT INTO follow_ups (action_id, scheduled_for, status, created_at)
			VALUES (?, ?, ?, ?)`, actionID, dbTime(t), string(action.FollowUpPending), dbTime(now))
		if err != nil {
			return fmt.Errorf("insert follow-up for action %d: %w", actionID, err)
		}
	}
	return nil
}

// ActionByID returns one of the user's actions.
func (q *Queries) ActionByID(ctx context.Context, userID string, id int64) (action.Action, error) {
	row := q.queryRow(ctx, `SELECT `+actionColumns+` FROM actions a WHERE a.id = ? AND a.user_id = ?`, id, userID)
	a, err := scanAction(row)
	if err != nil {
		return action.Action{}, notFound(err)
	}
	return a, nil
}

// ListActions returns the user's actions, newest first, optionally filtered by status.
func (q *Queries) ListActions(ctx context.Context, userID string, status *action.Status) ([]action.Action, error) {
	if status != nil {
		return q.listActions(ctx, `SELECT `+actionColumns+` FROM actions a
			WHERE a.user_id = ? AND a.status = ? ORDER BY a.created_at DESC, a.id DESC`, userID, string(*status))
	}
	return q.listActions(ctx, `SELECT `+actionColumns+` FROM actions a
		WHERE a.user_id = ? ORDER BY a.created_at DESC, a.id DESC`, userID)
}

// PendingActionsForTheme returns the user's newest pending actions in a theme.
func (q *Queries) PendingActionsForTheme(ctx context.Context, userID string, themeID chat.ThemeID, limit int) ([]action.Action, error) {
	return q.listActions(ctx, `SELECT `+actionColumns+` FROM actions a
		WHERE a.user_id = ? AND a.theme_id = ? AND a.status = ?
		ORDER BY a.created_at DESC, a.id DESC LIMIT ?`,
		userID, string(themeID), string(action.StatusPending), limit)
}

// ActionsForGoal returns a goal's steps in sequence order.
func (q *Queries) ActionsForGoal(ctx context.Context, goalID int64) ([]action.Action, error) {
	return q.listActions(ctx, `SELECT `+actionColumns+` FROM actions a
		WHERE a.goal_id = ? ORDER BY a.sequence ASC, a.id ASC`, goalID)
}

// UpdateActionState stores the status, completion time and step flags of a.
func (q *Queries) UpdateActionState(ctx context.Context, a *action.Action, now time.Time) error {
	ts := dbTime(now)
	_, err := q.exec(ctx, `UPDATE actions SET status = ?, completed_at = ?, is_active_step = ?,
		follow_up_scheduled = ?, updated_at = ? WHERE id = ?`,
		string(a.Status), nullTime(a.CompletedAt), a.IsActiveStep, a.FollowUpScheduled, ts, a.ID)
	if err != nil {
		return fmt.Errorf("update action %d: %w", a.ID, err)
	}
	a.UpdatedAt = ts
	return nil
}

// ActionStats counts the user's actions per status.
func (q *Queries) ActionStats(ctx context.Context, userID string) (action.Stats, error) {
	rows, err := q.query(ctx, `SELECT status, COUNT(*) FROM actions WHERE user_id = ? GROUP BY status`, userID)
	if err != nil {
		return action.Stats{}, fmt.Errorf("action stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats action.Stats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return action.Stats{}, err
		}
		stats.Total += n
		switch action.Status(status) {
		case action.StatusPending:
			stats.Pending = n
		case action.StatusCompleted:
			stats.Completed = n
		case action.StatusCancelled:
			stats.Cancelled = n
		}
	}
	if err := rows.Err(); err != nil {
		return action.Stats{}, err
	}
	if stats.Total > 0 {
		stats.CompletionRate = stats.Completed * 100 / stats.Total
	}
	return stats, nil
}

// ConversationActionCounts returns how many actions a conversation produced
// and how many of those were completed.
func (q *Queries) ConversationActionCounts(ctx context.Context, conversationID int64) (total, completed int, err error) {
	err = q.queryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM actions WHERE conversation_id = ?`, string(action.StatusCompleted), conversationID).
		Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("count actions of conversation %d: %w", conversationID, err)
	}
	return total, completed, nil
}

// SkipPendingFollowUps marks every pending follow-up of an action skipped.
func (q *Queries) SkipPendingFollowUps(ctx context.Context, actionID int64) error {
	_, err := q.exec(ctx, `UPDATE follow_ups SET status = ? WHERE action_id = ? AND status = ?`,
		string(action.FollowUpSkipped), actionID, string(action.FollowUpPending))
	if err != nil {
		return fmt.Errorf("skip follow-ups of action %d: %w", actionID, err)
	}
	return nil
}

// DueFollowUps returns pending follow-ups scheduled at or before now, oldest first.
func (q *Queries) DueFollowUps(ctx context.Context, now time.Time, limit int) ([]action.Due, error) {
	rows, err := q.query(ctx, `SELECT `+actionColumns+`,
		f.id, f.action_id, f.scheduled_for, f.status, f.notification_sent, f.response, f.created_at
		FROM follow_ups f JOIN actions a ON a.id = f.action_id
		WHERE f.status = ? AND f.scheduled_for <= ?
		ORDER BY f.scheduled_for ASC, f.id ASC LIMIT ?`,
		string(action.FollowUpPending), dbTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("list due follow-ups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []action.Due
	for rows.Next() {
		var (
			f        action.FollowUp
			status   string
			sent     sql.NullTime
			response sql.NullString
		)
		a, err := scanAction(rows, &f.ID, &f.ActionID, &f.ScheduledFor, &status, &sent, &response, &f.CreatedAt)
		if err != nil {
			return nil, err
		}
		f.Status = action.FollowUpStatus(status)
		f.NotificationSent = timePtr(sent)
		f.Response = stringPtr(response)
		f.ScheduledFor = f.ScheduledFor.UTC()
		f.CreatedAt = f.CreatedAt.UTC()
		out = append(out, action.Due{FollowUp: f, Action: a})
	}
	return out, rows.Err()
}

// FollowUpsForAction lists an action's follow-ups in schedule order.
func (q *Queries) FollowUpsForAction(ctx context.Context, actionID int64) ([]action.FollowUp, error) {
	rows, err := q.query(ctx, `SELECT id, action_id, scheduled_for, status, notification_sent, response, created_at
		FROM follow_ups WHERE action_id = ? ORDER BY scheduled_for ASC, id ASC`, actionID)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups of action %d: %w", actionID, err)
	}
	defer func() { _ = rows.Close() }()

	out := []action.FollowUp{}
	for rows.Next() {
		var (
			f        action.FollowUp
			status   string
			sent     sql.NullTime
			response sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.ActionID, &f.ScheduledFor, &status, &sent, &response, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Status = action.FollowUpStatus(status)
		f.NotificationSent = timePtr(sent)
		f.Response = stringPtr(response)
		f.ScheduledFor = f.ScheduledFor.UTC()
		f.CreatedAt = f.CreatedAt.UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// MarkFollowUp records the delivery outcome of a follow-up. Only pending
// follow-ups are updated; updated reports whether this call changed the row.
func (q *Queries) MarkFollowUp(ctx context.Context, id int64, status action.FollowUpStatus, sentAt *time.Time) (bool, error) {
	res, err := q.exec(ctx, `UPDATE follow_ups SET status = ?, notification_sent = ?
		WHERE id = ? AND status = ?`, string(status), nullTime(sentAt), id, string(action.FollowUpPending))
	if err != nil {
		return false, fmt.Errorf("mark follow-up %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
