package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matti-app/matti/backend/internal/model/feedback"
)

const feedbackColumns = `id, conversation_id, user_id, message_index, rating, feedback_text, created_at`

func scanFeedback(s scanner) (feedback.Feedback, error) {
	var (
		f      feedback.Feedback
		rating string
		text   sql.NullString
	)
	if err := s.Scan(&f.ID, &f.ConversationID, &f.UserID, &f.MessageIndex, &rating, &text, &f.CreatedAt); err != nil {
		return feedback.Feedback{}, err
	}
	f.Rating = feedback.Rating(rating)
	f.FeedbackText = stringPtr(text)
	f.CreatedAt = f.CreatedAt.UTC()
	return f, nil
}

func (q *Queries) listFeedback(ctx context.Context, query string, args ...any) ([]feedback.Feedback, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []feedback.Feedback{}
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateFeedback inserts f and fills in its id and creation time.
func (q *Queries) CreateFeedback(ctx context.Context, f *feedback.Feedback, now time.Time) error {
	ts := dbTime(now)
	err := q.queryRow(ctx, `INSERT INTO message_feedback (conversation_id, user_id, message_index, rating, feedback_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		f.ConversationID, f.UserID, f.MessageIndex, string(f.Rating), nullString(f.FeedbackText), ts,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	f.CreatedAt = ts
	return nil
}

// FeedbackForConversation returns the user's feedback on one conversation.
func (q *Queries) FeedbackForConversation(ctx context.Context, userID string, conversationID int64) ([]feedback.Feedback, error) {
	return q.listFeedback(ctx, `SELECT `+feedbackColumns+` FROM message_feedback
		WHERE conversation_id = ? AND user_id = ? ORDER BY message_index ASC, id ASC`, conversationID, userID)
}

// ListFeedback returns a page of all feedback, newest first.
func (q *Queries) ListFeedback(ctx context.Context, filter feedback.Filter) (feedback.Page, error) {
	where, args := "", []any{}
	if filter.Rating != nil {
		where = ` WHERE rating = ?`
		args = append(args, string(*filter.Rating))
	}

	var total int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM message_feedback`+where, args...).Scan(&total); err != nil {
		return feedback.Page{}, fmt.Errorf("count feedback: %w", err)
	}

	items, err := q.listFeedback(ctx, `SELECT `+feedbackColumns+` FROM message_feedback`+where+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return feedback.Page{}, err
	}
	return feedback.Page{
		Feedback:   items,
		TotalCount: total,
		HasMore:    filter.Offset+len(items) < total,
	}, nil
}

// FeedbackStatistics counts positive and negative feedback.
func (q *Queries) FeedbackStatistics(ctx context.Context) (feedback.Statistics, error) {
	var stats feedback.Statistics
	err := q.queryRow(ctx, `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN rating = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN rating = ? THEN 1 ELSE 0 END), 0)
		FROM message_feedback`, string(feedback.RatingUp), string(feedback.RatingDown),
	).Scan(&stats.Total, &stats.Positive, &stats.Negative)
	if err != nil {
		return feedback.Statistics{}, fmt.Errorf("feedback statistics: %w", err)
	}
	if stats.Total > 0 {
		stats.PositivePercentage = (stats.Positive*100 + stats.Total/2) / stats.Total
	}
	return stats, nil
}

// NegativeFeedback returns the newest thumbs-down feedback.
func (q *Queries) NegativeFeedback(ctx context.Context, limit int) ([]feedback.Feedback, error) {
	return q.listFeedback(ctx, `SELECT `+feedbackColumns+` FROM message_feedback
		WHERE rating = ? ORDER BY created_at DESC, id DESC LIMIT ?`, string(feedback.RatingDown), limit)
}
