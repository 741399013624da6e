package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matti-app/matti/backend/internal/model/goal"
)

const goalColumns = `id, user_id, goal_type, title, description, status, plan_intro, created_at, updated_at`

func scanGoal(s scanner) (goal.Goal, error) {
	var (
		g                 goal.Goal
		goalType, status  string
		description, plan sql.NullString
	)
	if err := s.Scan(&g.ID, &g.UserID, &goalType, &g.Title, &description, &status, &plan, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return goal.Goal{}, err
	}
	g.GoalType = goal.Type(goalType)
	g.Status = goal.Status(status)
	g.Description = stringPtr(description)
	g.PlanIntro = stringPtr(plan)
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return g, nil
}

// CreateGoal inserts g and fills in its id and timestamps.
func (q *Queries) CreateGoal(ctx context.Context, g *goal.Goal, now time.Time) error {
	ts := dbTime(now)
	err := q.queryRow(ctx, `INSERT INTO goals (user_id, goal_type, title, description, status, plan_intro, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		g.UserID, string(g.GoalType), g.Title, nullString(g.Description), string(g.Status), nullString(g.PlanIntro), ts, ts,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	g.CreatedAt, g.UpdatedAt = ts, ts
	return nil
}

// GoalByID returns one of the user's goals.
func (q *Queries) GoalByID(ctx context.Context, userID string, id int64) (goal.Goal, error) {
	row := q.queryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if err != nil {
		return goal.Goal{}, notFound(err)
	}
	return g, nil
}

// GoalsByStatus returns the user's goals in a status, newest first.
func (q *Queries) GoalsByStatus(ctx context.Context, userID string, status goal.Status) ([]goal.Goal, error) {
	rows, err := q.query(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE user_id = ? AND status = ? ORDER BY created_at DESC, id DESC`, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []goal.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpdateGoal stores the status and plan intro of g.
func (q *Queries) UpdateGoal(ctx context.Context, g *goal.Goal, now time.Time) error {
	ts := dbTime(now)
	_, err := q.exec(ctx, `UPDATE goals SET status = ?, plan_intro = ?, updated_at = ? WHERE id = ?`,
		string(g.Status), nullString(g.PlanIntro), ts, g.ID)
	if err != nil {
		return fmt.Errorf("update goal %d: %w", g.ID, err)
	}
	g.UpdatedAt = ts
	return nil
}
