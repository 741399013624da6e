package store

import (
	"context"
	"fmt"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id @ID,
		open_id TEXT NOT NULL UNIQUE,
		name TEXT,
		role TEXT NOT NULL DEFAULT 'user',
		created_at @TS NOT NULL,
		updated_at @TS NOT NULL,
		last_signed_in @TS NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id @ID,
		user_id TEXT NOT NULL,
		theme_id TEXT NOT NULL,
		messages TEXT NOT NULL DEFAULT '[]',
		summary TEXT,
		is_archived BOOLEAN NOT NULL DEFAULT FALSE,
		archived_at @TS,
		bullying_detected BOOLEAN NOT NULL DEFAULT FALSE,
		bullying_severity TEXT,
		bullying_follow_up_scheduled BOOLEAN NOT NULL DEFAULT FALSE,
		initial_problem TEXT,
		conversation_count INTEGER NOT NULL DEFAULT 1,
		intervention_start_date @TS,
		intervention_end_date @TS,
		outcome TEXT NOT NULL DEFAULT 'in_progress',
		resolution TEXT,
		action_completion_rate INTEGER,
		version INTEGER NOT NULL DEFAULT 0,
		created_at @TS NOT NULL,
		updated_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS conversations_user_updated ON conversations (user_id, updated_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS conversations_one_active ON conversations (user_id, theme_id) WHERE is_archived = FALSE`,
	`CREATE TABLE IF NOT EXISTS goals (
		id @ID,
		user_id TEXT NOT NULL,
		goal_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		plan_intro TEXT,
		created_at @TS NOT NULL,
		updated_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS goals_user_status ON goals (user_id, status)`,
	`CREATE TABLE IF NOT EXISTS actions (
		id @ID,
		user_id TEXT NOT NULL,
		theme_id TEXT NOT NULL,
		conversation_id BIGINT REFERENCES conversations (id) ON DELETE SET NULL,
		goal_id BIGINT REFERENCES goals (id) ON DELETE CASCADE,
		sequence INTEGER,
		is_active_step BOOLEAN NOT NULL DEFAULT FALSE,
		action_text TEXT NOT NULL,
		action_type TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		follow_up_scheduled BOOLEAN NOT NULL DEFAULT FALSE,
		follow_up_intervals TEXT NOT NULL DEFAULT '[]',
		completed_at @TS,
		created_at @TS NOT NULL,
		updated_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS actions_user_status ON actions (user_id, status)`,
	`CREATE INDEX IF NOT EXISTS actions_goal ON actions (goal_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS follow_ups (
		id @ID,
		action_id BIGINT NOT NULL REFERENCES actions (id) ON DELETE CASCADE,
		scheduled_for @TS NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		notification_sent @TS,
		response TEXT,
		created_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS follow_ups_due ON follow_ups (status, scheduled_for)`,
	`CREATE TABLE IF NOT EXISTS message_feedback (
		id @ID,
		conversation_id BIGINT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		message_index INTEGER NOT NULL,
		rating TEXT NOT NULL,
		feedback_text TEXT,
		created_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS message_feedback_conversation ON message_feedback (conversation_id)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		user_id TEXT PRIMARY KEY,
		token_hash TEXT NOT NULL,
		expires_at @TS NOT NULL,
		created_at @TS NOT NULL
	)`,
}

func (d *DB) schemaReplacer() *strings.Replacer {
	if d.dialect == Postgres {
		return strings.NewReplacer("@ID", "BIGSERIAL PRIMARY KEY", "@TS", "TIMESTAMPTZ")
	}
	return strings.NewReplacer("@ID", "INTEGER PRIMARY KEY AUTOINCREMENT", "@TS", "TIMESTAMP")
}

// Migrate creates missing tables and indexes. It is safe to run repeatedly.
func (d *DB) Migrate(ctx context.Context) error {
	r := d.schemaReplacer()
	for i, stmt := range schema {
		if _, err := d.sqlDB.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
