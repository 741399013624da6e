package store

import (
	"context"
	"fmt"
	"time"
)

// SaveRefreshToken stores the hash of the user's refresh token, replacing
// any previous one.
func (q *Queries) SaveRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt, now time.Time) error {
	_, err := q.exec(ctx, `INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			token_hash = excluded.token_hash,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		userID, tokenHash, dbTime(expiresAt), dbTime(now))
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// RefreshToken returns the stored token hash and its expiry.
func (q *Queries) RefreshToken(ctx context.Context, userID string) (string, time.Time, error) {
	var (
		hash      string
		expiresAt time.Time
	)
	err := q.queryRow(ctx, `SELECT token_hash, expires_at FROM refresh_tokens WHERE user_id = ?`, userID).
		Scan(&hash, &expiresAt)
	if err != nil {
		return "", time.Time{}, notFound(err)
	}
	return hash, expiresAt.UTC(), nil
}

// DeleteRefreshToken revokes the user's refresh token.
func (q *Queries) DeleteRefreshToken(ctx context.Context, userID string) error {
	if _, err := q.exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
