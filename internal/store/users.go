package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matti-app/matti/backend/internal/model/user"
)

const userColumns = `id, open_id, name, role, created_at, updated_at, last_signed_in`

func scanUser(s scanner) (user.User, error) {
	var (
		u    user.User
		name sql.NullString
		role string
	)
	if err := s.Scan(&u.ID, &u.OpenID, &name, &role, &u.CreatedAt, &u.UpdatedAt, &u.LastSignedIn); err != nil {
		return user.User{}, err
	}
	u.Name = stringPtr(name)
	u.Role = user.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	u.LastSignedIn = u.LastSignedIn.UTC()
	return u, nil
}

// UpsertUser creates the user or refreshes its name, role and sign-in time.
// A nil name keeps the stored one.
func (q *Queries) UpsertUser(ctx context.Context, openID string, name *string, role user.Role, now time.Time) (user.User, error) {
	ts := dbTime(now)
	row := q.queryRow(ctx, `INSERT INTO users (open_id, name, role, created_at, updated_at, last_signed_in)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (open_id) DO UPDATE SET
			name = COALESCE(excluded.name, users.name),
			role = excluded.role,
			updated_at = excluded.updated_at,
			last_signed_in = excluded.last_signed_in
		RETURNING `+userColumns,
		openID, nullString(name), string(role), ts, ts, ts)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// UserByOpenID looks a user up by external identity.
func (q *Queries) UserByOpenID(ctx context.Context, openID string) (user.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE open_id = ?`, openID))
	if err != nil {
		return user.User{}, notFound(err)
	}
	return u, nil
}
