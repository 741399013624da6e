// Package storetest opens throwaway databases for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matti-app/matti/backend/internal/store"
)

// New returns a migrated in-memory SQLite database closed at test cleanup.
func New(t testing.TB) *store.DB {
	t.Helper()

	ctx := context.Background()
	db, err := store.Open(ctx, store.SQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}
