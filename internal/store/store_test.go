package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matti-app/matti/backend/internal/model/chat"
)

func TestRebind(t *testing.T) {
	pg := &Queries{dialect: Postgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	lite := &Queries{dialect: SQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", sqliteDSN("file::memory:"))
	assert.Equal(t, "matti.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", sqliteDSN("matti.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=journal_mode(WAL)", sqliteDSN("x.db?_pragma=journal_mode(WAL)"))
}

func TestUpdateConversationConflict(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := New(sqlDB, Postgres)
	mock.ExpectExec(`UPDATE conversations SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	conv := &chat.Conversation{ID: 7, Version: 3, Outcome: chat.OutcomeInProgress}
	err = db.UpdateConversation(context.Background(), conv, time.Now())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 3, conv.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := New(sqlDB, Postgres)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = db.InTx(context.Background(), func(q *Queries) error {
		return q.DeleteRefreshToken(context.Background(), "u1")
	})
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryErrorsSurface(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := New(sqlDB, Postgres)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM conversations`).
		WillReturnError(errors.New("db down"))

	_, err = db.CountConversations(context.Background(), "u1")
	assert.ErrorContains(t, err, "db down")
	assert.NotErrorIs(t, err, ErrNotFound)
}
