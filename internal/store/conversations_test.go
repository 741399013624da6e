package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/internal/store"
	"github.com/matti-app/matti/backend/internal/store/storetest"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestGetOrCreateActiveIsIdempotent(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	first, created, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeSchool, t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, chat.OutcomeInProgress, first.Outcome)
	assert.Equal(t, 1, first.ConversationCount)
	assert.Empty(t, first.Messages)

	second, created, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeSchool, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other, _, err := db.GetOrCreateActive(ctx, "u2", chat.ThemeSchool, t0)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestUpdateConversationRoundTripsAndDetectsConflicts(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	conv, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeBullying, t0)
	require.NoError(t, err)

	stale := conv
	sev := chat.BullyingHigh
	summary := "Wordt gepest"
	conv.Messages = append(conv.Messages, chat.Message{Role: chat.RoleUser, Content: "ze pesten me", Timestamp: t0})
	conv.BullyingDetected = true
	conv.BullyingSeverity = &sev
	conv.Summary = &summary
	require.NoError(t, db.UpdateConversation(ctx, &conv, t0.Add(time.Minute)))
	assert.Equal(t, 1, conv.Version)

	got, err := db.ConversationByID(ctx, "u1", conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "ze pesten me", got.Messages[0].Content)
	assert.True(t, got.BullyingDetected)
	require.NotNil(t, got.BullyingSeverity)
	assert.Equal(t, chat.BullyingHigh, *got.BullyingSeverity)
	assert.Equal(t, t0.Add(time.Minute), got.UpdatedAt)

	stale.Messages = append(stale.Messages, chat.Message{Role: chat.RoleUser, Content: "lost"})
	assert.ErrorIs(t, db.UpdateConversation(ctx, &stale, t0), store.ErrConflict)

	_, err = db.ConversationByID(ctx, "someone-else", conv.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestArchivedConversationFreesTheThemeSlot(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	conv, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeHome, t0)
	require.NoError(t, err)
	archivedAt := t0.Add(time.Hour)
	conv.IsArchived = true
	conv.ArchivedAt = &archivedAt
	require.NoError(t, db.UpdateConversation(ctx, &conv, archivedAt))

	_, err = db.ActiveConversation(ctx, "u1", chat.ThemeHome)
	assert.ErrorIs(t, err, store.ErrNotFound)

	next, created, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeHome, archivedAt)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, conv.ID, next.ID)
}

func TestPruneArchivedKeepsNewestAndActive(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	var archived []int64
	for i := 0; i < 12; i++ {
		at := t0.Add(time.Duration(i) * time.Hour)
		conv, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeFriends, at)
		require.NoError(t, err)
		conv.IsArchived = true
		conv.ArchivedAt = &at
		require.NoError(t, db.UpdateConversation(ctx, &conv, at))
		archived = append(archived, conv.ID)
	}
	active, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeSchool, t0)
	require.NoError(t, err)

	deleted, err := db.PruneArchived(ctx, "u1", 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	n, err := db.CountConversations(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	for _, id := range archived[:3] {
		_, err := db.ConversationByID(ctx, "u1", id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
	_, err = db.ConversationByID(ctx, "u1", active.ID)
	assert.NoError(t, err)
}

func TestListAndIdleConversations(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	older, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeSchool, t0)
	require.NoError(t, err)
	newer, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeLove, t0.Add(time.Hour))
	require.NoError(t, err)

	list, err := db.ListConversations(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	latest, err := db.LatestConversation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	idle, err := db.IdleConversations(ctx, t0.Add(30*time.Minute), 10, 0)
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, older.ID, idle[0].ID)
}

func TestDeleteConversationsByTheme(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	_, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeSelf, t0)
	require.NoError(t, err)
	_, _, err = db.GetOrCreateActive(ctx, "u1", chat.ThemeFuture, t0)
	require.NoError(t, err)

	n, err := db.DeleteConversationsByTheme(ctx, "u1", chat.ThemeSelf)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := db.CountConversations(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, db.DeleteConversation(ctx, "u1", 9999), store.ErrNotFound)
}
