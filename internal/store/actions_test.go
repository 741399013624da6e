package store_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matti-app/matti/backend/internal/model/action"
	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/internal/store"
	"github.com/matti-app/matti/backend/internal/store/storetest"
)

func TestCreateActionSchedulesFollowUps(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	conv, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeSchool, t0)
	require.NoError(t, err)

	a := action.Action{
		UserID:            "u1",
		ThemeID:           chat.ThemeSchool,
		ConversationID:    &conv.ID,
		ActionText:        "Ik ga met mijn mentor praten",
		FollowUpIntervals: action.DefaultFollowUpIntervals,
	}
	times := action.ScheduleTimes(t0, a.FollowUpIntervals)
	require.NoError(t, db.InTx(ctx, func(q *store.Queries) error {
		return q.CreateAction(ctx, &a, times, t0)
	}))
	assert.NotZero(t, a.ID)
	assert.True(t, a.FollowUpScheduled)

	got, err := db.ActionByID(ctx, "u1", a.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(a, got); diff != "" {
		t.Fatalf("stored action mismatch (-want +got):\n%s", diff)
	}

	followUps, err := db.FollowUpsForAction(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, followUps, len(times))
	for i, f := range followUps {
		assert.Equal(t, times[i], f.ScheduledFor)
		assert.Equal(t, action.FollowUpPending, f.Status)
	}
}

func TestDueFollowUpsAndMarking(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	a := action.Action{UserID: "u1", ThemeID: chat.ThemeHome, ActionText: "Opruimen", FollowUpIntervals: []int{2, 4}}
	require.NoError(t, db.CreateAction(ctx, &a, action.ScheduleTimes(t0, a.FollowUpIntervals), t0))

	due, err := db.DueFollowUps(ctx, t0.AddDate(0, 0, 3), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, a.ID, due[0].Action.ID)
	assert.Equal(t, "Opruimen", due[0].Action.ActionText)

	sent := t0.AddDate(0, 0, 3)
	ok, err := db.MarkFollowUp(ctx, due[0].FollowUp.ID, action.FollowUpSent, &sent)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.MarkFollowUp(ctx, due[0].FollowUp.ID, action.FollowUpSent, &sent)
	require.NoError(t, err)
	assert.False(t, ok, "a follow-up is delivered once")

	require.NoError(t, db.SkipPendingFollowUps(ctx, a.ID))
	due, err = db.DueFollowUps(ctx, t0.AddDate(0, 1, 0), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestActionStatsAndCompletionCounts(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	conv, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeSchool, t0)
	require.NoError(t, err)

	statuses := []action.Status{action.StatusPending, action.StatusCompleted, action.StatusCompleted, action.StatusCancelled}
	for _, s := range statuses {
		a := action.Action{UserID: "u1", ThemeID: chat.ThemeSchool, ConversationID: &conv.ID, ActionText: "x", Status: s}
		require.NoError(t, db.CreateAction(ctx, &a, nil, t0))
	}

	stats, err := db.ActionStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, action.Stats{Total: 4, Pending: 1, Completed: 2, Cancelled: 1, CompletionRate: 50}, stats)

	total, completed, err := db.ConversationActionCounts(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, completed)

	pending := action.StatusPending
	list, err := db.ListActions(ctx, "u1", &pending)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	forTheme, err := db.PendingActionsForTheme(ctx, "u1", chat.ThemeSchool, 5)
	require.NoError(t, err)
	assert.Len(t, forTheme, 1)
}

func TestDeletingConversationKeepsActions(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	conv, _, err := db.GetOrCreateActive(ctx, "u1", chat.ThemeSchool, t0)
	require.NoError(t, err)
	a := action.Action{UserID: "u1", ThemeID: chat.ThemeSchool, ConversationID: &conv.ID, ActionText: "Leren"}
	require.NoError(t, db.CreateAction(ctx, &a, nil, t0))

	require.NoError(t, db.DeleteConversation(ctx, "u1", conv.ID))

	got, err := db.ActionByID(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ConversationID)
}
