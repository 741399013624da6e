package followup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matti-app/matti/backend/internal/model/action"
	"github.com/matti-app/matti/backend/internal/model/chat"
	actionsvc "github.com/matti-app/matti/backend/internal/service/action"
	chatsvc "github.com/matti-app/matti/backend/internal/service/chat"
	followupsvc "github.com/matti-app/matti/backend/internal/service/followup"
	"github.com/matti-app/matti/backend/internal/store/storetest"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestRecentContextForPendingActions(t *testing.T) {
	db := storetest.New(t)
	clk := &clock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	chats := chatsvc.NewService(db, nil, chatsvc.Options{Now: clk.Now})
	actions := actionsvc.NewService(db, clk.Now)
	svc := followupsvc.NewService(db, chats, 0, clk.Now)
	ctx := context.Background()

	fc, err := svc.RecentContext(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, fc)

	conv, err := chats.GetConversation(ctx, "u1", chat.ThemeSchool)
	require.NoError(t, err)
	_, err = chats.SaveMessage(ctx, "u1", conv.ID, chat.RoleUser, "ik ga morgen met mijn mentor praten")
	require.NoError(t, err)
	_, err = actions.Save(ctx, "u1", actionsvc.NewAction{ThemeID: chat.ThemeSchool, ConversationID: &conv.ID, ActionText: "Met mentor praten"})
	require.NoError(t, err)

	clk.now = clk.now.Add(2 * 24 * time.Hour)
	fc, err = svc.RecentContext(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, fc)
	assert.Equal(t, 2, fc.DaysAgo)
	assert.Equal(t, []string{"Met mentor praten"}, fc.PendingActions)
	assert.Contains(t, fc.Prompt(), "Openstaande acties: Met mentor praten")

	other, err := chats.GetConversation(ctx, "u1", chat.ThemeHome)
	require.NoError(t, err)
	fc, err = svc.ContextBefore(ctx, "u1", other.ID)
	require.NoError(t, err)
	require.NotNil(t, fc)
	assert.Equal(t, chat.ThemeSchool, fc.ThemeID)

	clk.now = clk.now.Add(10 * 24 * time.Hour)
	fc, err = svc.ContextBefore(ctx, "u1", other.ID)
	require.NoError(t, err)
	assert.Nil(t, fc)
}

type failingInjector struct{}

func (failingInjector) InjectSystemMessage(context.Context, string, chat.ThemeID, *int64, string) (chat.Conversation, error) {
	return chat.Conversation{}, errors.New("boom")
}

func TestSweepDeliversDueFollowUps(t *testing.T) {
	db := storetest.New(t)
	clk := &clock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	chats := chatsvc.NewService(db, nil, chatsvc.Options{Now: clk.Now})
	actions := actionsvc.NewService(db, clk.Now)
	svc := followupsvc.NewService(db, chats, 0, clk.Now)
	ctx := context.Background()

	conv, err := chats.GetConversation(ctx, "u1", chat.ThemeSchool)
	require.NoError(t, err)
	_, err = chats.SaveMessage(ctx, "u1", conv.ID, chat.RoleUser, "ik ga leren voor wiskunde")
	require.NoError(t, err)

	kept, err := actions.Save(ctx, "u1", actionsvc.NewAction{ThemeID: chat.ThemeSchool, ConversationID: &conv.ID, ActionText: "Leren voor wiskunde", FollowUpIntervals: []int{2}})
	require.NoError(t, err)
	dropped, err := actions.Save(ctx, "u1", actionsvc.NewAction{ThemeID: chat.ThemeSchool, ConversationID: &conv.ID, ActionText: "Huiswerk maken", FollowUpIntervals: []int{2}})
	require.NoError(t, err)

	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, followupsvc.SweepResult{}, res)

	_, err = actions.UpdateStatus(ctx, "u1", dropped.ID, action.StatusCancelled)
	require.NoError(t, err)

	clk.now = clk.now.Add(3 * 24 * time.Hour)
	res, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	got, err := chats.ConversationByID(ctx, "u1", conv.ID)
	require.NoError(t, err)
	last := got.Messages[len(got.Messages)-1]
	assert.Equal(t, chat.RoleSystem, last.Role)
	assert.Equal(t, followupsvc.CheckInMessage(kept), last.Content)

	_, followUps, err := actions.Get(ctx, "u1", kept.ID)
	require.NoError(t, err)
	require.Len(t, followUps, 1)
	assert.Equal(t, action.FollowUpSent, followUps[0].Status)
	require.NotNil(t, followUps[0].NotificationSent)

	res, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
}

func TestSweepCountsFailedDeliveries(t *testing.T) {
	db := storetest.New(t)
	clk := &clock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	actions := actionsvc.NewService(db, clk.Now)
	svc := followupsvc.NewService(db, failingInjector{}, 10, clk.Now)
	ctx := context.Background()

	a, err := actions.Save(ctx, "u1", actionsvc.NewAction{ThemeID: chat.ThemeFeelings, ActionText: "Dagboek bijhouden", FollowUpIntervals: []int{1}})
	require.NoError(t, err)

	clk.now = clk.now.Add(2 * 24 * time.Hour)
	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, followupsvc.SweepResult{Failed: 1}, res)

	_, followUps, err := actions.Get(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, action.FollowUpPending, followUps[0].Status)
}

func TestCheckInSurvivesIdleArchive(t *testing.T) {
	db := storetest.New(t)
	clk := &clock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	chats := chatsvc.NewService(db, nil, chatsvc.Options{Now: clk.Now})
	actions := actionsvc.NewService(db, clk.Now)
	svc := followupsvc.NewService(db, chats, 0, clk.Now)
	ctx := context.Background()

	conv, err := chats.GetConversation(ctx, "u1", chat.ThemeSchool)
	require.NoError(t, err)
	_, err = chats.SaveMessage(ctx, "u1", conv.ID, chat.RoleUser, "ik ga mijn rooster maken")
	require.NoError(t, err)
	a, err := actions.Save(ctx, "u1", actionsvc.NewAction{ThemeID: chat.ThemeSchool, ConversationID: &conv.ID, ActionText: "Rooster maken", FollowUpIntervals: []int{2}})
	require.NoError(t, err)

	clk.now = clk.now.Add(31 * time.Minute)
	n, err := chats.ArchiveIdle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	clk.now = clk.now.Add(3 * 24 * time.Hour)
	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)

	checkIn, err := chats.GetConversation(ctx, "u1", chat.ThemeSchool)
	require.NoError(t, err)
	require.NotEqual(t, conv.ID, checkIn.ID)
	require.Len(t, checkIn.Messages, 1)

	clk.now = clk.now.Add(31 * time.Minute)
	n, err = chats.ArchiveIdle(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := chats.ConversationByID(ctx, "u1", checkIn.ID)
	require.NoError(t, err)
	assert.False(t, got.IsArchived)
	assert.Equal(t, followupsvc.CheckInMessage(a), got.Messages[0].Content)
}
