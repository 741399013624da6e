package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/analysis/followup"
	"github.com/matti-app/matti/backend/internal/model/action"
	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/internal/store"
)

const (
	// PendingActionLimit caps the actions mentioned in a follow-up context.
	PendingActionLimit = 5
	// DefaultBatchSize is how many due follow-ups one sweep handles.
	DefaultBatchSize = 100
)

// Injector delivers a check-in into a user's conversation.
type Injector interface {
	InjectSystemMessage(ctx context.Context, userID string, themeID chat.ThemeID, conversationID *int64, content string) (chat.Conversation, error)
}

// Service builds follow-up context and delivers due check-ins.
type Service struct {
	db        *store.DB
	injector  Injector
	batchSize int
	now       func() time.Time
}

// NewService wires the follow-up service. batchSize <= 0 uses the default.
func NewService(db *store.DB, injector Injector, batchSize int, now func() time.Time) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{db: db, injector: injector, batchSize: batchSize, now: now}
}

func logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("component", "followup").Logger()
	return &l
}

// RecentContext returns follow-up context for the user's latest conversation,
// or nil when there is nothing worth following up on.
func (s *Service) RecentContext(ctx context.Context, userID string) (*followup.Context, error) {
	conv, err := s.db.LatestConversation(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest conversation: %w", err)
	}
	return s.build(ctx, userID, conv)
}

// ContextBefore is RecentContext as seen from inside conversation currentID:
// the latest other conversation is considered.
func (s *Service) ContextBefore(ctx context.Context, userID string, currentID int64) (*followup.Context, error) {
	conv, err := s.db.PreviousConversation(ctx, userID, currentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous conversation: %w", err)
	}
	return s.build(ctx, userID, conv)
}

func (s *Service) build(ctx context.Context, userID string, conv chat.Conversation) (*followup.Context, error) {
	actions, err := s.db.PendingActionsForTheme(ctx, userID, conv.ThemeID, PendingActionLimit)
	if err != nil {
		return nil, err
	}

	fc := followup.FromConversation(conv)
	return followup.Build(&fc, actions, s.now()), nil
}

// SweepResult counts what a sweep did.
type SweepResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweep delivers every due follow-up as a check-in message. Follow-ups of
// actions that are no longer pending are skipped.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	due, err := s.db.DueFollowUps(ctx, now, s.batchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("load due follow-ups: %w", err)
	}

	var res SweepResult
	for _, d := range due {
		if d.Action.Status != action.StatusPending {
			if _, err := s.db.MarkFollowUp(ctx, d.FollowUp.ID, action.FollowUpSkipped, nil); err != nil {
				return res, err
			}
			res.Skipped++
			continue
		}

		_, err := s.injector.InjectSystemMessage(ctx, d.Action.UserID, d.Action.ThemeID, d.Action.ConversationID, CheckInMessage(d.Action))
		if err != nil {
			logger(ctx).Error().Err(err).Int64("follow_up_id", d.FollowUp.ID).Msg("deliver follow-up")
			res.Failed++
			continue
		}

		sentAt := now
		if _, err := s.db.MarkFollowUp(ctx, d.FollowUp.ID, action.FollowUpSent, &sentAt); err != nil {
			return res, err
		}
		res.Sent++
	}

	if len(due) > 0 {
		logger(ctx).Info().
			Int("sent", res.Sent).
			Int("skipped", res.Skipped).
			Int("failed", res.Failed).
			Msg("follow-up sweep finished")
	}
	return res, nil
}

// CheckInMessage is the text injected for a due follow-up.
func CheckInMessage(a action.Action) string {
	if a.GoalID != nil {
		return fmt.Sprintf("Hoi! Hoe gaat het met je stap: \"%s\"? Laat je weten of het gelukt is?", a.ActionText)
	}
	return fmt.Sprintf("Hoi! Een tijdje geleden nam je je voor: \"%s\". Hoe is dat gegaan?", a.ActionText)
}
