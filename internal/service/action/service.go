package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/model/action"
	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/internal/model/goal"
	"github.com/matti-app/matti/backend/internal/store"
)

var (
	ErrActionNotFound    = errors.New("action not found")
	ErrInvalidStatus     = errors.New("invalid action status")
	ErrInvalidTransition = errors.New("action status cannot change")
	ErrEmptyAction       = errors.New("action text is required")
	ErrInvalidTheme      = errors.New("unknown theme")
	ErrInvalidIntervals  = errors.New("follow-up intervals must be 1 to 60 days, at most six")
)

// Service manages user actions and their follow-up schedule.
type Service struct {
	db  *store.DB
	now func() time.Time
}

// NewService wires the action service. now may be nil.
func NewService(db *store.DB, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{db: db, now: now}
}

func logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("component", "action").Logger()
	return &l
}

// NewAction describes an action to save.
type NewAction struct {
	ThemeID        chat.ThemeID
	ConversationID *int64
	ActionText     string
	ActionType     *string
	// FollowUpIntervals are day offsets; empty uses the default schedule.
	FollowUpIntervals []int
}

// Save stores an action and schedules its follow-ups.
func (s *Service) Save(ctx context.Context, userID string, in NewAction) (action.Action, error) {
	text := strings.TrimSpace(in.ActionText)
	if text == "" {
		return action.Action{}, ErrEmptyAction
	}
	if !in.ThemeID.Valid() {
		return action.Action{}, ErrInvalidTheme
	}
	intervals := in.FollowUpIntervals
	if !action.ValidIntervals(intervals) {
		return action.Action{}, ErrInvalidIntervals
	}
	if len(intervals) == 0 {
		intervals = action.DefaultFollowUpIntervals
	}

	now := s.now()
	a := action.Action{
		UserID:            userID,
		ThemeID:           in.ThemeID,
		ConversationID:    in.ConversationID,
		ActionText:        text,
		ActionType:        in.ActionType,
		Status:            action.StatusPending,
		FollowUpIntervals: append([]int(nil), intervals...),
	}
	err := s.db.InTx(ctx, func(q *store.Queries) error {
		return q.CreateAction(ctx, &a, action.ScheduleTimes(now, intervals), now)
	})
	if err != nil {
		return action.Action{}, fmt.Errorf("save action: %w", err)
	}

	logger(ctx).Info().
		Int64("action_id", a.ID).
		Str("theme", string(a.ThemeID)).
		Int("follow_ups", len(intervals)).
		Msg("action saved")
	return a, nil
}

// List returns the user's actions, optionally only those in status.
func (s *Service) List(ctx context.Context, userID string, status *action.Status) ([]action.Action, error) {
	if status != nil && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.db.ListActions(ctx, userID, status)
}

// Stats counts the user's actions per status.
func (s *Service) Stats(ctx context.Context, userID string) (action.Stats, error) {
	return s.db.ActionStats(ctx, userID)
}

// Get returns one action with its follow-ups.
func (s *Service) Get(ctx context.Context, userID string, id int64) (action.Action, []action.FollowUp, error) {
	a, err := s.db.ActionByID(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return action.Action{}, nil, ErrActionNotFound
	}
	if err != nil {
		return action.Action{}, nil, err
	}
	followUps, err := s.db.FollowUpsForAction(ctx, id)
	if err != nil {
		return action.Action{}, nil, err
	}
	return a, followUps, nil
}

// UpdateStatus completes or cancels a pending action. Remaining follow-ups
// are skipped. For goal steps the next pending step becomes active, and the
// goal is closed once no step is pending.
func (s *Service) UpdateStatus(ctx context.Context, userID string, id int64, status action.Status) (action.Action, error) {
	if !status.Valid() {
		return action.Action{}, ErrInvalidStatus
	}

	now := s.now()
	var updated action.Action
	err := s.db.InTx(ctx, func(q *store.Queries) error {
		a, err := q.ActionByID(ctx, userID, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrActionNotFound
		}
		if err != nil {
			return err
		}
		if !a.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, status)
		}

		a.Status = status
		if status == action.StatusCompleted {
			a.CompletedAt = &now
		}
		a.IsActiveStep = false
		if err := q.UpdateActionState(ctx, &a, now); err != nil {
			return err
		}
		if err := q.SkipPendingFollowUps(ctx, a.ID); err != nil {
			return err
		}

		if a.GoalID != nil {
			if err := advanceGoal(ctx, q, userID, *a.GoalID, now); err != nil {
				return err
			}
		}
		if a.ConversationID != nil {
			if err := refreshCompletionRate(ctx, q, *a.ConversationID); err != nil {
				return err
			}
		}

		updated = a
		return nil
	})
	if err != nil {
		return action.Action{}, err
	}

	logger(ctx).Info().Int64("action_id", id).Str("status", string(status)).Msg("action status updated")
	return updated, nil
}

// advanceGoal activates the lowest pending step of a goal. Once nothing is
// pending the goal is completed, or abandoned when every step was cancelled.
func advanceGoal(ctx context.Context, q *store.Queries, userID string, goalID int64, now time.Time) error {
	steps, err := q.ActionsForGoal(ctx, goalID)
	if err != nil {
		return err
	}

	var next *action.Action
	anyCompleted := false
	for i := range steps {
		st := &steps[i]
		if st.Status == action.StatusCompleted {
			anyCompleted = true
		}
		if st.Status != action.StatusPending {
			continue
		}
		if st.IsActiveStep {
			return nil
		}
		if next == nil || seq(st) < seq(next) {
			next = st
		}
	}

	if next != nil {
		next.IsActiveStep = true
		next.FollowUpScheduled = true
		if err := q.UpdateActionState(ctx, next, now); err != nil {
			return err
		}
		return q.AddFollowUps(ctx, next.ID, action.ScheduleTimes(now, action.GoalStepIntervals), now)
	}

	g, err := q.GoalByID(ctx, userID, goalID)
	if err != nil {
		return fmt.Errorf("load goal %d: %w", goalID, err)
	}
	final := goal.StatusCompleted
	if !anyCompleted {
		final = goal.StatusAbandoned
	}
	if g.Status == final {
		return nil
	}
	g.Status = final
	return q.UpdateGoal(ctx, &g, now)
}

func seq(a *action.Action) int {
	if a.Sequence == nil {
		return int(^uint(0) >> 1)
	}
	return *a.Sequence
}

// refreshCompletionRate stores the share of completed actions that came out
// of a conversation.
func refreshCompletionRate(ctx context.Context, q *store.Queries, conversationID int64) error {
	total, completed, err := q.ConversationActionCounts(ctx, conversationID)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}
	return q.SetActionCompletionRate(ctx, conversationID, completed*100/total)
}
