package goal

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
	ErrGoalNotFound    = errors.New("goal not found")
	ErrInvalidGoalType = errors.New("invalid goal type")
	ErrNotDraft        = errors.New("goal is not a draft")
	ErrPlanTooShort    = errors.New("plan needs at least two steps")
)

// MinPlanSteps is the fewest steps a usable plan has.
const MinPlanSteps = 2

// Planner turns a goal into a step plan.
type Planner interface {
	GeneratePlan(ctx context.Context, title string, goalType goal.Type, clarification string) (goal.Plan, error)
}

// Service manages goals and their sequential steps.
type Service struct {
	db      *store.DB
	planner Planner
	now     func() time.Time
}

// NewService wires the goal service. now may be nil.
func NewService(db *store.DB, planner Planner, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{db: db, planner: planner, now: now}
}

func logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("component", "goal").Logger()
	return &l
}

// Draft describes a goal the user picked.
type Draft struct {
	GoalType    goal.Type
	CustomText  string
	Description *string
}

// StartDraft stores a goal in draft status.
func (s *Service) StartDraft(ctx context.Context, userID string, d Draft) (goal.Goal, error) {
	if !d.GoalType.Valid() {
		return goal.Goal{}, ErrInvalidGoalType
	}
	g := goal.Goal{
		UserID:      userID,
		GoalType:    d.GoalType,
		Title:       goal.Title(d.GoalType, strings.TrimSpace(d.CustomText)),
		Description: d.Description,
		Status:      goal.StatusDraft,
	}
	if err := s.db.CreateGoal(ctx, &g, s.now()); err != nil {
		return goal.Goal{}, err
	}
	logger(ctx).Info().Int64("goal_id", g.ID).Str("goal_type", string(g.GoalType)).Msg("goal drafted")
	return g, nil
}

// Finalize generates a plan for a draft goal, stores its steps and activates
// it. Only the first step is active and gets follow-ups.
func (s *Service) Finalize(ctx context.Context, userID string, id int64, clarification string) (goal.WithSteps, error) {
	g, err := s.db.GoalByID(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return goal.WithSteps{}, ErrGoalNotFound
	}
	if err != nil {
		return goal.WithSteps{}, err
	}
	if g.Status != goal.StatusDraft {
		return goal.WithSteps{}, ErrNotDraft
	}

	plan, err := s.planner.GeneratePlan(ctx, g.Title, g.GoalType, clarification)
	if err != nil {
		return goal.WithSteps{}, fmt.Errorf("generate plan: %w", err)
	}
	if len(plan.Steps) < MinPlanSteps {
		return goal.WithSteps{}, ErrPlanTooShort
	}

	now := s.now()
	var steps []action.Action
	err = s.db.InTx(ctx, func(q *store.Queries) error {
		g.Status = goal.StatusActive
		if intro := strings.TrimSpace(plan.Intro); intro != "" {
			g.PlanIntro = &intro
		}
		if err := q.UpdateGoal(ctx, &g, now); err != nil {
			return err
		}

		for i, step := range plan.Steps {
			goalID, sequence := g.ID, step.Sequence
			a := action.Action{
				UserID:            userID,
				ThemeID:           chat.ThemeGeneral,
				GoalID:            &goalID,
				Sequence:          &sequence,
				IsActiveStep:      i == 0,
				ActionText:        step.ActionText,
				Status:            action.StatusPending,
				FollowUpIntervals: action.GoalStepIntervals,
			}
			var followUps []time.Time
			if a.IsActiveStep {
				followUps = action.ScheduleTimes(now, action.GoalStepIntervals)
			}
			if err := q.CreateAction(ctx, &a, followUps, now); err != nil {
				return err
			}
			steps = append(steps, a)
		}
		return nil
	})
	if err != nil {
		return goal.WithSteps{}, fmt.Errorf("finalize goal %d: %w", id, err)
	}

	logger(ctx).Info().Int64("goal_id", g.ID).Int("steps", len(steps)).Msg("goal activated")
	return goal.NewWithSteps(g, steps), nil
}

// Active returns the user's active goals with their steps.
func (s *Service) Active(ctx context.Context, userID string) ([]goal.WithSteps, error) {
	goals, err := s.db.GoalsByStatus(ctx, userID, goal.StatusActive)
	if err != nil {
		return nil, err
	}
	out := make([]goal.WithSteps, 0, len(goals))
	for _, g := range goals {
		steps, err := s.db.ActionsForGoal(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, goal.NewWithSteps(g, steps))
	}
	return out, nil
}

// Get returns one goal with its steps.
func (s *Service) Get(ctx context.Context, userID string, id int64) (goal.WithSteps, error) {
	g, err := s.db.GoalByID(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return goal.WithSteps{}, ErrGoalNotFound
	}
	if err != nil {
		return goal.WithSteps{}, err
	}
	steps, err := s.db.ActionsForGoal(ctx, g.ID)
	if err != nil {
		return goal.WithSteps{}, err
	}
	return goal.NewWithSteps(g, steps), nil
}
