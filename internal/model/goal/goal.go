package goal

import (
	"time"

	"github.com/matti-app/matti/backend/internal/model/action"
)

// Type is the kind of goal a user picked.
type Type string

const (
	TypeSleep           Type = "sleep"
	TypeProcrastination Type = "procrastination"
	TypePlanning        Type = "planning"
	TypeConfidence      Type = "confidence"
	TypeBullying        Type = "bullying"
	TypeMentalRest      Type = "mental_rest"
	TypeCustom          Type = "custom"
)

var titles = map[Type]string{
	TypeSleep:           "Beter slapen",
	TypeProcrastination: "Minder uitstellen",
	TypePlanning:        "Beter plannen",
	TypeConfidence:      "Meer zelfvertrouwen",
	TypeBullying:        "Omgaan met pesten",
	TypeMentalRest:      "Meer rust in mijn hoofd",
}

// Valid reports whether t is a known goal type.
func (t Type) Valid() bool {
	_, ok := titles[t]
	return ok || t == TypeCustom
}

// Title returns the display title for a goal, using customText for custom goals.
func Title(t Type, customText string) string {
	if title, ok := titles[t]; ok {
		return title
	}
	if customText != "" {
		return customText
	}
	return "Eigen doel"
}

// Status is the lifecycle state of a goal.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Goal groups a sequence of actions.
type Goal struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	GoalType    Type      `json:"goalType"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      Status    `json:"status"`
	PlanIntro   *string   `json:"planIntro"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Step is one entry of a generated plan.
type Step struct {
	Sequence   int    `json:"sequence"`
	ActionText string `json:"actionText"`
}

// Plan is the structured plan produced for a goal.
type Plan struct {
	Intro string `json:"intro"`
	Steps []Step `json:"steps"`
}

// Progress counts completed steps.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// WithSteps is a goal together with its actions.
type WithSteps struct {
	Goal
	Actions      []action.Action `json:"actions"`
	ActiveAction *action.Action  `json:"activeAction"`
	Progress     Progress        `json:"progress"`
}

// NewWithSteps derives the active step and progress from a goal's actions.
func NewWithSteps(g Goal, actions []action.Action) WithSteps {
	out := WithSteps{Goal: g, Actions: actions, Progress: Progress{Total: len(actions)}}
	for i := range actions {
		if actions[i].Status == action.StatusCompleted {
			out.Progress.Completed++
		}
		if actions[i].IsActiveStep && out.ActiveAction == nil {
			out.ActiveAction = &actions[i]
		}
	}
	return out
}
