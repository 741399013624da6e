package action

import (
	"time"

	"github.com/matti-app/matti/backend/internal/model/chat"
)

// Status is the lifecycle state of an action.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether an action may move from s to next.
// Only pending actions can be closed, and only by completing or cancelling them.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && (next == StatusCompleted || next == StatusCancelled)
}

// Action is a concrete step a user committed to.
type Action struct {
	ID                int64        `json:"id"`
	UserID            string       `json:"userId"`
	ThemeID           chat.ThemeID `json:"themeId"`
	ConversationID    *int64       `json:"conversationId"`
	GoalID            *int64       `json:"goalId"`
	Sequence          *int         `json:"sequence"`
	IsActiveStep      bool         `json:"isActiveStep"`
	ActionText        string       `json:"actionText"`
	ActionType        *string      `json:"actionType"`
	Status            Status       `json:"status"`
	FollowUpScheduled bool         `json:"followUpScheduled"`
	FollowUpIntervals []int        `json:"followUpIntervals"`
	CompletedAt       *time.Time   `json:"completedAt"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// Stats aggregates a user's actions by status.
type Stats struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	Completed      int `json:"completed"`
	Cancelled      int `json:"cancelled"`
	CompletionRate int `json:"completionRate"`
}
