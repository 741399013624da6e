package chat

import "time"

// Outcome tracks how a conversation's underlying problem developed.
type Outcome string

const (
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeInProgress Outcome = "in_progress"
	OutcomeResolved   Outcome = "resolved"
	OutcomeEscalated  Outcome = "escalated"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeUnresolved, OutcomeInProgress, OutcomeResolved, OutcomeEscalated:
		return true
	}
	return false
}

// BullyingSeverity is the stored severity grade for bullying in a conversation.
type BullyingSeverity string

const (
	BullyingLow    BullyingSeverity = "low"
	BullyingMedium BullyingSeverity = "medium"
	BullyingHigh   BullyingSeverity = "high"
)

// Valid reports whether s is a storable severity.
func (s BullyingSeverity) Valid() bool {
	return s == BullyingLow || s == BullyingMedium || s == BullyingHigh
}

// Conversation is a user's message log for one theme.
type Conversation struct {
	ID                        int64             `json:"id"`
	UserID                    string            `json:"userId"`
	ThemeID                   ThemeID           `json:"themeId"`
	Messages                  []Message         `json:"messages"`
	Summary                   *string           `json:"summary"`
	IsArchived                bool              `json:"isArchived"`
	ArchivedAt                *time.Time        `json:"archivedAt"`
	BullyingDetected          bool              `json:"bullyingDetected"`
	BullyingSeverity          *BullyingSeverity `json:"bullyingSeverity"`
	BullyingFollowUpScheduled bool              `json:"bullyingFollowUpScheduled"`
	InitialProblem            *string           `json:"initialProblem"`
	ConversationCount         int               `json:"conversationCount"`
	InterventionStartDate     *time.Time        `json:"interventionStartDate"`
	InterventionEndDate       *time.Time        `json:"interventionEndDate"`
	Outcome                   Outcome           `json:"outcome"`
	Resolution                *string           `json:"resolution"`
	ActionCompletionRate      *int              `json:"actionCompletionRate"`
	Version                   int               `json:"-"`
	CreatedAt                 time.Time         `json:"createdAt"`
	UpdatedAt                 time.Time         `json:"updatedAt"`
}

// UserMessageCount counts the messages written by the user.
func (c *Conversation) UserMessageCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// HasUserMessages reports whether the user said anything in the conversation.
func (c *Conversation) HasUserMessages() bool {
	return c.UserMessageCount() > 0
}

// AwaitingReply reports whether the last message is a check-in the user has
// not answered yet.
func (c *Conversation) AwaitingReply() bool {
	return len(c.Messages) > 0 && c.Messages[len(c.Messages)-1].Role == RoleSystem
}

// Preview returns the first user message cut to limit runes.
func (c *Conversation) Preview(limit int) *string {
	for _, m := range c.Messages {
		if m.Role != RoleUser {
			continue
		}
		text := m.Content
		if r := []rune(text); len(r) > limit {
			text = string(r[:limit])
		}
		return &text
	}
	return nil
}

// Overview is the list representation of a conversation.
type Overview struct {
	ID               int64      `json:"id"`
	ThemeID          ThemeID    `json:"themeId"`
	Summary          *string    `json:"summary"`
	Messages         []Message  `json:"messages"`
	IsArchived       bool       `json:"isArchived"`
	ArchivedAt       *time.Time `json:"archivedAt"`
	MessageCount     int        `json:"messageCount"`
	UserMessageCount int        `json:"userMessageCount"`
	PreviewText      *string    `json:"previewText"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// PreviewLength is the rune length of Overview.PreviewText.
const PreviewLength = 80

// NewOverview summarises a conversation for listings.
func NewOverview(c Conversation) Overview {
	return Overview{
		ID:               c.ID,
		ThemeID:          c.ThemeID,
		Summary:          c.Summary,
		Messages:         c.Messages,
		IsArchived:       c.IsArchived,
		ArchivedAt:       c.ArchivedAt,
		MessageCount:     len(c.Messages),
		UserMessageCount: c.UserMessageCount(),
		PreviewText:      c.Preview(PreviewLength),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
