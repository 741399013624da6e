package feedback

import "time"

// Rating is a thumbs up or down on an assistant message.
type Rating string

const (
	RatingUp   Rating = "up"
	RatingDown Rating = "down"
)

// Valid reports whether r is a known rating.
func (r Rating) Valid() bool {
	return r == RatingUp || r == RatingDown
}

// MaxTextLength bounds the free-text part of feedback.
const MaxTextLength = 500

// Feedback is a rating left on one message of a conversation.
type Feedback struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	UserID         string    `json:"userId"`
	MessageIndex   int       `json:"messageIndex"`
	Rating         Rating    `json:"rating"`
	FeedbackText   *string   `json:"feedbackText"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Filter selects a page of feedback.
type Filter struct {
	Rating *Rating
	Limit  int
	Offset int
}

// Page is a slice of feedback plus paging metadata.
type Page struct {
	Feedback   []Feedback `json:"feedback"`
	TotalCount int        `json:"totalCount"`
	HasMore    bool       `json:"hasMore"`
}

// Statistics summarises all feedback.
type Statistics struct {
	Total              int `json:"total"`
	Positive           int `json:"positive"`
	Negative           int `json:"negative"`
	PositivePercentage int `json:"positivePercentage"`
}
