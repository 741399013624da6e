package feedback

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/model/feedback"
	"github.com/matti-app/matti/backend/internal/store"
)

var (
	ErrInvalidRating        = errors.New("rating must be up or down")
	ErrTextTooLong          = errors.New("feedback text is too long")
	ErrInvalidMessageIndex  = errors.New("message index out of range")
	ErrConversationNotFound = errors.New("conversation not found")
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	NegativeLimit   = 100
)

type Service struct {
	db  *store.DB
	now func() time.Time
}

func NewService(db *store.DB, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{db: db, now: now}
}

// Submission is a rating on one message of a conversation.
type Submission struct {
	ConversationID int64
	MessageIndex   int
	Rating         feedback.Rating
	Text           *string
}

// Submit stores feedback on a message of one of the user's conversations.
func (s *Service) Submit(ctx context.Context, userID string, in Submission) (feedback.Feedback, error) {
	if !in.Rating.Valid() {
		return feedback.Feedback{}, ErrInvalidRating
	}
	var text *string
	if in.Text != nil {
		trimmed := strings.TrimSpace(*in.Text)
		if utf8.RuneCountInString(trimmed) > feedback.MaxTextLength {
			return feedback.Feedback{}, ErrTextTooLong
		}
		if trimmed != "" {
			text = &trimmed
		}
	}

	conv, err := s.db.ConversationByID(ctx, userID, in.ConversationID)
	if errors.Is(err, store.ErrNotFound) {
		return feedback.Feedback{}, ErrConversationNotFound
	}
	if err != nil {
		return feedback.Feedback{}, err
	}
	if in.MessageIndex < 0 || in.MessageIndex >= len(conv.Messages) {
		return feedback.Feedback{}, ErrInvalidMessageIndex
	}

	f := feedback.Feedback{
		ConversationID: in.ConversationID,
		UserID:         userID,
		MessageIndex:   in.MessageIndex,
		Rating:         in.Rating,
		FeedbackText:   text,
	}
	if err := s.db.CreateFeedback(ctx, &f, s.now()); err != nil {
		return feedback.Feedback{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("component", "feedback").
		Int64("conversation_id", f.ConversationID).
		Str("rating", string(f.Rating)).
		Msg("feedback received")
	return f, nil
}

// ForConversation lists the user's feedback on a conversation.
func (s *Service) ForConversation(ctx context.Context, userID string, conversationID int64) ([]feedback.Feedback, error) {
	return s.db.FeedbackForConversation(ctx, userID, conversationID)
}

// List returns a page of all feedback. Out-of-range limits fall back to the
// default page size.
func (s *Service) List(ctx context.Context, filter feedback.Filter) (feedback.Page, error) {
	if filter.Rating != nil && !filter.Rating.Valid() {
		return feedback.Page{}, ErrInvalidRating
	}
	if filter.Limit < 1 || filter.Limit > MaxPageSize {
		filter.Limit = DefaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.db.ListFeedback(ctx, filter)
}

func (s *Service) Stats(ctx context.Context) (feedback.Statistics, error) {
	return s.db.FeedbackStatistics(ctx)
}

// Negative returns the latest thumbs-down feedback.
func (s *Service) Negative(ctx context.Context) ([]feedback.Feedback, error) {
	return s.db.NegativeFeedback(ctx, NegativeLimit)
}
