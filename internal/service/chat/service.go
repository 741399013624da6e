package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/analysis/bullying"
	"github.com/matti-app/matti/backend/internal/analysis/crisis"
	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/internal/store"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationArchived = errors.New("conversation is archived")
	ErrInvalidTheme         = errors.New("unknown theme")
	ErrInvalidRole          = errors.New("invalid message role")
	ErrEmptyMessage         = errors.New("message content is required")
	ErrInvalidOutcome       = errors.New("invalid outcome")
	ErrInvalidSeverity      = errors.New("invalid bullying severity")
	ErrEmptySummary         = errors.New("summary is required")
	// ErrBusy is returned when concurrent writers kept conflicting.
	ErrBusy = errors.New("conversation is being updated concurrently")
)

const (
	// DefaultMaxConversations is how many conversations a user keeps.
	DefaultMaxConversations = 10
	// DefaultIdleTimeout is the inactivity after which a conversation is archived.
	DefaultIdleTimeout = 30 * time.Minute
	// BullyingFollowUpDelay is when a bullying check-in is due.
	BullyingFollowUpDelay = 3 * 24 * time.Hour

	maxWriteAttempts = 3
	idleBatchSize    = 100
)

// Summarizer produces a conversation summary, or nil when it cannot.
type Summarizer interface {
	Summarize(ctx context.Context, messages []chat.Message) *string
}

// Options tunes retention. Zero values use the defaults.
type Options struct {
	MaxConversations int
	IdleTimeout      time.Duration
	Now              func() time.Time
}

// Service manages the conversation lifecycle on top of the store.
type Service struct {
	db         *store.DB
	summarizer Summarizer
	maxConvs   int
	idle       time.Duration
	now        func() time.Time
}

// NewService wires the conversation service. summarizer may be nil.
func NewService(db *store.DB, summarizer Summarizer, opts Options) *Service {
	s := &Service{
		db:         db,
		summarizer: summarizer,
		maxConvs:   opts.MaxConversations,
		idle:       opts.IdleTimeout,
		now:        opts.Now,
	}
	if s.maxConvs <= 0 {
		s.maxConvs = DefaultMaxConversations
	}
	if s.idle <= 0 {
		s.idle = DefaultIdleTimeout
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("component", "chat").Logger()
	return &l
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// GetConversation returns the active conversation for a theme, creating it
// when needed.
func (s *Service) GetConversation(ctx context.Context, userID string, themeID chat.ThemeID) (chat.Conversation, error) {
	if !themeID.Valid() {
		return chat.Conversation{}, ErrInvalidTheme
	}

	conv, created, err := s.db.GetOrCreateActive(ctx, userID, themeID, s.now())
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	if created {
		logger(ctx).Info().Str("theme", string(themeID)).Int64("conversation_id", conv.ID).Msg("conversation created")
		if err := s.prune(ctx, userID); err != nil {
			return chat.Conversation{}, err
		}
	}
	return conv, nil
}

// ConversationByID returns one of the user's conversations, archived or not.
func (s *Service) ConversationByID(ctx context.Context, userID string, id int64) (chat.Conversation, error) {
	conv, err := s.db.ConversationByID(ctx, userID, id)
	if err != nil {
		return chat.Conversation{}, mapStoreErr(err)
	}
	return conv, nil
}

// ListConversations returns the user's stored conversations, newest first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]chat.Overview, error) {
	convs, err := s.db.ListConversations(ctx, userID, s.maxConvs)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Overview, 0, len(convs))
	for _, c := range convs {
		out = append(out, chat.NewOverview(c))
	}
	return out, nil
}

// SaveResult reports the stored conversation and what the new message triggered.
type SaveResult struct {
	Conversation chat.Conversation
	MessageCount int
	Crisis       *crisis.Result
	Bullying     *bullying.Result
}

// SaveMessage appends a message to an active conversation. User messages are
// scanned for crisis and bullying signals; a bullying signal is recorded on
// the conversation.
func (s *Service) SaveMessage(ctx context.Context, userID string, id int64, role chat.Role, content string) (SaveResult, error) {
	if !role.Valid() {
		return SaveResult{}, ErrInvalidRole
	}
	if strings.TrimSpace(content) == "" {
		return SaveResult{}, ErrEmptyMessage
	}

	var result SaveResult
	if role == chat.RoleUser {
		crisisResult := crisis.Detect(content)
		bullyingResult := bullying.Detect(content)
		result.Crisis = &crisisResult
		result.Bullying = &bullyingResult
	}

	now := s.now()
	conv, err := s.mutate(ctx, userID, id, false, func(c *chat.Conversation) error {
		c.Messages = append(c.Messages, chat.Message{Role: role, Content: content, Timestamp: now})
		if result.Bullying != nil && result.Bullying.IsBullying {
			c.BullyingDetected = true
			c.BullyingSeverity = raiseSeverity(c.BullyingSeverity, result.Bullying.Severity)
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}

	if result.Crisis != nil && result.Crisis.RequiresImmediateAction {
		logger(ctx).Warn().
			Int64("conversation_id", id).
			Str("crisis_type", string(result.Crisis.Type)).
			Str("severity", string(result.Crisis.Severity)).
			Msg("crisis signal detected")
	}

	result.Conversation = conv
	result.MessageCount = len(conv.Messages)
	return result, nil
}

// raiseSeverity keeps the highest bullying grade seen in a conversation.
func raiseSeverity(current *chat.BullyingSeverity, detected bullying.Severity) *chat.BullyingSeverity {
	var next chat.BullyingSeverity
	switch detected {
	case bullying.Critical, bullying.High:
		next = chat.BullyingHigh
	case bullying.Medium:
		next = chat.BullyingMedium
	default:
		next = chat.BullyingLow
	}
	rank := map[chat.BullyingSeverity]int{chat.BullyingLow: 1, chat.BullyingMedium: 2, chat.BullyingHigh: 3}
	if current != nil && rank[*current] >= rank[next] {
		return current
	}
	return &next
}

// UpdateSummary replaces the summary of an active conversation.
func (s *Service) UpdateSummary(ctx context.Context, userID string, id int64, summary string) (chat.Conversation, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return chat.Conversation{}, ErrEmptySummary
	}
	return s.mutate(ctx, userID, id, false, func(c *chat.Conversation) error {
		c.Summary = &summary
		return nil
	})
}

// ScheduleBullyingFollowUp flags the conversation for a bullying check-in and
// returns when it is due.
func (s *Service) ScheduleBullyingFollowUp(ctx context.Context, userID string, id int64, severity chat.BullyingSeverity) (time.Time, error) {
	if !severity.Valid() {
		return time.Time{}, ErrInvalidSeverity
	}
	_, err := s.mutate(ctx, userID, id, true, func(c *chat.Conversation) error {
		c.BullyingDetected = true
		c.BullyingSeverity = &severity
		c.BullyingFollowUpScheduled = true
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return s.now().Add(BullyingFollowUpDelay), nil
}

// OutcomeUpdate changes how a conversation's problem is tracked.
type OutcomeUpdate struct {
	Outcome              chat.Outcome
	Resolution           *string
	ActionCompletionRate *int
}

// UpdateOutcome records the outcome; resolving stamps the intervention end date.
func (s *Service) UpdateOutcome(ctx context.Context, userID string, id int64, u OutcomeUpdate) (chat.Conversation, error) {
	if !u.Outcome.Valid() {
		return chat.Conversation{}, ErrInvalidOutcome
	}
	now := s.now()
	return s.mutate(ctx, userID, id, true, func(c *chat.Conversation) error {
		c.Outcome = u.Outcome
		if u.Resolution != nil && *u.Resolution != "" {
			c.Resolution = u.Resolution
		}
		if u.ActionCompletionRate != nil {
			c.ActionCompletionRate = u.ActionCompletionRate
		}
		if u.Outcome == chat.OutcomeResolved {
			c.InterventionEndDate = &now
		}
		return nil
	})
}

// InitializeIntervention starts tracking a problem in the conversation.
func (s *Service) InitializeIntervention(ctx context.Context, userID string, id int64, initialProblem string) (chat.Conversation, error) {
	now := s.now()
	return s.mutate(ctx, userID, id, true, func(c *chat.Conversation) error {
		c.InitialProblem = &initialProblem
		c.InterventionStartDate = &now
		c.Outcome = chat.OutcomeInProgress
		c.ConversationCount = 1
		return nil
	})
}

// IncrementConversationCount counts another session on the same problem.
func (s *Service) IncrementConversationCount(ctx context.Context, userID string, id int64) (chat.Conversation, error) {
	return s.mutate(ctx, userID, id, true, func(c *chat.Conversation) error {
		c.ConversationCount++
		return nil
	})
}

// ArchiveResult describes what archiving did to a conversation.
type ArchiveResult string

const (
	ArchiveNothing ArchiveResult = "none"
	ArchiveDone    ArchiveResult = "archived"
	ArchiveDeleted ArchiveResult = "deleted"
)

// CloseAndStartNew archives the active conversation of a theme (or deletes
// it when the user never wrote anything) and opens a fresh one.
func (s *Service) CloseAndStartNew(ctx context.Context, userID string, themeID chat.ThemeID) (chat.Conversation, ArchiveResult, error) {
	if !themeID.Valid() {
		return chat.Conversation{}, ArchiveNothing, ErrInvalidTheme
	}

	result, err := s.archiveActive(ctx, userID, themeID, nil)
	if err != nil {
		return chat.Conversation{}, ArchiveNothing, err
	}

	conv, err := s.GetConversation(ctx, userID, themeID)
	if err != nil {
		return chat.Conversation{}, result, err
	}
	return conv, result, nil
}

// ArchiveConversation archives the active conversation of a theme. summary,
// when given, is stored instead of a generated one.
func (s *Service) ArchiveConversation(ctx context.Context, userID string, themeID chat.ThemeID, summary *string) (ArchiveResult, error) {
	if !themeID.Valid() {
		return ArchiveNothing, ErrInvalidTheme
	}
	return s.archiveActive(ctx, userID, themeID, summary)
}

// DeleteConversation removes every conversation of a theme.
func (s *Service) DeleteConversation(ctx context.Context, userID string, themeID chat.ThemeID) (int64, error) {
	if !themeID.Valid() {
		return 0, ErrInvalidTheme
	}
	n, err := s.db.DeleteConversationsByTheme(ctx, userID, themeID)
	if err != nil {
		return 0, err
	}
	logger(ctx).Info().Str("theme", string(themeID)).Int64("deleted", n).Msg("conversations deleted")
	return n, nil
}

// ArchiveIdle archives every active conversation that has been idle longer
// than the idle timeout and returns how many were archived or deleted.
// Conversations ending in an unanswered check-in stay active.
func (s *Service) ArchiveIdle(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.idle)

	handled, kept := 0, 0
	for {
		idle, err := s.db.IdleConversations(ctx, cutoff, idleBatchSize, kept)
		if err != nil {
			return handled, err
		}

		for _, conv := range idle {
			result, err := s.archive(ctx, conv, nil, &cutoff)
			if err != nil {
				logger(ctx).Error().Err(err).Int64("conversation_id", conv.ID).Msg("idle archive failed")
			}
			if err != nil || result == ArchiveNothing {
				kept++
				continue
			}
			handled++
		}
		if len(idle) < idleBatchSize {
			break
		}
	}

	if handled > 0 {
		logger(ctx).Info().Int("count", handled).Msg("idle conversations archived")
	}
	return handled, nil
}

// InjectSystemMessage appends an assistant-side check-in to a conversation.
// When the conversation no longer exists or is archived, the message goes to
// the active conversation of the theme instead.
func (s *Service) InjectSystemMessage(ctx context.Context, userID string, themeID chat.ThemeID, conversationID *int64, content string) (chat.Conversation, error) {
	if conversationID != nil {
		conv, err := s.SaveMessage(ctx, userID, *conversationID, chat.RoleSystem, content)
		if err == nil {
			return conv.Conversation, nil
		}
		if !errors.Is(err, ErrConversationNotFound) && !errors.Is(err, ErrConversationArchived) {
			return chat.Conversation{}, err
		}
	}

	active, err := s.GetConversation(ctx, userID, themeID)
	if err != nil {
		return chat.Conversation{}, err
	}
	saved, err := s.SaveMessage(ctx, userID, active.ID, chat.RoleSystem, content)
	if err != nil {
		return chat.Conversation{}, err
	}
	return saved.Conversation, nil
}

func (s *Service) archiveActive(ctx context.Context, userID string, themeID chat.ThemeID, summary *string) (ArchiveResult, error) {
	conv, err := s.db.ActiveConversation(ctx, userID, themeID)
	if errors.Is(err, store.ErrNotFound) {
		return ArchiveNothing, nil
	}
	if err != nil {
		return ArchiveNothing, err
	}
	return s.archive(ctx, conv, summary, nil)
}

// archive soft-deletes a conversation that holds user messages and hard-deletes
// one that does not, then prunes the user's archive. With idleBefore set the
// conversation is left alone once it turns out to be in use again or to end
// in an unanswered check-in.
func (s *Service) archive(ctx context.Context, conv chat.Conversation, summary *string, idleBefore *time.Time) (ArchiveResult, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if conv.IsArchived {
			return ArchiveNothing, nil
		}
		if idleBefore != nil && (!conv.UpdatedAt.Before(*idleBefore) || conv.AwaitingReply()) {
			return ArchiveNothing, nil
		}

		if !conv.HasUserMessages() {
			err := s.db.DeleteConversation(ctx, conv.UserID, conv.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return ArchiveNothing, err
			}
			logger(ctx).Info().Int64("conversation_id", conv.ID).Msg("empty conversation deleted")
			return ArchiveDeleted, nil
		}

		switch {
		case summary != nil && strings.TrimSpace(*summary) != "":
			conv.Summary = summary
		case conv.Summary == nil && s.summarizer != nil:
			conv.Summary = s.summarizer.Summarize(ctx, conv.Messages)
		}

		now := s.now()
		conv.IsArchived = true
		conv.ArchivedAt = &now

		err := s.db.UpdateConversation(ctx, &conv, now)
		if errors.Is(err, store.ErrConflict) {
			fresh, err := s.db.ConversationByID(ctx, conv.UserID, conv.ID)
			if errors.Is(err, store.ErrNotFound) {
				return ArchiveNothing, nil
			}
			if err != nil {
				return ArchiveNothing, err
			}
			conv = fresh
			continue
		}
		if err != nil {
			return ArchiveNothing, err
		}

		logger(ctx).Info().
			Int64("conversation_id", conv.ID).
			Bool("summarized", conv.Summary != nil).
			Msg("conversation archived")
		if err := s.prune(ctx, conv.UserID); err != nil {
			return ArchiveDone, err
		}
		return ArchiveDone, nil
	}
	return ArchiveNothing, ErrBusy
}

func (s *Service) prune(ctx context.Context, userID string) error {
	n, err := s.db.PruneArchived(ctx, userID, s.maxConvs)
	if err != nil {
		return fmt.Errorf("prune conversations: %w", err)
	}
	if n > 0 {
		logger(ctx).Info().Int64("deleted", n).Msg("old conversations pruned")
	}
	return nil
}

// mutate loads a conversation, applies fn and writes it back, retrying on
// concurrent modification. Archived conversations are read-only unless
// allowArchived is set.
func (s *Service) mutate(ctx context.Context, userID string, id int64, allowArchived bool, fn func(*chat.Conversation) error) (chat.Conversation, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		conv, err := s.db.ConversationByID(ctx, userID, id)
		if err != nil {
			return chat.Conversation{}, mapStoreErr(err)
		}
		if conv.IsArchived && !allowArchived {
			return chat.Conversation{}, ErrConversationArchived
		}
		if err := fn(&conv); err != nil {
			return chat.Conversation{}, err
		}

		err = s.db.UpdateConversation(ctx, &conv, s.now())
		if errors.Is(err, store.ErrConflict) {
			logger(ctx).Debug().Int64("conversation_id", id).Int("attempt", attempt+1).Msg("write conflict, retrying")
			continue
		}
		if err != nil {
			return chat.Conversation{}, err
		}
		return conv, nil
	}
	return chat.Conversation{}, ErrBusy
}
