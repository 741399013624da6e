package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/analysis/bullying"
	"github.com/matti-app/matti/backend/internal/analysis/commitment"
	"github.com/matti-app/matti/backend/internal/analysis/crisis"
	"github.com/matti-app/matti/backend/internal/analysis/followup"
	"github.com/matti-app/matti/backend/internal/model/action"
	"github.com/matti-app/matti/backend/internal/model/assistant"
	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/internal/service/ai"
	actionsvc "github.com/matti-app/matti/backend/internal/service/action"
	chatsvc "github.com/matti-app/matti/backend/internal/service/chat"
)

// DefaultSummaryEvery is how many messages pass between summary refreshes.
const DefaultSummaryEvery = 10

// ContextSource provides follow-up context from earlier conversations.
type ContextSource interface {
	ContextBefore(ctx context.Context, userID string, currentID int64) (*followup.Context, error)
}

// Config wires the reply orchestration.
type Config struct {
	Conversations *chatsvc.Service
	Actions       *actionsvc.Service
	FollowUps     ContextSource
	Completer     ai.Completer
	Prompts       *ai.PromptManager
	Summarizer    chatsvc.Summarizer
	Assistant     assistant.Assistant
	SummaryEvery  int
}

// Service answers user messages as the configured assistant.
type Service struct {
	cfg Config
}

// NewService builds the reply service.
func NewService(cfg Config) *Service {
	if cfg.Prompts == nil {
		cfg.Prompts = ai.NewPromptManager()
	}
	if cfg.SummaryEvery <= 0 {
		cfg.SummaryEvery = DefaultSummaryEvery
	}
	return &Service{cfg: cfg}
}

// Assistant returns the assistant this service speaks as.
func (s *Service) Assistant() assistant.Assistant {
	return s.cfg.Assistant
}

// Reply is the outcome of one exchange.
type Reply struct {
	Conversation chat.Conversation `json:"conversation"`
	Message      chat.Message      `json:"message"`
	Action       *action.Action    `json:"action,omitempty"`
	Crisis       *crisis.Result    `json:"crisis,omitempty"`
	Bullying     *bullying.Result  `json:"bullying,omitempty"`
}

// Reply stores the user's message and the generated answer.
func (s *Service) Reply(ctx context.Context, userID string, conversationID int64, content string) (Reply, error) {
	return s.respond(ctx, userID, conversationID, content, nil)
}

// Stream is Reply with the answer delivered in chunks through onDelta.
func (s *Service) Stream(ctx context.Context, userID string, conversationID int64, content string, onDelta func(string) error) (Reply, error) {
	if onDelta == nil {
		return Reply{}, fmt.Errorf("stream reply: nil delta callback")
	}
	return s.respond(ctx, userID, conversationID, content, onDelta)
}

func (s *Service) respond(ctx context.Context, userID string, conversationID int64, content string, onDelta func(string) error) (Reply, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "coach").Int64("conversation_id", conversationID).Logger()
	content = strings.TrimSpace(content)

	saved, err := s.cfg.Conversations.SaveMessage(ctx, userID, conversationID, chat.RoleUser, content)
	if err != nil {
		return Reply{}, err
	}
	conv := saved.Conversation

	in := ai.PromptInput{Assistant: s.cfg.Assistant, Theme: conv.ThemeID}
	if saved.Crisis != nil && saved.Crisis.RequiresImmediateAction {
		in.Crisis = saved.Crisis
	}
	if saved.Bullying != nil && saved.Bullying.IsBullying {
		in.Bullying = saved.Bullying
	}
	if conv.UserMessageCount() == 1 && s.cfg.FollowUps != nil {
		fc, err := s.cfg.FollowUps.ContextBefore(ctx, userID, conv.ID)
		if err != nil {
			log.Warn().Err(err).Msg("follow-up context unavailable")
		}
		in.FollowUp = fc
	}

	req := ai.Request{
		Profile: ai.Coach,
		System:  s.cfg.Prompts.BuildSystemPrompt(in),
		History: conv.Messages[:len(conv.Messages)-1],
		Query:   content,
	}

	var text string
	if onDelta != nil {
		text, err = s.cfg.Completer.Stream(ctx, req, onDelta)
	} else {
		text, err = s.cfg.Completer.Complete(ctx, req)
	}
	if err != nil {
		return Reply{}, fmt.Errorf("generate reply: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, fmt.Errorf("generate reply: empty response")
	}

	answered, err := s.cfg.Conversations.SaveMessage(ctx, userID, conv.ID, chat.RoleAssistant, text)
	if err != nil {
		return Reply{}, err
	}
	conv = answered.Conversation

	reply := Reply{
		Conversation: conv,
		Message:      conv.Messages[len(conv.Messages)-1],
		Crisis:       in.Crisis,
		Bullying:     in.Bullying,
	}

	if c, ok := commitment.Detect(content); ok && s.cfg.Actions != nil {
		actionType := c.ActionType
		a, err := s.cfg.Actions.Save(ctx, userID, actionsvc.NewAction{
			ThemeID:        conv.ThemeID,
			ConversationID: &conv.ID,
			ActionText:     c.ActionText,
			ActionType:     &actionType,
		})
		if err != nil {
			log.Error().Err(err).Msg("save detected action")
		} else {
			reply.Action = &a
		}
	}

	if s.cfg.Summarizer != nil && len(conv.Messages)%s.cfg.SummaryEvery == 0 {
		if summary := s.cfg.Summarizer.Summarize(ctx, conv.Messages); summary != nil {
			updated, err := s.cfg.Conversations.UpdateSummary(ctx, userID, conv.ID, *summary)
			if err != nil {
				log.Warn().Err(err).Msg("store summary")
			} else {
				reply.Conversation = updated
			}
		}
	}

	return reply, nil
}
