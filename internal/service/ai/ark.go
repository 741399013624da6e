package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/config"
	"github.com/matti-app/matti/backend/internal/model/chat"
)

// ArkCompleter runs requests through an eino chain backed by an Ark chat model.
type ArkCompleter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkCompleter compiles the prompt chain for the configured model.
func NewArkCompleter(ctx context.Context, cfg config.AIConfig) (*ArkCompleter, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newArkCompleter(ctx, chatModel)
}

func newArkCompleter(ctx context.Context, chatModel model.ChatModel) (*ArkCompleter, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &ArkCompleter{chain: runnable}, nil
}

// Complete implements Completer.
func (c *ArkCompleter) Complete(ctx context.Context, req Request) (string, error) {
	response, err := c.chain.Invoke(ctx, chainInput(req), callOptions(req.Profile)...)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "ai").
		Str("profile", req.Profile.Name).
		Int("length", len(response.Content)).
		Msg("generated completion")
	return response.Content, nil
}

// Stream implements Completer.
func (c *ArkCompleter) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	stream, err := c.chain.Stream(ctx, chainInput(req), callOptions(req.Profile)...)
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			if err := onDelta(chunk.Content); err != nil {
				return "", err
			}
		}
	}

	if len(chunks) == 0 {
		return "", nil
	}
	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

func callOptions(p Profile) []compose.Option {
	return []compose.Option{
		compose.WithChatModelOption(
			model.WithTemperature(float32(p.Temperature)),
			model.WithMaxTokens(p.MaxTokens),
		),
	}
}

func chainInput(req Request) map[string]any {
	return map[string]any{
		"system":  req.System,
		"history": historyMessages(req.History),
		"query":   req.Query,
	}
}

// historyMessages maps stored turns onto chat messages. Injected check-ins
// were shown to the user as the assistant speaking, so they map to assistant turns.
func historyMessages(messages []chat.Message) []*schema.Message {
	recent := recentHistory(messages)
	if len(recent) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(recent))
	for _, msg := range recent {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant, chat.RoleSystem:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
