package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/matti-app/matti/backend/internal/config"
	"github.com/matti-app/matti/backend/internal/model/chat"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// OpenAICompleter talks to an OpenAI-compatible endpoint through langchaingo.
type OpenAICompleter struct {
	llm contentGenerator
}

// NewOpenAICompleter creates the client for the configured model.
func NewOpenAICompleter(cfg config.AIConfig) (*OpenAICompleter, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &OpenAICompleter{llm: llm}, nil
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, messageContents(req), profileOptions(req.Profile)...)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	content, err := firstChoice(resp)
	if err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "ai").
		Str("profile", req.Profile.Name).
		Int("length", len(content)).
		Msg("generated completion")
	return content, nil
}

// Stream implements Completer.
func (c *OpenAICompleter) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	opts := append(profileOptions(req.Profile), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return onDelta(string(chunk))
	}))

	resp, err := c.llm.GenerateContent(ctx, messageContents(req), opts...)
	if err != nil {
		return "", fmt.Errorf("openai stream: %w", err)
	}
	return firstChoice(resp)
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func profileOptions(p Profile) []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(p.Temperature),
		llms.WithMaxTokens(p.MaxTokens),
	}
}

func messageContents(req Request) []llms.MessageContent {
	history := recentHistory(req.History)
	out := make([]llms.MessageContent, 0, len(history)+2)
	if req.System != "" {
		out = append(out, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleUser:
			out = append(out, llms.TextParts(schema.ChatMessageTypeHuman, msg.Content))
		case chat.RoleAssistant, chat.RoleSystem:
			out = append(out, llms.TextParts(schema.ChatMessageTypeAI, msg.Content))
		}
	}
	if req.Query != "" {
		out = append(out, llms.TextParts(schema.ChatMessageTypeHuman, req.Query))
	}
	return out
}
