package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/matti-app/matti/backend/internal/config"
	"github.com/matti-app/matti/backend/internal/model/chat"
)

// ErrUnavailable is returned when no model is configured.
var ErrUnavailable = errors.New("language model not configured")

// Profile fixes the sampling parameters of one kind of call.
type Profile struct {
	Name        string
	Temperature float64
	MaxTokens   int
}

var (
	// Coach drives the regular chat flow and follow-up replies.
	Coach = Profile{Name: "coach", Temperature: 0.6, MaxTokens: 500}
	// Plan drives goal plan generation.
	Plan = Profile{Name: "plan", Temperature: 0.5, MaxTokens: 500}
	// Structured drives JSON output and summaries.
	Structured = Profile{Name: "structured", Temperature: 0.4, MaxTokens: 400}
)

// Request is one completion call.
type Request struct {
	Profile Profile
	System  string
	History []chat.Message
	Query   string
}

// Completer generates text from a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Stream calls onDelta for every chunk and returns the full text.
	Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error)
}

// New builds the completer for the configured provider. When the provider
// lacks credentials an Unavailable completer is returned so the service can
// still run without generation.
func New(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	if !cfg.Enabled() {
		return Unavailable{}, nil
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAICompleter(cfg)
	case "ark", "":
		return NewArkCompleter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

// Unavailable fails every call with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) Stream(context.Context, Request, func(string) error) (string, error) {
	return "", ErrUnavailable
}

const historyLimit = 20

// recentHistory keeps the tail of the conversation sent to the model.
func recentHistory(messages []chat.Message) []chat.Message {
	if len(messages) > historyLimit {
		return messages[len(messages)-historyLimit:]
	}
	return messages
}
