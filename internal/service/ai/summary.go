package ai

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/model/chat"
)

const summaryInstruction = "Vat dit gesprek samen in 2-3 zinnen in het Nederlands. " +
	"Beschrijf het onderwerp en de kern van het gesprek. Wees beknopt."

// Summarizer condenses a conversation into a short Dutch summary.
type Summarizer struct {
	completer     Completer
	assistantName string
}

// NewSummarizer labels assistant turns with assistantName in the transcript.
func NewSummarizer(completer Completer, assistantName string) *Summarizer {
	if assistantName == "" {
		assistantName = "Matti"
	}
	return &Summarizer{completer: completer, assistantName: assistantName}
}

// Summarize returns nil when there is nothing to summarise or generation fails.
func (s *Summarizer) Summarize(ctx context.Context, messages []chat.Message) *string {
	if s == nil || s.completer == nil || len(messages) == 0 {
		return nil
	}

	summary, err := s.completer.Complete(ctx, Request{
		Profile: Structured,
		System:  summaryInstruction,
		Query:   s.transcript(messages),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("component", "ai").Msg("summary generation failed")
		return nil
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}
	return &summary
}

func (s *Summarizer) transcript(messages []chat.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := s.assistantName
		if m.Role == chat.RoleUser {
			speaker = "Gebruiker"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
