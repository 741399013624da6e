package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/matti-app/matti/backend/internal/analysis/bullying"
	"github.com/matti-app/matti/backend/internal/analysis/crisis"
	"github.com/matti-app/matti/backend/internal/model/assistant"
	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/internal/model/goal"
)

type recordingCompleter struct {
	reply string
	err   error
	last  Request
}

func (c *recordingCompleter) Complete(_ context.Context, req Request) (string, error) {
	c.last = req
	return c.reply, c.err
}

func (c *recordingCompleter) Stream(_ context.Context, req Request, onDelta func(string) error) (string, error) {
	c.last = req
	if c.err != nil {
		return "", c.err
	}
	return c.reply, onDelta(c.reply)
}

func TestSummarizerBuildsTranscript(t *testing.T) {
	completer := &recordingCompleter{reply: "  Het gesprek ging over school.  "}
	s := NewSummarizer(completer, "Matti")

	summary := s.Summarize(context.Background(), []chat.Message{
		{Role: chat.RoleUser, Content: "Ik heb een toets"},
		{Role: chat.RoleAssistant, Content: "Hoe voel je je daarover?"},
	})

	require.NotNil(t, summary)
	assert.Equal(t, "Het gesprek ging over school.", *summary)
	assert.Equal(t, Structured, completer.last.Profile)
	assert.Equal(t, "Gebruiker: Ik heb een toets\nMatti: Hoe voel je je daarover?", completer.last.Query)
	assert.Contains(t, completer.last.System, "Vat dit gesprek samen")
}

func TestSummarizerFallsBackToNil(t *testing.T) {
	ctx := context.Background()
	msgs := []chat.Message{{Role: chat.RoleUser, Content: "hoi"}}

	assert.Nil(t, NewSummarizer(&recordingCompleter{err: errors.New("timeout")}, "").Summarize(ctx, msgs))
	assert.Nil(t, NewSummarizer(&recordingCompleter{reply: "   "}, "").Summarize(ctx, msgs))
	assert.Nil(t, NewSummarizer(Unavailable{}, "").Summarize(ctx, msgs))
	assert.Nil(t, NewSummarizer(&recordingCompleter{reply: "x"}, "").Summarize(ctx, nil))
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name    string
		content string
		steps   []string
		intro   string
	}{
		{
			name:    "plain",
			content: `{"intro":"Je kunt dit!","steps":[{"sequence":1,"actionText":"Schrijf op"},{"sequence":2,"actionText":"Praat erover"}]}`,
			steps:   []string{"Schrijf op", "Praat erover"},
			intro:   "Je kunt dit!",
		},
		{
			name:    "fenced and unordered",
			content: "```json\n{\"intro\":\"Top\",\"steps\":[{\"sequence\":3,\"actionText\":\"Derde\"},{\"sequence\":1,\"actionText\":\"Eerste\"}]}\n```",
			steps:   []string{"Eerste", "Derde"},
			intro:   "Top",
		},
		{
			name:    "trailing comma repaired",
			content: `Hier is je plan: {"intro": "Start", "steps": [{"sequence": 1, "actionText": "Oefen"}, {"sequence": 2, "actionText": "Plan"},]}`,
			steps:   []string{"Oefen", "Plan"},
			intro:   "Start",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParsePlan(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.intro, plan.Intro)
			require.Len(t, plan.Steps, len(tt.steps))
			for i, text := range tt.steps {
				assert.Equal(t, i+1, plan.Steps[i].Sequence)
				assert.Equal(t, text, plan.Steps[i].ActionText)
			}
		})
	}
}

func TestParsePlanWithoutJSON(t *testing.T) {
	_, err := ParsePlan("Sorry, dat kan ik niet.")
	assert.ErrorIs(t, err, ErrMalformedPlan)
}

func TestGeneratePlanUsesPlanProfile(t *testing.T) {
	completer := &recordingCompleter{reply: `{"intro":"Go","steps":[{"sequence":1,"actionText":"A"},{"sequence":2,"actionText":"B"}]}`}

	plan, err := NewPlanner(completer).GeneratePlan(context.Background(), "Beter slapen", goal.TypeSleep, "Ik lig lang wakker")
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 2)
	assert.Equal(t, Plan, completer.last.Profile)
	assert.Contains(t, completer.last.Query, `"Beter slapen" (type: sleep)`)
	assert.Contains(t, completer.last.Query, "Ik lig lang wakker")
}

func TestBuildSystemPrompt(t *testing.T) {
	pm := NewPromptManager()
	a, ok := assistant.NewMemoryStore(assistant.Seed()).FindByID(assistant.Matti)
	require.True(t, ok)

	base := pm.BuildSystemPrompt(PromptInput{Assistant: a, Theme: chat.ThemeGeneral})
	assert.True(t, strings.HasPrefix(base, "Je bent Matti"))
	assert.Contains(t, base, "Thema van dit gesprek: Algemeen.")
	assert.NotContains(t, base, "PESTSIGNAAL")

	crisisResult := crisis.Detect("ik wil dood")
	bullyingResult := bullying.Detect("Ze pesten me elke dag in de klas en ik voel me alleen")
	full := pm.BuildSystemPrompt(PromptInput{
		Assistant: a,
		Theme:     chat.ThemeBullying,
		Crisis:    &crisisResult,
		Bullying:  &bullyingResult,
	})
	assert.Contains(t, full, "Kindertelefoon")
	assert.Contains(t, full, "PESTSIGNAAL (critical)")
	assert.Contains(t, full, crisis.Guidance(crisisResult))
}

type fakeGenerator struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	chunks   []string
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	g.messages = messages
	for _, opt := range options {
		opt(&g.options)
	}
	var full strings.Builder
	for _, c := range g.chunks {
		if g.options.StreamingFunc != nil {
			if err := g.options.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
		full.WriteString(c)
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full.String()}}}, nil
}

func TestOpenAICompleterMapsRequest(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"Hoi", " daar"}}
	c := &OpenAICompleter{llm: gen}

	var deltas []string
	text, err := c.Stream(context.Background(), Request{
		Profile: Coach,
		System:  "systeem",
		History: []chat.Message{
			{Role: chat.RoleUser, Content: "vraag"},
			{Role: chat.RoleSystem, Content: "check-in"},
		},
		Query: "nieuw",
	}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Hoi daar", text)
	assert.Equal(t, []string{"Hoi", " daar"}, deltas)
	assert.Equal(t, 0.6, gen.options.Temperature)
	assert.Equal(t, 500, gen.options.MaxTokens)

	require.Len(t, gen.messages, 4)
	roles := []schema.ChatMessageType{
		schema.ChatMessageTypeSystem, schema.ChatMessageTypeHuman, schema.ChatMessageTypeAI, schema.ChatMessageTypeHuman,
	}
	for i, role := range roles {
		assert.Equal(t, role, gen.messages[i].Role)
	}
}

func TestUnavailableCompleter(t *testing.T) {
	_, err := Unavailable{}.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRecentHistoryKeepsTail(t *testing.T) {
	msgs := make([]chat.Message, historyLimit+5)
	for i := range msgs {
		msgs[i] = chat.Message{Role: chat.RoleUser, Content: string(rune('a' + i%26))}
	}
	got := recentHistory(msgs)
	assert.Len(t, got, historyLimit)
	assert.Equal(t, msgs[5], got[0])
}
