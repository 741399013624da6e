package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/matti-app/matti/backend/internal/model/goal"
)

// ErrMalformedPlan is returned when the model output holds no usable plan.
var ErrMalformedPlan = errors.New("malformed goal plan")

const planPrompt = `Je bent Matti, een coachende AI voor jongeren (12-21 jaar).

Een jongere heeft het volgende doel gekozen: "%s" (type: %s).

Verhelderingscontext uit het gesprek:
%s

Genereer een concreet stappenplan als JSON. Regels:
- 5 tot 8 stappen
- Elke stap is één concrete actie
- Begin elke actie met een werkwoord (bijv. "Schrijf", "Praat", "Oefen")
- Max 100 tekens per actie
- Geen lange uitleg, alleen de actie zelf
- Intro: max 2 bemoedigende zinnen

Geef ALLEEN geldige JSON terug, geen markdown, geen uitleg:
{
  "intro": "...",
  "steps": [
    { "sequence": 1, "actionText": "..." },
    { "sequence": 2, "actionText": "..." }
  ]
}`

// Planner turns a goal into a step-by-step plan.
type Planner struct {
	completer Completer
}

// NewPlanner creates a planner on top of completer.
func NewPlanner(completer Completer) *Planner {
	return &Planner{completer: completer}
}

// GeneratePlan asks the model for a plan and parses its answer.
func (p *Planner) GeneratePlan(ctx context.Context, title string, goalType goal.Type, clarification string) (goal.Plan, error) {
	content, err := p.completer.Complete(ctx, Request{
		Profile: Plan,
		Query:   fmt.Sprintf(planPrompt, title, goalType, strings.TrimSpace(clarification)),
	})
	if err != nil {
		return goal.Plan{}, fmt.Errorf("generate plan: %w", err)
	}
	return ParsePlan(content)
}

// ParsePlan extracts a plan from model output, tolerating code fences and
// slightly broken JSON. Steps are ordered by sequence and renumbered from 1.
func ParsePlan(content string) (goal.Plan, error) {
	trimmed := stripFences(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 {
		return goal.Plan{}, fmt.Errorf("%w: missing json object", ErrMalformedPlan)
	}
	if end > start {
		trimmed = trimmed[start : end+1]
	} else {
		trimmed = trimmed[start:]
	}

	var plan goal.Plan
	if err := json.Unmarshal([]byte(trimmed), &plan); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(trimmed)
		if repairErr != nil {
			return goal.Plan{}, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
		}
		if err := json.Unmarshal([]byte(repaired), &plan); err != nil {
			return goal.Plan{}, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
		}
	}

	steps := plan.Steps[:0]
	for _, s := range plan.Steps {
		s.ActionText = strings.TrimSpace(s.ActionText)
		if s.ActionText != "" {
			steps = append(steps, s)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
	for i := range steps {
		steps[i].Sequence = i + 1
	}
	plan.Steps = steps
	plan.Intro = strings.TrimSpace(plan.Intro)
	return plan, nil
}

func stripFences(content string) string {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}
