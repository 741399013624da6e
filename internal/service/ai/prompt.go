package ai

import (
	"fmt"
	"strings"

	"github.com/matti-app/matti/backend/internal/analysis/bullying"
	"github.com/matti-app/matti/backend/internal/analysis/crisis"
	"github.com/matti-app/matti/backend/internal/analysis/followup"
	"github.com/matti-app/matti/backend/internal/model/assistant"
	"github.com/matti-app/matti/backend/internal/model/chat"
)

// ThemeTemplate adds theme-specific coaching hints to the base prompt.
type ThemeTemplate struct {
	Focus string
	Hints []string
}

// PromptManager assembles system prompts from the assistant and theme templates.
type PromptManager struct {
	templates map[chat.ThemeID]*ThemeTemplate
}

// NewPromptManager creates a manager with the built-in theme templates.
func NewPromptManager() *PromptManager {
	pm := &PromptManager{templates: make(map[chat.ThemeID]*ThemeTemplate)}
	pm.loadDefaultTemplates()
	return pm
}

// PromptInput is everything that shapes one reply's system prompt.
type PromptInput struct {
	Assistant assistant.Assistant
	Theme     chat.ThemeID
	// FollowUp is set on the first user message of a conversation.
	FollowUp *followup.Context
	Crisis   *crisis.Result
	Bullying *bullying.Result
}

// BuildSystemPrompt renders the system prompt for a reply.
func (pm *PromptManager) BuildSystemPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Assistant.SystemPrompt))

	fmt.Fprintf(&b, "\n\nThema van dit gesprek: %s.", in.Theme.DisplayName())
	if tpl, ok := pm.templates[in.Theme]; ok {
		fmt.Fprintf(&b, "\nFocus: %s", tpl.Focus)
		if len(tpl.Hints) > 0 {
			b.WriteString("\nAandachtspunten:\n- ")
			b.WriteString(strings.Join(tpl.Hints, "\n- "))
		}
	}

	if in.FollowUp != nil {
		b.WriteString("\n\n")
		b.WriteString(in.FollowUp.Prompt())
	}

	if in.Bullying != nil && in.Bullying.IsBullying {
		fmt.Fprintf(&b, "\n\nPESTSIGNAAL (%s): %s\nAanpak: %s",
			in.Bullying.Severity, in.Bullying.Reasoning, bullying.RecommendedAction(in.Bullying.Severity))
	}

	if in.Crisis != nil {
		if guidance := crisis.Guidance(*in.Crisis); guidance != "" {
			b.WriteString("\n\n")
			b.WriteString(guidance)
		}
	}

	return b.String()
}

func (pm *PromptManager) loadDefaultTemplates() {
	pm.templates[chat.ThemeSchool] = &ThemeTemplate{
		Focus: "schoolstress, huiswerk, toetsen en de band met docenten.",
		Hints: []string{
			"Help grote taken op te knippen in kleine stappen",
			"Vraag of de mentor of een docent al op de hoogte is",
		},
	}
	pm.templates[chat.ThemeFriends] = &ThemeTemplate{
		Focus: "vriendschappen, erbij horen en ruzies.",
		Hints: []string{
			"Vraag hoe de jongere zelf de situatie ziet voordat je tips geeft",
		},
	}
	pm.templates[chat.ThemeHome] = &ThemeTemplate{
		Focus: "de situatie thuis en de band met ouders of verzorgers.",
		Hints: []string{
			"Let op signalen van onveiligheid thuis en noem Veilig Thuis (0800-2000) als dat nodig is",
		},
	}
	pm.templates[chat.ThemeFeelings] = &ThemeTemplate{
		Focus: "gevoelens, somberheid, angst en stress.",
		Hints: []string{
			"Benoem en erken het gevoel voordat je naar oplossingen kijkt",
			"Vraag door op hoe lang het gevoel er al is",
		},
	}
	pm.templates[chat.ThemeLove] = &ThemeTemplate{
		Focus: "verliefdheid, relaties en grenzen.",
		Hints: []string{
			"Bespreek grenzen en wederzijds respect zonder te oordelen",
		},
	}
	pm.templates[chat.ThemeFuture] = &ThemeTemplate{
		Focus: "keuzes over opleiding, werk en de toekomst.",
	}
	pm.templates[chat.ThemeSelf] = &ThemeTemplate{
		Focus: "zelfbeeld en zelfvertrouwen.",
		Hints: []string{
			"Laat de jongere zelf sterke kanten benoemen",
		},
	}
	pm.templates[chat.ThemeBullying] = &ThemeTemplate{
		Focus: "pesten, online en offline.",
		Hints: []string{
			"Vraag hoe vaak het gebeurt en of er een volwassene van weet",
			"Moedig aan om bewijs te bewaren, zoals screenshots",
			"Noem de Kindertelefoon (0800-0432) als extra steun",
		},
	}
}
