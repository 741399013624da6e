package followup

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/matti-app/matti/backend/internal/analysis/sentiment"
	"github.com/matti-app/matti/backend/internal/model/action"
	"github.com/matti-app/matti/backend/internal/model/chat"
)

// MaxAgeDays is the age after which a conversation never resurfaces.
const MaxAgeDays = 7

const (
	maxSummaryLength = 300
	noSummary        = "Geen samenvatting beschikbaar"
)

// windows holds the per-theme follow-up window in days. Themes without an
// entry never resurface.
var windows = map[chat.ThemeID]int{
	chat.ThemeBullying: 3,
	chat.ThemeFeelings: 3,
	chat.ThemeSchool:   5,
	chat.ThemeFriends:  5,
	chat.ThemeHome:     5,
	chat.ThemeLove:     5,
	chat.ThemeFuture:   5,
	chat.ThemeSelf:     5,
}

// Conversation is the metadata of the most recent conversation.
type Conversation struct {
	ThemeID          chat.ThemeID
	Summary          *string
	UpdatedAt        time.Time
	BullyingDetected bool
	BullyingSeverity *chat.BullyingSeverity
	InitialProblem   *string
	Outcome          chat.Outcome
}

// FromConversation extracts the builder input from a stored conversation.
func FromConversation(c chat.Conversation) Conversation {
	return Conversation{
		ThemeID:          c.ThemeID,
		Summary:          c.Summary,
		UpdatedAt:        c.UpdatedAt,
		BullyingDetected: c.BullyingDetected,
		BullyingSeverity: c.BullyingSeverity,
		InitialProblem:   c.InitialProblem,
		Outcome:          c.Outcome,
	}
}

// Context is the compact description of a conversation worth following up on.
type Context struct {
	ThemeID              chat.ThemeID           `json:"themeId"`
	ThemeName            string                 `json:"themeName"`
	LastConversationDate time.Time              `json:"lastConversationDate"`
	DaysAgo              int                    `json:"daysAgo"`
	Summary              string                 `json:"summary"`
	PendingActions       []string               `json:"pendingActions"`
	Sentiment            sentiment.Label        `json:"sentiment"`
	Severity             *chat.BullyingSeverity `json:"severity,omitempty"`
	ShouldFollowUp       bool                   `json:"shouldFollowUp"`
}

// Build decides whether conv should be resurfaced at now and returns its
// context. It returns nil when there is nothing to follow up on.
func Build(conv *Conversation, actions []action.Action, now time.Time) *Context {
	if conv == nil {
		return nil
	}

	days := DaysAgo(conv.UpdatedAt, now)
	if days > MaxAgeDays {
		return nil
	}

	pending := make([]string, 0, len(actions))
	for _, a := range actions {
		if a.Status == action.StatusPending {
			pending = append(pending, a.ActionText)
		}
	}

	mood := detectSentiment(conv)
	if !shouldFollowUp(conv.ThemeID, days, len(pending) > 0, mood, conv.Outcome) {
		return nil
	}

	return &Context{
		ThemeID:              conv.ThemeID,
		ThemeName:            conv.ThemeID.DisplayName(),
		LastConversationDate: conv.UpdatedAt,
		DaysAgo:              days,
		Summary:              compactSummary(conv),
		PendingActions:       pending,
		Sentiment:            mood,
		Severity:             conv.BullyingSeverity,
		ShouldFollowUp:       true,
	}
}

// DaysAgo returns the whole days elapsed between then and now. A timestamp in
// the future counts as today.
func DaysAgo(then, now time.Time) int {
	days := int(math.Floor(now.Sub(then).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

func shouldFollowUp(theme chat.ThemeID, days int, hasActions bool, mood sentiment.Label, outcome chat.Outcome) bool {
	if outcome == chat.OutcomeResolved {
		return false
	}

	window, ok := windows[theme]
	if !ok || days > window {
		return false
	}

	switch theme {
	case chat.ThemeBullying:
		return true
	case chat.ThemeFeelings:
		return mood == sentiment.Negative
	default:
		return hasActions
	}
}

func detectSentiment(conv *Conversation) sentiment.Label {
	summary := deref(conv.Summary)
	initial := deref(conv.InitialProblem)
	if summary == "" && initial == "" {
		return sentiment.Unknown
	}
	if conv.BullyingDetected {
		return sentiment.Negative
	}
	return sentiment.Classify(summary + " " + initial)
}

func compactSummary(conv *Conversation) string {
	summary := deref(conv.Summary)
	if summary == "" {
		summary = deref(conv.InitialProblem)
	}
	if summary == "" {
		summary = noSummary
	}
	if r := []rune(summary); len(r) > maxSummaryLength {
		summary = string(r[:maxSummaryLength-3]) + "..."
	}
	return summary
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Prompt renders the context as an instruction block for the system prompt.
func (c Context) Prompt() string {
	unit := "dagen"
	if c.DaysAgo == 1 {
		unit = "dag"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "RECENTE CONTEXT (%d %s geleden):\n", c.DaysAgo, unit)
	fmt.Fprintf(&b, "Thema: %s\n", c.ThemeName)
	if c.Summary != "" {
		fmt.Fprintf(&b, "Samenvatting: %s\n", c.Summary)
	}
	if len(c.PendingActions) > 0 {
		fmt.Fprintf(&b, "Openstaande acties: %s\n", strings.Join(c.PendingActions, ", "))
	}
	if c.Severity != nil {
		fmt.Fprintf(&b, "Ernst: %s\n", *c.Severity)
	}

	fmt.Fprintf(&b, "\nINSTRUCTIE: Vraag natuurlijk hoe het nu gaat met %s", strings.ToLower(c.ThemeName))
	if len(c.PendingActions) > 0 {
		b.WriteString(" en of het gelukt is om de acties uit te voeren")
	}
	fmt.Fprintf(&b, ". Wees empathisch en niet dwingend. Als het sentiment %s was, houd daar rekening mee.", c.Sentiment.Dutch())

	return b.String()
}
