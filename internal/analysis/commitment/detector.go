package commitment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Commitment is a concrete intention the user expressed in a message.
type Commitment struct {
	ActionText string `json:"actionText"`
	ActionType string `json:"actionType"`
}

// Action types attached to detected commitments.
const (
	TypeTalk     = "talk"
	TypePlanning = "planning"
	TypeSelfCare = "self_care"
	TypeGeneral  = "general"
)

const maxActionLength = 100

// Intent phrases, most specific first. The captured group is the intended action.
var intentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bik (?:ga|wil) (?:proberen|probeer) (?:om )?(.+)`),
	regexp.MustCompile(`(?i)\bik probeer (?:om )?(.+)`),
	regexp.MustCompile(`(?i)\b(?:morgen|vanavond|straks|deze week|vandaag) ga ik (.+)`),
	regexp.MustCompile(`(?i)\bik ga (.+)`),
	regexp.MustCompile(`(?i)\bik zal (.+)`),
	regexp.MustCompile(`(?i)\bik neem me voor (?:om )?(.+)`),
}

var typeKeywords = []struct {
	kind  string
	words []string
}{
	{TypeTalk, []string{"praten", "vertellen", "vragen", "bellen", "mentor", "vertrouwenspersoon", "ouders"}},
	{TypePlanning, []string{"plannen", "planning", "agenda", "huiswerk", "leren", "schema"}},
	{TypeSelfCare, []string{"slapen", "sporten", "wandelen", "rust", "ontspannen", "ademhaling"}},
}

// negations that turn an intent phrase into its opposite.
var negations = []string{"ik ga niet", "ik zal niet", "ik ga nooit", "ik ga geen"}

// Detect returns the commitment expressed in a user message, if any.
func Detect(message string) (Commitment, bool) {
	normalized := strings.TrimSpace(message)
	if normalized == "" {
		return Commitment{}, false
	}
	lower := strings.ToLower(normalized)
	for _, neg := range negations {
		if strings.Contains(lower, neg) {
			return Commitment{}, false
		}
	}

	for _, re := range intentPatterns {
		match := re.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}
		text := firstClause(match[1])
		if utf8.RuneCountInString(text) < 4 {
			continue
		}
		return Commitment{ActionText: sentence(text), ActionType: classify(text)}, true
	}
	return Commitment{}, false
}

// firstClause cuts the action at the first sentence boundary.
func firstClause(s string) string {
	if idx := strings.IndexAny(s, ".!?\n"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(strings.TrimRight(s, ",;: "))
}

func sentence(s string) string {
	r := []rune(s)
	if len(r) > maxActionLength {
		r = append(r[:maxActionLength-3], []rune("...")...)
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func classify(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range typeKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.kind
			}
		}
	}
	return TypeGeneral
}
