package sentiment

import "strings"

// Label is a coarse sentiment classification.
type Label string

const (
	Positive Label = "positive"
	Neutral  Label = "neutral"
	Negative Label = "negative"
	Unknown  Label = "unknown"
)

var keywordBuckets = map[Label][]string{
	Negative: {
		"bang", "angstig", "verdrietig", "somber", "depressief", "eenzaam", "stress", "zorgen",
		"moeilijk", "rot", "slecht", "niet goed", "hulp nodig", "weet niet wat", "geen idee",
		"hopeloos",
	},
	Positive: {
		"beter", "goed", "fijn", "blij", "gelukt", "trots", "succesvol", "opgelost", "geholpen",
		"duidelijk", "snap het", "kan het",
	},
}

// Score counts how many keywords of each bucket occur in text.
func Score(text string) (positive, negative int) {
	normalized := strings.ToLower(text)
	for _, word := range keywordBuckets[Positive] {
		if strings.Contains(normalized, word) {
			positive++
		}
	}
	for _, word := range keywordBuckets[Negative] {
		if strings.Contains(normalized, word) {
			negative++
		}
	}
	return positive, negative
}

// Classify labels text by comparing positive and negative keyword counts.
// Empty text is Unknown; ties are Neutral.
func Classify(text string) Label {
	if strings.TrimSpace(text) == "" {
		return Unknown
	}
	positive, negative := Score(text)
	switch {
	case negative > positive:
		return Negative
	case positive > negative:
		return Positive
	default:
		return Neutral
	}
}

// Dutch returns the label as used in Dutch prompt text.
func (l Label) Dutch() string {
	switch l {
	case Negative:
		return "negatief"
	case Positive:
		return "positief"
	default:
		return "neutraal"
	}
}
