package bullying

import (
	"regexp"
	"strings"
)

// Turn is the minimal view of a conversation message the transcript scan needs.
type Turn struct {
	Role    string
	Content string
}

var transcriptKeywords = []string{
	"pesten", "gepest", "pest", "pester", "pesters", "pestgedrag",
	"cyberpesten", "online pesten", "digitaal pesten",
	"uitlachen", "uitgelachen", "lachen om", "belachelijk maken",
	"negeren", "genegeerd", "doen alsof ik lucht ben",
	"buitensluiten", "buitengesloten", "niet meedoen", "niet uitgenodigd",
	"roddelen", "roddel", "achter mijn rug", "praatjes", "geruchten",
	"screenshots delen", "screenshot", "doorsturen", "foto's delen",
	"uit de groep", "groepschat",
	"gemeen", "gemene dingen", "gemeen doen", "rot doen",
	"plagen", "geplaagd", "sarren", "treiteren", "treiteraar",
	"schelden", "gescholden", "uitschelden", "scheldwoorden",
	"bedreigen", "bedreigd", "bang maken", "intimideren",
	"slaan", "schoppen", "duwen", "fysiek", "geweld",
	"spullen pakken", "afpakken", "verstopt", "kapot maken",
	"verraad", "geheim doorverteld",
	"niet durven", "bang op school", "niet naar school willen",
	"voor gek gezet", "vernederd", "beschaamd",
}

var transcriptHigh = []string{
	"bedreigen", "bedreigd", "bang maken", "intimideren",
	"slaan", "schoppen", "duwen", "fysiek", "geweld",
	"niet naar school willen", "bang op school",
	"zelfmoord", "dood", "pijn doen",
}

var transcriptMedium = []string{
	"cyberpesten", "screenshots delen", "doorsturen",
	"uit de groep", "buitengesloten",
	"schelden", "gescholden", "uitschelden",
	"vernederd", "beschaamd", "voor gek gezet",
}

var (
	transcriptPatterns = compileWordPrefixes(transcriptKeywords)
	highPatterns       = compileWordPrefixes(transcriptHigh)
	mediumPatterns     = compileWordPrefixes(transcriptMedium)
)

// compileWordPrefixes matches each keyword at a word start, allowing any word suffix.
func compileWordPrefixes(keywords []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\w*\b`))
	}
	return out
}

func userText(turns []Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Role == "user" {
			parts = append(parts, strings.ToLower(t.Content))
		}
	}
	return strings.Join(parts, " ")
}

func anyMatch(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// MentionedIn reports whether any user turn of a transcript mentions bullying.
func MentionedIn(turns []Turn) bool {
	text := userText(turns)
	if strings.TrimSpace(text) == "" {
		return false
	}
	return anyMatch(text, transcriptPatterns)
}

// TranscriptSeverity grades a whole transcript as low, medium or high.
func TranscriptSeverity(turns []Turn) Severity {
	text := userText(turns)
	if anyMatch(text, highPatterns) {
		return High
	}
	if anyMatch(text, mediumPatterns) {
		return Medium
	}
	return Low
}
