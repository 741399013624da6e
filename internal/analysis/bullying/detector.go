package bullying

import (
	"fmt"
	"math"
	"strings"
)

// Severity grades a bullying detection.
type Severity string

const (
	None     Severity = "none"
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

// Indicators lists the keywords matched per signal group.
type Indicators struct {
	Behavior      []string `json:"behavior"`
	Context       []string `json:"context"`
	VictimSignals []string `json:"victimSignals"`
	Emotions      []string `json:"emotions"`
}

// Result is the outcome of the multi-signal detector.
type Result struct {
	IsBullying   bool       `json:"isBullying"`
	Severity     Severity   `json:"severity"`
	IsStructural bool       `json:"isStructural"`
	Confidence   float64    `json:"confidence"`
	Indicators   Indicators `json:"indicators"`
	Reasoning    string     `json:"reasoning"`
}

var behaviorPatterns = [][]string{
	// verbal
	{
		"uitschelden", "uitgescholden", "schelden", "bedreigen", "bedreigd", "dreigen",
		"belachelijk maken", "belachelijk gemaakt", "lachen om", "lachen me uit", "uitlachen",
		"uitgelachen", "kleineren", "kleinerend", "vernederen", "vernederd", "pesten", "gepest",
		"treiteren", "getreiter",
	},
	// social
	{
		"buitensluiten", "buitengesloten", "negeren", "genegeerd", "niemand wil met mij",
		"niemand praat met mij", "ik hoor er niet bij", "ze laten me links liggen", "roddelen",
		"geroddel", "praatjes verspreiden",
	},
	// cyber
	{
		"cyberpesten", "online pesten", "screenshots delen", "screenshot gedeeld", "groepschat",
		"appgroep", "uit de groep", "verwijderd uit groep", "nare berichten", "gemene berichten",
	},
}

var locationSignals = []string{
	"klas", "in de klas", "op school", "pauze", "in de pauze", "gang", "schoolplein", "online",
	"whatsapp", "snapchat", "instagram", "tiktok", "appgroep", "groepschat",
}

var frequencySignals = []string{
	"altijd", "steeds", "elke dag", "iedere dag", "constant", "continu", "de hele tijd", "weer",
	"opnieuw", "blijven", "al weken", "al maanden", "sinds",
}

var groupSignals = []string{
	"groep", "een groep", "ze", "zij", "iedereen", "hele klas", "klasgenoten", "medeleerlingen",
}

var victimSignals = []string{
	"ik hoor er niet bij",
	"ze lachen om mij",
	"ze lachen me uit",
	"ik word genegeerd",
	"niemand wil met mij",
	"niemand praat met mij",
	"ik durf niks te zeggen",
	"ik durf niet",
	"ik wil niet meer naar school",
	"ik wil niet naar school",
	"ik ben bang om naar school te gaan",
	"ik haat school",
	"ik voel me waardeloos",
	"ik voel me alleen",
	"niemand mag mij",
	"iedereen haat mij",
	"ze hebben een hekel aan mij",
}

var emotionalIndicators = []string{
	"bang", "angstig", "verdrietig", "onzeker", "alleen", "eenzaam", "schaamte", "schaam me",
	"machteloos", "hulpeloos", "waardeloos", "niet goed genoeg", "minderwaardig", "depressief",
	"somber", "down",
}

const (
	behaviorWeight = 0.4
	contextWeight  = 0.2
	victimWeight   = 0.25
	emotionWeight  = 0.15

	minConfidence = 0.4
)

// Detect analyses a single message for bullying. A single incident without
// repetition or impact is not treated as bullying.
func Detect(message string) Result {
	normalized := strings.ToLower(message)

	var behavior []string
	for _, group := range behaviorPatterns {
		behavior = append(behavior, matchAll(normalized, group)...)
	}
	var context []string
	for _, group := range [][]string{locationSignals, frequencySignals, groupSignals} {
		context = append(context, matchAll(normalized, group)...)
	}
	victims := matchAll(normalized, victimSignals)
	emotions := matchAll(normalized, emotionalIndicators)

	hasBehavior := len(behavior) > 0
	hasContext := len(context) > 0
	hasVictim := len(victims) > 0
	hasEmotion := len(emotions) > 0

	confidence := 0.0
	if hasBehavior {
		confidence += behaviorWeight
	}
	if hasContext {
		confidence += contextWeight
	}
	if hasVictim {
		confidence += victimWeight
	}
	if hasEmotion {
		confidence += emotionWeight
	}
	confidence = math.Min(confidence, 1.0)

	hasRepetition := len(matchAll(normalized, frequencySignals)) > 0
	hasImpact := hasVictim || hasEmotion

	result := Result{
		Confidence:   confidence,
		IsStructural: hasRepetition && hasBehavior,
		Indicators: Indicators{
			Behavior:      nonNil(behavior),
			Context:       nonNil(context),
			VictimSignals: nonNil(victims),
			Emotions:      nonNil(emotions),
		},
	}
	result.IsBullying = hasBehavior && (hasRepetition || hasImpact) && confidence >= minConfidence

	switch {
	case !result.IsBullying:
		result.Severity = None
	case result.IsStructural && hasVictim && hasEmotion:
		result.Severity = Critical
	case result.IsStructural || (hasVictim && hasEmotion):
		result.Severity = High
	case hasVictim || hasEmotion:
		result.Severity = Medium
	default:
		result.Severity = Low
	}

	switch {
	case result.IsBullying:
		parts := []string{fmt.Sprintf("gedrag (%dx)", len(behavior))}
		if hasContext {
			parts = append(parts, fmt.Sprintf("context (%dx)", len(context)))
		}
		if hasVictim {
			parts = append(parts, fmt.Sprintf("slachtoffersignalen (%dx)", len(victims)))
		}
		if hasEmotion {
			parts = append(parts, fmt.Sprintf("emoties (%dx)", len(emotions)))
		}
		if result.IsStructural {
			parts = append(parts, "STRUCTUREEL")
		}
		result.Reasoning = fmt.Sprintf("Pesten gedetecteerd: %s. Severity: %s. Confidence: %d%%.",
			strings.Join(parts, " + "), result.Severity, int(math.Round(confidence*100)))
	case hasBehavior && !hasRepetition && !hasImpact:
		result.Reasoning = "Enkel incident zonder herhaling of impact → GEEN pesten (nog)."
	default:
		result.Reasoning = "Geen pesten-indicatoren gedetecteerd."
	}

	return result
}

// RecommendedAction maps a severity to the advice given to the assistant.
func RecommendedAction(sev Severity) string {
	switch sev {
	case Critical:
		return "URGENT: Directe interventie nodig. Adviseer contact met vertrouwenspersoon, ouders, of hulplijn (Kindertelefoon 0800-0432)."
	case High:
		return "Serieus: Adviseer gesprek met mentor, vertrouwenspersoon, of ouders. Monitor situatie actief."
	case Medium:
		return "Aandacht: Adviseer gesprek met vertrouwenspersoon. Bied concrete tips voor assertiviteit."
	case Low:
		return "Waakzaam: Monitor situatie. Bied tips voor omgaan met conflict."
	default:
		return "Geen actie nodig."
	}
}

func matchAll(message string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
