package crisis

import "strings"

// Type names the crisis category that matched.
type Type string

const (
	None           Type = "none"
	Suicidality    Type = "suicidality"
	SelfHarm       Type = "self_harm"
	Abuse          Type = "abuse"
	SevereViolence Type = "severe_violence"
)

// Severity ranks how urgent a detected crisis is.
type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

// Referral is the help line the reply should point to.
type Referral string

const (
	NoReferral           Referral = "none"
	SuicidePrevention113 Referral = "113_suicide_prevention"
	Emergency112         Referral = "112_emergency"
	VeiligThuis          Referral = "veilig_thuis"
	Huisarts             Referral = "huisarts"
)

// Result describes the outcome of a crisis scan over one message.
type Result struct {
	Detected                bool     `json:"detected"`
	Type                    Type     `json:"type"`
	Severity                Severity `json:"severity"`
	MatchedKeywords         []string `json:"matchedKeywords"`
	RequiresImmediateAction bool     `json:"requiresImmediateAction"`
	RecommendedReferral     Referral `json:"recommendedReferral"`
}

type tiers struct {
	critical []string
	high     []string
	medium   []string
}

type category struct {
	kind     Type
	keywords tiers
	referral func(Severity) Referral
}

var suicidalityKeywords = tiers{
	critical: []string{
		"ik wil dood",
		"ik ga dood",
		"ik maak mezelf dood",
		"ik pleeg zelfmoord",
		"ik spring van",
		"ik neem pillen",
		"ik hang mezelf",
		"vandaag is mijn laatste dag",
		"afscheidsbrief",
	},
	high: []string{
		"zelfmoord",
		"suïcide",
		"dood willen",
		"niet meer willen leven",
		"beter af zonder mij",
		"niemand zou me missen",
		"iedereen is beter af als ik er niet ben",
		"ik wil niet meer",
		"het houdt niet op",
		"geen uitweg",
	},
	medium: []string{
		"doodgaan",
		"niet meer wakker worden",
		"alles stoppen",
		"een einde maken",
		"verdwijnen",
		"weg willen",
	},
}

var selfHarmKeywords = tiers{
	critical: []string{
		"ik snij mezelf",
		"ik brand mezelf",
		"ik sla mezelf",
		"ik doe mezelf pijn",
		"ik heb mezelf gesneden",
	},
	high: []string{
		"snijden",
		"cutter",
		"zelfverwonding",
		"mezelf pijn doen",
		"mezelf verwonden",
		"bloed",
		"littekens",
		"scheermesje",
		"mes",
	},
	medium: []string{
		"pijn voelen",
		"mezelf straffen",
		"ik verdien pijn",
	},
}

var abuseKeywords = tiers{
	critical: []string{
		"hij slaat me",
		"zij slaat me",
		"mijn vader slaat me",
		"mijn moeder slaat me",
		"hij heeft me aangeraakt",
		"zij heeft me aangeraakt",
		"verkracht",
		"misbruikt",
		"gedwongen tot seks",
	},
	high: []string{
		"slaan",
		"schoppen",
		"stompen",
		"wurgen",
		"aanraken",
		"betasten",
		"seksueel misbruik",
		"huiselijk geweld",
		"kindermishandeling",
		"incest",
	},
	medium: []string{
		"bang voor thuis",
		"bang voor mijn vader",
		"bang voor mijn moeder",
		"durft niet naar huis",
		"schreeuwt altijd",
		"vernederd",
		"uitgescholden",
	},
}

var severeViolenceKeywords = tiers{
	critical: []string{
		"in elkaar geslagen",
		"met mes bedreigd",
		"met wapen bedreigd",
		"bang voor mijn leven",
		"ze gaan me vermoorden",
	},
	high: []string{
		"bedreigd",
		"geslagen",
		"gewond",
		"blauwe plekken",
		"gebroken",
		"ziekenhuis",
	},
	medium: []string{
		"gevaarlijk",
		"bang",
		"onveilig",
		"durft niet",
	},
}

// emergencyOr sends critical cases to 112 and the rest to fallback.
func emergencyOr(fallback Referral) func(Severity) Referral {
	return func(sev Severity) Referral {
		if sev == Critical {
			return Emergency112
		}
		return fallback
	}
}

// categories are listed in priority order. Detection walks the tiers first
// (critical, high, medium) and the categories within each tier, so a critical
// keyword always wins over a weaker match in a higher-priority category.
var categories = []category{
	{kind: Suicidality, keywords: suicidalityKeywords, referral: func(Severity) Referral { return SuicidePrevention113 }},
	{kind: SelfHarm, keywords: selfHarmKeywords, referral: emergencyOr(Huisarts)},
	{kind: Abuse, keywords: abuseKeywords, referral: emergencyOr(VeiligThuis)},
	{kind: SevereViolence, keywords: severeViolenceKeywords, referral: emergencyOr(VeiligThuis)},
}

var stages = []struct {
	severity Severity
	words    func(tiers) []string
}{
	{Critical, func(t tiers) []string { return t.critical }},
	{High, func(t tiers) []string { return t.high }},
	{Medium, func(t tiers) []string { return t.medium }},
}

// Detect scans a single user message for crisis signals.
func Detect(message string) Result {
	normalized := strings.ToLower(message)

	for _, stage := range stages {
		for _, cat := range categories {
			for _, keyword := range stage.words(cat.keywords) {
				if !strings.Contains(normalized, keyword) {
					continue
				}
				return Result{
					Detected:                true,
					Type:                    cat.kind,
					Severity:                stage.severity,
					MatchedKeywords:         []string{keyword},
					RequiresImmediateAction: stage.severity == Critical || stage.severity == High,
					RecommendedReferral:     cat.referral(stage.severity),
				}
			}
		}
	}

	return Result{
		Type:                None,
		Severity:            Low,
		MatchedKeywords:     []string{},
		RecommendedReferral: NoReferral,
	}
}

// CriticalKeywords lists every critical-tier keyword across all categories.
func CriticalKeywords() []string {
	var out []string
	for _, cat := range categories {
		out = append(out, cat.keywords.critical...)
	}
	return out
}
