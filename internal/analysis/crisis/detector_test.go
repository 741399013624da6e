package crisis

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSuicidalityCritical(t *testing.T) {
	result := Detect("Ik wil dood, echt waar")

	require.True(t, result.Detected)
	assert.Equal(t, Suicidality, result.Type)
	assert.Equal(t, Critical, result.Severity)
	assert.Equal(t, []string{"ik wil dood"}, result.MatchedKeywords)
	assert.True(t, result.RequiresImmediateAction)
	assert.Equal(t, SuicidePrevention113, result.RecommendedReferral)
}

func TestDetectSelfHarmReferral(t *testing.T) {
	critical := Detect("gisteren heb ik mezelf gesneden, ik snij mezelf vaker")
	assert.Equal(t, SelfHarm, critical.Type)
	assert.Equal(t, Emergency112, critical.RecommendedReferral)

	high := Detect("ik zie littekens op mijn arm")
	assert.Equal(t, SelfHarm, high.Type)
	assert.Equal(t, High, high.Severity)
	assert.Equal(t, Huisarts, high.RecommendedReferral)
	assert.True(t, high.RequiresImmediateAction)
}

func TestDetectAbuseAndViolence(t *testing.T) {
	abuse := Detect("mijn vader schreeuwt altijd")
	assert.Equal(t, Abuse, abuse.Type)
	assert.Equal(t, Medium, abuse.Severity)
	assert.False(t, abuse.RequiresImmediateAction)
	assert.Equal(t, VeiligThuis, abuse.RecommendedReferral)

	violence := Detect("ik voel me onveilig op straat")
	assert.Equal(t, SevereViolence, violence.Type)
	assert.Equal(t, Medium, violence.Severity)
	assert.Equal(t, VeiligThuis, violence.RecommendedReferral)
}

func TestDetectCriticalBeatsEarlierMediumCategory(t *testing.T) {
	// "verdwijnen" is a medium suicidality keyword; the critical abuse keyword must still win.
	result := Detect("ik wil verdwijnen want hij slaat me")

	assert.Equal(t, Abuse, result.Type)
	assert.Equal(t, Critical, result.Severity)
	assert.Equal(t, Emergency112, result.RecommendedReferral)
}

func TestDetectNothing(t *testing.T) {
	result := Detect("Vandaag was een leuke dag op school")

	assert.False(t, result.Detected)
	assert.Equal(t, None, result.Type)
	assert.Equal(t, Low, result.Severity)
	assert.Empty(t, result.MatchedKeywords)
	assert.Equal(t, NoReferral, result.RecommendedReferral)
	assert.Empty(t, Guidance(result))
}

func TestGuidanceFollowsReferral(t *testing.T) {
	assert.Contains(t, Guidance(Detect("ik pleeg zelfmoord")), "113")
	assert.Contains(t, Guidance(Detect("ik ben in elkaar geslagen")), "ACUTE GEVAAR")
	assert.Contains(t, Guidance(Detect("er is sprake van huiselijk geweld")), "Veilig Thuis")
	assert.Contains(t, Guidance(Detect("ik zag bloed")), "huisarts")
	assert.Empty(t, Guidance(Detect("het voelt gevaarlijk")))
}

func TestCriticalKeywordAlwaysRequiresImmediateAction(t *testing.T) {
	keywords := CriticalKeywords()
	require.NotEmpty(t, keywords)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("critical keyword requires immediate action", prop.ForAll(
		func(prefix, suffix string, idx int, upper bool) bool {
			keyword := keywords[idx]
			if upper {
				keyword = strings.ToUpper(keyword)
			}
			result := Detect(prefix + " " + keyword + " " + suffix)
			return result.Detected && result.Severity == Critical && result.RequiresImmediateAction
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, len(keywords)-1),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
