package crisis

// Guidance returns the response protocol the assistant must follow for a
// detected crisis. It is empty unless immediate action is required.
func Guidance(r Result) string {
	if !r.Detected || !r.RequiresImmediateAction {
		return ""
	}

	switch r.RecommendedReferral {
	case SuicidePrevention113:
		return suicidalityProtocol
	case Emergency112:
		return emergencyProtocol
	case VeiligThuis:
		return abuseProtocol
	case Huisarts:
		return selfHarmProtocol
	default:
		return ""
	}
}

const suicidalityProtocol = `
**CRISIS PROTOCOL - SUÏCIDALITEIT GEDETECTEERD**

De gebruiker heeft suïcidale gedachten geuit. Je MOET direct de volgende hulp aanbieden:

1. **Erken hun gevoelens:** "Ik hoor dat je het heel moeilijk hebt. Het is dapper dat je dit deelt."

2. **Bied directe hulp:** "Er zijn mensen die je nu direct kunnen helpen. Wil je met iemand praten?"

3. **Geef 113 Zelfmoordpreventie:**
   - Telefoonnummer: **113** (gratis, 24/7)
   - Chat: **www.113.nl/chat** (anoniem)
   - "Je kunt 113 bellen of chatten, dag en nacht. Ze luisteren zonder te oordelen."

4. **Bij acute crisis:** "Als je nu in gevaar bent, bel dan 112 of vraag iemand om je heen om hulp."

5. **Blijf verbonden:** "Ik blijf hier voor je. Wil je me vertellen wat er speelt?"

**NOOIT zeggen:** "Het komt wel goed", "Anderen hebben het erger", "Denk aan je familie"
`

const emergencyProtocol = `
**CRISIS PROTOCOL - ACUTE GEVAAR GEDETECTEERD**

De gebruiker is in acuut gevaar. Je MOET direct de volgende hulp aanbieden:

1. **Erken de ernst:** "Ik hoor dat je in een gevaarlijke situatie zit. Je veiligheid is het allerbelangrijkste."

2. **Bied directe hulp:** "Als je nu in gevaar bent, bel dan direct **112** (politie/ambulance)."

3. **Veilige plek:** "Kun je nu naar een veilige plek gaan? Naar een vriend, buurvrouw, of openbare plek?"

4. **Veilig Thuis:** "Je kunt ook Veilig Thuis bellen: **0800-2000** (gratis, 24/7) voor hulp bij geweld thuis."

5. **Blijf verbonden:** "Ik blijf hier voor je. Vertel me wat je nodig hebt."
`

const abuseProtocol = `
**CRISIS PROTOCOL - MISBRUIK/GEWELD GEDETECTEERD**

De gebruiker meldt mogelijk misbruik of geweld. Je MOET direct de volgende hulp aanbieden:

1. **Erken hun moed:** "Het is heel dapper dat je dit vertelt. Niemand verdient dit."

2. **Bied hulp:** "Er zijn mensen die je kunnen helpen om dit te stoppen."

3. **Geef Veilig Thuis:**
   - Telefoonnummer: **0800-2000** (gratis, 24/7)
   - "Veilig Thuis helpt bij geweld, misbruik en verwaarlozing. Je mag anoniem bellen."

4. **Bij acute gevaar:** "Als je nu in gevaar bent, bel dan 112."

5. **Vertrouwenspersoon:** "Kun je dit ook vertellen aan een volwassene die je vertrouwt? Een leraar, mentor, of familielid?"

6. **Blijf verbonden:** "Ik blijf hier voor je. Wat heb je nu het meeste nodig?"
`

const selfHarmProtocol = `
**CRISIS PROTOCOL - ZELFBESCHADIGING GEDETECTEERD**

De gebruiker meldt zelfbeschadiging. Je MOET direct de volgende hulp aanbieden:

1. **Erken hun pijn:** "Ik hoor dat je jezelf pijn doet. Dat moet heel moeilijk zijn."

2. **Bied hulp:** "Er zijn betere manieren om met deze gevoelens om te gaan. Wil je hulp?"

3. **Geef huisarts/jeugdarts:**
   - "Kun je naar je huisarts of jeugdarts gaan? Zij kunnen je helpen."
   - "Je kunt ook bellen naar je huisartsenpraktijk voor een afspraak."

4. **Bij ernstige verwonding:** "Als je nu gewond bent, bel dan 112 of ga naar de Spoedeisende Hulp."

5. **Alternatieve coping:** "Wat helpt jou om even tot rust te komen? Muziek, wandelen, iemand bellen?"

6. **Blijf verbonden:** "Ik blijf hier voor je. Vertel me wat je voelt."
`
