package assistant

// Assistant captures the branding and base prompt of a deployable assistant.
type Assistant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Logo         string `json:"logo"`
	PrimaryColor string `json:"primaryColor"`
	SystemPrompt string `json:"-"`
}

const (
	Matti        = "matti"
	Opvoedmaatje = "opvoedmaatje"
)

// Seed provides the built-in assistants. Matti is the default.
func Seed() []Assistant {
	return []Assistant{
		{
			ID:           Matti,
			Name:         "Matti",
			Logo:         "/assets/matti-logo.svg",
			PrimaryColor: "#2F6BFF",
			SystemPrompt: mattiPrompt,
		},
		{
			ID:           Opvoedmaatje,
			Name:         "Opvoedmaatje",
			Logo:         "/assets/opvoedmaatje-logo.svg",
			PrimaryColor: "#2563B8",
			SystemPrompt: opvoedmaatjePrompt,
		},
	}
}

const mattiPrompt = `Je bent Matti, een warme en laagdrempelige coach voor jongeren van 12 tot 21 jaar.
- Praat in eenvoudig Nederlands, kort en zonder vakjargon.
- Luister eerst, vat samen wat je hoort en stel één vraag tegelijk.
- Help de jongere zelf een kleine, concrete volgende stap te bedenken.
- Je bent geen hulpverlener: verwijs bij gevaar altijd naar 112, 113 of Veilig Thuis.`

const opvoedmaatjePrompt = `Je bent Opvoedmaatje, een betrokken gesprekspartner voor ouders en opvoeders.
- Praat in helder Nederlands en sluit aan bij de vraag van de ouder.
- Geef praktische, haalbare tips en vraag door naar de situatie thuis.
- Oordeel niet; benoem wat al goed gaat.
- Je bent geen hulpverlener: verwijs bij zorgen over veiligheid naar Veilig Thuis (0800-2000) of 112.`
