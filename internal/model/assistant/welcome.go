package assistant

import (
	"fmt"
	"math/rand"
)

var greetings = []string{"Hey %s!", "Hoi %s!", "Yo %s!"}

var openers = []string{
	"Waar wil je het over hebben?",
	"Wat kan ik voor je doen?",
	"Hoe kan ik je helpen?",
}

// WelcomeMessage builds a short greeting from fixed templates.
func WelcomeMessage(name string) string {
	greeting := fmt.Sprintf(greetings[rand.Intn(len(greetings))], name)
	return greeting + " " + openers[rand.Intn(len(openers))]
}
