package flow

import "math/rand"

// GreetingMessage is the start-screen copy returned when a session begins.
type GreetingMessage struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
	CTA      string `json:"cta"`
}

var greetingMessages = []GreetingMessage{
	{
		Title:    "✨ Welcome to Your Transformation Journey!",
		Subtitle: "You're about to embark on a profound journey of self-discovery.",
		Body:     "The next questions will help unlock the extraordinary potential that's already within you. Be honest, be yourself, and let's discover what truly makes you come alive.",
		CTA:      "Begin My Journey",
	},
	{
		Title:    "🌟 Amazing! You've Taken the First Step",
		Subtitle: "Get ready to discover your true calling and purpose.",
		Body:     "This isn't just another questionnaire. These questions are designed to reveal insights about yourself you may have never realized. Your dream life is closer than you think.",
		CTA:      "Let's Start",
	},
	{
		Title:    "🚀 Your Future Self Will Thank You",
		Subtitle: "Welcome to a personalized journey toward clarity and purpose.",
		Body:     "Over the next few minutes, we'll explore what drives you, what excites you, and what path will lead you to true fulfillment. Answer honestly, and watch the magic unfold.",
		CTA:      "I'm Ready!",
	},
}

func randomGreeting() GreetingMessage {
	return greetingMessages[rand.Intn(len(greetingMessages))]
}
