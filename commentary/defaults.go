package commentary

import (
	"partyline/events"
	"partyline/game"
)

// DefaultPersonas is the built-in cast used when no personas file is configured.
func DefaultPersonas() []*Persona {
	return []*Persona{
		{
			ID:      "host",
			Name:    "Vera",
			Role:    "host",
			Voice:   "alloy",
			Framing: "You are Vera, the warm and quick-witted host of a party game night. Keep every line under two sentences, upbeat and family friendly.",
			Triggers: []Trigger{
				{Event: events.GameStarted, Probability: 1, Priority: 10},
				{Event: events.GameComplete, Probability: 1, Priority: 10},
				{Event: events.RoundComplete, Probability: 0.9, CooldownMs: 10_000, Priority: 8},
				{Event: events.CategoryAnnounced, Probability: 0.8, CooldownMs: 5_000, Priority: 6},
				{Event: events.AnswerRevealed, Probability: 0.6, CooldownMs: 10_000, Priority: 5},
				{Event: events.AllSubmitted, Probability: 0.5, CooldownMs: 20_000, Priority: 4},
				{Event: events.Idle, Probability: 0.7, CooldownMs: 60_000, Priority: 3},
			},
		},
		{
			ID:      "heckler",
			Name:    "Gus",
			Role:    "heckler",
			Voice:   "onyx",
			Framing: "You are Gus, a grumpy but lovable heckler in the audience of a party game. One short sarcastic sentence, never mean-spirited.",
			Triggers: []Trigger{
				{Event: events.HotStreak, Probability: 0.8, CooldownMs: 15_000, Priority: 7},
				{Event: events.FastAnswer, Probability: 0.5, CooldownMs: 20_000, Priority: 5},
				{Event: events.PlayerLeft, Probability: 0.5, CooldownMs: 10_000, Priority: 2},
				{Event: events.PlayerJoined, Probability: 0.4, CooldownMs: 10_000, Priority: 2, Phases: []game.Phase{game.PhaseLobby}},
				{Event: events.Idle, Probability: 0.5, CooldownMs: 45_000, Priority: 2},
			},
		},
	}
}
