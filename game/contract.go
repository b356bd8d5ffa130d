package game

import (
	"fmt"
	"time"
)

// Built-in verbs every contract may answer.
const (
	VerbSubmit    = "submit"
	VerbVote      = "vote"
	VerbNextRound = "next_round"

	// EventRosterChanged is dispatched by the room after a join or disconnect
	// so the active game can re-evaluate quorum.
	EventRosterChanged = "roster_changed"
)

// Action is the input to a handler. At is server time.
type Action struct {
	Text     string
	TargetID string
	At       time.Time
	// Data carries typed payloads of internal events, e.g. question batches.
	Data any
}

// Options configure one game start.
type Options struct {
	Rounds     int
	Category   string
	Difficulty string
	Seed       int64
	At         time.Time
}

type Result struct {
	State   State
	Effects []Effect
}

// Unchanged is the result of a rejected or ignored input.
func Unchanged(s State) Result { return Result{State: s} }

// Then appends the effects of next to r and adopts its state.
func (r Result) Then(next Result) Result {
	effects := make([]Effect, 0, len(r.Effects)+len(next.Effects))
	effects = append(effects, r.Effects...)
	effects = append(effects, next.Effects...)
	return Result{State: next.State, Effects: effects}
}

// Handler applies one input to a state. actor is nil for internal events.
type Handler func(s State, actor *Player, a Action) Result

// Contract describes one pluggable game type.
type Contract struct {
	Type        GameType
	Phases      []Phase
	Transitions map[Phase][]Phase

	Initialize   func(code string, players *Roster, opts Options) Result
	Submit       Handler
	Vote         Handler
	NextRound    Handler
	Custom       map[string]Handler
	ResetToLobby func(s State) State

	// ClientEvents lists the custom events a client may send. Everything else
	// in Custom is internal (timers, async completions).
	ClientEvents []string
}

func (c *Contract) IsValidTransition(from, to Phase) bool {
	for _, p := range c.Transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

func (c *Contract) HasPhase(p Phase) bool {
	for _, q := range c.Phases {
		if q == p {
			return true
		}
	}
	return false
}

func (c *Contract) AllowsClientEvent(name string) bool {
	for _, e := range c.ClientEvents {
		if e == name {
			return true
		}
	}
	return false
}

func (c *Contract) handler(event string) Handler {
	switch event {
	case VerbSubmit:
		return c.Submit
	case VerbVote:
		return c.Vote
	case VerbNextRound:
		return c.NextRound
	}
	return c.Custom[event]
}

func (c *Contract) validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil contract", ErrInvalidContract)
	}
	if c.Type == "" {
		return fmt.Errorf("%w: empty type", ErrInvalidContract)
	}
	if c.Initialize == nil || c.ResetToLobby == nil {
		return fmt.Errorf("%w: %s lacks initialize or reset", ErrInvalidContract, c.Type)
	}
	if !c.HasPhase(PhaseLobby) {
		return fmt.Errorf("%w: %s has no lobby phase", ErrInvalidContract, c.Type)
	}
	for from, tos := range c.Transitions {
		if !c.HasPhase(from) {
			return fmt.Errorf("%w: %s transition from undeclared phase %q", ErrInvalidContract, c.Type, from)
		}
		for _, to := range tos {
			if !c.HasPhase(to) {
				return fmt.Errorf("%w: %s transition to undeclared phase %q", ErrInvalidContract, c.Type, to)
			}
		}
	}
	return nil
}
