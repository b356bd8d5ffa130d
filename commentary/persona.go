package commentary

import (
	"errors"
	"fmt"
	"time"

	"partyline/events"
	"partyline/game"
)

// Trigger binds a persona to one event type.
type Trigger struct {
	Event       events.Type  `json:"event"`
	Probability float64      `json:"probability"` // 0.0–1.0
	CooldownMs  int64        `json:"cooldownMs"`
	Priority    int          `json:"priority"`
	Phases      []game.Phase `json:"phases,omitempty"` // empty = any phase
}

func (t Trigger) Cooldown() time.Duration {
	return time.Duration(t.CooldownMs) * time.Millisecond
}

func (t Trigger) matches(ev events.Event) bool {
	if t.Event != ev.Type {
		return false
	}
	if len(t.Phases) == 0 {
		return true
	}
	for _, p := range t.Phases {
		if p == ev.Context.Phase {
			return true
		}
	}
	return false
}

// Persona is a named commentator character.
type Persona struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	Framing  string    `json:"framing"`
	Voice    string    `json:"voice"`
	Triggers []Trigger `json:"triggers"`
}

// TriggerFor returns the first trigger that matches ev.
func (p *Persona) TriggerFor(ev events.Event) (Trigger, bool) {
	for _, t := range p.Triggers {
		if t.matches(ev) {
			return t, true
		}
	}
	return Trigger{}, false
}

// Validate reports the first problem with the persona's definition.
func (p *Persona) Validate() error {
	if p == nil || p.ID == "" {
		return errors.New("persona id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("persona %s: name is required", p.ID)
	}
	for i, t := range p.Triggers {
		switch {
		case t.Event == "":
			return fmt.Errorf("persona %s trigger %d: event is required", p.ID, i)
		case t.Probability < 0 || t.Probability > 1:
			return fmt.Errorf("persona %s trigger %d: probability %.2f outside [0,1]", p.ID, i, t.Probability)
		case t.CooldownMs < 0:
			return fmt.Errorf("persona %s trigger %d: negative cooldown", p.ID, i)
		}
	}
	return nil
}
