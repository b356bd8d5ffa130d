package commentary

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"partyline/events"
)

// Request is one line of commentary asked from a TextGenerator.
type Request struct {
	PersonaID   string
	PersonaName string
	Framing     string
	Event       events.Type
	Context     string
	MaxChars    int
}

// TextGenerator produces short lines of speech.
type TextGenerator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Utterance is a line ready to be broadcast.
type Utterance struct {
	PersonaID   string
	PersonaName string
	Text        string
	Voice       string
	Emotion     string
	Priority    int
	Event       events.Type
}

type OrchestratorConfig struct {
	CallTimeout time.Duration
	MaxChars    int
}

// Orchestrator turns detected events into persona utterances.
type Orchestrator struct {
	registry *PersonaRegistry
	gen      TextGenerator
	cfg      OrchestratorConfig

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewOrchestrator(registry *PersonaRegistry, gen TextGenerator, cfg OrchestratorConfig, seed int64) *Orchestrator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 200
	}
	return &Orchestrator{
		registry: registry,
		gen:      gen,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (o *Orchestrator) roll() float64 {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.rng.Float64()
}

// Respond evaluates every persona against every event and returns the
// produced utterances, highest priority first. A failing persona never
// prevents the others from speaking.
func (o *Orchestrator) Respond(ctx context.Context, limiter *RateLimiter, evs []events.Event) []Utterance {
	var out []Utterance
	for _, ev := range evs {
		for _, p := range o.registry.Listening(ev.Type) {
			trig, ok := p.TriggerFor(ev)
			if !ok {
				continue
			}
			if o.roll() >= trig.Probability {
				continue
			}
			if limiter.IsTriggerOnCooldown(p.ID, ev.Type) || !limiter.CanSpeak() {
				continue
			}
			text, err := o.generate(ctx, p, ev)
			if err != nil {
				log.Printf("[Commentary] room=%s persona=%s event=%s failed: %v", ev.Context.RoomCode, p.ID, ev.Type, err)
				continue
			}
			limiter.RecordUtterance(p.ID, ev.Type, trig.Cooldown())
			out = append(out, Utterance{
				PersonaID:   p.ID,
				PersonaName: p.Name,
				Text:        text,
				Voice:       p.Voice,
				Emotion:     emotionFor(ev.Type),
				Priority:    trig.Priority,
				Event:       ev.Type,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func (o *Orchestrator) generate(ctx context.Context, p *Persona, ev events.Event) (string, error) {
	if o.gen == nil {
		return "", fmt.Errorf("no text generator configured")
	}
	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
	}
	text, err := o.gen.Generate(ctx, Request{
		PersonaID:   p.ID,
		PersonaName: p.Name,
		Framing:     p.Framing,
		Event:       ev.Type,
		Context:     describe(ev),
		MaxChars:    o.cfg.MaxChars,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty generation")
	}
	if r := []rune(text); len(r) > o.cfg.MaxChars {
		text = string(r[:o.cfg.MaxChars])
	}
	return text, nil
}
