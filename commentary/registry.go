package commentary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"partyline/events"
)

// PersonaRegistry holds the commentator cast, indexed by id and by the
// event types they react to.
type PersonaRegistry struct {
	mu      sync.RWMutex
	byID    map[string]*Persona
	byEvent map[events.Type][]*Persona
}

func NewRegistry() *PersonaRegistry {
	return &PersonaRegistry{
		byID:    make(map[string]*Persona),
		byEvent: make(map[events.Type][]*Persona),
	}
}

// Register adds or replaces a persona after validating it.
func (r *PersonaRegistry) Register(p *Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
	r.reindexLocked()
	return nil
}

func (r *PersonaRegistry) reindexLocked() {
	idx := make(map[events.Type][]*Persona)
	for _, p := range r.sortedLocked() {
		seen := make(map[events.Type]bool, len(p.Triggers))
		for _, t := range p.Triggers {
			if !seen[t.Event] {
				seen[t.Event] = true
				idx[t.Event] = append(idx[t.Event], p)
			}
		}
	}
	r.byEvent = idx
}

func (r *PersonaRegistry) sortedLocked() []*Persona {
	out := make([]*Persona, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadFromFile reads a JSON persona array from path.
func (r *PersonaRegistry) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open personas file: %w", err)
	}
	defer f.Close()

	var list []*Persona
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return fmt.Errorf("parse personas file %s: %w", path, err)
	}
	return r.registerAll(list)
}

// LoadFromJSON registers every persona of a JSON array. Entries without an
// id are skipped; invalid entries are reported together and the valid ones
// are still registered.
func (r *PersonaRegistry) LoadFromJSON(data []byte) error {
	var list []*Persona
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse personas JSON: %w", err)
	}
	return r.registerAll(list)
}

func (r *PersonaRegistry) registerAll(list []*Persona) error {
	var errs []error
	for i, p := range list {
		if p == nil || p.ID == "" {
			continue
		}
		if err := r.Register(p); err != nil {
			errs = append(errs, fmt.Errorf("persona %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (r *PersonaRegistry) Get(id string) *Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// All returns the personas ordered by id.
func (r *PersonaRegistry) All() []*Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

// Listening returns the personas with at least one trigger for t, ordered
// by id.
func (r *PersonaRegistry) Listening(t events.Type) []*Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Persona(nil), r.byEvent[t]...)
}

func (r *PersonaRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
