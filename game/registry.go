package game

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Registry maps game types to contracts. It is shared by every room.
type Registry struct {
	mu        sync.RWMutex
	contracts map[GameType]*Contract
}

func NewRegistry() *Registry {
	return &Registry{contracts: make(map[GameType]*Contract)}
}

// Register adds a contract. The last registration of a type wins.
func (r *Registry) Register(c *Contract) error {
	if err := c.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.contracts[c.Type]; exists {
		log.Printf("[Games] contract %q registered twice, replacing previous", c.Type)
	}
	r.contracts[c.Type] = c
	return nil
}

func (r *Registry) Get(t GameType) *Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contracts[t]
}

func (r *Registry) Types() []GameType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]GameType, 0, len(r.contracts))
	for t := range r.contracts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) InitializeGame(t GameType, code string, players *Roster, opts Options) (Result, error) {
	c := r.Get(t)
	if c == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownGame, t)
	}
	res := c.Initialize(code, players, opts)
	if res.State == nil {
		return Result{}, fmt.Errorf("initialize %s: no state", t)
	}
	if to := PhaseOf(res.State); to != PhaseLobby && !c.IsValidTransition(PhaseLobby, to) {
		log.Printf("[Games] %s initialize enters %q without a declared lobby transition", t, to)
	}
	return res, nil
}

// Dispatch routes an input to the contract's handler. Unknown game types,
// unknown events and results that take an undeclared transition leave the
// state unchanged.
func (r *Registry) Dispatch(t GameType, event string, s State, actor *Player, a Action) Result {
	c := r.Get(t)
	if c == nil {
		return Unchanged(s)
	}
	h := c.handler(event)
	if h == nil {
		return Unchanged(s)
	}
	res := h(s, actor, a)
	if res.State == nil {
		return Unchanged(s)
	}
	from, to := PhaseOf(s), PhaseOf(res.State)
	if from != to && !c.IsValidTransition(from, to) {
		log.Printf("[Games] %s %s: dropped undeclared transition %s -> %s", t, event, from, to)
		return Unchanged(s)
	}
	return res
}

func (r *Registry) IsValidTransition(t GameType, from, to Phase) bool {
	c := r.Get(t)
	if c == nil {
		return false
	}
	return c.IsValidTransition(from, to)
}

// ResetToLobby returns the contract's lobby form of s; unknown types yield s.
func (r *Registry) ResetToLobby(t GameType, s State) State {
	c := r.Get(t)
	if c == nil {
		return s
	}
	return c.ResetToLobby(s)
}
