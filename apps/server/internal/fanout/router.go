// Package fanout routes envelopes produced by rooms to whichever transport
// currently owns a session.
package fanout

import (
	"log"
	"sync"
	"sync/atomic"

	"partyline/apps/server/internal/codec"
)

// Sink is one live transport session. Deliver must not block; it reports
// false when the envelope was dropped.
type Sink interface {
	Deliver(env *codec.Envelope) bool
}

type Router struct {
	mu      sync.RWMutex
	sinks   map[string]Sink
	dropped atomic.Uint64
}

func New() *Router {
	return &Router{sinks: make(map[string]Sink)}
}

func (r *Router) Register(sessionID string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[sessionID] = s
}

// Unregister removes the session only if it still points at s.
func (r *Router) Unregister(sessionID string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sinks[sessionID]; ok && cur == s {
		delete(r.sinks, sessionID)
	}
}

// Send delivers env to the session. Unknown sessions are ignored.
func (r *Router) Send(sessionID string, env *codec.Envelope) {
	r.mu.RLock()
	s := r.sinks[sessionID]
	r.mu.RUnlock()
	if s == nil {
		return
	}
	if !s.Deliver(env) {
		if r.dropped.Add(1)%100 == 1 {
			log.Printf("[Fanout] Dropped %s for slow session %s (total dropped: %d)", env.Type, sessionID, r.dropped.Load())
		}
	}
}

func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

func (r *Router) Dropped() uint64 { return r.dropped.Load() }
