package commentary

import (
	"context"
	"sync"
	"time"

	"partyline/events"
)

// DeliverFunc hands finished utterances back to the owning room.
type DeliverFunc func(roomCode string, utterances []Utterance)

// roomCommentary is one room's limiter and its queue of event batches.
// Batches run one at a time so the limiter sees every recorded utterance
// before the next check.
type roomCommentary struct {
	limiter *RateLimiter
	pending [][]events.Event
	running bool
}

// Manager keeps per-room commentary state and runs the orchestrator off
// the room update path.
type Manager struct {
	orch    *Orchestrator
	cfg     LimiterConfig
	now     func() time.Time
	deliver DeliverFunc

	mu    sync.Mutex
	rooms map[string]*roomCommentary
	wg    sync.WaitGroup
}

func NewManager(orch *Orchestrator, cfg LimiterConfig, now func() time.Time, deliver DeliverFunc) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		orch:    orch,
		cfg:     cfg,
		now:     now,
		deliver: deliver,
		rooms:   make(map[string]*roomCommentary),
	}
}

func (m *Manager) roomLocked(roomCode string) *roomCommentary {
	rc, ok := m.rooms[roomCode]
	if !ok {
		rc = &roomCommentary{limiter: NewRateLimiter(m.cfg, m.now)}
		m.rooms[roomCode] = rc
	}
	return rc
}

// Limiter returns the room's limiter, creating it on first use.
func (m *Manager) Limiter(roomCode string) *RateLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomLocked(roomCode).limiter
}

// Comment queues evs for the room. Batches of one room run in order on a
// single background goroutine.
func (m *Manager) Comment(roomCode string, evs []events.Event) {
	if len(evs) == 0 || m.orch == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rc := m.roomLocked(roomCode)
	if !rc.limiter.Enabled() {
		return
	}
	rc.pending = append(rc.pending, evs)
	if rc.running {
		return
	}
	rc.running = true
	m.wg.Add(1)
	go m.drain(roomCode, rc)
}

func (m *Manager) drain(roomCode string, rc *roomCommentary) {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		if len(rc.pending) == 0 {
			rc.running = false
			m.mu.Unlock()
			return
		}
		evs := rc.pending[0]
		rc.pending = rc.pending[1:]
		m.mu.Unlock()

		utts := m.orch.Respond(context.Background(), rc.limiter, evs)
		if len(utts) > 0 && m.deliver != nil {
			m.deliver(roomCode, utts)
		}
	}
}

func (m *Manager) ResetGame(roomCode string) {
	m.Limiter(roomCode).ResetGame()
}

func (m *Manager) SetEnabled(roomCode string, enabled bool) {
	m.Limiter(roomCode).SetEnabled(enabled)
}

// Release drops the room's commentary state.
func (m *Manager) Release(roomCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rc, ok := m.rooms[roomCode]; ok {
		rc.pending = nil
		delete(m.rooms, roomCode)
	}
}

// Wait blocks until in-flight commentary finishes.
func (m *Manager) Wait() {
	m.wg.Wait()
}
