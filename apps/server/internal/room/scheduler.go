package room

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"partyline/game"
)

// Target runs fn on the serialized update path of the room with the given
// code, passing the room's current marker. It reports false when the room
// no longer exists.
type Target interface {
	Exec(code string, fn func(current game.Marker)) bool
}

// ScheduledTimeout is one pending deferred callback.
type ScheduledTimeout struct {
	ID       uint64
	RoomCode string
	FireAt   time.Time
	Expected game.Marker

	timer     *time.Timer
	cancelled bool
}

// Scheduler owns every deferred transition of every room. Callbacks run on
// the owning room's update path and only when the room is still at the
// marker they were scheduled under.
type Scheduler struct {
	target Target
	now    func() time.Time

	mu      sync.Mutex
	nextID  uint64
	pending map[string]map[uint64]*ScheduledTimeout

	fired atomic.Uint64
	stale atomic.Uint64
}

func NewScheduler(target Target, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		target:  target,
		now:     now,
		pending: make(map[string]map[uint64]*ScheduledTimeout),
	}
}

// SetTarget binds the scheduler to the registry that owns the rooms. It must
// be called before the first Schedule.
func (s *Scheduler) SetTarget(target Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
}

// Schedule registers cb to run after delay. The returned id can be passed to
// Cancel.
func (s *Scheduler) Schedule(code string, delay time.Duration, expected game.Marker, cb func()) uint64 {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry := &ScheduledTimeout{
		ID:       s.nextID,
		RoomCode: code,
		FireAt:   s.now().Add(delay),
		Expected: expected,
	}
	byRoom := s.pending[code]
	if byRoom == nil {
		byRoom = make(map[uint64]*ScheduledTimeout)
		s.pending[code] = byRoom
	}
	byRoom[entry.ID] = entry
	entry.timer = time.AfterFunc(delay, func() { s.fire(entry, cb) })
	return entry.ID
}

func (s *Scheduler) fire(entry *ScheduledTimeout, cb func()) {
	s.mu.Lock()
	if entry.cancelled {
		s.mu.Unlock()
		return
	}
	s.forgetLocked(entry)
	target := s.target
	s.mu.Unlock()

	if target == nil {
		s.stale.Add(1)
		return
	}
	ran := target.Exec(entry.RoomCode, func(current game.Marker) {
		if current != entry.Expected {
			s.stale.Add(1)
			log.Printf("[Scheduler] room=%s timeout %d stale: expected %+v, now %+v",
				entry.RoomCode, entry.ID, entry.Expected, current)
			return
		}
		s.fired.Add(1)
		cb()
	})
	if !ran {
		s.stale.Add(1)
		log.Printf("[Scheduler] room=%s timeout %d dropped: room gone", entry.RoomCode, entry.ID)
	}
}

func (s *Scheduler) forgetLocked(entry *ScheduledTimeout) {
	byRoom := s.pending[entry.RoomCode]
	if byRoom == nil {
		return
	}
	delete(byRoom, entry.ID)
	if len(byRoom) == 0 {
		delete(s.pending, entry.RoomCode)
	}
}

func (s *Scheduler) Cancel(code string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.pending[code][id]
	if entry == nil {
		return false
	}
	entry.cancelled = true
	entry.timer.Stop()
	s.forgetLocked(entry)
	return true
}

// CancelAll stops and forgets every pending timeout of a room and returns
// how many were removed.
func (s *Scheduler) CancelAll(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRoom := s.pending[code]
	for _, entry := range byRoom {
		entry.cancelled = true
		entry.timer.Stop()
	}
	delete(s.pending, code)
	return len(byRoom)
}

func (s *Scheduler) Pending(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[code])
}

// Fired counts callbacks that ran. Stale counts callbacks discarded by the
// marker guard or because the room was gone.
func (s *Scheduler) Fired() uint64 { return s.fired.Load() }

func (s *Scheduler) Stale() uint64 { return s.stale.Load() }
