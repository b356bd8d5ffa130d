package lobby

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"partyline/apps/server/internal/room"
	"partyline/commentary"
	"partyline/game"
)

var ErrRoomNotFound = errors.New("room not found")

// Commentary is the per-room commentary state the lobby releases when a
// room is swept.
type Commentary interface {
	room.Commentator
	Release(roomCode string)
}

type Config struct {
	IdleTimeout   time.Duration
	IdleBuffer    time.Duration
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		IdleTimeout:   30 * time.Minute,
		IdleBuffer:    5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Lobby is the session registry: it owns every room, knows which room each
// transport session joined, and removes abandoned rooms.
type Lobby struct {
	mu       sync.RWMutex
	rooms    map[string]*room.Room
	sessions map[string]string // session id -> room code

	cfg        Config
	deps       room.Deps
	scheduler  *room.Scheduler
	commentary Commentary
}

func New(cfg Config, deps room.Deps, notes Commentary) *Lobby {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	l := &Lobby{
		rooms:      make(map[string]*room.Room),
		sessions:   make(map[string]string),
		cfg:        cfg,
		commentary: notes,
	}
	l.scheduler = room.NewScheduler(l, deps.Now)
	deps.Scheduler = l.scheduler
	if notes != nil {
		deps.Commentary = notes
	}
	l.deps = deps
	return l
}

func (l *Lobby) Scheduler() *room.Scheduler { return l.scheduler }

// GetOrCreateRoom returns the room for code, creating it on first use.
func (l *Lobby) GetOrCreateRoom(code string) *room.Room {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rooms[code]; ok && !r.IsClosed() {
		return r
	}
	r := room.New(code, l.deps)
	l.rooms[code] = r
	log.Printf("[Lobby] Room %s opened, total: %d", code, len(l.rooms))
	return r
}

func (l *Lobby) Get(code string) (*room.Room, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// RoomOf returns the room the session last joined.
func (l *Lobby) RoomOf(sessionID string) (*room.Room, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	code, ok := l.sessions[sessionID]
	if !ok {
		return nil, false
	}
	r, ok := l.rooms[code]
	return r, ok
}

// bind records that sessionID now belongs to code and detaches it from any
// other room it was part of.
func (l *Lobby) bind(sessionID, code string) {
	l.mu.Lock()
	prevCode, had := l.sessions[sessionID]
	l.sessions[sessionID] = code
	prev := l.rooms[prevCode]
	l.mu.Unlock()

	if had && prevCode != code && prev != nil {
		prev.Disconnect(sessionID)
	}
}

func (l *Lobby) JoinPlayer(code, sessionID, name string) (game.Player, error) {
	r := l.GetOrCreateRoom(code)
	l.bind(sessionID, code)
	return r.Join(sessionID, name)
}

func (l *Lobby) JoinDisplay(code, sessionID string) error {
	r := l.GetOrCreateRoom(code)
	l.bind(sessionID, code)
	return r.JoinDisplay(sessionID)
}

// Watch attaches a passive viewer. Watchers do not create rooms or keep
// them alive.
func (l *Lobby) Watch(code, sessionID string) (*room.Room, error) {
	r, err := l.Get(code)
	if err != nil {
		return nil, err
	}
	if err := r.Watch(sessionID); err != nil {
		return nil, err
	}
	return r, nil
}

func (l *Lobby) Unwatch(code, sessionID string) {
	if r, err := l.Get(code); err == nil {
		r.Unwatch(sessionID)
	}
}

// Disconnect marks whatever the session was bound to as gone.
func (l *Lobby) Disconnect(sessionID string) {
	l.mu.Lock()
	code, ok := l.sessions[sessionID]
	delete(l.sessions, sessionID)
	r := l.rooms[code]
	l.mu.Unlock()

	if ok && r != nil {
		r.Disconnect(sessionID)
	}
}

// Exec implements room.Target.
func (l *Lobby) Exec(code string, fn func(current game.Marker)) bool {
	r, err := l.Get(code)
	if err != nil {
		return false
	}
	return r.Exec(fn)
}

// Deliver hands commentary lines to the room they were produced for.
func (l *Lobby) Deliver(code string, utts []commentary.Utterance) {
	r, err := l.Get(code)
	if err != nil {
		return
	}
	if err := r.Speak(utts); err != nil && !errors.Is(err, room.ErrRoomClosed) {
		log.Printf("[Lobby] deliver commentary to %s failed: %v", code, err)
	}
}

// Sweep removes every expired room and returns their codes.
func (l *Lobby) Sweep(now time.Time) []string {
	l.mu.RLock()
	var expired []string
	for code, r := range l.rooms {
		if r.Expired(now, l.cfg.IdleTimeout, l.cfg.IdleBuffer) {
			expired = append(expired, code)
		}
	}
	l.mu.RUnlock()

	removed := make([]string, 0, len(expired))
	for _, code := range expired {
		l.mu.Lock()
		r := l.rooms[code]
		// Re-check under the write lock; someone may have joined meanwhile.
		if r == nil || !r.Expired(now, l.cfg.IdleTimeout, l.cfg.IdleBuffer) {
			l.mu.Unlock()
			continue
		}
		delete(l.rooms, code)
		for sid, c := range l.sessions {
			if c == code {
				delete(l.sessions, sid)
			}
		}
		l.mu.Unlock()

		l.destroy(r)
		removed = append(removed, code)
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		log.Printf("[Lobby] Swept %d idle rooms: %v", len(removed), removed)
	}
	return removed
}

func (l *Lobby) destroy(r *room.Room) {
	r.Stop()
	l.scheduler.CancelAll(r.Code)
	if l.commentary != nil {
		l.commentary.Release(r.Code)
	}
}

// Run sweeps idle rooms until ctx is done.
func (l *Lobby) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep(l.deps.Now())
		}
	}
}

// Rooms lists every open room, ordered by code.
func (l *Lobby) Rooms() []room.Summary {
	l.mu.RLock()
	list := make([]*room.Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		list = append(list, r)
	}
	l.mu.RUnlock()

	out := make([]room.Summary, 0, len(list))
	for _, r := range list {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Close stops every room and waits for their pending collaborator calls and
// ledger writes.
func (l *Lobby) Close() {
	l.mu.Lock()
	rooms := l.rooms
	l.rooms = make(map[string]*room.Room)
	l.sessions = make(map[string]string)
	l.mu.Unlock()

	for _, r := range rooms {
		l.destroy(r)
	}
	for _, r := range rooms {
		r.WaitAsync()
	}
}
