package lobby

import (
	"errors"
	"sync"
	"testing"
	"time"

	"partyline/apps/server/internal/codec"
	"partyline/apps/server/internal/room"
	"partyline/commentary"
	"partyline/events"
	"partyline/game"
	"partyline/game/wordvote"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeCommentary struct {
	mu       sync.Mutex
	released []string
}

func (f *fakeCommentary) Comment(string, []events.Event) {}
func (f *fakeCommentary) ResetGame(string)               {}
func (f *fakeCommentary) SetEnabled(string, bool)        {}
func (f *fakeCommentary) Release(code string) {
	f.mu.Lock()
	f.released = append(f.released, code)
	f.mu.Unlock()
}

type sink struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (s *sink) send(sessionID string, env *codec.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[string][]string)
	}
	s.sent[sessionID] = append(s.sent[sessionID], env.Type)
}

func (s *sink) count(sessionID, typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.sent[sessionID] {
		if t == typ {
			n++
		}
	}
	return n
}

func newTestLobby(t *testing.T) (*Lobby, *clock, *fakeCommentary, *sink) {
	t.Helper()
	reg := game.NewRegistry()
	cfg := wordvote.DefaultConfig()
	cfg.SubmitTime = 0
	cfg.VoteTime = 0
	wc, err := wordvote.NewContract(cfg)
	if err != nil {
		t.Fatalf("contract err: %v", err)
	}
	if err := reg.Register(wc); err != nil {
		t.Fatalf("register err: %v", err)
	}

	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	notes := &fakeCommentary{}
	out := &sink{}
	l := New(Config{IdleTimeout: 10 * time.Minute, IdleBuffer: time.Minute, SweepInterval: time.Hour}, room.Deps{
		Games:        reg,
		Send:         out.send,
		Now:          clk.Now,
		TickInterval: time.Hour,
	}, notes)
	t.Cleanup(l.Close)
	return l, clk, notes, out
}

func TestJoinCreatesRoomOnce(t *testing.T) {
	l, _, _, _ := newTestLobby(t)

	if _, err := l.JoinPlayer("ABCD", "s1", "Alice"); err != nil {
		t.Fatalf("join err: %v", err)
	}
	if _, err := l.JoinPlayer("ABCD", "s2", "Bob"); err != nil {
		t.Fatalf("join err: %v", err)
	}
	rooms := l.Rooms()
	if len(rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(rooms))
	}
	if rooms[0].Code != "ABCD" || rooms[0].Players != 2 || rooms[0].Connected != 2 {
		t.Fatalf("unexpected summary: %+v", rooms[0])
	}
	if l.GetOrCreateRoom("ABCD") != l.GetOrCreateRoom("ABCD") {
		t.Fatalf("expected the same room instance")
	}
}

func TestDisconnectAndRejoinKeepsPlayer(t *testing.T) {
	l, _, _, out := newTestLobby(t)

	first, err := l.JoinPlayer("ABCD", "s1", "Alice")
	if err != nil {
		t.Fatalf("join err: %v", err)
	}
	l.Disconnect("s1")

	r, err := l.Get("ABCD")
	if err != nil {
		t.Fatalf("get err: %v", err)
	}
	if p := r.Players()[0]; p.Connected {
		t.Fatalf("expected player disconnected")
	}
	if _, ok := l.RoomOf("s1"); ok {
		t.Fatalf("expected session binding removed")
	}

	again, err := l.JoinPlayer("ABCD", "s9", "Alice")
	if err != nil {
		t.Fatalf("rejoin err: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected same player id, got %s vs %s", again.ID, first.ID)
	}
	if out.count("s9", "joined") != 1 {
		t.Fatalf("expected joined envelope on new session")
	}
}

func TestSessionMovingRoomsLeavesPreviousRoom(t *testing.T) {
	l, _, _, _ := newTestLobby(t)

	if _, err := l.JoinPlayer("AAAA", "s1", "Alice"); err != nil {
		t.Fatalf("join err: %v", err)
	}
	if _, err := l.JoinPlayer("BBBB", "s1", "Alice"); err != nil {
		t.Fatalf("join err: %v", err)
	}

	prev, _ := l.Get("AAAA")
	if prev.Summary().Connected != 0 {
		t.Fatalf("expected previous room to see the player leave")
	}
	cur, ok := l.RoomOf("s1")
	if !ok || cur.Code != "BBBB" {
		t.Fatalf("expected session bound to BBBB")
	}
}

func TestWatchRequiresExistingRoom(t *testing.T) {
	l, _, _, _ := newTestLobby(t)

	if _, err := l.Watch("ZZZZ", "w1"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if err := l.JoinDisplay("ZZZZ", "d1"); err != nil {
		t.Fatalf("display join err: %v", err)
	}
	if _, err := l.Watch("ZZZZ", "w1"); err != nil {
		t.Fatalf("watch err: %v", err)
	}
}

func TestExecUnknownRoomReturnsFalse(t *testing.T) {
	l, _, _, _ := newTestLobby(t)

	called := false
	if l.Exec("NOPE", func(game.Marker) { called = true }) {
		t.Fatalf("expected false for unknown room")
	}
	if called {
		t.Fatalf("callback must not run")
	}
}

func TestSweepRemovesIdleRoomsOnly(t *testing.T) {
	l, clk, notes, _ := newTestLobby(t)

	if _, err := l.JoinPlayer("IDLE", "s1", "Alice"); err != nil {
		t.Fatalf("join err: %v", err)
	}
	if _, err := l.JoinPlayer("BUSY", "s2", "Bob"); err != nil {
		t.Fatalf("join err: %v", err)
	}
	l.Disconnect("s1")

	idle, _ := l.Get("IDLE")
	l.Scheduler().Schedule("IDLE", time.Hour, idle.Marker(), func() {})

	if removed := l.Sweep(clk.Now()); len(removed) != 0 {
		t.Fatalf("nothing should expire yet, got %v", removed)
	}

	clk.Advance(time.Hour)
	removed := l.Sweep(clk.Now())
	if len(removed) != 1 || removed[0] != "IDLE" {
		t.Fatalf("expected IDLE swept, got %v", removed)
	}
	if _, err := l.Get("IDLE"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected room gone, got %v", err)
	}
	if !idle.IsClosed() {
		t.Fatalf("expected swept room stopped")
	}
	if n := l.Scheduler().Pending("IDLE"); n != 0 {
		t.Fatalf("expected timers cancelled, %d pending", n)
	}
	notes.mu.Lock()
	released := append([]string(nil), notes.released...)
	notes.mu.Unlock()
	if len(released) != 1 || released[0] != "IDLE" {
		t.Fatalf("expected commentary released for IDLE, got %v", released)
	}
	if _, err := l.Get("BUSY"); err != nil {
		t.Fatalf("connected room must survive: %v", err)
	}
}

func TestDeliverReachesRoomWhenCommentaryOn(t *testing.T) {
	l, _, _, out := newTestLobby(t)

	if err := l.JoinDisplay("ABCD", "d1"); err != nil {
		t.Fatalf("display err: %v", err)
	}
	r, _ := l.Get("ABCD")
	if err := r.ToggleCommentary("d1", true); err != nil {
		t.Fatalf("toggle err: %v", err)
	}
	l.Deliver("ABCD", []commentary.Utterance{{PersonaID: "host", PersonaName: "Host", Text: "Welcome!"}})
	l.Deliver("GONE", []commentary.Utterance{{Text: "nobody"}})

	deadline := time.Now().Add(2 * time.Second)
	for out.count("d1", "speak") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if out.count("d1", "speak") != 1 {
		t.Fatalf("expected one speak envelope at the display")
	}
}
