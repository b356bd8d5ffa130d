package room

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"partyline/game"
)

type fakeTarget struct {
	mu      sync.Mutex
	markers map[string]game.Marker
}

func (f *fakeTarget) set(code string, m game.Marker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers[code] = m
}

func (f *fakeTarget) Exec(code string, fn func(game.Marker)) bool {
	f.mu.Lock()
	m, ok := f.markers[code]
	f.mu.Unlock()
	if !ok {
		return false
	}
	fn(m)
	return true
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{markers: make(map[string]game.Marker)}
}

func TestSchedulerRunsCallbackAtExpectedMarker(t *testing.T) {
	target := newFakeTarget()
	m := game.Marker{Epoch: 1, Phase: "submit", Round: 1}
	target.set("ABCD", m)
	s := NewScheduler(target, nil)

	var ran atomic.Int32
	s.Schedule("ABCD", time.Millisecond, m, func() { ran.Add(1) })
	waitFor(t, "callback", func() bool { return ran.Load() == 1 })
	if s.Pending("ABCD") != 0 {
		t.Fatalf("fired timeout still pending")
	}
	if s.Fired() != 1 || s.Stale() != 0 {
		t.Fatalf("fired=%d stale=%d", s.Fired(), s.Stale())
	}
}

func TestSchedulerDiscardsStaleMarker(t *testing.T) {
	target := newFakeTarget()
	issued := game.Marker{Epoch: 1, Phase: "question", Round: 1, Step: 1}
	target.set("ABCD", game.Marker{Epoch: 1, Phase: "question", Round: 1, Step: 2})
	s := NewScheduler(target, nil)

	var ran atomic.Int32
	s.Schedule("ABCD", 0, issued, func() { ran.Add(1) })
	waitFor(t, "stale count", func() bool { return s.Stale() == 1 })
	if ran.Load() != 0 {
		t.Fatalf("stale callback ran")
	}
}

func TestSchedulerDropsCallbackForMissingRoom(t *testing.T) {
	s := NewScheduler(newFakeTarget(), nil)
	var ran atomic.Int32
	s.Schedule("GONE", 0, game.Marker{}, func() { ran.Add(1) })
	waitFor(t, "drop", func() bool { return s.Stale() == 1 })
	if ran.Load() != 0 {
		t.Fatalf("callback ran for a missing room")
	}
}

func TestSchedulerCancelAll(t *testing.T) {
	target := newFakeTarget()
	m := game.Marker{Epoch: 1, Phase: "vote", Round: 2}
	target.set("ABCD", m)
	target.set("WXYZ", m)
	s := NewScheduler(target, nil)

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		s.Schedule("ABCD", 30*time.Millisecond, m, func() { ran.Add(1) })
	}
	s.Schedule("WXYZ", 30*time.Millisecond, m, func() { ran.Add(100) })

	if got := s.Pending("ABCD"); got != 3 {
		t.Fatalf("expected 3 pending, got %d", got)
	}
	if n := s.CancelAll("ABCD"); n != 3 {
		t.Fatalf("CancelAll returned %d", n)
	}
	if s.Pending("ABCD") != 0 {
		t.Fatalf("timeouts left after CancelAll")
	}

	waitFor(t, "other room", func() bool { return ran.Load() == 100 })
	time.Sleep(50 * time.Millisecond)
	if ran.Load() != 100 {
		t.Fatalf("cancelled callbacks ran: %d", ran.Load())
	}
}

func TestSchedulerCancelOne(t *testing.T) {
	target := newFakeTarget()
	target.set("ABCD", game.Marker{})
	s := NewScheduler(target, nil)

	id := s.Schedule("ABCD", time.Hour, game.Marker{}, func() {})
	if !s.Cancel("ABCD", id) {
		t.Fatalf("Cancel reported false")
	}
	if s.Cancel("ABCD", id) {
		t.Fatalf("second Cancel reported true")
	}
	if s.Pending("ABCD") != 0 {
		t.Fatalf("timeout still pending")
	}
}
