package events

import (
	"time"

	"partyline/game"
)

// Detector adds the idle clock to Detect. It is owned by one room and only
// used from that room's update path.
type Detector struct {
	cfg       Config
	now       func() time.Time
	lastReset time.Time
}

func NewDetector(cfg Config, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{cfg: cfg, now: now, lastReset: now()}
}

func (d *Detector) Detect(prev, cur *Frame) []Event {
	return Detect(d.cfg, prev, cur)
}

func (d *Detector) ResetIdleTimer() {
	d.lastReset = d.now()
}

// CheckIdle returns an idle event when the room sat in an active phase for
// longer than IdleAfter since the last reset. Firing restarts the clock.
func (d *Detector) CheckIdle(cur *Frame) *Event {
	if cur == nil || cur.State == nil || d.cfg.IdleAfter <= 0 {
		return nil
	}
	phase := game.PhaseOf(cur.State)
	if phase == game.PhaseLobby || isTerminal(cur.State) {
		return nil
	}
	now := d.now()
	if now.Sub(d.lastReset) < d.cfg.IdleAfter {
		return nil
	}
	d.lastReset = now
	ev := Event{Type: Idle, Context: baseContext(cur)}
	return &ev
}
