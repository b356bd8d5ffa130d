package commentary

import (
	"sync"
	"time"

	"partyline/events"
)

const rateWindow = time.Minute

type LimiterConfig struct {
	MinInterval time.Duration
	PerMinute   int
	PerGame     int
}

func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MinInterval: 4 * time.Second,
		PerMinute:   8,
		PerGame:     60,
	}
}

type cooldownKey struct {
	persona string
	event   events.Type
}

// RateLimiter bounds commentary volume for one room.
type RateLimiter struct {
	mu        sync.Mutex
	cfg       LimiterConfig
	now       func() time.Time
	enabled   bool
	window    []time.Time
	gameCount int
	last      time.Time
	cooldowns map[cooldownKey]time.Time
}

func NewRateLimiter(cfg LimiterConfig, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		cfg:       cfg,
		now:       now,
		enabled:   true,
		cooldowns: make(map[cooldownKey]time.Time),
	}
}

// CanSpeak reports whether another utterance may be produced right now.
func (l *RateLimiter) CanSpeak() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return false
	}
	now := l.now()
	if !l.last.IsZero() && now.Sub(l.last) < l.cfg.MinInterval {
		return false
	}
	l.prune(now)
	if len(l.window) >= l.cfg.PerMinute {
		return false
	}
	return l.gameCount < l.cfg.PerGame
}

func (l *RateLimiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.window) && now.Sub(l.window[cut]) >= rateWindow {
		cut++
	}
	l.window = l.window[cut:]
}

func (l *RateLimiter) IsTriggerOnCooldown(personaID string, ev events.Type) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.cooldowns[cooldownKey{personaID, ev}]
	return ok && l.now().Before(until)
}

func (l *RateLimiter) RecordUtterance(personaID string, ev events.Type, cooldown time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.window = append(l.window, now)
	l.gameCount++
	l.last = now
	if cooldown > 0 {
		l.cooldowns[cooldownKey{personaID, ev}] = now.Add(cooldown)
	}
}

// ResetGame clears the per-game counter and cooldowns. The trailing minute
// window is kept.
func (l *RateLimiter) ResetGame() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gameCount = 0
	l.cooldowns = make(map[cooldownKey]time.Time)
}

func (l *RateLimiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

func (l *RateLimiter) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *RateLimiter) GameCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gameCount
}
