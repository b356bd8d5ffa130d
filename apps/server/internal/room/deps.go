package room

import (
	"context"
	"time"

	"partyline/apps/server/internal/codec"
	"partyline/apps/server/internal/ledger"
	"partyline/events"
	"partyline/game"
	"partyline/game/trivia"
)

const (
	defaultTickInterval  = time.Second
	defaultCallTimeout   = 15 * time.Second
	defaultLedgerTimeout = 3 * time.Second
	defaultMaxNameLength = 24
)

type QuestionRequest struct {
	Category   string
	Difficulty string
	Count      int
}

// QuestionSource produces trivia questions for one round.
type QuestionSource interface {
	Questions(ctx context.Context, req QuestionRequest) ([]trivia.Question, error)
}

type JudgeRequest struct {
	Question      string
	CorrectAnswer string
	Answer        string
	Acceptable    []string
}

type Verdict struct {
	IsCorrect  bool
	Confidence float64
}

// Arbiter judges free-text answers.
type Arbiter interface {
	Judge(ctx context.Context, req JudgeRequest) (Verdict, error)
}

// Commentator turns detected events into narrated lines. Lines come back to
// the room as speak events.
type Commentator interface {
	Comment(roomCode string, evs []events.Event)
	ResetGame(roomCode string)
	SetEnabled(roomCode string, enabled bool)
}

// SendFunc delivers one envelope to one transport session. It must not block.
type SendFunc func(sessionID string, env *codec.Envelope)

// Deps are shared by every room of a registry.
type Deps struct {
	Games      *game.Registry
	Scheduler  *Scheduler
	Questions  QuestionSource
	Arbiter    Arbiter
	Ledger     ledger.Service
	Commentary Commentator
	Send       SendFunc
	Detector   events.Config
	Now        func() time.Time

	MaxNameLength int
	CallTimeout   time.Duration
	TickInterval  time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Ledger == nil {
		d.Ledger = ledger.NewNoop()
	}
	if d.Commentary == nil {
		d.Commentary = noopCommentator{}
	}
	if d.MaxNameLength <= 0 {
		d.MaxNameLength = defaultMaxNameLength
	}
	if d.CallTimeout <= 0 {
		d.CallTimeout = defaultCallTimeout
	}
	if d.TickInterval <= 0 {
		d.TickInterval = defaultTickInterval
	}
	if d.Detector.IdleAfter == 0 && d.Detector.FastAnswer == 0 && len(d.Detector.StreakThresholds) == 0 {
		d.Detector = events.DefaultConfig()
	}
	return d
}

type noopCommentator struct{}

func (noopCommentator) Comment(string, []events.Event) {}
func (noopCommentator) ResetGame(string)               {}
func (noopCommentator) SetEnabled(string, bool)        {}
