package game

import "time"

// Effect describes a side effect requested by a rule handler. Handlers never
// perform side effects themselves; the owning room interprets the returned
// effects after adopting the new state.
type Effect interface {
	isEffect()
}

// ScoreDeltas adds points to canonical player records, keyed by player id.
type ScoreDeltas struct {
	Deltas map[string]int
}

// Schedule dispatches Event to the same game after Delay, unless the room
// has left the state the effect was returned with.
type Schedule struct {
	Delay time.Duration
	Event string
}

// RequestQuestions asks the content collaborator for a batch of questions.
// The batch is delivered back as the Reply event.
type RequestQuestions struct {
	Category   string
	Difficulty string
	Count      int
	Round      int
	Reply      string
}

// JudgeAnswer asks the arbiter to judge one free-text answer. The verdict is
// delivered back as the Reply event.
type JudgeAnswer struct {
	PlayerID      string
	Round         int
	Step          int
	Question      string
	CorrectAnswer string
	Answer        string
	Acceptable    []string
	Reply         string
}

func (ScoreDeltas) isEffect()      {}
func (Schedule) isEffect()         {}
func (RequestQuestions) isEffect() {}
func (JudgeAnswer) isEffect()      {}
