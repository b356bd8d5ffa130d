package room

import (
	"context"
	"errors"
	"log"

	"partyline/game"
	"partyline/game/trivia"
)

// interpret performs one effect returned by a game handler. It runs on the
// actor; collaborator calls are started in their own goroutines and come back
// as internal events tagged with the current epoch.
func (r *Room) interpret(eff game.Effect, marker game.Marker) {
	switch e := eff.(type) {
	case game.ScoreDeltas:
		r.roster.ApplyDeltas(e.Deltas)
	case game.Schedule:
		r.schedule(e, marker)
	case game.RequestQuestions:
		r.requestQuestions(e)
	case game.JudgeAnswer:
		r.judgeAnswer(e)
	default:
		log.Printf("[Room %s] unknown effect %T", r.Code, eff)
	}
}

func (r *Room) schedule(e game.Schedule, marker game.Marker) {
	if r.deps.Scheduler == nil {
		log.Printf("[Room %s] no scheduler, dropping %s", r.Code, e.Event)
		return
	}
	gameType := r.gameType
	r.deps.Scheduler.Schedule(r.Code, e.Delay, marker, func() {
		// Runs inside an Exec event, so the actor already holds the lock.
		r.apply(r.deps.Games.Dispatch(gameType, e.Event, r.state, nil, game.Action{At: r.deps.Now()}))
	})
}

func (r *Room) requestQuestions(e game.RequestQuestions) {
	src := r.deps.Questions
	if src == nil {
		log.Printf("[Room %s] no question source, round %d stalls", r.Code, e.Round)
		return
	}
	epoch := r.epoch
	timeout := r.deps.CallTimeout
	r.async.Add(1)
	go func() {
		defer r.async.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		qs, err := src.Questions(ctx, QuestionRequest{Category: e.Category, Difficulty: e.Difficulty, Count: e.Count})
		if err != nil {
			log.Printf("[Room %s] content generation failed, round %d stalls: %v", r.Code, e.Round, err)
			return
		}
		if len(qs) == 0 {
			log.Printf("[Room %s] content generation returned no questions, round %d stalls", r.Code, e.Round)
			return
		}
		r.reenter(Event{
			Type:   EventInternal,
			Name:   e.Reply,
			Epoch:  epoch,
			Action: game.Action{Data: trivia.QuestionBatch{Round: e.Round, Questions: qs}},
		})
	}()
}

func (r *Room) judgeAnswer(e game.JudgeAnswer) {
	arbiter := r.deps.Arbiter
	epoch := r.epoch
	timeout := r.deps.CallTimeout
	r.async.Add(1)
	go func() {
		defer r.async.Done()
		var verdict Verdict
		if arbiter == nil {
			log.Printf("[Room %s] no arbiter, %s judged incorrect", r.Code, e.PlayerID)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			v, err := arbiter.Judge(ctx, JudgeRequest{
				Question:      e.Question,
				CorrectAnswer: e.CorrectAnswer,
				Answer:        e.Answer,
				Acceptable:    e.Acceptable,
			})
			cancel()
			if err != nil {
				log.Printf("[Room %s] judge failed for %s, treating as incorrect: %v", r.Code, e.PlayerID, err)
			} else {
				verdict = v
			}
		}
		r.reenter(Event{
			Type:  EventInternal,
			Name:  e.Reply,
			Epoch: epoch,
			Action: game.Action{Data: trivia.Judgment{
				PlayerID:   e.PlayerID,
				Round:      e.Round,
				Step:       e.Step,
				IsCorrect:  verdict.IsCorrect,
				Confidence: verdict.Confidence,
			}},
		})
	}()
}

func (r *Room) reenter(e Event) {
	if _, err := r.SubmitEvent(e); err != nil && !errors.Is(err, ErrRoomClosed) {
		log.Printf("[Room %s] %s re-entry failed: %v", r.Code, e.Name, err)
	}
}
