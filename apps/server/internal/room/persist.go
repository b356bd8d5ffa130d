package room

import (
	"context"
	"log"

	"partyline/apps/server/internal/ledger"
	"partyline/game"
	"partyline/game/trivia"
	"partyline/game/wordvote"
)

// persist writes what changed between prev and cur to the ledger. Writes
// are fire-and-forget.
func (r *Room) persist(prev, cur game.State) {
	if ws, ok := cur.(*wordvote.State); ok {
		pws, _ := prev.(*wordvote.State)
		r.persistWordVote(pws, ws)
	}
	if roundEnded(prev, cur) {
		h := cur.Header()
		rec := ledger.RoundRecord{
			RoomCode:    r.Code,
			GameType:    string(h.Type),
			Round:       h.Round,
			Results:     game.CopyResults(h.RoundResults),
			Scores:      make(map[string]int),
			CompletedAt: r.deps.Now(),
		}
		for _, p := range r.roster.All() {
			rec.Scores[p.Name] = p.Score
		}
		r.writeBehind("round", func(ctx context.Context) error {
			return r.deps.Ledger.RecordRound(ctx, rec)
		})
	}
}

func (r *Room) persistWordVote(prev, cur *wordvote.State) {
	subFrom, voteFrom := 0, 0
	if prev != nil && prev.Round == cur.Round {
		if len(prev.Submissions) <= len(cur.Submissions) {
			subFrom = len(prev.Submissions)
		}
		if len(prev.Votes) <= len(cur.Votes) {
			voteFrom = len(prev.Votes)
		}
	}
	now := r.deps.Now()
	for _, sub := range cur.Submissions[subFrom:] {
		rec := ledger.SubmissionRecord{
			RoomCode: r.Code,
			Round:    cur.Round,
			PlayerID: sub.PlayerID,
			Prompt:   sub.Prompt,
			Text:     sub.Text,
			At:       now,
		}
		if p := r.roster.ByID(sub.PlayerID); p != nil {
			rec.PlayerName = p.Name
		}
		r.writeBehind("submission", func(ctx context.Context) error {
			return r.deps.Ledger.RecordSubmission(ctx, rec)
		})
	}
	for _, v := range cur.Votes[voteFrom:] {
		rec := ledger.VoteRecord{RoomCode: r.Code, Round: cur.Round, VoterID: v.VoterID, TargetID: v.TargetID, At: now}
		r.writeBehind("vote", func(ctx context.Context) error {
			return r.deps.Ledger.RecordVote(ctx, rec)
		})
	}
}

func roundEnded(prev, cur game.State) bool {
	from, to := game.PhaseOf(prev), game.PhaseOf(cur)
	if from == to {
		return false
	}
	switch cur.(type) {
	case *wordvote.State:
		return to == wordvote.PhaseResults
	case *trivia.State:
		return to == trivia.PhaseRoundResults
	}
	return false
}

func (r *Room) writeBehind(what string, fn func(ctx context.Context) error) {
	r.async.Add(1)
	go func() {
		defer r.async.Done()
		ctx, cancel := context.WithTimeout(context.Background(), defaultLedgerTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("[Room %s] ledger %s write failed: %v", r.Code, what, err)
		}
	}()
}
