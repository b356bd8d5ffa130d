package events

import (
	"sort"
	"time"

	"partyline/game"
	"partyline/game/trivia"
	"partyline/game/wordvote"
)

type Config struct {
	IdleAfter        time.Duration
	StreakThresholds []int
	FastAnswer       time.Duration
}

func DefaultConfig() Config {
	return Config{
		IdleAfter:        30 * time.Second,
		StreakThresholds: []int{3, 5, 7},
		FastAnswer:       3 * time.Second,
	}
}

// Detect compares two frames and returns the events between them, in a
// stable order. It has no side effects.
func Detect(cfg Config, prev, cur *Frame) []Event {
	if cur == nil || cur.State == nil {
		return nil
	}
	var out []Event
	base := func(t Type) Event {
		return Event{Type: t, Context: baseContext(cur)}
	}

	curPhase := game.PhaseOf(cur.State)
	var prevPhase game.Phase
	if prev != nil {
		prevPhase = game.PhaseOf(prev.State)
	}

	if (prev == nil || prevPhase == game.PhaseLobby) && curPhase != game.PhaseLobby && curPhase != "" {
		out = append(out, base(GameStarted))
	}
	if prev != nil && prevPhase != curPhase {
		ev := base(PhaseChanged)
		ev.Context.PreviousPhase = prevPhase
		out = append(out, ev)
		if isTerminal(cur.State) {
			out = append(out, base(GameComplete))
		}
	}
	if prev != nil {
		out = append(out, rosterEvents(prev, cur, base)...)
	}

	switch s := cur.State.(type) {
	case *wordvote.State:
		p, _ := stateOf[*wordvote.State](prev)
		out = append(out, wordvoteEvents(s, p, prev, cur, base)...)
	case *trivia.State:
		p, _ := stateOf[*trivia.State](prev)
		out = append(out, triviaEvents(cfg, s, p, prev, cur, base)...)
	case *game.LobbyState:
	}
	return out
}

func stateOf[T game.State](f *Frame) (T, bool) {
	var zero T
	if f == nil {
		return zero, false
	}
	s, ok := f.State.(T)
	return s, ok
}

func baseContext(f *Frame) Context {
	h := f.State.Header()
	return Context{
		RoomCode:     h.RoomCode,
		GameType:     h.Type,
		Phase:        h.Phase,
		Round:        h.Round,
		PlayerNames:  f.names(),
		Scores:       f.scores(),
		RoundResults: f.byName(h.RoundResults),
	}
}

func isTerminal(s game.State) bool {
	switch st := s.(type) {
	case *wordvote.State:
		return st.IsFinal()
	case *trivia.State:
		return st.IsFinal()
	}
	return false
}

func rosterEvents(prev, cur *Frame, base func(Type) Event) []Event {
	var out []Event
	for _, p := range cur.Players {
		before, existed := prev.player(p.ID)
		if p.Connected && (!existed || !before.Connected) {
			ev := base(PlayerJoined)
			ev.Context.PlayerID = p.ID
			ev.Context.PlayerName = p.Name
			out = append(out, ev)
		}
	}
	for _, p := range prev.Players {
		if !p.Connected {
			continue
		}
		after, exists := cur.player(p.ID)
		if !exists || !after.Connected {
			ev := base(PlayerLeft)
			ev.Context.PlayerID = p.ID
			ev.Context.PlayerName = p.Name
			out = append(out, ev)
		}
	}
	return out
}

func wordvoteEvents(s, p *wordvote.State, prev, cur *Frame, base func(Type) Event) []Event {
	var out []Event
	sameRound := p != nil && p.Round == s.Round
	var prevSubs, prevVotes int
	if sameRound {
		prevSubs, prevVotes = len(p.Submissions), len(p.Votes)
	}
	if len(s.Submissions) > prevSubs {
		for _, sub := range s.Submissions[prevSubs:] {
			ev := base(SubmissionReceived)
			ev.Context.PlayerID = sub.PlayerID
			ev.Context.PlayerName = cur.name(sub.PlayerID)
			ev.Context.Text = sub.Text
			ev.Context.Prompt = sub.Prompt
			out = append(out, ev)
		}
		if s.Phase == wordvote.PhaseVote {
			out = append(out, base(AllSubmitted))
		}
	}
	if len(s.Votes) > prevVotes {
		for _, v := range s.Votes[prevVotes:] {
			ev := base(VoteReceived)
			ev.Context.PlayerID = v.VoterID
			ev.Context.PlayerName = cur.name(v.VoterID)
			ev.Context.TargetID = v.TargetID
			out = append(out, ev)
		}
		if s.Phase == wordvote.PhaseResults {
			out = append(out, base(AllVoted))
		}
	}
	if p != nil && p.Phase == wordvote.PhaseVote && s.Phase == wordvote.PhaseResults && len(s.RoundResults) > 0 {
		out = append(out, base(RoundComplete))
	}
	return out
}

func triviaEvents(cfg Config, s, p *trivia.State, prev, cur *Frame, base func(Type) Event) []Event {
	var out []Event
	entered := func(ph game.Phase) bool {
		return s.Phase == ph && (p == nil || p.Phase != ph || p.Step != s.Step || p.Round != s.Round)
	}
	if entered(trivia.PhaseCategoryAnnounce) {
		ev := base(CategoryAnnounced)
		ev.Context.Category = s.Category
		out = append(out, ev)
	}
	if entered(trivia.PhaseQuestion) && s.Current != nil {
		ev := base(QuestionDisplayed)
		ev.Context.Category = s.Current.Category
		ev.Context.Question = s.Current.Text
		out = append(out, ev)
	}
	if entered(trivia.PhaseAnswerReveal) && s.Current != nil {
		ev := base(AnswerRevealed)
		ev.Context.Question = s.Current.Text
		ev.Context.Answer = s.Current.CorrectAnswer
		for _, id := range s.CorrectPlayers {
			ev.Context.CorrectPlayers = append(ev.Context.CorrectPlayers, cur.name(id))
		}
		out = append(out, ev)
	}

	sameQuestion := p != nil && p.Round == s.Round && p.Step == s.Step
	ids := make([]string, 0, len(s.Answers))
	for id := range s.Answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := s.Answers[id]
		var before trivia.Answer
		var had bool
		if sameQuestion {
			before, had = p.Answers[id]
		}
		if !had {
			ev := base(SubmissionReceived)
			ev.Context.PlayerID = id
			ev.Context.PlayerName = cur.name(id)
			ev.Context.Text = a.Text
			ev.Context.ElapsedMs = a.Elapsed.Milliseconds()
			out = append(out, ev)
		}
		newlyCorrect := a.Judged && a.IsCorrect && (!had || !before.Judged)
		if newlyCorrect && cfg.FastAnswer > 0 && a.Elapsed < cfg.FastAnswer {
			ev := base(FastAnswer)
			ev.Context.PlayerID = id
			ev.Context.PlayerName = cur.name(id)
			ev.Context.ElapsedMs = a.Elapsed.Milliseconds()
			out = append(out, ev)
		}
	}

	streakIDs := make([]string, 0, len(s.Streaks))
	for id := range s.Streaks {
		streakIDs = append(streakIDs, id)
	}
	sort.Strings(streakIDs)
	for _, id := range streakIDs {
		now := s.Streaks[id].Current
		was := 0
		if p != nil {
			was = p.Streaks[id].Current
		}
		for _, th := range cfg.StreakThresholds {
			if was < th && now >= th {
				ev := base(HotStreak)
				ev.Context.PlayerID = id
				ev.Context.PlayerName = cur.name(id)
				ev.Context.Streak = th
				out = append(out, ev)
			}
		}
	}
	return out
}
