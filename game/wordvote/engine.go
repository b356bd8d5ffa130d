package wordvote

import (
	"strings"
	"time"

	"partyline/game"
)

type engine struct {
	cfg Config
}

// NewContract builds the word-prompt voting contract.
func NewContract(cfg Config) (*game.Contract, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &engine{cfg: cfg}
	return &game.Contract{
		Type:   Type,
		Phases: []game.Phase{PhaseLobby, PhaseSubmit, PhaseVote, PhaseResults},
		Transitions: map[game.Phase][]game.Phase{
			PhaseLobby:   {PhaseSubmit},
			PhaseSubmit:  {PhaseVote, PhaseLobby},
			PhaseVote:    {PhaseResults, PhaseLobby},
			PhaseResults: {PhaseSubmit, PhaseLobby},
		},
		Initialize: e.initialize,
		Submit:     e.submit,
		Vote:       e.vote,
		NextRound:  e.nextRound,
		Custom: map[string]game.Handler{
			EventCloseSubmissions:   e.closeSubmissions,
			EventCloseVoting:        e.closeVoting,
			game.EventRosterChanged: e.rosterChanged,
		},
		ResetToLobby: e.resetToLobby,
	}, nil
}

func (e *engine) initialize(code string, players *game.Roster, opts game.Options) game.Result {
	maxRounds := e.cfg.MaxRounds
	if opts.Rounds > 0 {
		maxRounds = opts.Rounds
	}
	seed := opts.Seed
	if seed == 0 {
		seed = opts.At.UnixNano()
	}
	s := &State{
		Base: game.Base{
			RoomCode: code,
			Type:     Type,
			Phase:    PhaseLobby,
			Players:  players,
		},
		MaxRounds:     maxRounds,
		PointsPerVote: e.cfg.PointsPerVote,
		Seed:          seed,
	}
	return e.startRound(s, 1, opts.At)
}

func (e *engine) startRound(s *State, round int, at time.Time) game.Result {
	next := s.clone()
	next.Round = round
	next.Step = 0
	next.Phase = PhaseSubmit
	next.Submissions = nil
	next.Votes = nil
	next.RoundResults = nil
	next.Finished = false
	next.Prompts = dealPrompts(next, e.cfg.Prompts)
	return e.withTimer(next, at, e.cfg.SubmitTime, EventCloseSubmissions)
}

func (e *engine) withTimer(s *State, at time.Time, d time.Duration, event string) game.Result {
	if d <= 0 {
		s.Deadline = time.Time{}
		return game.Result{State: s}
	}
	s.Deadline = at.Add(d)
	return game.Result{State: s, Effects: []game.Effect{game.Schedule{Delay: d, Event: event}}}
}

func asState(s game.State) (*State, bool) {
	ws, ok := s.(*State)
	return ws, ok && ws != nil
}

func (e *engine) submit(gs game.State, actor *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || actor == nil || s.Phase != PhaseSubmit {
		return game.Unchanged(gs)
	}
	prompt, dealt := s.Prompts[actor.ID]
	if !dealt {
		return game.Unchanged(gs)
	}
	if _, dup := s.SubmissionBy(actor.ID); dup {
		return game.Unchanged(gs)
	}
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return game.Unchanged(gs)
	}
	next := s.clone()
	next.Submissions = append(next.Submissions, Submission{PlayerID: actor.ID, Prompt: prompt, Text: text})
	if len(next.Submissions) >= next.ExpectedSubmissions() {
		return e.openVoting(next, a.At)
	}
	return game.Result{State: next}
}

func (e *engine) openVoting(s *State, at time.Time) game.Result {
	s.Phase = PhaseVote
	s.Votes = nil
	return e.withTimer(s, at, e.cfg.VoteTime, EventCloseVoting)
}

func (e *engine) vote(gs game.State, actor *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || actor == nil || s.Phase != PhaseVote {
		return game.Unchanged(gs)
	}
	if a.TargetID == actor.ID || s.HasVoted(actor.ID) {
		return game.Unchanged(gs)
	}
	if _, exists := s.SubmissionBy(a.TargetID); !exists {
		return game.Unchanged(gs)
	}
	next := s.clone()
	next.Votes = append(next.Votes, Vote{VoterID: actor.ID, TargetID: a.TargetID})
	if len(next.Votes) >= next.ExpectedVotes() {
		return e.tally(next)
	}
	return game.Result{State: next}
}

// tally moves s to results and returns the score deltas for the round.
func (e *engine) tally(s *State) game.Result {
	deltas := make(map[string]int)
	for _, v := range s.Votes {
		deltas[v.TargetID] += s.PointsPerVote
	}
	s.Phase = PhaseResults
	s.Deadline = time.Time{}
	s.RoundResults = deltas
	s.Finished = s.Round >= s.MaxRounds
	res := game.Result{State: s}
	if len(deltas) > 0 {
		res.Effects = []game.Effect{game.ScoreDeltas{Deltas: game.CopyResults(deltas)}}
	}
	return res
}

func (e *engine) nextRound(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || s.Phase != PhaseResults {
		return game.Unchanged(gs)
	}
	if s.Round >= s.MaxRounds {
		if s.Finished {
			return game.Unchanged(gs)
		}
		next := s.clone()
		next.Finished = true
		return game.Result{State: next}
	}
	return e.startRound(s, s.Round+1, a.At)
}

func (e *engine) closeSubmissions(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || s.Phase != PhaseSubmit {
		return game.Unchanged(gs)
	}
	return e.openVoting(s.clone(), a.At)
}

func (e *engine) closeVoting(gs game.State, _ *game.Player, _ game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || s.Phase != PhaseVote {
		return game.Unchanged(gs)
	}
	return e.tally(s.clone())
}

// rosterChanged re-checks quorum after players join or drop.
func (e *engine) rosterChanged(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok {
		return game.Unchanged(gs)
	}
	switch s.Phase {
	case PhaseSubmit:
		if len(s.Submissions) > 0 && len(s.Submissions) >= s.ExpectedSubmissions() {
			return e.openVoting(s.clone(), a.At)
		}
	case PhaseVote:
		if len(s.Votes) > 0 && len(s.Votes) >= s.ExpectedVotes() {
			return e.tally(s.clone())
		}
	}
	return game.Unchanged(gs)
}

func (e *engine) resetToLobby(gs game.State) game.State {
	s, ok := asState(gs)
	if !ok {
		return gs
	}
	next := s.clone()
	next.Phase = PhaseLobby
	next.Round = 0
	next.Step = 0
	next.Deadline = time.Time{}
	next.RoundResults = nil
	next.Prompts = map[string]string{}
	next.Submissions = nil
	next.Votes = nil
	next.Finished = false
	return next
}
