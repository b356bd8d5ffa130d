package trivia

import (
	"strings"
	"time"

	"partyline/game"
)

type engine struct {
	cfg Config
}

// NewContract builds the timed trivia contract.
func NewContract(cfg Config) (*game.Contract, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &engine{cfg: cfg}
	return &game.Contract{
		Type: Type,
		Phases: []game.Phase{
			PhaseLobby, PhaseCategoryAnnounce, PhaseQuestion, PhaseAnswerReveal,
			PhaseLeaderboard, PhaseRoundResults, PhaseGameResults,
		},
		Transitions: map[game.Phase][]game.Phase{
			PhaseLobby:            {PhaseCategoryAnnounce},
			PhaseCategoryAnnounce: {PhaseQuestion, PhaseLobby},
			PhaseQuestion:         {PhaseAnswerReveal, PhaseLobby},
			PhaseAnswerReveal:     {PhaseLeaderboard, PhaseLobby},
			PhaseLeaderboard:      {PhaseQuestion, PhaseRoundResults, PhaseLobby},
			PhaseRoundResults:     {PhaseCategoryAnnounce, PhaseGameResults, PhaseLobby},
			PhaseGameResults:      {PhaseLobby},
		},
		Initialize: e.initialize,
		Submit:     e.answer,
		NextRound:  e.advance,
		Custom: map[string]game.Handler{
			EventAnswer:             e.answer,
			EventQuestionsLoaded:    e.questionsLoaded,
			EventBeginQuestion:      e.beginQuestion,
			EventJudged:             e.judged,
			EventReveal:             e.reveal,
			EventLeaderboard:        e.leaderboard,
			EventAdvance:            e.advance,
			game.EventRosterChanged: e.rosterChanged,
		},
		ClientEvents: []string{EventAnswer},
		ResetToLobby: e.resetToLobby,
	}, nil
}

func asState(s game.State) (*State, bool) {
	ts, ok := s.(*State)
	return ts, ok && ts != nil
}

func (e *engine) initialize(code string, players *game.Roster, opts game.Options) game.Result {
	s := &State{
		Base: game.Base{
			RoomCode: code,
			Type:     Type,
			Phase:    PhaseLobby,
			Players:  players,
		},
		MaxRounds:         e.cfg.MaxRounds,
		QuestionsPerRound: e.cfg.QuestionsPerRound,
		Category:          e.cfg.Category,
		Difficulty:        e.cfg.Difficulty,
		Answers:           map[string]Answer{},
		Streaks:           map[string]Streak{},
		RoundCorrect:      map[string]int{},
	}
	if opts.Rounds > 0 {
		s.MaxRounds = opts.Rounds
	}
	if c := strings.TrimSpace(opts.Category); c != "" {
		s.Category = c
	}
	if d := strings.TrimSpace(opts.Difficulty); d != "" {
		s.Difficulty = d
	}
	return e.announceRound(s, 1)
}

func (e *engine) announceRound(s *State, round int) game.Result {
	next := s.clone()
	next.Round = round
	next.Step = 0
	next.Phase = PhaseCategoryAnnounce
	next.Deadline = time.Time{}
	next.AwaitingQuestions = true
	next.Queue = nil
	next.Current = nil
	next.Answers = map[string]Answer{}
	next.CorrectPlayers = nil
	next.RoundCorrect = map[string]int{}
	next.RoundResults = nil
	return game.Result{
		State: next,
		Effects: []game.Effect{game.RequestQuestions{
			Category:   next.Category,
			Difficulty: next.Difficulty,
			Count:      next.QuestionsPerRound,
			Round:      round,
			Reply:      EventQuestionsLoaded,
		}},
	}
}

func (e *engine) normalizeQuestion(q Question, s *State) Question {
	if q.TimeLimit <= 0 {
		q.TimeLimit = e.cfg.DefaultTimeLimit
	}
	if q.PointValue <= 0 {
		q.PointValue = e.cfg.DefaultPoints
	}
	if q.Type == "" {
		q.Type = FreeText
		if len(q.Options) > 0 {
			q.Type = MultipleChoice
		}
	}
	if q.Category == "" {
		q.Category = s.Category
	}
	if q.Difficulty == "" {
		q.Difficulty = s.Difficulty
	}
	q.Options = append([]string(nil), q.Options...)
	q.AcceptableAnswers = append([]string(nil), q.AcceptableAnswers...)
	return q
}

func (e *engine) questionsLoaded(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || s.Phase != PhaseCategoryAnnounce || !s.AwaitingQuestions {
		return game.Unchanged(gs)
	}
	batch, ok := a.Data.(QuestionBatch)
	if !ok || batch.Round != s.Round || len(batch.Questions) == 0 {
		return game.Unchanged(gs)
	}
	next := s.clone()
	next.AwaitingQuestions = false
	next.Queue = make([]Question, 0, len(batch.Questions))
	for _, q := range batch.Questions {
		if strings.TrimSpace(q.Text) == "" || strings.TrimSpace(q.CorrectAnswer) == "" {
			continue
		}
		next.Queue = append(next.Queue, e.normalizeQuestion(q, next))
	}
	if len(next.Queue) == 0 {
		return game.Unchanged(gs)
	}
	next.Deadline = a.At.Add(e.cfg.CategoryDwell)
	return game.Result{
		State:   next,
		Effects: []game.Effect{game.Schedule{Delay: e.cfg.CategoryDwell, Event: EventBeginQuestion}},
	}
}

func (e *engine) beginQuestion(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || s.Phase != PhaseCategoryAnnounce || s.AwaitingQuestions {
		return game.Unchanged(gs)
	}
	return e.nextQuestion(s, a.At)
}

// nextQuestion pops the queue head and opens it for answers.
func (e *engine) nextQuestion(s *State, at time.Time) game.Result {
	if len(s.Queue) == 0 {
		return game.Unchanged(s)
	}
	next := s.clone()
	q := next.Queue[0]
	next.Queue = next.Queue[1:]
	next.Current = &q
	next.Step++
	next.Phase = PhaseQuestion
	next.QuestionStartedAt = at
	next.Answers = map[string]Answer{}
	next.CorrectPlayers = nil
	next.Deadline = at.Add(q.TimeLimit)
	return game.Result{
		State:   next,
		Effects: []game.Effect{game.Schedule{Delay: q.TimeLimit, Event: EventReveal}},
	}
}

func (e *engine) answer(gs game.State, actor *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || actor == nil || s.Phase != PhaseQuestion || s.Current == nil {
		return game.Unchanged(gs)
	}
	if _, dup := s.Answers[actor.ID]; dup {
		return game.Unchanged(gs)
	}
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return game.Unchanged(gs)
	}
	elapsed := a.At.Sub(s.QuestionStartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	next := s.clone()
	next.Answers[actor.ID] = Answer{PlayerID: actor.ID, Text: text, SubmittedAt: a.At, Elapsed: elapsed}

	res := game.Result{State: next}
	if next.Current.Type == MultipleChoice {
		res.Effects = e.judge(next, actor.ID, matchesChoice(next.Current, text), 1)
	} else {
		res.Effects = []game.Effect{game.JudgeAnswer{
			PlayerID:      actor.ID,
			Round:         next.Round,
			Step:          next.Step,
			Question:      next.Current.Text,
			CorrectAnswer: next.Current.CorrectAnswer,
			Answer:        text,
			Acceptable:    append([]string(nil), next.Current.AcceptableAnswers...),
			Reply:         EventJudged,
		}}
	}
	if AllPlayersAnswered(next) && next.pendingJudgments() == 0 {
		return res.Then(e.revealNow(next, a.At))
	}
	return res
}

// judge records a verdict on s in place and returns the score effect.
// s must already be a private copy.
func (e *engine) judge(s *State, playerID string, correct bool, confidence float64) []game.Effect {
	ans, ok := s.Answers[playerID]
	if !ok || ans.Judged {
		return nil
	}
	ans.Judged = true
	ans.IsCorrect = correct
	ans.Confidence = confidence
	streak := s.Streaks[playerID]
	if correct {
		ans.Points = CalculatePoints(s.Current.PointValue, e.cfg.MaxSpeedBonus, ans.Elapsed, s.Current.TimeLimit, streak.Current, e.cfg.StreakCap)
		streak.Current++
		if streak.Current > streak.Longest {
			streak.Longest = streak.Current
		}
		s.RoundCorrect[playerID]++
	} else {
		streak.Current = 0
	}
	s.Streaks[playerID] = streak
	s.Answers[playerID] = ans
	if s.Phase == PhaseAnswerReveal || s.Phase == PhaseLeaderboard {
		s.CorrectPlayers = s.correctPlayers()
	}
	if ans.Points <= 0 {
		return nil
	}
	return []game.Effect{game.ScoreDeltas{Deltas: map[string]int{playerID: ans.Points}}}
}

// judged merges an asynchronous verdict by player id. Verdicts for another
// question are dropped.
func (e *engine) judged(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || s.Current == nil {
		return game.Unchanged(gs)
	}
	j, ok := a.Data.(Judgment)
	if !ok || j.Round != s.Round || j.Step != s.Step {
		return game.Unchanged(gs)
	}
	switch s.Phase {
	case PhaseQuestion, PhaseAnswerReveal, PhaseLeaderboard:
	default:
		return game.Unchanged(gs)
	}
	if ans, exists := s.Answers[j.PlayerID]; !exists || ans.Judged {
		return game.Unchanged(gs)
	}
	next := s.clone()
	res := game.Result{State: next, Effects: e.judge(next, j.PlayerID, j.IsCorrect, j.Confidence)}
	if next.Phase == PhaseQuestion && AllPlayersAnswered(next) && next.pendingJudgments() == 0 {
		return res.Then(e.revealNow(next, a.At))
	}
	return res
}

func (e *engine) reveal(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || s.Phase != PhaseQuestion {
		return game.Unchanged(gs)
	}
	return e.revealNow(s, a.At)
}

func (e *engine) revealNow(s *State, at time.Time) game.Result {
	next := s.clone()
	next.Phase = PhaseAnswerReveal
	for _, p := range next.Players.Connected() {
		if _, answered := next.Answers[p.ID]; !answered {
			st := next.Streaks[p.ID]
			st.Current = 0
			next.Streaks[p.ID] = st
		}
	}
	next.CorrectPlayers = next.correctPlayers()
	next.Deadline = at.Add(e.cfg.RevealDwell)
	return game.Result{
		State:   next,
		Effects: []game.Effect{game.Schedule{Delay: e.cfg.RevealDwell, Event: EventLeaderboard}},
	}
}

func (e *engine) leaderboard(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || s.Phase != PhaseAnswerReveal {
		return game.Unchanged(gs)
	}
	next := s.clone()
	next.Phase = PhaseLeaderboard
	next.Deadline = a.At.Add(e.cfg.LeaderboardDwell)
	return game.Result{
		State:   next,
		Effects: []game.Effect{game.Schedule{Delay: e.cfg.LeaderboardDwell, Event: EventAdvance}},
	}
}

func (e *engine) advance(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok {
		return game.Unchanged(gs)
	}
	switch s.Phase {
	case PhaseLeaderboard:
		if len(s.Queue) > 0 {
			return e.nextQuestion(s, a.At)
		}
		next := s.clone()
		next.Phase = PhaseRoundResults
		next.Current = nil
		next.RoundResults = make(map[string]int, next.Players.Len())
		for _, p := range next.Players.All() {
			next.RoundResults[p.ID] = next.RoundCorrect[p.ID]
		}
		next.Deadline = a.At.Add(e.cfg.RoundResultsDwell)
		return game.Result{
			State:   next,
			Effects: []game.Effect{game.Schedule{Delay: e.cfg.RoundResultsDwell, Event: EventAdvance}},
		}
	case PhaseRoundResults:
		if s.Round >= s.MaxRounds {
			next := s.clone()
			next.Phase = PhaseGameResults
			next.Deadline = time.Time{}
			return game.Result{State: next}
		}
		return e.announceRound(s, s.Round+1)
	}
	return game.Unchanged(gs)
}

func (e *engine) rosterChanged(gs game.State, _ *game.Player, a game.Action) game.Result {
	s, ok := asState(gs)
	if !ok || s.Phase != PhaseQuestion {
		return game.Unchanged(gs)
	}
	if len(s.Answers) > 0 && AllPlayersAnswered(s) && s.pendingJudgments() == 0 {
		return e.revealNow(s, a.At)
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
	next.AwaitingQuestions = false
	next.Queue = nil
	next.Current = nil
	next.Answers = map[string]Answer{}
	next.Streaks = map[string]Streak{}
	next.RoundCorrect = map[string]int{}
	next.CorrectPlayers = nil
	return next
}
