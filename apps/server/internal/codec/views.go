package codec

import (
	"sort"
	"time"

	"partyline/game"
	"partyline/game/trivia"
	"partyline/game/wordvote"
)

type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// StateView is the full-state payload sent to players and displays.
type StateView struct {
	RoomCode        string         `json:"roomCode"`
	GameType        string         `json:"gameType,omitempty"`
	Phase           string         `json:"phase"`
	Round           int            `json:"round"`
	Step            int            `json:"step,omitempty"`
	Players         []PlayerView   `json:"players"`
	RoundResults    map[string]int `json:"roundResults,omitempty"`
	TimeRemainingMs int64          `json:"timeRemainingMs,omitempty"`
	Commentary      bool           `json:"commentary"`

	WordVote *WordVoteView `json:"wordvote,omitempty"`
	Trivia   *TriviaView   `json:"trivia,omitempty"`
}

type SubmissionView struct {
	PlayerID string `json:"playerId"`
	Prompt   string `json:"prompt,omitempty"`
	Text     string `json:"text,omitempty"`
	Votes    int    `json:"votes,omitempty"`
}

type WordVoteView struct {
	MaxRounds   int               `json:"maxRounds"`
	Prompts     map[string]string `json:"prompts,omitempty"`
	Submissions []SubmissionView  `json:"submissions"`
	Voted       []string          `json:"voted"`
	Finished    bool              `json:"finished"`
}

type QuestionView struct {
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Options       []string `json:"options,omitempty"`
	TimeLimitMs   int64    `json:"timeLimitMs"`
	PointValue    int      `json:"pointValue"`
	Category      string   `json:"category,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

type AnswerView struct {
	PlayerID  string `json:"playerId"`
	Text      string `json:"text,omitempty"`
	Judged    bool   `json:"judged"`
	IsCorrect bool   `json:"isCorrect"`
	Points    int    `json:"points"`
	ElapsedMs int64  `json:"elapsedMs"`
}

type TriviaView struct {
	MaxRounds         int            `json:"maxRounds"`
	QuestionsPerRound int            `json:"questionsPerRound"`
	Category          string         `json:"category"`
	Difficulty        string         `json:"difficulty"`
	AwaitingQuestions bool           `json:"awaitingQuestions"`
	Remaining         int            `json:"remaining"`
	Question          *QuestionView  `json:"question,omitempty"`
	Answered          []string       `json:"answered"`
	Answers           []AnswerView   `json:"answers,omitempty"`
	CorrectPlayers    []string       `json:"correctPlayers,omitempty"`
	Streaks           map[string]int `json:"streaks,omitempty"`
}

// BuildStateView renders s for clients. Answers and correct answers stay
// hidden while they could still help someone.
func BuildStateView(s game.State, now time.Time, commentary bool) StateView {
	h := s.Header()
	v := StateView{
		RoomCode:        h.RoomCode,
		GameType:        string(h.Type),
		Phase:           string(h.Phase),
		Round:           h.Round,
		Step:            h.Step,
		RoundResults:    game.CopyResults(h.RoundResults),
		TimeRemainingMs: game.TimeRemaining(s, now).Milliseconds(),
		Commentary:      commentary,
		Players:         []PlayerView{},
	}
	for _, p := range h.Players.All() {
		v.Players = append(v.Players, ToPlayerView(p))
	}
	switch st := s.(type) {
	case *wordvote.State:
		v.WordVote = wordVoteView(st)
	case *trivia.State:
		v.Trivia = triviaView(st)
	case *game.LobbyState:
	}
	return v
}

func ToPlayerView(p *game.Player) PlayerView {
	return PlayerView{ID: p.ID, Name: p.Name, Score: p.Score, Connected: p.Connected}
}

func wordVoteView(s *wordvote.State) *WordVoteView {
	v := &WordVoteView{
		MaxRounds:   s.MaxRounds,
		Prompts:     s.Prompts,
		Submissions: []SubmissionView{},
		Voted:       []string{},
		Finished:    s.Finished,
	}
	for _, sub := range s.Submissions {
		sv := SubmissionView{PlayerID: sub.PlayerID, Prompt: sub.Prompt}
		if s.Phase != wordvote.PhaseSubmit {
			sv.Text = sub.Text
		}
		if s.Phase == wordvote.PhaseResults {
			sv.Votes = s.VotesFor(sub.PlayerID)
		}
		v.Submissions = append(v.Submissions, sv)
	}
	for _, vote := range s.Votes {
		v.Voted = append(v.Voted, vote.VoterID)
	}
	return v
}

func triviaView(s *trivia.State) *TriviaView {
	revealed := s.Phase == trivia.PhaseAnswerReveal || s.Phase == trivia.PhaseLeaderboard
	v := &TriviaView{
		MaxRounds:         s.MaxRounds,
		QuestionsPerRound: s.QuestionsPerRound,
		Category:          s.Category,
		Difficulty:        s.Difficulty,
		AwaitingQuestions: s.AwaitingQuestions,
		Remaining:         len(s.Queue),
		Answered:          []string{},
		Streaks:           map[string]int{},
	}
	if q := s.Current; q != nil && s.Phase != trivia.PhaseRoundResults && s.Phase != trivia.PhaseGameResults {
		qv := &QuestionView{
			Text:        q.Text,
			Type:        string(q.Type),
			Options:     q.Options,
			TimeLimitMs: q.TimeLimit.Milliseconds(),
			PointValue:  q.PointValue,
			Category:    q.Category,
		}
		if revealed {
			qv.CorrectAnswer = q.CorrectAnswer
		}
		v.Question = qv
	}
	ids := make([]string, 0, len(s.Answers))
	for id := range s.Answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	v.Answered = append(v.Answered, ids...)
	if revealed {
		for _, id := range ids {
			a := s.Answers[id]
			v.Answers = append(v.Answers, AnswerView{
				PlayerID:  id,
				Text:      a.Text,
				Judged:    a.Judged,
				IsCorrect: a.IsCorrect,
				Points:    a.Points,
				ElapsedMs: a.Elapsed.Milliseconds(),
			})
		}
		v.CorrectPlayers = s.CorrectPlayers
	}
	for id, st := range s.Streaks {
		v.Streaks[id] = st.Current
	}
	return v
}
