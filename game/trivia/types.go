package trivia

import (
	"fmt"
	"sort"
	"time"

	"partyline/game"
)

const Type game.GameType = "trivia"

const (
	PhaseLobby            = game.PhaseLobby
	PhaseCategoryAnnounce game.Phase = "category_announce"
	PhaseQuestion         game.Phase = "question"
	PhaseAnswerReveal     game.Phase = "answer_reveal"
	PhaseLeaderboard      game.Phase = "leaderboard"
	PhaseRoundResults     game.Phase = "round_results"
	PhaseGameResults      game.Phase = "game_results"
)

// Events. EventAnswer is the only one clients may send.
const (
	EventAnswer          = "answer"
	EventQuestionsLoaded = "questions_loaded"
	EventBeginQuestion   = "begin_question"
	EventJudged          = "judged"
	EventReveal          = "reveal"
	EventLeaderboard     = "leaderboard"
	EventAdvance         = "advance"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FreeText       QuestionType = "free_text"
)

type Question struct {
	Text              string
	Type              QuestionType
	CorrectAnswer     string
	Options           []string
	AcceptableAnswers []string
	TimeLimit         time.Duration
	PointValue        int
	Category          string
	Difficulty        string
}

// QuestionBatch is the payload of EventQuestionsLoaded.
type QuestionBatch struct {
	Round     int
	Questions []Question
}

// Judgment is the payload of EventJudged.
type Judgment struct {
	PlayerID   string
	Round      int
	Step       int
	IsCorrect  bool
	Confidence float64
}

type Answer struct {
	PlayerID    string
	Text        string
	SubmittedAt time.Time
	Elapsed     time.Duration
	Judged      bool
	IsCorrect   bool
	Confidence  float64
	Points      int
}

type Streak struct {
	Current int
	Longest int
}

type Config struct {
	MaxRounds         int
	QuestionsPerRound int
	MaxSpeedBonus     int
	StreakCap         float64
	DefaultTimeLimit  time.Duration
	DefaultPoints     int
	CategoryDwell     time.Duration
	RevealDwell       time.Duration
	LeaderboardDwell  time.Duration
	RoundResultsDwell time.Duration
	Category          string
	Difficulty        string
}

func DefaultConfig() Config {
	return Config{
		MaxRounds:         3,
		QuestionsPerRound: 5,
		MaxSpeedBonus:     50,
		StreakCap:         3.0,
		DefaultTimeLimit:  20 * time.Second,
		DefaultPoints:     100,
		CategoryDwell:     4 * time.Second,
		RevealDwell:       5 * time.Second,
		LeaderboardDwell:  5 * time.Second,
		RoundResultsDwell: 8 * time.Second,
		Category:          "general knowledge",
		Difficulty:        "medium",
	}
}

func (c Config) validate() error {
	if c.MaxRounds <= 0 || c.QuestionsPerRound <= 0 {
		return fmt.Errorf("MaxRounds and QuestionsPerRound must be > 0")
	}
	if c.MaxSpeedBonus < 0 || c.DefaultPoints <= 0 {
		return fmt.Errorf("invalid points: speed=%d base=%d", c.MaxSpeedBonus, c.DefaultPoints)
	}
	if c.StreakCap < 1 {
		return fmt.Errorf("StreakCap must be >= 1")
	}
	if c.DefaultTimeLimit <= 0 {
		return fmt.Errorf("DefaultTimeLimit must be > 0")
	}
	if c.CategoryDwell < 0 || c.RevealDwell < 0 || c.LeaderboardDwell < 0 || c.RoundResultsDwell < 0 {
		return fmt.Errorf("dwell durations must be >= 0")
	}
	return nil
}

type State struct {
	game.Base
	MaxRounds         int
	QuestionsPerRound int
	Category          string
	Difficulty        string

	AwaitingQuestions bool
	Queue             []Question
	Current           *Question
	QuestionStartedAt time.Time
	// Answers to the current question keyed by player id.
	Answers      map[string]Answer
	Streaks      map[string]Streak
	RoundCorrect map[string]int
	// CorrectPlayers lists, fastest first, who answered the current question correctly.
	CorrectPlayers []string
}

func (s *State) clone() *State {
	next := *s
	next.RoundResults = game.CopyResults(s.RoundResults)
	next.Queue = append([]Question(nil), s.Queue...)
	next.Answers = make(map[string]Answer, len(s.Answers))
	for k, v := range s.Answers {
		next.Answers[k] = v
	}
	next.Streaks = make(map[string]Streak, len(s.Streaks))
	for k, v := range s.Streaks {
		next.Streaks[k] = v
	}
	next.RoundCorrect = game.CopyResults(s.RoundCorrect)
	if next.RoundCorrect == nil {
		next.RoundCorrect = map[string]int{}
	}
	next.CorrectPlayers = append([]string(nil), s.CorrectPlayers...)
	return &next
}

// AllPlayersAnswered reports whether every connected player has answered.
func AllPlayersAnswered(s *State) bool {
	return len(s.Answers) >= s.Players.ConnectedCount()
}

func (s *State) pendingJudgments() int {
	n := 0
	for _, a := range s.Answers {
		if !a.Judged {
			n++
		}
	}
	return n
}

func (s *State) correctPlayers() []string {
	answers := make([]Answer, 0, len(s.Answers))
	for _, a := range s.Answers {
		if a.Judged && a.IsCorrect {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool {
		if answers[i].Elapsed != answers[j].Elapsed {
			return answers[i].Elapsed < answers[j].Elapsed
		}
		return answers[i].PlayerID < answers[j].PlayerID
	})
	out := make([]string, len(answers))
	for i, a := range answers {
		out[i] = a.PlayerID
	}
	return out
}

func (s *State) IsFinal() bool {
	return s.Phase == PhaseGameResults
}
