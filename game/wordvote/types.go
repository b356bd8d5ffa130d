package wordvote

import (
	"fmt"
	"time"

	"partyline/game"
)

const Type game.GameType = "wordvote"

const (
	PhaseLobby   = game.PhaseLobby
	PhaseSubmit  game.Phase = "submit"
	PhaseVote    game.Phase = "vote"
	PhaseResults game.Phase = "results"
)

// Internal events driven by the scheduler.
const (
	EventCloseSubmissions = "close_submissions"
	EventCloseVoting      = "close_voting"
)

type Config struct {
	MaxRounds     int
	PointsPerVote int
	// Zero disables the phase timer.
	SubmitTime time.Duration
	VoteTime   time.Duration
	Prompts    []string
}

func DefaultConfig() Config {
	return Config{
		MaxRounds:     3,
		PointsPerVote: 100,
		SubmitTime:    90 * time.Second,
		VoteTime:      45 * time.Second,
		Prompts:       DefaultPrompts,
	}
}

func (c Config) validate() error {
	if c.MaxRounds <= 0 {
		return fmt.Errorf("MaxRounds must be > 0")
	}
	if c.PointsPerVote <= 0 {
		return fmt.Errorf("PointsPerVote must be > 0")
	}
	if c.SubmitTime < 0 || c.VoteTime < 0 {
		return fmt.Errorf("timers must be >= 0")
	}
	if len(c.Prompts) == 0 {
		return fmt.Errorf("prompt deck is empty")
	}
	return nil
}

type Submission struct {
	PlayerID string
	Prompt   string
	Text     string
}

type Vote struct {
	VoterID  string
	TargetID string
}

type State struct {
	game.Base
	MaxRounds     int
	PointsPerVote int
	Seed          int64
	// Prompts maps player id to the prompt dealt this round.
	Prompts     map[string]string
	Submissions []Submission
	Votes       []Vote
	// Finished marks the terminal results of the last round.
	Finished bool
}

func (s *State) clone() *State {
	next := *s
	next.RoundResults = game.CopyResults(s.RoundResults)
	next.Prompts = make(map[string]string, len(s.Prompts))
	for k, v := range s.Prompts {
		next.Prompts[k] = v
	}
	next.Submissions = append([]Submission(nil), s.Submissions...)
	next.Votes = append([]Vote(nil), s.Votes...)
	return &next
}

func (s *State) SubmissionBy(playerID string) (Submission, bool) {
	for _, sub := range s.Submissions {
		if sub.PlayerID == playerID {
			return sub, true
		}
	}
	return Submission{}, false
}

func (s *State) HasVoted(playerID string) bool {
	for _, v := range s.Votes {
		if v.VoterID == playerID {
			return true
		}
	}
	return false
}

func (s *State) VotesFor(playerID string) int {
	n := 0
	for _, v := range s.Votes {
		if v.TargetID == playerID {
			n++
		}
	}
	return n
}

// ExpectedSubmissions is the number of connected players dealt a prompt this round.
func (s *State) ExpectedSubmissions() int {
	n := 0
	for _, p := range s.Players.Connected() {
		if _, ok := s.Prompts[p.ID]; ok {
			n++
		}
	}
	return n
}

// ExpectedVotes is the number of connected players with at least one
// submission other than their own to vote for.
func (s *State) ExpectedVotes() int {
	n := 0
	for _, p := range s.Players.Connected() {
		for _, sub := range s.Submissions {
			if sub.PlayerID != p.ID {
				n++
				break
			}
		}
	}
	return n
}

// IsFinal reports whether the game reached its terminal results.
func (s *State) IsFinal() bool {
	return s.Phase == PhaseResults && s.Finished
}
