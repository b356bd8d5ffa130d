// Package events derives game events by diffing consecutive room frames.
package events

import (
	"partyline/game"
)

type Type string

const (
	GameStarted        Type = "game_started"
	PhaseChanged       Type = "phase_changed"
	GameComplete       Type = "game_complete"
	PlayerJoined       Type = "player_joined"
	PlayerLeft         Type = "player_left"
	SubmissionReceived Type = "submission_received"
	AllSubmitted       Type = "all_submitted"
	VoteReceived       Type = "vote_received"
	AllVoted           Type = "all_voted"
	RoundComplete      Type = "round_complete"
	CategoryAnnounced  Type = "category_announced"
	QuestionDisplayed  Type = "question_displayed"
	AnswerRevealed     Type = "answer_revealed"
	HotStreak          Type = "hot_streak"
	FastAnswer         Type = "fast_answer"
	Idle               Type = "idle"
)

// Context is a value snapshot taken when the event was detected.
type Context struct {
	RoomCode      string
	GameType      game.GameType
	Phase         game.Phase
	PreviousPhase game.Phase
	Round         int
	PlayerNames   []string
	// Scores maps player name to score.
	Scores map[string]int

	PlayerID   string
	PlayerName string
	TargetID   string
	Text       string
	Prompt     string

	Category       string
	Question       string
	Answer         string
	CorrectPlayers []string
	Streak         int
	ElapsedMs      int64
	// RoundResults maps player name to the round's points or correct count.
	RoundResults map[string]int
}

type Event struct {
	Type    Type
	Context Context
}
