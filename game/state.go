package game

import "time"

type GameType string

type Phase string

// PhaseLobby is shared by every game type.
const PhaseLobby Phase = "lobby"

// Base carries the fields every game state variant has.
type Base struct {
	RoomCode string
	Type     GameType
	Round    int
	// Step distinguishes repeated visits to the same phase within a round,
	// e.g. consecutive trivia questions.
	Step         int
	Phase        Phase
	Players      *Roster
	RoundResults map[string]int
	// Deadline is zero when the phase has no timer.
	Deadline time.Time
}

func (b Base) Header() Base { return b }

func (Base) sealed() {}

// State is the tagged union of game states. Variants embed Base:
// *LobbyState, *wordvote.State and *trivia.State. States are values that
// are replaced on every accepted mutation, never patched in place.
type State interface {
	Header() Base
	sealed()
}

// LobbyState is held by a room before any game has been started.
type LobbyState struct {
	Base
}

func NewLobbyState(code string, players *Roster) *LobbyState {
	return &LobbyState{Base: Base{RoomCode: code, Phase: PhaseLobby, Players: players}}
}

func PlayersOf(s State) *Roster {
	if s == nil {
		return nil
	}
	return s.Header().Players
}

func PhaseOf(s State) Phase {
	if s == nil {
		return ""
	}
	return s.Header().Phase
}

// TimeRemaining reports the time left before the phase deadline, zero if none.
func TimeRemaining(s State, now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	d := s.Header().Deadline
	if d.IsZero() || !d.After(now) {
		return 0
	}
	return d.Sub(now)
}

// Marker identifies one concrete point in a room's progression. Deferred
// work captures the marker it was issued under and is dropped if the room
// has moved on by the time it runs.
type Marker struct {
	Epoch uint64
	Phase Phase
	Round int
	Step  int
}

func MarkerOf(s State, epoch uint64) Marker {
	m := Marker{Epoch: epoch}
	if s == nil {
		return m
	}
	b := s.Header()
	m.Phase = b.Phase
	m.Round = b.Round
	m.Step = b.Step
	return m
}

// CopyResults returns a copy of a round result map, nil stays nil.
func CopyResults(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
