package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	Base
	Count int
}

const (
	phaseCounting Phase = "counting"
	phaseDone     Phase = "done"
)

func counterContract(t GameType) *Contract {
	return &Contract{
		Type:   t,
		Phases: []Phase{PhaseLobby, phaseCounting, phaseDone},
		Transitions: map[Phase][]Phase{
			PhaseLobby:    {phaseCounting},
			phaseCounting: {phaseDone},
		},
		Initialize: func(code string, players *Roster, _ Options) Result {
			return Result{State: &counterState{Base: Base{RoomCode: code, Type: t, Phase: phaseCounting, Round: 1, Players: players}}}
		},
		Submit: func(s State, _ *Player, _ Action) Result {
			cs := s.(*counterState)
			next := *cs
			next.Count++
			return Result{State: &next}
		},
		Custom: map[string]Handler{
			"finish": func(s State, _ *Player, _ Action) Result {
				next := *s.(*counterState)
				next.Phase = phaseDone
				return Result{State: &next}
			},
			"rewind": func(s State, _ *Player, _ Action) Result {
				next := *s.(*counterState)
				next.Phase = PhaseLobby
				return Result{State: &next}
			},
		},
		ResetToLobby: func(s State) State {
			next := *s.(*counterState)
			next.Phase = PhaseLobby
			return &next
		},
	}
}

func TestRegistryInitializeUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.InitializeGame("nope", "ABCD", NewRoster(), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownGame))
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	first := counterContract("counter")
	second := counterContract("counter")
	second.Phases = append(second.Phases, "extra")
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))
	assert.Same(t, second, r.Get("counter"))
	assert.Equal(t, []GameType{"counter"}, r.Types())
}

func TestRegistryRejectsInvalidContract(t *testing.T) {
	r := NewRegistry()
	c := counterContract("broken")
	c.Transitions[PhaseLobby] = []Phase{"nowhere"}
	err := r.Register(c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidContract))
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(counterContract("counter")))
	roster := NewRoster()
	res, err := r.InitializeGame("counter", "ABCD", roster, Options{})
	require.NoError(t, err)
	s := res.State

	t.Run("unknown event is a no-op", func(t *testing.T) {
		out := r.Dispatch("counter", "bogus", s, nil, Action{})
		assert.Same(t, s, out.State)
		assert.Empty(t, out.Effects)
	})

	t.Run("unknown game type is a no-op", func(t *testing.T) {
		out := r.Dispatch("other", VerbSubmit, s, nil, Action{})
		assert.Same(t, s, out.State)
	})

	t.Run("missing builtin handler is a no-op", func(t *testing.T) {
		out := r.Dispatch("counter", VerbVote, s, nil, Action{})
		assert.Same(t, s, out.State)
	})

	t.Run("submit replaces state", func(t *testing.T) {
		out := r.Dispatch("counter", VerbSubmit, s, nil, Action{})
		assert.NotSame(t, s, out.State)
		assert.Equal(t, 1, out.State.(*counterState).Count)
		assert.Equal(t, 0, s.(*counterState).Count)
		assert.Same(t, roster, PlayersOf(out.State))
	})

	t.Run("undeclared transition is dropped", func(t *testing.T) {
		out := r.Dispatch("counter", "rewind", s, nil, Action{})
		assert.Same(t, s, out.State)
	})

	t.Run("declared transition is kept", func(t *testing.T) {
		out := r.Dispatch("counter", "finish", s, nil, Action{})
		assert.Equal(t, phaseDone, PhaseOf(out.State))
	})
}

func TestRegistryIsValidTransition(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(counterContract("counter")))
	assert.True(t, r.IsValidTransition("counter", PhaseLobby, phaseCounting))
	assert.False(t, r.IsValidTransition("counter", phaseCounting, PhaseLobby))
	assert.False(t, r.IsValidTransition("unknown", PhaseLobby, phaseCounting))
}

func TestResultThenKeepsEffectOrder(t *testing.T) {
	a := Result{Effects: []Effect{Schedule{Event: "a"}}}
	b := Result{State: NewLobbyState("ABCD", nil), Effects: []Effect{Schedule{Event: "b"}}}
	got := a.Then(b)
	require.Len(t, got.Effects, 2)
	assert.Equal(t, "a", got.Effects[0].(Schedule).Event)
	assert.Equal(t, "b", got.Effects[1].(Schedule).Event)
	assert.Same(t, b.State, got.State)
}
