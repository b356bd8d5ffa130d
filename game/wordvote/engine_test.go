package wordvote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyline/game"
)

var t0 = time.Date(2026, 1, 2, 20, 0, 0, 0, time.UTC)

func newTestRoster(names ...string) *game.Roster {
	r := game.NewRoster()
	for _, n := range names {
		r.Add(&game.Player{ID: "id-" + n, Name: n, Connected: true, RoomCode: "ABCD"})
	}
	return r
}

func newTestContract(t *testing.T, mutate func(*Config)) *game.Contract {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewContract(cfg)
	require.NoError(t, err)
	return c
}

func startGame(t *testing.T, c *game.Contract, r *game.Roster, rounds int) *State {
	t.Helper()
	res := c.Initialize("ABCD", r, game.Options{Rounds: rounds, Seed: 42, At: t0})
	s, ok := res.State.(*State)
	require.True(t, ok)
	return s
}

func apply(t *testing.T, h game.Handler, s game.State, actor *game.Player, a game.Action) (*State, []game.Effect) {
	t.Helper()
	res := h(s, actor, a)
	next, ok := res.State.(*State)
	require.True(t, ok)
	return next, res.Effects
}

func TestInitializeDealsPromptsAndTimer(t *testing.T) {
	c := newTestContract(t, nil)
	r := newTestRoster("a", "b", "c")
	res := c.Initialize("ABCD", r, game.Options{Rounds: 2, Seed: 1, At: t0})
	s := res.State.(*State)

	assert.Equal(t, PhaseSubmit, s.Phase)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, 2, s.MaxRounds)
	assert.Same(t, r, s.Players)
	assert.Len(t, s.Prompts, 3)
	seen := map[string]bool{}
	for _, p := range s.Prompts {
		assert.False(t, seen[p], "prompt dealt twice: %s", p)
		seen[p] = true
	}
	assert.Equal(t, t0.Add(90*time.Second), s.Deadline)
	require.Len(t, res.Effects, 1)
	assert.Equal(t, game.Schedule{Delay: 90 * time.Second, Event: EventCloseSubmissions}, res.Effects[0])
}

func TestSubmitRejectsDuplicates(t *testing.T) {
	c := newTestContract(t, nil)
	r := newTestRoster("a", "b", "c")
	s := startGame(t, c, r, 3)
	a := r.ByName("a")

	s1, _ := apply(t, c.Submit, s, a, game.Action{Text: "first", At: t0})
	require.Len(t, s1.Submissions, 1)

	res := c.Submit(s1, a, game.Action{Text: "second", At: t0})
	assert.Same(t, s1, res.State)
	assert.Len(t, s1.Submissions, 1)
	assert.Empty(t, s.Submissions, "input state must not be patched")
}

func TestSubmitRejectsOutsidePhaseAndBlank(t *testing.T) {
	c := newTestContract(t, nil)
	r := newTestRoster("a", "b")
	s := startGame(t, c, r, 3)

	res := c.Submit(s, r.ByName("a"), game.Action{Text: "   "})
	assert.Same(t, s, res.State)

	late := &game.Player{ID: "late", Name: "late", Connected: true}
	res = c.Submit(s, late, game.Action{Text: "hello"})
	assert.Same(t, s, res.State, "players without a prompt cannot submit")

	res = c.Vote(s, r.ByName("a"), game.Action{TargetID: "id-b"})
	assert.Same(t, s, res.State, "votes are only accepted in the vote phase")
}

func TestVoteRules(t *testing.T) {
	c := newTestContract(t, nil)
	r := newTestRoster("a", "b", "c")
	s := startGame(t, c, r, 3)
	for _, n := range []string{"a", "b", "c"} {
		s, _ = apply(t, c.Submit, s, r.ByName(n), game.Action{Text: "answer " + n, At: t0})
	}
	require.Equal(t, PhaseVote, s.Phase)
	a := r.ByName("a")

	res := c.Vote(s, a, game.Action{TargetID: a.ID})
	assert.Same(t, s, res.State, "self votes are rejected")

	res = c.Vote(s, a, game.Action{TargetID: "nobody"})
	assert.Same(t, s, res.State, "unknown targets are rejected")

	s1, _ := apply(t, c.Vote, s, a, game.Action{TargetID: "id-b"})
	res = c.Vote(s1, a, game.Action{TargetID: "id-c"})
	assert.Same(t, s1, res.State, "second vote is rejected")
}

func TestFullRoundScoresThroughDeltas(t *testing.T) {
	c := newTestContract(t, nil)
	r := newTestRoster("a", "b", "c")
	s := startGame(t, c, r, 3)
	for _, n := range []string{"a", "b", "c"} {
		s, _ = apply(t, c.Submit, s, r.ByName(n), game.Action{Text: "answer " + n, At: t0})
	}
	assert.Equal(t, PhaseVote, s.Phase)

	var effects []game.Effect
	s, _ = apply(t, c.Vote, s, r.ByName("a"), game.Action{TargetID: "id-b"})
	s, _ = apply(t, c.Vote, s, r.ByName("b"), game.Action{TargetID: "id-c"})
	s, effects = apply(t, c.Vote, s, r.ByName("c"), game.Action{TargetID: "id-b"})

	assert.Equal(t, PhaseResults, s.Phase)
	assert.False(t, s.Finished)
	assert.Equal(t, map[string]int{"id-b": 200, "id-c": 100}, s.RoundResults)
	require.Len(t, effects, 1)
	assert.Equal(t, game.ScoreDeltas{Deltas: map[string]int{"id-b": 200, "id-c": 100}}, effects[0])
	assert.Equal(t, 0, r.ByName("b").Score, "engine never touches player records")
}

func TestNextRoundAndTerminalResults(t *testing.T) {
	c := newTestContract(t, func(cfg *Config) { cfg.SubmitTime = 0; cfg.VoteTime = 0 })
	r := newTestRoster("a", "b")
	s := startGame(t, c, r, 2)

	playRound := func(s *State) *State {
		s, _ = apply(t, c.Submit, s, r.ByName("a"), game.Action{Text: "x"})
		s, _ = apply(t, c.Submit, s, r.ByName("b"), game.Action{Text: "y"})
		s, _ = apply(t, c.Vote, s, r.ByName("a"), game.Action{TargetID: "id-b"})
		s, _ = apply(t, c.Vote, s, r.ByName("b"), game.Action{TargetID: "id-a"})
		return s
	}

	s = playRound(s)
	require.Equal(t, PhaseResults, s.Phase)
	assert.False(t, s.IsFinal())

	s, effects := apply(t, c.NextRound, s, nil, game.Action{At: t0})
	assert.Equal(t, PhaseSubmit, s.Phase)
	assert.Equal(t, 2, s.Round)
	assert.Empty(t, s.Submissions)
	assert.Empty(t, s.Votes)
	assert.Empty(t, effects, "timers disabled")
	assert.True(t, s.Deadline.IsZero())

	s = playRound(s)
	assert.True(t, s.IsFinal())

	res := c.NextRound(s, nil, game.Action{})
	assert.Same(t, s, res.State, "terminal results stay put")
}

func TestTimersCloseStalledPhases(t *testing.T) {
	c := newTestContract(t, nil)
	r := newTestRoster("a", "b", "c")
	s := startGame(t, c, r, 1)
	s, _ = apply(t, c.Submit, s, r.ByName("a"), game.Action{Text: "only one"})

	s, effects := apply(t, c.Custom[EventCloseSubmissions], s, nil, game.Action{At: t0})
	assert.Equal(t, PhaseVote, s.Phase)
	require.Len(t, effects, 1)
	assert.Equal(t, EventCloseVoting, effects[0].(game.Schedule).Event)

	s, _ = apply(t, c.Vote, s, r.ByName("b"), game.Action{TargetID: "id-a"})
	s, _ = apply(t, c.Custom[EventCloseVoting], s, nil, game.Action{At: t0})
	assert.Equal(t, PhaseResults, s.Phase)
	assert.Equal(t, map[string]int{"id-a": 100}, s.RoundResults)
	assert.True(t, s.IsFinal())

	res := c.Custom[EventCloseVoting](s, nil, game.Action{})
	assert.Same(t, s, res.State, "stale timer is a no-op")
}

func TestRosterChangedExcludesDisconnected(t *testing.T) {
	c := newTestContract(t, nil)
	r := newTestRoster("a", "b", "c")
	s := startGame(t, c, r, 1)
	s, _ = apply(t, c.Submit, s, r.ByName("a"), game.Action{Text: "x"})
	s, _ = apply(t, c.Submit, s, r.ByName("b"), game.Action{Text: "y"})
	require.Equal(t, PhaseSubmit, s.Phase)

	r.ByName("c").Connected = false
	s, _ = apply(t, c.Custom[game.EventRosterChanged], s, nil, game.Action{At: t0})
	assert.Equal(t, PhaseVote, s.Phase)
}

func TestResetToLobbyKeepsRoster(t *testing.T) {
	c := newTestContract(t, nil)
	r := newTestRoster("a", "b")
	s := startGame(t, c, r, 1)
	lobby := c.ResetToLobby(s).(*State)
	assert.Equal(t, PhaseLobby, lobby.Phase)
	assert.Same(t, r, lobby.Players)
	assert.Empty(t, lobby.Prompts)
	assert.Equal(t, PhaseSubmit, s.Phase)
}

func TestNewContractValidatesConfig(t *testing.T) {
	_, err := NewContract(Config{})
	assert.Error(t, err)
}

func TestEveryPhaseCanRestartToLobby(t *testing.T) {
	c := newTestContract(t, nil)
	for _, p := range c.Phases {
		if p == game.PhaseLobby {
			continue
		}
		assert.True(t, c.IsValidTransition(p, game.PhaseLobby), "%s -> lobby", p)
	}
}
