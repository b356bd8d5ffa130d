package events

import "partyline/game"

// PlayerView is a frozen copy of a player record.
type PlayerView struct {
	ID        string
	Name      string
	Score     int
	Connected bool
}

// Frame pairs an immutable game state with a frozen copy of the roster.
// The live roster is shared between consecutive states, so it cannot be
// diffed against itself.
type Frame struct {
	State   game.State
	Players []PlayerView
}

func Capture(s game.State) *Frame {
	f := &Frame{State: s}
	for _, p := range game.PlayersOf(s).All() {
		f.Players = append(f.Players, PlayerView{ID: p.ID, Name: p.Name, Score: p.Score, Connected: p.Connected})
	}
	return f
}

func (f *Frame) player(id string) (PlayerView, bool) {
	for _, p := range f.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}

func (f *Frame) name(id string) string {
	if p, ok := f.player(id); ok {
		return p.Name
	}
	return ""
}

func (f *Frame) names() []string {
	out := make([]string, 0, len(f.Players))
	for _, p := range f.Players {
		if p.Connected {
			out = append(out, p.Name)
		}
	}
	return out
}

func (f *Frame) scores() map[string]int {
	out := make(map[string]int, len(f.Players))
	for _, p := range f.Players {
		out[p.Name] = p.Score
	}
	return out
}

func (f *Frame) byName(results map[string]int) map[string]int {
	if results == nil {
		return nil
	}
	out := make(map[string]int, len(results))
	for id, v := range results {
		if n := f.name(id); n != "" {
			out[n] = v
		}
	}
	return out
}
