package game

import "sort"

// Roster is the canonical, mutable player list of a room.
//
// The room and every game state it holds share the same *Roster, so a score
// applied through the roster is visible wherever the state is read. A roster
// is only touched from its room's serialized update path and needs no lock.
type Roster struct {
	players []*Player
}

func NewRoster() *Roster {
	return &Roster{}
}

func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.players)
}

// All returns the players in join order. The slice is a copy, the players are not.
func (r *Roster) All() []*Player {
	if r == nil {
		return nil
	}
	out := make([]*Player, len(r.players))
	copy(out, r.players)
	return out
}

func (r *Roster) Add(p *Player) {
	r.players = append(r.players, p)
}

func (r *Roster) ByID(id string) *Player {
	if r == nil || id == "" {
		return nil
	}
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Roster) ByName(name string) *Player {
	if r == nil {
		return nil
	}
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Roster) BySession(sessionID string) *Player {
	if r == nil || sessionID == "" {
		return nil
	}
	for _, p := range r.players {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

func (r *Roster) Connected() []*Player {
	if r == nil {
		return nil
	}
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if p.Connected {
			out = append(out, p)
		}
	}
	return out
}

func (r *Roster) ConnectedCount() int {
	n := 0
	if r == nil {
		return n
	}
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// ApplyDeltas adds per-player score deltas keyed by player id. Unknown ids are ignored.
func (r *Roster) ApplyDeltas(deltas map[string]int) {
	for id, d := range deltas {
		if p := r.ByID(id); p != nil {
			p.Score += d
		}
	}
}

func (r *Roster) ResetScores() {
	for _, p := range r.players {
		p.Score = 0
	}
}

// Scores returns player id -> score.
func (r *Roster) Scores() map[string]int {
	out := make(map[string]int, r.Len())
	if r == nil {
		return out
	}
	for _, p := range r.players {
		out[p.ID] = p.Score
	}
	return out
}

// Standings returns copies of the players ordered by score, highest first.
func (r *Roster) Standings() []Player {
	out := make([]Player, 0, r.Len())
	if r == nil {
		return out
	}
	for _, p := range r.players {
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
