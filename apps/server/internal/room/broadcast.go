package room

import (
	"partyline/apps/server/internal/codec"
)

func (r *Room) envelope(typ string, payload any) *codec.Envelope {
	r.seq++
	return &codec.Envelope{
		Type:    typ,
		Room:    r.Code,
		Seq:     r.seq,
		TsMs:    r.deps.Now().UnixMilli(),
		Payload: payload,
	}
}

func (r *Room) sendTo(sessionID string, env *codec.Envelope) {
	if sessionID == "" || r.deps.Send == nil {
		return
	}
	r.deps.Send(sessionID, env)
}

// recipients lists connected players, the display and passive watchers.
func (r *Room) recipients() []string {
	out := make([]string, 0, r.roster.Len()+1+len(r.watchers))
	for _, p := range r.roster.Connected() {
		if p.SessionID != "" {
			out = append(out, p.SessionID)
		}
	}
	if r.displayID != "" {
		out = append(out, r.displayID)
	}
	for id := range r.watchers {
		out = append(out, id)
	}
	return out
}

func (r *Room) broadcast(env *codec.Envelope) {
	for _, id := range r.recipients() {
		r.sendTo(id, env)
	}
}

func (r *Room) stateEnvelope() *codec.Envelope {
	return r.envelope(codec.TypeState, codec.BuildStateView(r.state, r.deps.Now(), r.commentaryOn))
}

func (r *Room) sendState(sessionID string) {
	r.sendTo(sessionID, r.stateEnvelope())
}

func (r *Room) broadcastState() {
	r.broadcast(r.stateEnvelope())
}
