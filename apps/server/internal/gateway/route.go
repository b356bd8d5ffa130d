package gateway

import (
	"partyline/apps/server/internal/codec"
	"partyline/apps/server/internal/room"
	"partyline/apps/server/internal/validate"
	"partyline/game"
)

// route applies one decoded client message on behalf of sessionID.
func (g *Gateway) route(sessionID string, msg codec.ClientMessage) error {
	switch msg.Type {
	case codec.MsgPing:
		g.router.Send(sessionID, g.envelope(codec.TypePong, msg.Room, nil))
		return nil
	case codec.MsgJoinDisplay:
		code, err := validate.RoomCode(msg.Room, g.cfg.CodeLength)
		if err != nil {
			return err
		}
		return g.lobby.JoinDisplay(code, sessionID)
	case codec.MsgJoin:
		code, err := validate.RoomCode(msg.Room, g.cfg.CodeLength)
		if err != nil {
			return err
		}
		name, err := validate.Name(msg.Name, g.cfg.MaxNameLength)
		if err != nil {
			return err
		}
		_, err = g.lobby.JoinPlayer(code, sessionID, name)
		return err
	}

	r, ok := g.lobby.RoomOf(sessionID)
	if !ok {
		return errJoinFirst
	}

	switch msg.Type {
	case codec.MsgStartGame:
		return g.startGame(r, sessionID, msg)
	case codec.MsgSubmit:
		text, err := validate.Text("text", msg.Text, g.cfg.MaxTextLength)
		if err != nil {
			return err
		}
		return r.Dispatch(sessionID, game.VerbSubmit, game.Action{Text: text})
	case codec.MsgVote:
		target, err := validate.Required("targetId", msg.TargetID)
		if err != nil {
			return err
		}
		return r.Dispatch(sessionID, game.VerbVote, game.Action{TargetID: target})
	case codec.MsgNextRound:
		return r.Dispatch(sessionID, game.VerbNextRound, game.Action{})
	case codec.MsgRestart:
		return r.Restart(sessionID)
	case codec.MsgCustom, codec.MsgAnswer:
		event := msg.Type
		if msg.Type == codec.MsgCustom {
			var err error
			if event, err = validate.Required("event", msg.Event); err != nil {
				return err
			}
		}
		text, err := validate.Text("text", msg.Text, g.cfg.MaxTextLength)
		if err != nil {
			return err
		}
		return r.Dispatch(sessionID, event, game.Action{Text: text})
	case codec.MsgToggleCommentary:
		enabled := true
		if msg.Enabled != nil {
			enabled = *msg.Enabled
		}
		return r.ToggleCommentary(sessionID, enabled)
	default:
		return &validate.Error{Field: "type", Reason: "unknown message type"}
	}
}

func (g *Gateway) startGame(r *room.Room, sessionID string, msg codec.ClientMessage) error {
	gameType, err := validate.Required("gameType", msg.GameType)
	if err != nil {
		return err
	}
	if err := validate.Rounds(msg.Rounds); err != nil {
		return err
	}
	opts := game.Options{Rounds: msg.Rounds}
	if msg.Category != "" {
		if opts.Category, err = validate.Text("category", msg.Category, 64); err != nil {
			return err
		}
	}
	if msg.Difficulty != "" {
		if opts.Difficulty, err = validate.Required("difficulty", msg.Difficulty); err != nil {
			return err
		}
	}
	return r.StartGame(sessionID, game.GameType(gameType), opts)
}
