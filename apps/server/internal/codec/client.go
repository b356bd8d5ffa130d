package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client message types.
const (
	MsgJoinDisplay      = "join_display"
	MsgJoin             = "join"
	MsgStartGame        = "start_game"
	MsgSubmit           = "submit"
	MsgVote             = "vote"
	MsgNextRound        = "next_round"
	MsgRestart          = "restart"
	MsgCustom           = "custom"
	MsgAnswer           = "answer"
	MsgToggleCommentary = "toggle_commentary"
	MsgPing             = "ping"
)

// ClientMessage is the union of every inbound message.
type ClientMessage struct {
	Type       string `json:"type"`
	Room       string `json:"room"`
	Name       string `json:"name,omitempty"`
	GameType   string `json:"gameType,omitempty"`
	Rounds     int    `json:"rounds,omitempty"`
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Text       string `json:"text,omitempty"`
	TargetID   string `json:"targetId,omitempty"`
	Event      string `json:"event,omitempty"`
	// Timestamp is the client clock in unix ms. Informational only.
	Timestamp int64 `json:"timestamp,omitempty"`
	Enabled   *bool `json:"enabled,omitempty"`
}

func DecodeJSON(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	return msg, nil
}

// DecodeProto reads a google.protobuf.Struct frame.
func DecodeProto(data []byte) (ClientMessage, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client frame: %w", err)
	}
	js, err := json.Marshal(s.AsMap())
	if err != nil {
		return ClientMessage{}, fmt.Errorf("decode client frame: %w", err)
	}
	return DecodeJSON(js)
}

func Decode(data []byte, f Framing) (ClientMessage, error) {
	if f == FramingProto {
		return DecodeProto(data)
	}
	return DecodeJSON(data)
}
