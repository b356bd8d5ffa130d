package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server message types.
const (
	TypeState        = "state"
	TypePlayerJoined = "player_joined"
	TypeJoined       = "joined"
	TypeError        = "error"
	TypeSpeak        = "speak"
	TypePong         = "pong"
)

// Envelope is the outbound frame shared by every transport.
type Envelope struct {
	Type    string `json:"type"`
	Room    string `json:"room,omitempty"`
	Seq     uint64 `json:"seq"`
	TsMs    int64  `json:"ts"`
	Payload any    `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type JoinedPayload struct {
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name,omitempty"`
	Display  bool   `json:"display,omitempty"`
}

type SpeakPayload struct {
	PersonaID   string `json:"personaId"`
	PersonaName string `json:"personaName"`
	Text        string `json:"text"`
	Voice       string `json:"voice,omitempty"`
	Emotion     string `json:"emotion,omitempty"`
	Priority    int    `json:"priority"`
	Event       string `json:"event"`
}

// Framing selects how envelopes are written to a connection.
type Framing int

const (
	FramingJSON Framing = iota
	// FramingProto writes a google.protobuf.Struct holding the envelope.
	FramingProto
)

func EncodeJSON(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.Type, err)
	}
	return data, nil
}

func EncodeProto(env *Envelope) ([]byte, error) {
	data, err := EncodeJSON(env)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("flatten %s envelope: %w", env.Type, err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("struct %s envelope: %w", env.Type, err)
	}
	return proto.Marshal(s)
}

func Encode(env *Envelope, f Framing) ([]byte, error) {
	if f == FramingProto {
		return EncodeProto(env)
	}
	return EncodeJSON(env)
}
