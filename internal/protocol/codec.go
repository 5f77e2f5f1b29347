package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned by Decode for a well-formed record whose type
// tag is not part of the protocol. Receivers ignore such messages.
var ErrUnknownType = errors.New("unknown message type")

var payloadFactories = map[MessageType]func() Payload{
	JoinGame:     func() Payload { return &JoinPayload{} },
	LobbyUpdate:  func() Payload { return &LobbyUpdatePayload{} },
	GameStart:    func() Payload { return &GameStartPayload{} },
	MoveRequest:  func() Payload { return &MovePayload{} },
	UpdateGrid:   func() Payload { return &UpdateGridPayload{} },
	TurnChange:   func() Payload { return &TurnChangePayload{} },
	FlagToggle:   func() Payload { return &FlagPayload{} },
	GameOver:     func() Payload { return &GameOverPayload{} },
	CursorUpdate: func() Payload { return &CursorPayload{} },
	RematchReady: func() Payload { return &RematchPayload{} },
	ErrorMessage: func() Payload { return &ErrorPayload{} },
}

// Types lists every message type in the protocol.
func Types() []MessageType {
	return []MessageType{
		JoinGame, LobbyUpdate, GameStart, MoveRequest, UpdateGrid, TurnChange,
		FlagToggle, GameOver, CursorUpdate, RematchReady, ErrorMessage,
	}
}

// Empty returns a zero payload for the given type.
func Empty(t MessageType) (Payload, bool) {
	factory, ok := payloadFactories[t]
	if !ok {
		return nil, false
	}
	return deref(factory()), true
}

type envelope struct {
	Type MessageType `json:"type"`
}

// Encode renders a message as a flat tagged JSON record, e.g.
// {"type":"MOVE","r":1,"c":2}.
func Encode(msg Message) ([]byte, error) {
	if msg.Payload == nil {
		return nil, fmt.Errorf("encode %s: missing payload", msg.Type)
	}
	if msg.Type != msg.Payload.MessageType() {
		return nil, fmt.Errorf("encode %s: payload is %s", msg.Type, msg.Payload.MessageType())
	}

	body, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	tag, err := json.Marshal(string(msg.Type))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// Decode parses a flat tagged record. Unknown fields are ignored; an unknown
// type yields ErrUnknownType.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}

	factory, ok := payloadFactories[env.Type]
	if !ok {
		return Message{}, fmt.Errorf("decode %q: %w", env.Type, ErrUnknownType)
	}

	payload := factory()
	if err := json.Unmarshal(data, payload); err != nil {
		return Message{}, fmt.Errorf("decode %s: %w", env.Type, err)
	}

	return Message{Type: env.Type, Payload: deref(payload)}, nil
}

// deref turns the pointer produced by a factory back into the value type the
// rest of the code switches on.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *JoinPayload:
		return *v
	case *LobbyUpdatePayload:
		return *v
	case *GameStartPayload:
		return *v
	case *MovePayload:
		return *v
	case *UpdateGridPayload:
		return *v
	case *TurnChangePayload:
		return *v
	case *FlagPayload:
		return *v
	case *GameOverPayload:
		return *v
	case *CursorPayload:
		return *v
	case *RematchPayload:
		return *v
	case *ErrorPayload:
		return *v
	default:
		return p
	}
}
