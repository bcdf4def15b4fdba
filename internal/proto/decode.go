package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind rejects frames whose type tag is not part of the
// client vocabulary. Unknown kinds never pass through silently.
var ErrUnknownKind = errors.New("proto: unknown message kind")

// ClientMessage is the tagged union of frames a client may send.
type ClientMessage interface {
	clientMessage()
}

func (PlayerUpdate) clientMessage() {}
func (Heartbeat) clientMessage()    {}
func (WalnutHidden) clientMessage() {}
func (WalnutFound) clientMessage()  {}
func (ChatMessage) clientMessage()  {}
func (PlayerEmote) clientMessage()  {}

type envelope struct {
	Type string `json:"type"`
}

// DecodeClient parses one inbound frame into its concrete message type.
// A malformed payload or unknown kind returns an error; the caller logs
// and drops the frame without closing the connection.
func DecodeClient(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("proto: malformed envelope: %w", err)
	}

	switch env.Type {
	case KindPlayerUpdate:
		var msg PlayerUpdate
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("proto: malformed %s: %w", env.Type, err)
		}
		return msg, nil
	case KindHeartbeat:
		var msg Heartbeat
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("proto: malformed %s: %w", env.Type, err)
		}
		return msg, nil
	case KindWalnutHidden:
		var msg WalnutHidden
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("proto: malformed %s: %w", env.Type, err)
		}
		if msg.WalnutID == "" {
			return nil, fmt.Errorf("proto: %s missing walnutId", env.Type)
		}
		return msg, nil
	case KindWalnutFound:
		var msg WalnutFound
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("proto: malformed %s: %w", env.Type, err)
		}
		if msg.WalnutID == "" {
			return nil, fmt.Errorf("proto: %s missing walnutId", env.Type)
		}
		return msg, nil
	case KindChatMessage:
		var msg ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("proto: malformed %s: %w", env.Type, err)
		}
		return msg, nil
	case KindPlayerEmote:
		var msg PlayerEmote
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("proto: malformed %s: %w", env.Type, err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// Encode marshals any outbound message.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("proto: encode: %w", err)
	}
	return data, nil
}
