package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = fmt.Errorf("%w: unknown type", ErrMalformed)
)

// Envelope is the transport payload every message travels in.
type Envelope struct {
	Type      MessageType     `json:"type"`
	UserID    string          `json:"userId"`
	RoomID    string          `json:"roomId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Inbound is a decoded envelope with its payload resolved to a variant.
type Inbound struct {
	UserID    string
	RoomID    string
	Timestamp int64
	Msg       Message
}

func Encode(userID, roomID string, ts int64, msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return json.Marshal(Envelope{
		Type:      msg.Type(),
		UserID:    userID,
		RoomID:    roomID,
		Data:      data,
		Timestamp: ts,
	})
}

// Decode parses and validates one envelope. Every failure wraps
// ErrMalformed.
func Decode(b []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.UserID == "" {
		return Inbound{}, fmt.Errorf("%w: missing userId", ErrMalformed)
	}
	msg, err := decodeData(env.Type, env.Data)
	if err != nil {
		return Inbound{}, err
	}
	return Inbound{UserID: env.UserID, RoomID: env.RoomID, Timestamp: env.Timestamp, Msg: msg}, nil
}

func decodeData(t MessageType, data json.RawMessage) (Message, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage("{}")
	}

	var (
		msg Message
		err error
	)
	switch t {
	case TypeJoin:
		var m Join
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeLeave:
		msg = Leave{}
	case TypeRequestState:
		msg = RequestState{}
	case TypeFullState:
		var m FullState
		if err = json.Unmarshal(data, &m); err == nil {
			err = validateStrokes(m.State)
		}
		msg = m
	case TypeSync:
		var m Sync
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeViewport:
		var m Viewport
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeCursor:
		var m Cursor
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, t)
	}
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, t, err)
	}
	return msg, nil
}

func validateStrokes(strokes []StrokeData) error {
	for i, s := range strokes {
		if s.ID == "" {
			return fmt.Errorf("%w: stroke %d without id", ErrMalformed, i)
		}
		if len(s.Points)%2 != 0 {
			return fmt.Errorf("%w: stroke %s has odd coordinate count", ErrMalformed, s.ID)
		}
	}
	return nil
}
