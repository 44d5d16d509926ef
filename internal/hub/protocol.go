package hub

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types on the wire.
const (
	TypeButtonPress  = "button_press"
	TypeInitialState = "initial_state"
	TypeStateUpdate  = "state_update"
)

var ErrBadTrigger = errors.New("not a button_press message")

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PressPayload is the payload of a button_press message.
type PressPayload struct {
	ButtonID string `json:"button_id"`
}

// ParseTrigger extracts the button id from a button_press frame.
func ParseTrigger(data []byte) (string, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadTrigger, err)
	}
	if msg.Type != TypeButtonPress {
		return "", fmt.Errorf("%w: type %q", ErrBadTrigger, msg.Type)
	}
	var p PressPayload
	if len(msg.Payload) == 0 {
		return "", fmt.Errorf("%w: missing payload", ErrBadTrigger)
	}
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadTrigger, err)
	}
	if p.ButtonID == "" {
		return "", fmt.Errorf("%w: empty button_id", ErrBadTrigger)
	}
	return p.ButtonID, nil
}

// EncodeTrigger builds a button_press frame.
func EncodeTrigger(id string) ([]byte, error) {
	payload, err := json.Marshal(PressPayload{ButtonID: id})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: TypeButtonPress, Payload: payload})
}

func encodeState(typ string, state []byte) ([]byte, error) {
	return json.Marshal(Message{Type: typ, Payload: state})
}
