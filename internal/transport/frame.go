package transport

import (
	"encoding/json"
	"errors"
)

// ConnID identifies one connection for its whole lifetime.
type ConnID string

// Frame is the JSON envelope exchanged with browsers in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var errNoEvent = errors.New("frame has no event name")

// encode builds an outbound frame. A nil payload omits data; a
// json.RawMessage is forwarded untouched.
func encode(event string, payload any) ([]byte, error) {
	f := Frame{Event: event}
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		f.Data = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		f.Data = b
	}
	return json.Marshal(f)
}

func decode(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, err
	}
	if f.Event == "" {
		return Frame{}, errNoEvent
	}
	return f, nil
}
