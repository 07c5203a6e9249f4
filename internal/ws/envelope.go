package ws

import (
	"encoding/json"
	"fmt"

	"github.com/linguapair/linguapair/internal/match"
)

// Envelope is the JSON structure exchanged over the WebSocket in both
// directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RegisterPayload is sent by the client to enter matchmaking.
type RegisterPayload struct {
	Name string `json:"name"`
	Tier string `json:"tier"`
}

// MessagePayload is sent by the client to relay chat text.
type MessagePayload struct {
	Text string `json:"text"`
}

// TypingPayload is sent by the client to relay a typing indicator.
type TypingPayload struct {
	Typing bool `json:"typing"`
}

// encodeEvent marshals a coordinator event into a wire envelope.
// Signal payloads are already raw JSON and pass through untouched.
func encodeEvent(event match.Event) ([]byte, error) {
	var payload json.RawMessage
	if raw, ok := event.Payload.(json.RawMessage); ok {
		payload = raw
	} else if event.Payload != nil {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event.Type, err)
		}
		payload = data
	}
	env, err := json.Marshal(Envelope{Type: string(event.Type), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event.Type, err)
	}
	return env, nil
}
