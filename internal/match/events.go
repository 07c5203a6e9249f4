package match

import (
	"encoding/json"
	"time"

	"github.com/linguapair/linguapair/internal/profile"
)

// EventType identifies an outbound event sent to a connection.
type EventType string

const (
	EventMatchFound          EventType = "match_found"
	EventQueueWaiting        EventType = "queue_waiting"
	EventQueueTimeout        EventType = "queue_timeout"
	EventMessage             EventType = "message"
	EventSignal              EventType = "signal"
	EventPartnerTyping       EventType = "partner_typing"
	EventPartnerDisconnected EventType = "partner_disconnected"
	EventRegistrationError   EventType = "registration_error"
)

// Event is an outbound event addressed to a single connection identity.
// Payload is one of the payload types below, or json.RawMessage for
// pass-through signals.
type Event struct {
	Type    EventType
	Payload any
}

// Emitter delivers events to connections. Delivery to an identity with
// no live connection is a silent no-op.
type Emitter interface {
	Emit(identity string, event Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(identity string, event Event)

// Emit calls f.
func (f EmitterFunc) Emit(identity string, event Event) { f(identity, event) }

// Role distinguishes the two sides of a fresh match so protocols that
// need one side to act first (e.g. a WebRTC offer) can break symmetry.
type Role string

const (
	// RoleCaller is assigned to the newly arriving connection.
	RoleCaller Role = "caller"
	// RoleCallee is assigned to the connection that was waiting.
	RoleCallee Role = "callee"
)

// MatchFoundPayload announces a committed pairing to one participant.
type MatchFoundPayload struct {
	SessionID string         `json:"session_id"`
	Partner   profile.Public `json:"partner"`
	Role      Role           `json:"role"`
}

// QueueWaitingPayload tells a participant it has been enqueued.
type QueueWaitingPayload struct {
	Tier profile.Tier `json:"tier"`
}

// QueueTimeoutPayload tells a waiter it was evicted for exceeding the
// configured maximum queue wait.
type QueueTimeoutPayload struct {
	Tier profile.Tier `json:"tier"`
}

// MessagePayload is a relayed chat message, echoed to both participants
// with the server-assigned timestamp.
type MessagePayload struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

// PartnerTypingPayload forwards a typing indicator to the partner.
type PartnerTypingPayload struct {
	Typing bool `json:"typing"`
}

// PartnerDisconnectedPayload notifies the remaining participant that
// its partner left and the session is gone.
type PartnerDisconnectedPayload struct{}

// RegistrationErrorPayload reports a rejected registration to the
// offending connection only.
type RegistrationErrorPayload struct {
	Message string `json:"message"`
}

// rawSignal wraps an opaque signaling payload without reinterpreting it.
func rawSignal(payload json.RawMessage) Event {
	return Event{Type: EventSignal, Payload: payload}
}
