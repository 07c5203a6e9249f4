package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/linguapair/linguapair/internal/match"
)

// Sender adapts the connection manager to the coordinator's Emitter.
// Events addressed to identities with no live connection are dropped.
type Sender struct {
	cm     *ConnManager
	logger *zap.Logger
}

// NewSender creates an Emitter delivering events through cm.
func NewSender(cm *ConnManager, logger *zap.Logger) *Sender {
	return &Sender{cm: cm, logger: logger}
}

// Emit encodes the event and queues it for the identity's connection.
func (s *Sender) Emit(identity string, event match.Event) {
	data, err := encodeEvent(event)
	if err != nil {
		s.logger.Error("encode event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}
	s.cm.SendTo(identity, data)
}

// Handler upgrades HTTP requests to WebSockets and runs the per-client
// event loop, translating inbound envelopes into coordinator calls.
type Handler struct {
	cm     *ConnManager
	coord  *match.Coordinator
	logger *zap.Logger
}

// NewHandler creates a WebSocket Handler.
func NewHandler(cm *ConnManager, coord *match.Coordinator, logger *zap.Logger) *Handler {
	return &Handler{cm: cm, coord: coord, logger: logger}
}

// ServeHTTP upgrades the connection and runs the read loop until the
// client disconnects. Disconnection, however it happens, tears down
// whatever queue or session state the connection holds.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow all origins in dev; tighten in production.
	})
	if err != nil {
		h.logger.Debug("accept error", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := &Client{
		conn: conn,
		ID:   generateConnectionID(),
	}

	connCtx := h.cm.Add(client)
	select {
	case <-connCtx.Done():
		// Rejected at capacity or during shutdown.
		return
	default:
	}

	defer func() {
		h.cm.Remove(client)
		h.coord.Disconnect(client.ID, "connection closed")
	}()

	h.readLoop(r.Context(), connCtx, client)
}

// readLoop reads envelopes from the client until the connection closes
// or the connection manager cancels connCtx.
func (h *Handler) readLoop(ctx context.Context, connCtx context.Context, client *Client) {
	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := client.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancelled.
			return
		}

		h.cm.TouchActivity(client.ID)

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		// A malformed event must never affect other connections, so
		// every branch either acts for this client or is a no-op.
		switch env.Type {
		case "register":
			var payload RegisterPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				continue
			}
			if err := h.coord.Register(client.ID, payload.Name, payload.Tier); err != nil {
				h.logger.Debug("registration rejected", zap.String("identity", client.ID), zap.Error(err))
			}

		case "message":
			var payload MessagePayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				continue
			}
			h.coord.Message(client.ID, payload.Text)

		case "signal":
			// Opaque pass-through; never parsed beyond the envelope.
			h.coord.Signal(client.ID, env.Payload)

		case "typing":
			var payload TypingPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				continue
			}
			h.coord.Typing(client.ID, payload.Typing)

		case "leave":
			// The connection stays open; a fresh register re-enters
			// matchmaking from scratch.
			h.coord.Leave(client.ID)
		}
	}
}

func generateConnectionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
