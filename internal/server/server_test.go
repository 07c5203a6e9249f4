package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/linguapair/linguapair/internal/config"
	"github.com/linguapair/linguapair/internal/profile"
	"github.com/linguapair/linguapair/internal/transcript"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.FromEnv()
	if mutate != nil {
		mutate(cfg)
	}
	s := New(cfg, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	register := []byte(`{"type":"register","payload":{"name":"Mia","tier":"B2"}}`)
	if err := conn.Write(ctx, websocket.MessageText, register); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("read queue_waiting: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	defer resp.Body.Close()

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Connections.Active != 1 {
		t.Errorf("expected 1 active connection, got %d", stats.Connections.Active)
	}
	if stats.Matchmaking.RegisteredProfiles != 1 {
		t.Errorf("expected 1 registered profile, got %d", stats.Matchmaking.RegisteredProfiles)
	}
	if stats.Matchmaking.WaitingByTier[profile.TierB2] != 1 {
		t.Errorf("expected 1 waiting in B2, got %d", stats.Matchmaking.WaitingByTier[profile.TierB2])
	}
}

func TestTranscriptEndpoints(t *testing.T) {
	_, ts := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	type envelope struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	dial := func(name string) *websocket.Conn {
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
		register := []byte(`{"type":"register","payload":{"name":"` + name + `","tier":"C1"}}`)
		if err := conn.Write(ctx, websocket.MessageText, register); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
		return conn
	}
	read := func(conn *websocket.Conn) envelope {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		return env
	}

	c1 := dial("Mia")
	if env := read(c1); env.Type != "queue_waiting" {
		t.Fatalf("expected queue_waiting, got %q", env.Type)
	}
	c2 := dial("Noah")

	env := read(c2)
	if env.Type != "match_found" {
		t.Fatalf("expected match_found, got %q", env.Type)
	}
	var found struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(env.Payload, &found); err != nil {
		t.Fatalf("unmarshal match_found: %v", err)
	}
	read(c1) // the waiter's match_found

	msg := []byte(`{"type":"message","payload":{"text":"hej"}}`)
	if err := c1.Write(ctx, websocket.MessageText, msg); err != nil {
		t.Fatalf("send message: %v", err)
	}
	read(c1)
	read(c2)

	// The relayed message shows up in the stats transcript counts.
	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	resp.Body.Close()
	if stats.Transcripts[found.SessionID] != 1 {
		t.Errorf("expected 1 transcript message for session, got %v", stats.Transcripts)
	}

	// The session transcript endpoint serves the recent history.
	resp, err = http.Get(ts.URL + "/api/sessions/" + found.SessionID + "/transcript")
	if err != nil {
		t.Fatalf("GET transcript: %v", err)
	}
	var msgs []transcript.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	resp.Body.Close()
	if len(msgs) != 1 || msgs[0].Text != "hej" || msgs[0].Sender != "Mia" {
		t.Errorf("unexpected transcript %+v", msgs)
	}

	// Unknown sessions are a 404.
	resp, err = http.Get(ts.URL + "/api/sessions/no-such-session/transcript")
	if err != nil {
		t.Fatalf("GET unknown transcript: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", resp.StatusCode)
	}
}

func TestWSRateLimited(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Limits.RateMax = 1
		cfg.Limits.RateWindow = time.Hour
	})

	// First attempt consumes the allowance; the upgrade itself may fail
	// for a plain GET, but the limiter records it.
	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("first GET /ws: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("second GET /ws: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteWithoutStaticDir(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
