// Package server wires the matchmaking coordinator, WebSocket
// transport, and HTTP surface together.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linguapair/linguapair/internal/config"
	"github.com/linguapair/linguapair/internal/match"
	"github.com/linguapair/linguapair/internal/ratelimit"
	"github.com/linguapair/linguapair/internal/transcript"
	"github.com/linguapair/linguapair/internal/ws"
)

// limiterPruneInterval is how often stale rate-limiter entries are dropped.
const limiterPruneInterval = 5 * time.Minute

// transcriptLimit caps how many messages the transcript endpoint returns.
const transcriptLimit = 50

// Server is the main HTTP server: /ws for matchmaking clients, /health
// and /api/stats for operators, plus an optional static frontend.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	mux     *http.ServeMux
	http    *http.Server
	cm      *ws.ConnManager
	coord   *match.Coordinator
	limiter *ratelimit.IPLimiter

	stopPrune context.CancelFunc
}

// Option configures a Server.
type Option func(*serverDeps)

// serverDeps holds injectable collaborators resolved before assembly.
type serverDeps struct {
	redis redis.Cmdable
}

// WithRedis stores session transcripts in Redis instead of memory.
func WithRedis(client redis.Cmdable) Option {
	return func(d *serverDeps) { d.redis = client }
}

// New assembles a Server from the configuration.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	var deps serverDeps
	for _, opt := range opts {
		opt(&deps)
	}

	var store transcript.Store
	if deps.redis != nil {
		store = transcript.NewRedisStore(deps.redis, cfg.Transcript.MaxMessages)
	} else {
		store = transcript.NewMemoryStore(cfg.Transcript.MaxMessages)
	}

	cm := ws.NewConnManager(
		ws.WithMaxConns(cfg.Limits.MaxConns),
		ws.WithIdleTimeout(cfg.Limits.IdleTimeout),
		ws.WithConnLogger(logger),
	)
	coord := match.New(ws.NewSender(cm, logger),
		match.WithLogger(logger),
		match.WithTranscripts(store),
		match.WithMaxQueueWait(cfg.Queue.MaxWait),
	)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		mux:     http.NewServeMux(),
		cm:      cm,
		coord:   coord,
		limiter: ratelimit.NewIPLimiter(cfg.Limits.RateMax, cfg.Limits.RateWindow),
	}
	s.routes(ws.NewHandler(cm, coord, logger))
	s.http = &http.Server{Addr: cfg.Listen.Addr, Handler: s.mux}
	return s
}

func (s *Server) routes(handler *ws.Handler) {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/sessions/{id}/transcript", s.handleTranscript)
	s.mux.Handle("/ws", s.rateLimited(handler))
	if s.cfg.Static.Dir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.cfg.Static.Dir)))
	}
}

// rateLimited rejects connection attempts from IPs over the limit
// before the WebSocket upgrade happens.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			s.logger.Warn("rate limited", zap.String("remote", r.RemoteAddr))
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// statsResponse is the /api/stats body. Transcripts maps active
// session ids to their stored message counts.
type statsResponse struct {
	Connections ws.ConnStats   `json:"connections"`
	Matchmaking match.Stats    `json:"matchmaking"`
	Transcripts map[string]int `json:"transcripts"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Connections: s.cm.Stats(),
		Matchmaking: s.coord.Snapshot(),
		Transcripts: s.coord.TranscriptCounts(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleTranscript serves the recent chat history of an active session.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	msgs := s.coord.Transcript(r.PathValue("id"), transcriptLimit)
	if msgs == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

// Handler returns the root HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopPrune = cancel
	go s.pruneLoop(ctx)

	s.logger.Info("listening", zap.String("addr", s.cfg.Listen.Addr))
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, closes all WebSocket
// connections, and stops background reapers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopPrune != nil {
		s.stopPrune()
	}
	err := s.http.Shutdown(ctx)
	s.cm.Shutdown()
	s.coord.Close()
	return err
}

// pruneLoop periodically drops idle rate-limiter entries.
func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Prune()
		}
	}
}

// clientIP extracts the remote host from the request, falling back to
// the raw RemoteAddr if it has no port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
