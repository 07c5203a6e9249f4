package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	// sendBufferSize is the number of events that can be queued per client.
	sendBufferSize = 16

	// writeTimeout is the max time to wait for a single write to complete.
	writeTimeout = 5 * time.Second

	// idleCheckInterval is how often the idle reaper runs.
	idleCheckInterval = 30 * time.Second
)

// Client is one live transport connection, identified by the connection
// identity the rest of the system keys on.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	// ID is the connection identity. It is assigned at accept time and
	// never reused while the connection is live.
	ID string
}

// clientEntry holds per-connection metadata alongside the cancel function.
type clientEntry struct {
	client      *Client
	cancel      context.CancelFunc
	connectedAt time.Time
	lastActive  time.Time
}

// ConnStats holds point-in-time connection statistics.
type ConnStats struct {
	Active          int   `json:"active"`
	MaxConns        int   `json:"max_conns"`
	Rejected        int64 `json:"rejected"`
	DroppedMessages int64 `json:"dropped_messages"`
	IdleReaped      int64 `json:"idle_reaped"`
}

// ConnManager tracks all live connections keyed by connection identity
// and provides lifecycle management: per-client buffered send channels,
// connection limits, idle detection, and graceful shutdown.
type ConnManager struct {
	mu       sync.Mutex
	clients  map[string]*clientEntry
	closed   bool
	maxConns int
	idleTTL  time.Duration
	stopIdle context.CancelFunc
	logger   *zap.Logger

	rejected        atomic.Int64
	droppedMessages atomic.Int64
	idleReaped      atomic.Int64
}

// ConnManagerOption configures a ConnManager.
type ConnManagerOption func(*ConnManager)

// WithMaxConns sets the maximum number of concurrent connections.
// When the limit is reached, new connections are rejected.
// A value of 0 means unlimited (default).
func WithMaxConns(n int) ConnManagerOption {
	return func(cm *ConnManager) {
		cm.maxConns = n
	}
}

// WithIdleTimeout sets how long a connection can be idle before it is
// automatically closed. A value of 0 disables idle reaping (default).
func WithIdleTimeout(d time.Duration) ConnManagerOption {
	return func(cm *ConnManager) {
		cm.idleTTL = d
	}
}

// WithConnLogger sets the structured logger.
func WithConnLogger(logger *zap.Logger) ConnManagerOption {
	return func(cm *ConnManager) {
		cm.logger = logger
	}
}

// NewConnManager creates a connection manager with optional configuration.
func NewConnManager(opts ...ConnManagerOption) *ConnManager {
	cm := &ConnManager{
		clients: make(map[string]*clientEntry),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cm)
	}
	if cm.idleTTL > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		cm.stopIdle = cancel
		go cm.idleReapLoop(ctx)
	}
	return cm
}

// Add registers a client and starts its write pump. The returned
// context is cancelled when the client is removed or the manager shuts
// down. Callers should select on ctx.Done() in their read loop.
// Returns a cancelled context if the manager is closed or at capacity.
func (cm *ConnManager) Add(c *Client) context.Context {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	if cm.maxConns > 0 && len(cm.clients) >= cm.maxConns {
		cm.rejected.Add(1)
		c.conn.Close(websocket.StatusTryAgainLater, "server at capacity")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	now := time.Now()
	c.send = make(chan []byte, sendBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	cm.clients[c.ID] = &clientEntry{
		client:      c,
		cancel:      cancel,
		connectedAt: now,
		lastActive:  now,
	}

	go cm.writePump(ctx, c)

	return ctx
}

// Remove stops a client's write pump and cleans it up. The send
// channel is never closed: a SendTo racing a removal would panic on a
// closed channel, so pumps exit on context cancellation alone and any
// buffered events are discarded with the channel.
func (cm *ConnManager) Remove(c *Client) {
	cm.mu.Lock()
	entry, ok := cm.clients[c.ID]
	if ok && entry.client == c {
		delete(cm.clients, c.ID)
	} else {
		ok = false
	}
	cm.mu.Unlock()

	if ok {
		entry.cancel()
	}
}

// SendTo queues data for delivery to the connection with the given
// identity. Returns false if no such connection is live or its buffer
// is full (slow consumer).
func (cm *ConnManager) SendTo(identity string, data []byte) bool {
	cm.mu.Lock()
	entry, ok := cm.clients[identity]
	cm.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case entry.client.send <- data:
		return true
	default:
		cm.droppedMessages.Add(1)
		cm.logger.Warn("send buffer full, dropping event", zap.String("identity", identity))
		return false
	}
}

// TouchActivity updates the last-active timestamp for the connection.
// Called whenever the client sends an event, so active connections are
// never idle-reaped.
func (cm *ConnManager) TouchActivity(identity string) {
	cm.mu.Lock()
	if entry, ok := cm.clients[identity]; ok {
		entry.lastActive = time.Now()
	}
	cm.mu.Unlock()
}

// Count returns the number of live connections.
func (cm *ConnManager) Count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.clients)
}

// Stats returns point-in-time connection statistics.
func (cm *ConnManager) Stats() ConnStats {
	cm.mu.Lock()
	active := len(cm.clients)
	maxConns := cm.maxConns
	cm.mu.Unlock()
	return ConnStats{
		Active:          active,
		MaxConns:        maxConns,
		Rejected:        cm.rejected.Load(),
		DroppedMessages: cm.droppedMessages.Load(),
		IdleReaped:      cm.idleReaped.Load(),
	}
}

// Shutdown gracefully closes all connections. It cancels every write
// pump and closes each WebSocket with StatusGoingAway.
func (cm *ConnManager) Shutdown() {
	cm.mu.Lock()
	cm.closed = true
	entries := make([]*clientEntry, 0, len(cm.clients))
	for _, entry := range cm.clients {
		entries = append(entries, entry)
	}
	cm.clients = make(map[string]*clientEntry)
	cm.mu.Unlock()

	if cm.stopIdle != nil {
		cm.stopIdle()
	}

	for _, entry := range entries {
		entry.cancel()
		entry.client.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// idleReapLoop periodically checks for and closes idle connections.
func (cm *ConnManager) idleReapLoop(ctx context.Context) {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.reapIdle()
		}
	}
}

// reapIdle closes connections that have been idle longer than idleTTL.
// Closing the socket fails the read loop, which triggers the normal
// disconnect teardown path.
func (cm *ConnManager) reapIdle() {
	cm.mu.Lock()
	now := time.Now()
	var stale []*clientEntry
	for id, entry := range cm.clients {
		if now.Sub(entry.lastActive) > cm.idleTTL {
			stale = append(stale, entry)
			delete(cm.clients, id)
		}
	}
	cm.mu.Unlock()

	for _, entry := range stale {
		entry.cancel()
		entry.client.conn.Close(websocket.StatusPolicyViolation, "idle timeout")
		cm.idleReaped.Add(1)
		cm.logger.Info("reaped idle connection",
			zap.String("identity", entry.client.ID),
			zap.Duration("connected", now.Sub(entry.connectedAt)))
	}
}

// writePump drains the client's send channel, writing each event to
// the WebSocket connection. It exits only when ctx is cancelled or a
// write fails.
func (cm *ConnManager) writePump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				cm.logger.Debug("write failed", zap.String("identity", c.ID), zap.Error(err))
				return
			}
		}
	}
}
