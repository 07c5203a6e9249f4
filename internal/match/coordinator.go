// Package match implements the matchmaking core: tier-partitioned
// waiting queues, atomic pair formation, the session relay, and
// connection lifecycle teardown.
package match

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linguapair/linguapair/internal/profile"
	"github.com/linguapair/linguapair/internal/queue"
	"github.com/linguapair/linguapair/internal/session"
	"github.com/linguapair/linguapair/internal/transcript"
)

// maxMessageLength bounds relayed chat text in runes. Longer messages
// are truncated.
const maxMessageLength = 1000

// queueReapInterval is how often the queue-wait reaper runs when a
// maximum wait is configured.
const queueReapInterval = 10 * time.Second

var (
	// ErrInvalidName rejects a registration whose display name is
	// empty after trimming.
	ErrInvalidName = errors.New("display name must not be empty")

	// ErrUnknownTier rejects a registration with an unrecognized tier.
	ErrUnknownTier = errors.New("unrecognized proficiency tier")
)

// Coordinator owns the profile registry, tier queues, and session
// table, and serializes every mutation and read behind a single mutex.
// Each exported operation is atomic with respect to every other, which
// is what makes pair formation and teardown race-free.
type Coordinator struct {
	mu       sync.Mutex
	registry *profile.Registry
	queues   *queue.TierQueues
	sessions *session.Table

	emitter     Emitter
	transcripts transcript.Store
	logger      *zap.Logger

	// maxQueueWait evicts waiters queued longer than this. Zero
	// disables eviction and waiters may wait indefinitely.
	maxQueueWait time.Duration
	stopReaper   context.CancelFunc
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithTranscripts records relayed chat messages in the given store.
func WithTranscripts(store transcript.Store) Option {
	return func(c *Coordinator) { c.transcripts = store }
}

// WithMaxQueueWait evicts waiters that have been queued longer than d.
// Evicted waiters receive a queue_timeout event and are torn down.
func WithMaxQueueWait(d time.Duration) Option {
	return func(c *Coordinator) { c.maxQueueWait = d }
}

// New creates a Coordinator emitting outbound events through emitter.
func New(emitter Emitter, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: profile.NewRegistry(),
		queues:   queue.New(),
		sessions: session.NewTable(),
		emitter:  emitter,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxQueueWait > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopReaper = cancel
		go c.reapLoop(ctx)
	}
	return c
}

// Close stops the queue-wait reaper, if running.
func (c *Coordinator) Close() {
	if c.stopReaper != nil {
		c.stopReaper()
	}
}

// Register validates and installs a profile for the identity, then
// attempts to match it. If the identity already has a profile, its
// prior queue or session membership is fully torn down first, exactly
// as if it had left. Invalid registrations are reported to the
// offending connection via a registration_error event and returned.
func (c *Coordinator) Register(identity, rawName, rawTier string) error {
	tier, ok := profile.ParseTier(rawTier)
	if !ok {
		c.emitter.Emit(identity, Event{Type: EventRegistrationError, Payload: RegistrationErrorPayload{Message: ErrUnknownTier.Error()}})
		return ErrUnknownTier
	}
	name, ok := profile.NormalizeName(rawName)
	if !ok {
		c.emitter.Emit(identity, Event{Type: EventRegistrationError, Payload: RegistrationErrorPayload{Message: ErrInvalidName.Error()}})
		return ErrInvalidName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-registration must never leave a stale queue entry or an
	// orphaned session behind.
	if c.registry.Get(identity) != nil {
		c.teardownLocked(identity, "re-registration")
	}

	p := c.registry.Put(identity, name, tier)
	c.logger.Info("registered",
		zap.String("identity", identity),
		zap.String("name", name),
		zap.String("tier", string(tier)))

	c.attemptMatchLocked(p)
	return nil
}

// attemptMatchLocked pairs the profile against its tier queue, or
// enqueues it if no live partner is waiting. Dead candidates at the
// queue head are discarded, never re-enqueued, so the loop terminates:
// the queue strictly shrinks each iteration and p was not enqueued
// before this call.
func (c *Coordinator) attemptMatchLocked(p *profile.Profile) {
	for {
		candidate, ok := c.queues.DequeueNext(p.Tier)
		if !ok {
			c.queues.Enqueue(p.Tier, p.Identity)
			c.emitter.Emit(p.Identity, Event{Type: EventQueueWaiting, Payload: QueueWaitingPayload{Tier: p.Tier}})
			return
		}

		// Self-match guard plus liveness re-validation: the candidate
		// may have disconnected while waiting, or slipped into a
		// session through a racing event.
		if candidate == p.Identity {
			continue
		}
		partner := c.registry.Get(candidate)
		if partner == nil || partner.InSession() {
			c.logger.Debug("discarding stale queue entry", zap.String("identity", candidate))
			continue
		}

		sess := session.New(p.Tier, p.Identity, candidate)
		c.sessions.Put(sess)
		p.SessionID = sess.ID
		partner.SessionID = sess.ID

		c.logger.Info("matched",
			zap.String("session_id", sess.ID),
			zap.String("tier", string(p.Tier)),
			zap.String("caller", p.Identity),
			zap.String("callee", candidate))

		// The newly arriving connection always initiates; the waiter
		// answers. This breaks symmetry for offer/answer protocols.
		c.emitter.Emit(p.Identity, Event{Type: EventMatchFound, Payload: MatchFoundPayload{
			SessionID: sess.ID,
			Partner:   partner.Public(),
			Role:      RoleCaller,
		}})
		c.emitter.Emit(candidate, Event{Type: EventMatchFound, Payload: MatchFoundPayload{
			SessionID: sess.ID,
			Partner:   p.Public(),
			Role:      RoleCallee,
		}})
		return
	}
}

// Message relays chat text to both session participants with the
// sender's name and a server-assigned timestamp. Text is trimmed and
// truncated; empty text and out-of-session messages are dropped.
func (c *Coordinator) Message(identity, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if runes := []rune(text); len(runes) > maxMessageLength {
		text = string(runes[:maxMessageLength])
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, sess := c.sessionOfLocked(identity)
	if sess == nil {
		return
	}

	msg := MessagePayload{Sender: p.Name, Text: text, Time: time.Now()}
	for _, member := range sess.Participants {
		c.emitter.Emit(member, Event{Type: EventMessage, Payload: msg})
	}

	if c.transcripts != nil {
		c.transcripts.Append(&transcript.Message{
			ID:        uuid.NewString(),
			SessionID: sess.ID,
			Sender:    p.Name,
			Text:      text,
			SentAt:    msg.Time,
		})
	}
}

// Signal forwards an opaque signaling payload to the other session
// participant, unmodified. Out-of-session signals are dropped silently.
func (c *Coordinator) Signal(identity string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, sess := c.sessionOfLocked(identity)
	if sess == nil {
		return
	}
	if partner, ok := sess.Partner(identity); ok {
		c.emitter.Emit(partner, rawSignal(payload))
	}
}

// Typing forwards a typing indicator to the other session participant.
func (c *Coordinator) Typing(identity string, typing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, sess := c.sessionOfLocked(identity)
	if sess == nil {
		return
	}
	if partner, ok := sess.Partner(identity); ok {
		c.emitter.Emit(partner, Event{Type: EventPartnerTyping, Payload: PartnerTypingPayload{Typing: typing}})
	}
}

// sessionOfLocked resolves the identity's active session. Returns a
// nil session if the identity is unregistered or not in a session.
func (c *Coordinator) sessionOfLocked(identity string) (*profile.Profile, *session.Session) {
	p := c.registry.Get(identity)
	if p == nil || !p.InSession() {
		return p, nil
	}
	return p, c.sessions.Get(p.SessionID)
}

// Leave tears down the identity's state after an explicit leave event.
func (c *Coordinator) Leave(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked(identity, "leave")
}

// Disconnect tears down the identity's state after its connection closed.
func (c *Coordinator) Disconnect(identity, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked(identity, reason)
}

// teardownLocked removes the identity from whichever queue or session
// it occupies, notifies the partner, and removes the profile. The
// partner's session reference is cleared but the partner is never
// auto-requeued; it must register again to re-enter matchmaking.
// Idempotent.
func (c *Coordinator) teardownLocked(identity, reason string) {
	c.queues.RemoveIfPresent(identity)

	p := c.registry.Get(identity)
	if p == nil {
		return
	}

	if p.InSession() {
		if sess := c.sessions.Get(p.SessionID); sess != nil {
			c.sessions.Remove(sess.ID)
			if c.transcripts != nil {
				c.transcripts.DeleteSession(sess.ID)
			}
			if partnerID, ok := sess.Partner(identity); ok {
				if partner := c.registry.Get(partnerID); partner != nil {
					partner.SessionID = ""
					c.emitter.Emit(partnerID, Event{Type: EventPartnerDisconnected, Payload: PartnerDisconnectedPayload{}})
				}
			}
			c.logger.Info("session ended",
				zap.String("session_id", sess.ID),
				zap.String("identity", identity),
				zap.String("reason", reason))
		}
	}

	c.registry.Remove(identity)
}

// reapLoop periodically evicts waiters past the maximum queue wait.
func (c *Coordinator) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(queueReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evictStaleWaiters(time.Now())
		}
	}
}

// evictStaleWaiters removes waiters enqueued before now-maxQueueWait,
// notifying each with a queue_timeout event before teardown.
func (c *Coordinator) evictStaleWaiters(now time.Time) {
	if c.maxQueueWait <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, identity := range c.queues.StaleSince(now.Add(-c.maxQueueWait)) {
		p := c.registry.Get(identity)
		if p == nil {
			c.queues.RemoveIfPresent(identity)
			continue
		}
		c.emitter.Emit(identity, Event{Type: EventQueueTimeout, Payload: QueueTimeoutPayload{Tier: p.Tier}})
		c.teardownLocked(identity, "queue timeout")
		c.logger.Info("evicted stale waiter", zap.String("identity", identity), zap.String("tier", string(p.Tier)))
	}
}

// TranscriptCounts returns the number of stored chat messages per
// active session, or nil when no transcript store is configured. The
// counts are read outside the mutex so a slow store backend cannot
// stall matchmaking.
func (c *Coordinator) TranscriptCounts() map[string]int {
	c.mu.Lock()
	ids := c.sessions.IDs()
	store := c.transcripts
	c.mu.Unlock()

	if store == nil {
		return nil
	}
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id] = store.Count(id)
	}
	return counts
}

// Transcript returns up to n of the most recent chat messages of an
// active session, oldest first. Returns nil for unknown sessions or
// when no transcript store is configured.
func (c *Coordinator) Transcript(sessionID string, n int) []*transcript.Message {
	c.mu.Lock()
	sess := c.sessions.Get(sessionID)
	store := c.transcripts
	c.mu.Unlock()

	if sess == nil || store == nil {
		return nil
	}
	return store.Recent(sessionID, n)
}

// Stats is a point-in-time snapshot of coordinator state.
type Stats struct {
	RegisteredProfiles int                  `json:"registered_profiles"`
	ActiveSessions     int                  `json:"active_sessions"`
	WaitingByTier      map[profile.Tier]int `json:"waiting_by_tier"`
}

// Snapshot returns current coordinator statistics.
func (c *Coordinator) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		RegisteredProfiles: c.registry.Len(),
		ActiveSessions:     c.sessions.Len(),
		WaitingByTier:      c.queues.Waiting(),
	}
}
