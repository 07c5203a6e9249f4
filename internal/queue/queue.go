// Package queue implements the per-tier FIFO waiting lists used by the
// matchmaker. Insertion order is the only ordering rule.
package queue

import (
	"time"

	"github.com/linguapair/linguapair/internal/profile"
)

// waiter is a single queue entry. The enqueue time exists for
// diagnostics and the optional max-wait eviction policy.
type waiter struct {
	identity   string
	enqueuedAt time.Time
}

// TierQueues holds one FIFO waiting list per proficiency tier.
//
// Like the profile registry, TierQueues carries no lock of its own: the
// match coordinator owns it and serializes all access.
type TierQueues struct {
	queues map[profile.Tier][]waiter
}

// New creates empty queues for all tiers.
func New() *TierQueues {
	return &TierQueues{queues: make(map[profile.Tier][]waiter)}
}

// Enqueue appends the identity to the tail of the tier's queue. The
// caller must ensure the identity is not queued anywhere already.
func (q *TierQueues) Enqueue(tier profile.Tier, identity string) {
	q.queues[tier] = append(q.queues[tier], waiter{identity: identity, enqueuedAt: time.Now()})
}

// DequeueNext pops the identity at the head of the tier's queue.
// Returns false if the queue is empty.
func (q *TierQueues) DequeueNext(tier profile.Tier) (string, bool) {
	entries := q.queues[tier]
	if len(entries) == 0 {
		return "", false
	}
	head := entries[0]
	q.queues[tier] = entries[1:]
	return head.identity, true
}

// RemoveIfPresent scans all tiers and removes the identity's entry.
// Idempotent; returns true if an entry was removed. The identity is
// only ever in one queue, but the caller may not know which.
func (q *TierQueues) RemoveIfPresent(identity string) bool {
	for tier, entries := range q.queues {
		for i, w := range entries {
			if w.identity == identity {
				q.queues[tier] = append(entries[:i:i], entries[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Len returns the number of waiters in the tier's queue.
func (q *TierQueues) Len(tier profile.Tier) int {
	return len(q.queues[tier])
}

// Waiting returns the waiter count per tier, including empty tiers.
func (q *TierQueues) Waiting() map[profile.Tier]int {
	counts := make(map[profile.Tier]int, len(profile.Tiers()))
	for _, t := range profile.Tiers() {
		counts[t] = len(q.queues[t])
	}
	return counts
}

// StaleSince returns the identities of all waiters enqueued before the
// cutoff, across every tier. Entries are not removed.
func (q *TierQueues) StaleSince(cutoff time.Time) []string {
	var stale []string
	for _, entries := range q.queues {
		for _, w := range entries {
			if w.enqueuedAt.Before(cutoff) {
				stale = append(stale, w.identity)
			}
		}
	}
	return stale
}
