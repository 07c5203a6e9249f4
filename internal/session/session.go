// Package session defines established two-party pairings and the table
// that tracks them.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/linguapair/linguapair/internal/profile"
)

// Session is an established pairing of exactly two distinct connection
// identities matched under one tier. A session ends when either
// participant leaves or disconnects; its id is never reused.
type Session struct {
	ID           string
	Tier         profile.Tier
	Participants [2]string
	CreatedAt    time.Time
}

// New creates a session pairing the two identities under the tier.
func New(tier profile.Tier, a, b string) *Session {
	return &Session{
		ID:           uuid.NewString(),
		Tier:         tier,
		Participants: [2]string{a, b},
		CreatedAt:    time.Now(),
	}
}

// Has reports whether the identity is a participant of the session.
func (s *Session) Has(identity string) bool {
	return s.Participants[0] == identity || s.Participants[1] == identity
}

// Partner returns the other participant. Returns false if the identity
// is not a participant of this session.
func (s *Session) Partner(identity string) (string, bool) {
	switch identity {
	case s.Participants[0]:
		return s.Participants[1], true
	case s.Participants[1]:
		return s.Participants[0], true
	}
	return "", false
}
