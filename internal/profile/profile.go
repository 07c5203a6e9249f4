package profile

import (
	"strings"
	"time"
)

// maxNameLength is the maximum display name length in runes. Longer
// names are truncated, not rejected.
const maxNameLength = 25

// Profile holds the registered state of one live connection.
type Profile struct {
	// Identity is the connection identity assigned by the transport.
	// It is stable for the lifetime of the connection and meaningless
	// after the connection closes.
	Identity string

	Name         string
	Tier         Tier
	RegisteredAt time.Time

	// SessionID references the active session this profile belongs to.
	// Empty while waiting in a queue or idle. If set, the referenced
	// session's participant set contains Identity.
	SessionID string
}

// InSession reports whether the profile currently belongs to a session.
func (p *Profile) InSession() bool {
	return p.SessionID != ""
}

// Public is the partner-visible subset of a profile. Connection
// identities are never exposed to the other side.
type Public struct {
	Name string `json:"name"`
	Tier Tier   `json:"tier"`
}

// Public returns the partner-visible view of the profile.
func (p *Profile) Public() Public {
	return Public{Name: p.Name, Tier: p.Tier}
}

// NormalizeName trims surrounding whitespace and truncates the name to
// the maximum length. Returns false if the name is empty after trimming.
func NormalizeName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", false
	}
	if runes := []rune(name); len(runes) > maxNameLength {
		name = strings.TrimSpace(string(runes[:maxNameLength]))
	}
	return name, true
}
