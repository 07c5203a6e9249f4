// Package transcript keeps bounded per-session chat history. The relay
// records each delivered chat message; the history is dropped when the
// session ends.
package transcript

import "time"

// Message is one delivered chat message within a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
}

// Store is the interface for transcript backends.
type Store interface {
	Append(msg *Message)
	Recent(sessionID string, n int) []*Message
	DeleteSession(sessionID string)
	Count(sessionID string) int
}
