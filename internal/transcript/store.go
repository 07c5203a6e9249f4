package transcript

import "sync"

// MemoryStore keeps recent messages per session in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*Message
	maxSize  int
}

// NewMemoryStore creates a store retaining up to maxSize messages per session.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]*Message),
		maxSize:  maxSize,
	}
}

// Append adds a message to its session's history, trimming to maxSize.
func (s *MemoryStore) Append(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.sessions[msg.SessionID], msg)
	if len(msgs) > s.maxSize {
		msgs = msgs[len(msgs)-s.maxSize:]
	}
	s.sessions[msg.SessionID] = msgs
}

// Recent returns the last n messages for a session, oldest first.
func (s *MemoryStore) Recent(sessionID string, n int) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	result := make([]*Message, len(msgs))
	copy(result, msgs)
	return result
}

// DeleteSession removes all stored messages for a session.
func (s *MemoryStore) DeleteSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Count returns the number of stored messages for a session.
func (s *MemoryStore) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}
