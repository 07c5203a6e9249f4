package session

// Table maps session ids to live sessions. Owned by the match
// coordinator; not safe for unserialized concurrent use.
type Table struct {
	sessions map[string]*Session
}

// NewTable creates an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

// Put inserts the session.
func (t *Table) Put(s *Session) {
	t.sessions[s.ID] = s
}

// Get returns the session with the given id, or nil.
func (t *Table) Get(id string) *Session {
	return t.sessions[id]
}

// Remove deletes the session. Once removed, an id is never resurrected.
func (t *Table) Remove(id string) {
	delete(t.sessions, id)
}

// IDs returns the ids of all active sessions, in no particular order.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of active sessions.
func (t *Table) Len() int {
	return len(t.sessions)
}
