package transcript

import (
	"fmt"
	"testing"
	"time"
)

func msg(id, sessionID, text string) *Message {
	return &Message{
		ID:        id,
		SessionID: sessionID,
		Sender:    "Mia",
		Text:      text,
		SentAt:    time.Now(),
	}
}

func TestMemoryStoreAppendAndCount(t *testing.T) {
	s := NewMemoryStore(100)

	s.Append(msg("1", "s1", "hello"))
	s.Append(msg("2", "s1", "world"))

	if s.Count("s1") != 2 {
		t.Fatalf("expected 2 messages, got %d", s.Count("s1"))
	}
	if s.Count("s2") != 0 {
		t.Fatalf("expected 0 messages for s2, got %d", s.Count("s2"))
	}
}

func TestMemoryStoreMaxSize(t *testing.T) {
	s := NewMemoryStore(3)

	for i := 0; i < 5; i++ {
		s.Append(msg(fmt.Sprintf("%d", i), "s1", fmt.Sprintf("msg-%d", i)))
	}

	if s.Count("s1") != 3 {
		t.Fatalf("expected 3 messages (max size), got %d", s.Count("s1"))
	}

	recent := s.Recent("s1", 10)
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent messages, got %d", len(recent))
	}
	if recent[0].ID != "2" || recent[2].ID != "4" {
		t.Errorf("expected IDs [2..4], got [%s..%s]", recent[0].ID, recent[2].ID)
	}
}

func TestMemoryStoreRecentLimit(t *testing.T) {
	s := NewMemoryStore(100)
	s.Append(msg("1", "s1", "a"))
	s.Append(msg("2", "s1", "b"))
	s.Append(msg("3", "s1", "c"))

	recent := s.Recent("s1", 2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(recent))
	}
	if recent[0].ID != "2" || recent[1].ID != "3" {
		t.Errorf("expected IDs [2, 3], got [%s, %s]", recent[0].ID, recent[1].ID)
	}
}

func TestMemoryStoreDeleteSession(t *testing.T) {
	s := NewMemoryStore(100)
	s.Append(msg("1", "s1", "a"))
	s.Append(msg("2", "s2", "b"))

	s.DeleteSession("s1")

	if s.Count("s1") != 0 {
		t.Errorf("expected s1 transcript deleted, got %d", s.Count("s1"))
	}
	if s.Count("s2") != 1 {
		t.Errorf("expected s2 untouched, got %d", s.Count("s2"))
	}
}
