package session

import (
	"testing"

	"github.com/linguapair/linguapair/internal/profile"
)

func TestNewSession(t *testing.T) {
	s := New(profile.TierB1, "x", "y")

	if s.ID == "" {
		t.Fatal("expected a session id")
	}
	if s.Tier != profile.TierB1 {
		t.Errorf("expected tier B1, got %q", s.Tier)
	}
	if s.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if !s.Has("x") || !s.Has("y") {
		t.Error("expected both participants to be members")
	}
	if s.Has("z") {
		t.Error("z should not be a member")
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := New(profile.TierA1, "x", "y")
	b := New(profile.TierA1, "x", "y")
	if a.ID == b.ID {
		t.Fatalf("expected distinct session ids, both %q", a.ID)
	}
}

func TestPartner(t *testing.T) {
	s := New(profile.TierA2, "x", "y")

	if p, ok := s.Partner("x"); !ok || p != "y" {
		t.Errorf("Partner(x) = %q, %v; want y", p, ok)
	}
	if p, ok := s.Partner("y"); !ok || p != "x" {
		t.Errorf("Partner(y) = %q, %v; want x", p, ok)
	}
	if _, ok := s.Partner("z"); ok {
		t.Error("Partner(z) should fail")
	}
}

func TestTablePutGetRemove(t *testing.T) {
	tbl := NewTable()
	s := New(profile.TierC2, "x", "y")

	tbl.Put(s)
	if tbl.Get(s.ID) != s {
		t.Fatal("expected to find session by id")
	}
	if tbl.Len() != 1 {
		t.Errorf("expected 1 session, got %d", tbl.Len())
	}

	tbl.Remove(s.ID)
	if tbl.Get(s.ID) != nil {
		t.Error("expected session to be removed")
	}
	tbl.Remove(s.ID) // idempotent
	if tbl.Len() != 0 {
		t.Errorf("expected empty table, got %d", tbl.Len())
	}
}
