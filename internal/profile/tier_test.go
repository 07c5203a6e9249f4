package profile

import "testing"

func TestParseTierNormalizesCase(t *testing.T) {
	for _, raw := range []string{"a1", "A1", " a1 ", "a1 "} {
		tier, ok := ParseTier(raw)
		if !ok {
			t.Fatalf("ParseTier(%q) should succeed", raw)
		}
		if tier != TierA1 {
			t.Errorf("ParseTier(%q) = %q, want A1", raw, tier)
		}
	}
}

func TestParseTierAllLevels(t *testing.T) {
	for _, want := range Tiers() {
		got, ok := ParseTier(string(want))
		if !ok || got != want {
			t.Errorf("ParseTier(%q) = %q, %v", want, got, ok)
		}
	}
}

func TestParseTierRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "D1", "A3", "native", "a", "1"} {
		if _, ok := ParseTier(raw); ok {
			t.Errorf("ParseTier(%q) should fail", raw)
		}
	}
}
