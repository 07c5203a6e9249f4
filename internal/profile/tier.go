package profile

import "strings"

// Tier is a CEFR proficiency level. Participants are only ever matched
// within a single tier.
type Tier string

const (
	TierA1 Tier = "A1"
	TierA2 Tier = "A2"
	TierB1 Tier = "B1"
	TierB2 Tier = "B2"
	TierC1 Tier = "C1"
	TierC2 Tier = "C2"
)

// Tiers returns all tiers in ascending proficiency order.
func Tiers() []Tier {
	return []Tier{TierA1, TierA2, TierB1, TierB2, TierC1, TierC2}
}

// ParseTier normalizes a raw tier string ("b2", " B2 ") to its canonical
// form. Returns false if the value is not a recognized tier.
func ParseTier(raw string) (Tier, bool) {
	t := Tier(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case TierA1, TierA2, TierB1, TierB2, TierC1, TierC2:
		return t, true
	}
	return "", false
}
