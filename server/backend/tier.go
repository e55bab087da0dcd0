package backend

// Tier is the discrete urgency classification derived from a score.
type Tier string

const (
	TierCritical Tier = "critical"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// Score thresholds, closed at the lower bound.
const (
	CriticalThreshold = 30
	MediumThreshold   = 15
)

// Classify maps an urgency score to its tier.
// Negative scores never reach the store but still classify as low.
func Classify(score int) Tier {
	switch {
	case score >= CriticalThreshold:
		return TierCritical
	case score >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Rank orders tiers so callers can compare them; low is 0.
func (t Tier) Rank() int {
	switch t {
	case TierCritical:
		return 2
	case TierMedium:
		return 1
	default:
		return 0
	}
}

// ParseTier converts a configured tier name. Unknown names return false.
func ParseTier(name string) (Tier, bool) {
	switch Tier(name) {
	case TierCritical, TierMedium, TierLow:
		return Tier(name), true
	default:
		return "", false
	}
}
