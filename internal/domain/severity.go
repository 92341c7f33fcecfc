package domain

// Tier is the notability classification derived from the best rank seen.
type Tier string

const (
	TierTop    Tier = "top"
	TierHigh   Tier = "high"
	TierNormal Tier = "normal"
)

// Classify buckets ranks into a tier: top when the best rank is within 3,
// high when within threshold, normal otherwise. Empty ranks are normal.
func Classify(ranks []int, threshold int) Tier {
	if len(ranks) == 0 {
		return TierNormal
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		best = min(best, r)
	}
	if threshold <= 0 {
		threshold = DefaultRankThreshold
	}
	switch {
	case best <= 3:
		return TierTop
	case best <= threshold:
		return TierHigh
	default:
		return TierNormal
	}
}
