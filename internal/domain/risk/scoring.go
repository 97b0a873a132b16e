package risk

import "math"

// tierThresholds are the half-open upper bounds of each tier on the 0-100
// normalized scale. A score equal to a bound lands in the next tier up.
var tierThresholds = []struct {
	upper float64
	tier  Tier
}{
	{25, TierLow},
	{50, TierModerate},
	{75, TierHigh},
	{90, TierVeryHigh},
}

// tierPriorities orders tiers for aggregation tie-breaks: the highest
// priority tier dominates a patient's combined profile.
var tierPriorities = map[Tier]int{
	TierLow:      1,
	TierModerate: 2,
	TierHigh:     3,
	TierVeryHigh: 4,
	TierCritical: 5,
}

// TierPriority returns the ordering rank of a tier (low=1 .. critical=5).
// Unknown tiers rank 0.
func TierPriority(t Tier) int {
	return tierPriorities[t]
}

// NormalizeScore maps a raw model score onto the 0-100 scale using a
// type-specific rule. Values above the scale are clamped, never rejected:
// callers may submit a probability above 1 by mistake and the clamp absorbs
// it. There is no lower clamp, so a negative raw score passes through as a
// negative normalized value (and classifies as low).
func NormalizeScore(raw float64, scoreType ScoreType) float64 {
	switch scoreType {
	case ScoreTypeHCCRAF:
		// RAF values cluster around 0.5 to 5
		return math.Min(100, raw/3*100)
	case ScoreTypeHospitalizationRisk, ScoreTypeReadmissionRisk, ScoreTypeEDUtilization, ScoreTypeMortalityRisk:
		// Probability scores (0-1)
		return raw * 100
	case ScoreTypeCostPrediction:
		// Cost normalized against population average annual cost
		return math.Min(100, raw/50000*100)
	default:
		return math.Min(100, raw)
	}
}

// ClassifyTier buckets a normalized score into one of the five risk tiers.
// Boundary scores belong to the higher tier: exactly 25 is moderate.
func ClassifyTier(normalized float64) Tier {
	for _, t := range tierThresholds {
		if normalized < t.upper {
			return t.tier
		}
	}
	return TierCritical
}

// percentileRank converts a strictly-lower count and reference total into an
// integer percentile. An empty reference population yields the neutral
// default of 50.
func percentileRank(lowerCount, totalCount int) int {
	if totalCount == 0 {
		return 50
	}
	return int(math.Round(float64(lowerCount) / float64(totalCount) * 100))
}
