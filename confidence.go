package counsel

// ConfidenceInputs are the signals the confidence heuristic reads.
type ConfidenceInputs struct {
	SourceCount        int
	ContextRelevance   float64
	HistoricalAccuracy bool
}

// Confidence weights, in hundredths.
const (
	confidenceBase       = 70
	confidenceBonus      = 10
	confidenceMax        = 100
	sourceThreshold      = 3
	relevanceThreshold   = 0.80
	confidenceResolution = 100.0
)

// Confidence scores a response: 0.70 base, +0.10 for more than three sources,
// +0.10 for context relevance above 0.80, +0.10 for historical accuracy,
// clamped at 1.00. Arithmetic is done in hundredths so the result is exact.
func Confidence(in ConfidenceInputs) float64 {
	score := confidenceBase
	if in.SourceCount > sourceThreshold {
		score += confidenceBonus
	}
	if in.ContextRelevance > relevanceThreshold {
		score += confidenceBonus
	}
	if in.HistoricalAccuracy {
		score += confidenceBonus
	}
	if score > confidenceMax {
		score = confidenceMax
	}
	return float64(score) / confidenceResolution
}
