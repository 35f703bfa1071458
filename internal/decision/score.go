package decision

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// MapScore maps an approval probability onto the engine's score range.
func (e *Engine) MapScore(p float64) (int, error) {
	return MapScore(p, e.minScore, e.maxScore)
}

// MapScore returns round(min + p*(max-min)) clamped to [min, max].
// Higher approval probability never lowers the score. Probabilities outside
// [0,1] are rejected, not clamped.
func MapScore(p float64, minScore, maxScore int) (int, error) {
	if minScore >= maxScore {
		return 0, domain.ConfigError("min_score %d must be below max_score %d", minScore, maxScore)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, &domain.InvalidRangeError{Field: "probability", Value: p, Reason: "must be within [0, 1]"}
	}

	score := int(math.Round(float64(minScore) + p*float64(maxScore-minScore)))
	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}
	return score, nil
}
