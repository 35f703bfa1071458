package decision

import (
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Multiplier returns the income multiplier of the first tier the score reaches.
func (e *Engine) Multiplier(score int) float64 {
	for _, tier := range e.tiers {
		if score >= tier.MinScore {
			return tier.Multiplier
		}
	}
	return 1.0
}

// EstimateLoanAmount returns income * multiplier rounded to the nearest
// thousand, ties to even.
func (e *Engine) EstimateLoanAmount(income float64, score int) float64 {
	amount := decimal.NewFromFloat(income).
		Mul(decimal.NewFromFloat(e.Multiplier(score))).
		RoundBank(-3)
	f, _ := amount.Float64()
	return f
}

func validateTiers(tiers []domain.LoanTier) error {
	if len(tiers) == 0 {
		return domain.ConfigError("loan tiers are empty")
	}
	for i, tier := range tiers {
		if tier.Multiplier <= 0 {
			return domain.ConfigError("loan tier %d: multiplier must be positive", tier.MinScore)
		}
		if i > 0 && tier.MinScore >= tiers[i-1].MinScore {
			return domain.ConfigError("loan tiers must be ordered by descending min_score")
		}
	}
	return nil
}
