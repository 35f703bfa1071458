// Package decision turns an oracle probability into a credit score, a rule
// table decision, a loan offer and a customer message.
package decision

import (
	"context"
	"fmt"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
	"golang.org/x/text/language"
)

// Engine is stateless between calls and safe for concurrent use.
type Engine struct {
	oracle   domain.Oracle
	table    *rules.Engine
	minScore int
	maxScore int
	tiers    []domain.LoanTier
	currency string
	lang     language.Tag
}

// NewEngine validates the scoring configuration and builds an engine.
// A nil table uses the default decision table.
func NewEngine(oracle domain.Oracle, table *rules.Engine, cfg domain.ScoringConfig) (*Engine, error) {
	if cfg.MinScore >= cfg.MaxScore {
		return nil, domain.ConfigError("min_score %d must be below max_score %d", cfg.MinScore, cfg.MaxScore)
	}
	if err := validateTiers(cfg.LoanTiers); err != nil {
		return nil, err
	}
	if table == nil {
		var err error
		if table, err = rules.NewDefaultEngine(); err != nil {
			return nil, err
		}
	}

	currency := cfg.Currency
	if currency == "" {
		currency = "KES"
	}

	tiers := make([]domain.LoanTier, len(cfg.LoanTiers))
	copy(tiers, cfg.LoanTiers)

	return &Engine{
		oracle:   oracle,
		table:    table,
		minScore: cfg.MinScore,
		maxScore: cfg.MaxScore,
		tiers:    tiers,
		currency: currency,
		lang:     language.English,
	}, nil
}

// Decide asks the oracle for the approval probability and decides on it.
// Oracle errors are returned unchanged.
func (e *Engine) Decide(ctx context.Context, features *domain.ScoringFeatures, profile *domain.ApplicantProfile) (*domain.DecisionResult, error) {
	if e.oracle == nil {
		return nil, fmt.Errorf("%w: no oracle configured", domain.ErrOracleUnavailable)
	}
	if features == nil {
		return nil, domain.MissingFieldError("features")
	}

	p, err := e.oracle.Predict(ctx, features)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: oracle returned probability %v", domain.ErrPrediction, p)
	}

	return e.DecideProbability(p, profile)
}

// DecideProbability runs scoring, the rule table, loan estimation and
// messaging for an approval probability. It performs no I/O.
func (e *Engine) DecideProbability(p float64, profile *domain.ApplicantProfile) (*domain.DecisionResult, error) {
	if profile == nil {
		return nil, domain.MissingFieldError("profile")
	}

	score, err := e.MapScore(p)
	if err != nil {
		return nil, err
	}

	outcome, err := e.table.Evaluate(rules.Input{
		Score:            score,
		RepaymentHistory: profile.RepaymentHistory,
		HasCollateral:    profile.HasCollateral,
		MissingDocuments: profile.MissingDocuments,
	})
	if err != nil {
		return nil, err
	}

	result := &domain.DecisionResult{
		CreditScore: score,
		Decision:    outcome.Decision,
		Probability: RoundProbability(p),
		MatchedRule: outcome.MatchedRule,
		Overridden:  outcome.Overridden,
	}
	if outcome.Decision == domain.OutcomeApproved {
		amount := e.EstimateLoanAmount(profile.MonthlyIncome, score)
		result.LoanAmount = &amount
	}
	result.Message = e.Message(result.Decision, result.CreditScore, result.LoanAmount)

	return result, nil
}

// Reissue returns a copy of result with a new outcome, as decided by an
// officer. amount is the offer used when the new outcome is Approved.
func (e *Engine) Reissue(result *domain.DecisionResult, outcome domain.Outcome, amount *float64) *domain.DecisionResult {
	out := *result
	out.Decision = outcome
	out.LoanAmount = nil
	out.MatchedRule = ""
	out.Overridden = false
	if outcome == domain.OutcomeApproved && amount != nil {
		v := *amount
		out.LoanAmount = &v
	}
	out.Message = e.Message(out.Decision, out.CreditScore, out.LoanAmount)
	return &out
}

// ScoreRange returns the configured bounds.
func (e *Engine) ScoreRange() (int, int) {
	return e.minScore, e.maxScore
}

// Rules returns the decision table in evaluation order.
func (e *Engine) Rules() []domain.DecisionRule {
	return e.table.Rules()
}

// RoundProbability rounds p to four decimals.
func RoundProbability(p float64) float64 {
	return math.Round(p*1e4) / 1e4
}
