package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedOracle struct {
	p     float64
	err   error
	calls int
}

func (o *fixedOracle) Predict(ctx context.Context, f *domain.ScoringFeatures) (float64, error) {
	o.calls++
	return o.p, o.err
}

func newTestEngine(t *testing.T, oracle domain.Oracle) *Engine {
	t.Helper()
	e, err := NewEngine(oracle, nil, domain.DefaultScoringConfig())
	require.NoError(t, err)
	return e
}

// probabilityFor returns the approval probability that maps to score on 300-800.
func probabilityFor(score int) float64 {
	return float64(score-300) / 500
}

func profile(history string, collateral, missingDocs bool) *domain.ApplicantProfile {
	return &domain.ApplicantProfile{
		AgeGroup:             "35-44",
		Gender:               "Female",
		Region:               "Rural",
		MonthlyIncome:        50000,
		EmploymentStatus:     "Self-employed",
		EducationGrade:       "C+",
		LearningAdaptability: "Moderate",
		SupportServicesUsage: "No",
		PsychosocialSupport:  "Low",
		RepaymentHistory:     history,
		HasCollateral:        collateral,
		MissingDocuments:     missingDocs,
		RequestedAmount:      80000,
	}
}

func TestMapScore(t *testing.T) {
	t.Run("Anchors", func(t *testing.T) {
		for p, want := range map[float64]int{0.0: 300, 1.0: 800, 0.5: 550} {
			got, err := MapScore(p, 300, 800)
			require.NoError(t, err)
			assert.Equal(t, want, got, "p=%v", p)
		}
	})

	t.Run("Monotonic", func(t *testing.T) {
		prev := 0
		for i := 0; i <= 1000; i++ {
			score, err := MapScore(float64(i)/1000, 300, 800)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score, prev)
			assert.GreaterOrEqual(t, score, 300)
			assert.LessOrEqual(t, score, 800)
			prev = score
		}
	})

	t.Run("RoundsHalfAwayFromZero", func(t *testing.T) {
		score, err := MapScore(0.001, 300, 800) // 300.5
		require.NoError(t, err)
		assert.Equal(t, 301, score)
	})

	t.Run("RejectsOutOfRange", func(t *testing.T) {
		for _, p := range []float64{-0.01, 1.0001, math.NaN(), math.Inf(1)} {
			_, err := MapScore(p, 300, 800)
			require.Error(t, err, "p=%v", p)
			assert.ErrorIs(t, err, domain.ErrInvalidRange)
			assert.Equal(t, "probability", domain.ErrorField(err))
		}
	})

	t.Run("InvalidBounds", func(t *testing.T) {
		_, err := MapScore(0.5, 800, 800)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestNewEngineConfiguration(t *testing.T) {
	t.Run("MinNotBelowMax", func(t *testing.T) {
		cfg := domain.DefaultScoringConfig()
		cfg.MinScore, cfg.MaxScore = 800, 300
		_, err := NewEngine(nil, nil, cfg)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("EmptyTiers", func(t *testing.T) {
		cfg := domain.DefaultScoringConfig()
		cfg.LoanTiers = nil
		_, err := NewEngine(nil, nil, cfg)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("AscendingTiers", func(t *testing.T) {
		cfg := domain.DefaultScoringConfig()
		cfg.LoanTiers = []domain.LoanTier{{MinScore: 600, Multiplier: 1.5}, {MinScore: 750, Multiplier: 3}}
		_, err := NewEngine(nil, nil, cfg)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("ZeroMultiplier", func(t *testing.T) {
		cfg := domain.DefaultScoringConfig()
		cfg.LoanTiers = []domain.LoanTier{{MinScore: 0, Multiplier: 0}}
		_, err := NewEngine(nil, nil, cfg)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestDecideProbability(t *testing.T) {
	e := newTestEngine(t, nil)

	tests := []struct {
		name    string
		score   int
		profile *domain.ApplicantProfile
		want    domain.Outcome
	}{
		{"Rule1", 720, profile("good", false, false), domain.OutcomeApproved},
		{"Rule2", 650, profile("average", true, false), domain.OutcomeApproved},
		{"Rule3ScoreBand", 550, profile("poor", false, false), domain.OutcomeReview},
		{"OverrideForcesReview", 720, profile("good", false, true), domain.OutcomeReview},
		{"RejectionBoundary", 499, profile("poor", false, false), domain.OutcomeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.DecideProbability(probabilityFor(tt.score), tt.profile)
			require.NoError(t, err)
			assert.Equal(t, tt.score, result.CreditScore)
			assert.Equal(t, tt.want, result.Decision)

			if tt.want == domain.OutcomeApproved {
				require.NotNil(t, result.LoanAmount)
				assert.Contains(t, result.Message, "KES")
			} else {
				assert.Nil(t, result.LoanAmount)
			}
			assert.Contains(t, result.Message, fmt.Sprint(tt.score))
		})
	}

	t.Run("ProbabilityRoundedToFourPlaces", func(t *testing.T) {
		result, err := e.DecideProbability(0.123456789, profile("poor", false, false))
		require.NoError(t, err)
		assert.Equal(t, 0.1235, result.Probability)
	})

	t.Run("RejectsBadProbability", func(t *testing.T) {
		_, err := e.DecideProbability(1.5, profile("good", true, false))
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
	})
}

func TestLoanAmount(t *testing.T) {
	e := newTestEngine(t, nil)

	t.Run("TierBoundaries", func(t *testing.T) {
		assert.Equal(t, 150000.0, e.EstimateLoanAmount(50000, 750))
		assert.Equal(t, 125000.0, e.EstimateLoanAmount(50000, 749))
		assert.Equal(t, 125000.0, e.EstimateLoanAmount(50000, 700))
		assert.Equal(t, 100000.0, e.EstimateLoanAmount(50000, 650))
		assert.Equal(t, 75000.0, e.EstimateLoanAmount(50000, 600))
		assert.Equal(t, 50000.0, e.EstimateLoanAmount(50000, 599))
	})

	t.Run("RoundsToThousands", func(t *testing.T) {
		assert.Equal(t, 44000.0, e.EstimateLoanAmount(17499, 700)) // 43747.5
		assert.Equal(t, 2000.0, e.EstimateLoanAmount(2500, 400))   // tie to even
		assert.Equal(t, 4000.0, e.EstimateLoanAmount(3500, 400))   // tie to even
	})

	t.Run("ApprovedAtSevenFifty", func(t *testing.T) {
		result, err := e.DecideProbability(probabilityFor(750), profile("good", false, false))
		require.NoError(t, err)
		require.NotNil(t, result.LoanAmount)
		assert.Equal(t, 150000.0, *result.LoanAmount)
		assert.Equal(t,
			"Congratulations! Your loan has been approved with a credit score of 750. The approved loan amount is KES 150,000.",
			result.Message)
	})
}

func TestMessages(t *testing.T) {
	e := newTestEngine(t, nil)

	assert.Equal(t,
		"Your loan application is under review. A loan officer will contact you shortly. (Credit score: 550)",
		e.Message(domain.OutcomeReview, 550, nil))
	assert.Equal(t,
		"We're sorry, your loan application was not approved at this time. (Credit score: 420)",
		e.Message(domain.OutcomeRejected, 420, nil))
	assert.Equal(t, "1,250,000", e.FormatAmount(1250000))
}

func TestDecide(t *testing.T) {
	t.Run("UsesOracle", func(t *testing.T) {
		oracle := &fixedOracle{p: 0.9}
		e := newTestEngine(t, oracle)

		result, err := e.Decide(context.Background(), &domain.ScoringFeatures{}, profile("good", false, false))
		require.NoError(t, err)
		assert.Equal(t, 1, oracle.calls)
		assert.Equal(t, 750, result.CreditScore)
		assert.Equal(t, 0.9, result.Probability)
	})

	t.Run("OracleErrorPropagatesUnchanged", func(t *testing.T) {
		cause := fmt.Errorf("%w: model file missing", domain.ErrOracleUnavailable)
		e := newTestEngine(t, &fixedOracle{err: cause})

		result, err := e.Decide(context.Background(), &domain.ScoringFeatures{}, profile("good", false, false))
		assert.Nil(t, result)
		assert.Same(t, cause, err)
	})

	t.Run("GarbageProbability", func(t *testing.T) {
		e := newTestEngine(t, &fixedOracle{p: math.NaN()})
		_, err := e.Decide(context.Background(), &domain.ScoringFeatures{}, profile("good", false, false))
		assert.ErrorIs(t, err, domain.ErrPrediction)
	})

	t.Run("NoOracle", func(t *testing.T) {
		e := newTestEngine(t, nil)
		_, err := e.Decide(context.Background(), &domain.ScoringFeatures{}, profile("good", false, false))
		assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
	})

	t.Run("Idempotent", func(t *testing.T) {
		e := newTestEngine(t, &fixedOracle{p: 0.8123})
		p := profile("average", true, false)

		first, err := e.Decide(context.Background(), &domain.ScoringFeatures{}, p)
		require.NoError(t, err)
		second, err := e.Decide(context.Background(), &domain.ScoringFeatures{}, p)
		require.NoError(t, err)

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		assert.Equal(t, string(a), string(b))
	})
}

func TestReissue(t *testing.T) {
	e := newTestEngine(t, nil)
	review, err := e.DecideProbability(probabilityFor(560), profile("poor", false, false))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeReview, review.Decision)

	offer := e.EstimateLoanAmount(50000, review.CreditScore)
	approved := e.Reissue(review, domain.OutcomeApproved, &offer)
	require.NotNil(t, approved.LoanAmount)
	assert.Equal(t, 50000.0, *approved.LoanAmount)
	assert.Contains(t, approved.Message, "KES 50,000")
	assert.Equal(t, domain.OutcomeReview, review.Decision, "original must not change")

	rejected := e.Reissue(review, domain.OutcomeRejected, &offer)
	assert.Nil(t, rejected.LoanAmount)
}
