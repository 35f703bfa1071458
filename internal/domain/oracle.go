package domain

import (
	"context"
)

// Oracle is the trained classifier. Predict returns the probability of the
// favorable outcome (approval) in [0,1] and must be deterministic.
type Oracle interface {
	Predict(ctx context.Context, features *ScoringFeatures) (float64, error)
}

// OracleCloser is implemented by oracles holding native or remote resources.
type OracleCloser interface {
	Oracle
	Close() error
}

// PositiveClass names the class an oracle's raw probability refers to.
type PositiveClass string

const (
	PositiveApproval PositiveClass = "approval"
	PositiveDefault  PositiveClass = "default"
)
