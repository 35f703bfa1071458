package oracle

import (
	"context"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// WithPositiveClass adapts an oracle whose probability refers to class so
// that it returns the approval probability.
func WithPositiveClass(o domain.Oracle, class domain.PositiveClass) (domain.Oracle, error) {
	switch class {
	case domain.PositiveApproval, "":
		return o, nil
	case domain.PositiveDefault:
		return &defaultClass{inner: o}, nil
	default:
		return nil, domain.ConfigError("unknown positive class %q", class)
	}
}

type defaultClass struct {
	inner domain.Oracle
}

func (d *defaultClass) Predict(ctx context.Context, f *domain.ScoringFeatures) (float64, error) {
	p, err := d.inner.Predict(ctx, f)
	if err != nil {
		return 0, err
	}
	if _, err := checkProbability(p); err != nil {
		return 0, err
	}
	return 1 - p, nil
}

func (d *defaultClass) Close() error {
	return Close(d.inner)
}
