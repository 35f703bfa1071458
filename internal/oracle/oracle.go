// Package oracle provides the classifier backends behind domain.Oracle.
//
// Every backend returns the approval probability. Models trained on the
// default class are wrapped with WithPositiveClass at construction.
package oracle

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// New creates the oracle selected by cfg.Backend. bus is only used by the
// remote backend and may be nil otherwise.
func New(cfg domain.OracleConfig, bus domain.EventBus) (domain.Oracle, error) {
	var (
		o   domain.Oracle
		err error
	)

	switch cfg.Backend {
	case "logistic", "":
		o, err = LoadLogistic(cfg.ModelPath)

	case "onnx":
		o, err = NewONNX(ONNXConfig{
			LibraryPath:   cfg.ONNXLibrary,
			ModelPath:     cfg.ModelPath,
			InputName:     cfg.InputName,
			OutputName:    cfg.OutputName,
			PositiveIndex: cfg.PositiveIndex,
		})

	case "remote":
		if bus == nil {
			return nil, domain.ConfigError("remote oracle requires an event bus")
		}
		o = NewRemote(bus, time.Duration(cfg.TimeoutMs)*time.Millisecond)

	default:
		return nil, domain.ConfigError("unsupported oracle backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("oracle initialized",
		"backend", cfg.Backend,
		"model", cfg.ModelPath,
		"positive_class", cfg.PositiveClass,
	)

	return WithPositiveClass(o, cfg.PositiveClass)
}

// Close releases o if it holds resources.
func Close(o domain.Oracle) error {
	if c, ok := o.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// checkProbability rejects outputs that are not a probability.
func checkProbability(p float64) (float64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: probability %v outside [0, 1]", domain.ErrPrediction, p)
	}
	return p, nil
}
