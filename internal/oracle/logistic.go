package oracle

import (
	"context"
	"math"
	"os"

	"github.com/opensource-finance/kestrel/internal/domain"
	"gopkg.in/yaml.v3"
)

// LogisticModel is the YAML artifact of a standardized logistic regression.
type LogisticModel struct {
	Intercept float64            `yaml:"intercept"`
	Weights   map[string]float64 `yaml:"weights"`

	// Optional standardization, x' = (x - mean) / scale
	Means  map[string]float64 `yaml:"means,omitempty"`
	Scales map[string]float64 `yaml:"scales,omitempty"`
}

// Logistic is a pure-Go oracle evaluating a LogisticModel.
type Logistic struct {
	intercept float64
	weights   []float64
	means     []float64
	scales    []float64
}

// LoadLogistic reads and validates a model artifact.
func LoadLogistic(path string) (*Logistic, error) {
	if path == "" {
		return nil, domain.ConfigError("oracle model_path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError("read model %s: %v", path, err)
	}

	var m LogisticModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, domain.ConfigError("parse model %s: %v", path, err)
	}
	return NewLogistic(m)
}

// NewLogistic checks that every feature column has a weight and that
// scales are non-zero, and lays the parameters out in schema order.
func NewLogistic(m LogisticModel) (*Logistic, error) {
	names := domain.FeatureNames()
	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[name] = true
	}
	for name := range m.Weights {
		if !known[name] {
			return nil, domain.ConfigError("model weight for unknown feature %q", name)
		}
	}

	l := &Logistic{
		intercept: m.Intercept,
		weights:   make([]float64, len(names)),
		means:     make([]float64, len(names)),
		scales:    make([]float64, len(names)),
	}
	for i, name := range names {
		w, ok := m.Weights[name]
		if !ok {
			return nil, domain.ConfigError("model has no weight for %s", name)
		}
		l.weights[i] = w
		l.means[i] = m.Means[name]

		l.scales[i] = 1
		if s, ok := m.Scales[name]; ok {
			if s == 0 || math.IsNaN(s) {
				return nil, domain.ConfigError("model scale for %s must be non-zero", name)
			}
			l.scales[i] = s
		}
	}
	return l, nil
}

// Predict returns sigmoid(intercept + w.x).
func (l *Logistic) Predict(ctx context.Context, f *domain.ScoringFeatures) (float64, error) {
	if f == nil {
		return 0, domain.MissingFieldError("features")
	}

	z := l.intercept
	for i, x := range f.Vector() {
		z += l.weights[i] * (x - l.means[i]) / l.scales[i]
	}
	return checkProbability(1 / (1 + math.Exp(-z)))
}
