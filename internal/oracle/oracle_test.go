package oracle

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

type stubOracle struct {
	p   float64
	err error
}

func (s stubOracle) Predict(ctx context.Context, f *domain.ScoringFeatures) (float64, error) {
	return s.p, s.err
}

func zeroWeights() map[string]float64 {
	w := make(map[string]float64)
	for _, name := range domain.FeatureNames() {
		w[name] = 0
	}
	return w
}

func sampleFeatures() *domain.ScoringFeatures {
	return &domain.ScoringFeatures{
		AgeGroup:         2,
		Region:           2,
		MonthlyIncome:    50000,
		RepaymentHistory: 1,
		HasCollateral:    1,
	}
}

func TestLogistic(t *testing.T) {
	ctx := context.Background()

	t.Run("InterceptOnly", func(t *testing.T) {
		l, err := NewLogistic(LogisticModel{Intercept: math.Log(3), Weights: zeroWeights()})
		require.NoError(t, err)

		p, err := l.Predict(ctx, sampleFeatures())
		require.NoError(t, err)
		assert.InDelta(t, 0.75, p, 1e-9)
	})

	t.Run("Standardization", func(t *testing.T) {
		w := zeroWeights()
		w[domain.FeatureMonthlyIncome] = 1
		l, err := NewLogistic(LogisticModel{
			Weights: w,
			Means:   map[string]float64{domain.FeatureMonthlyIncome: 50000},
			Scales:  map[string]float64{domain.FeatureMonthlyIncome: 10000},
		})
		require.NoError(t, err)

		p, err := l.Predict(ctx, sampleFeatures())
		require.NoError(t, err)
		assert.InDelta(t, 0.5, p, 1e-9)

		richer := sampleFeatures()
		richer.MonthlyIncome = 90000
		q, err := l.Predict(ctx, richer)
		require.NoError(t, err)
		assert.Greater(t, q, p)
	})

	t.Run("MissingWeight", func(t *testing.T) {
		w := zeroWeights()
		delete(w, domain.FeatureRegion)
		_, err := NewLogistic(LogisticModel{Weights: w})
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("UnknownWeight", func(t *testing.T) {
		w := zeroWeights()
		w["shoe_size"] = 1
		_, err := NewLogistic(LogisticModel{Weights: w})
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("ZeroScale", func(t *testing.T) {
		_, err := NewLogistic(LogisticModel{
			Weights: zeroWeights(),
			Scales:  map[string]float64{domain.FeatureMonthlyIncome: 0},
		})
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("Deterministic", func(t *testing.T) {
		l, err := LoadLogistic(filepath.Join("..", "..", "configs", "model.yaml"))
		require.NoError(t, err)

		a, err := l.Predict(ctx, sampleFeatures())
		require.NoError(t, err)
		b, err := l.Predict(ctx, sampleFeatures())
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.True(t, a >= 0 && a <= 1)
	})
}

func TestLoadLogistic(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadLogistic(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.yaml")
		require.NoError(t, os.WriteFile(path, []byte("weights: [1, 2"), 0o600))
		_, err := LoadLogistic(path)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := LoadLogistic("")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestWithPositiveClass(t *testing.T) {
	ctx := context.Background()

	t.Run("Approval", func(t *testing.T) {
		o, err := WithPositiveClass(stubOracle{p: 0.3}, domain.PositiveApproval)
		require.NoError(t, err)
		p, err := o.Predict(ctx, sampleFeatures())
		require.NoError(t, err)
		assert.Equal(t, 0.3, p)
	})

	t.Run("Default", func(t *testing.T) {
		o, err := WithPositiveClass(stubOracle{p: 0.3}, domain.PositiveDefault)
		require.NoError(t, err)
		p, err := o.Predict(ctx, sampleFeatures())
		require.NoError(t, err)
		assert.InDelta(t, 0.7, p, 1e-12)
	})

	t.Run("DefaultRejectsGarbage", func(t *testing.T) {
		o, err := WithPositiveClass(stubOracle{p: 1.7}, domain.PositiveDefault)
		require.NoError(t, err)
		_, err = o.Predict(ctx, sampleFeatures())
		assert.ErrorIs(t, err, domain.ErrPrediction)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := WithPositiveClass(stubOracle{}, "maybe")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestRemote(t *testing.T) {
	b := bus.NewChannelBus(16)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("NoResponder", func(t *testing.T) {
		r := NewRemote(b, 50*time.Millisecond)
		_, err := r.Predict(ctx, sampleFeatures())
		assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		local, err := NewLogistic(LogisticModel{Intercept: math.Log(3), Weights: zeroWeights()})
		require.NoError(t, err)

		sub, err := Serve(ctx, b, local)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		r := NewRemote(b, time.Second)
		p, err := r.Predict(ctx, sampleFeatures())
		require.NoError(t, err)
		assert.InDelta(t, 0.75, p, 1e-9)
	})

	t.Run("ErrorReply", func(t *testing.T) {
		sub, err := Serve(ctx, b, stubOracle{err: errors.New("model exploded")})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		r := NewRemote(b, time.Second)
		_, err = r.Predict(ctx, sampleFeatures())
		assert.ErrorIs(t, err, domain.ErrPrediction)
		assert.Contains(t, err.Error(), "model exploded")
	})

	t.Run("UnavailableReply", func(t *testing.T) {
		sub, err := Serve(ctx, b, stubOracle{err: domain.ErrOracleUnavailable})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		r := NewRemote(b, time.Second)
		_, err = r.Predict(ctx, sampleFeatures())
		assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
	})

	t.Run("GarbageProbability", func(t *testing.T) {
		sub, err := Serve(ctx, b, stubOracle{p: 2})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		r := NewRemote(b, time.Second)
		_, err = r.Predict(ctx, sampleFeatures())
		assert.ErrorIs(t, err, domain.ErrPrediction)
	})
}

func TestNew(t *testing.T) {
	t.Run("Logistic", func(t *testing.T) {
		o, err := New(domain.OracleConfig{
			Backend:       "logistic",
			ModelPath:     filepath.Join("..", "..", "configs", "model.yaml"),
			PositiveClass: domain.PositiveApproval,
		}, nil)
		require.NoError(t, err)
		assert.NoError(t, Close(o))
	})

	t.Run("RemoteNeedsBus", func(t *testing.T) {
		_, err := New(domain.OracleConfig{Backend: "remote"}, nil)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("ONNXMissingModel", func(t *testing.T) {
		_, err := New(domain.OracleConfig{
			Backend:   "onnx",
			ModelPath: filepath.Join(t.TempDir(), "absent.onnx"),
		}, nil)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := New(domain.OracleConfig{Backend: "crystal-ball"}, nil)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestValidateONNXOutput(t *testing.T) {
	probs := ort.InputOutputInfo{
		Name:         "probabilities",
		OrtValueType: ort.ONNXTypeTensor,
		Dimensions:   ort.NewShape(-1, 2),
		DataType:     ort.TensorElementDataTypeFloat,
	}
	label := ort.InputOutputInfo{
		Name:         "label",
		OrtValueType: ort.ONNXTypeTensor,
		Dimensions:   ort.NewShape(-1),
		DataType:     ort.TensorElementDataTypeInt64,
	}

	assert.NoError(t, validateOutput([]ort.InputOutputInfo{label, probs}, "probabilities"))

	t.Run("ZipMap", func(t *testing.T) {
		zipmap := ort.InputOutputInfo{Name: "probabilities", OrtValueType: ort.ONNXTypeSequence}
		err := validateOutput([]ort.InputOutputInfo{label, zipmap}, "probabilities")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "zipmap")
	})

	t.Run("Missing", func(t *testing.T) {
		assert.Error(t, validateOutput([]ort.InputOutputInfo{label}, "probabilities"))
	})

	t.Run("WrongShape", func(t *testing.T) {
		single := probs
		single.Dimensions = ort.NewShape(-1, 1)
		assert.Error(t, validateOutput([]ort.InputOutputInfo{single}, "probabilities"))
	})

	t.Run("WrongType", func(t *testing.T) {
		doubles := probs
		doubles.DataType = ort.TensorElementDataTypeDouble
		assert.Error(t, validateOutput([]ort.InputOutputInfo{doubles}, "probabilities"))
	})
}
