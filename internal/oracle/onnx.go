package oracle

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig locates the runtime library and the exported classifier.
//
// OutputName must name a float tensor of shape [1, 2]. sklearn-onnx
// replaces the probability output with a ZipMap (a sequence of maps) unless
// the model is exported with options {"zipmap": False}; such models are
// rejected by NewONNX.
type ONNXConfig struct {
	LibraryPath   string
	ModelPath     string
	InputName     string
	OutputName    string
	PositiveIndex int
}

// ONNX runs an exported probabilistic classifier through onnxruntime.
// Input is a float32 [1, n] tensor, output a [1, 2] class probability tensor.
type ONNX struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	positive int
	closed   bool
}

// The runtime environment is process wide.
var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return err
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	envRefs--
	if envRefs > 0 {
		return nil
	}
	envRefs = 0
	return ort.DestroyEnvironment()
}

// NewONNX loads the model and binds its input and output tensors.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.ModelPath == "" {
		return nil, domain.ConfigError("oracle model_path is required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, domain.ConfigError("onnx model %s: %v", cfg.ModelPath, err)
	}
	if cfg.PositiveIndex < 0 || cfg.PositiveIndex > 1 {
		return nil, domain.ConfigError("positive_index must be 0 or 1, got %d", cfg.PositiveIndex)
	}
	if cfg.InputName == "" {
		cfg.InputName = "float_input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "probabilities"
	}

	if err := acquireEnvironment(cfg.LibraryPath); err != nil {
		return nil, domain.ConfigError("initialize onnxruntime: %v", err)
	}

	if err := checkOutput(cfg.ModelPath, cfg.OutputName); err != nil {
		_ = releaseEnvironment()
		return nil, err
	}

	o := &ONNX{positive: cfg.PositiveIndex}
	if err := o.bind(cfg); err != nil {
		o.destroy()
		_ = releaseEnvironment()
		return nil, domain.ConfigError("onnx session %s: %v", cfg.ModelPath, err)
	}
	return o, nil
}

func checkOutput(modelPath, name string) error {
	_, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return domain.ConfigError("onnx model %s: %v", modelPath, err)
	}
	if err := validateOutput(outputs, name); err != nil {
		return domain.ConfigError("onnx model %s: %v", modelPath, err)
	}
	return nil
}

// validateOutput requires name to be a float tensor with two classes.
func validateOutput(outputs []ort.InputOutputInfo, name string) error {
	for _, out := range outputs {
		if out.Name != name {
			continue
		}
		if out.OrtValueType != ort.ONNXTypeTensor {
			return fmt.Errorf("output %q is a %v, not a tensor (export with zipmap disabled)", name, out.OrtValueType)
		}
		if out.DataType != ort.TensorElementDataTypeFloat {
			return fmt.Errorf("output %q has element type %v, want float", name, out.DataType)
		}
		if n := len(out.Dimensions); n != 2 || out.Dimensions[1] != 2 {
			return fmt.Errorf("output %q has shape %v, want [N 2]", name, out.Dimensions)
		}
		return nil
	}
	return fmt.Errorf("no output named %q", name)
}

func (o *ONNX) bind(cfg ONNXConfig) error {
	var err error

	features := int64(len(domain.FeatureNames()))
	o.input, err = ort.NewTensor(ort.NewShape(1, features), make([]float32, features))
	if err != nil {
		return fmt.Errorf("input tensor: %w", err)
	}
	o.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		return fmt.Errorf("output tensor: %w", err)
	}

	o.session, err = ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{o.input}, []ort.Value{o.output}, nil)
	return err
}

// Predict runs one inference. Runs are serialized because the session's
// tensors are shared.
func (o *ONNX) Predict(ctx context.Context, f *domain.ScoringFeatures) (float64, error) {
	if f == nil {
		return 0, domain.MissingFieldError("features")
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return 0, fmt.Errorf("%w: onnx session closed", domain.ErrOracleUnavailable)
	}

	in := o.input.GetData()
	for i, x := range f.Vector() {
		in[i] = float32(x)
	}
	if err := o.session.Run(); err != nil {
		return 0, fmt.Errorf("%w: onnx run: %v", domain.ErrPrediction, err)
	}

	out := o.output.GetData()
	if len(out) < 2 {
		return 0, fmt.Errorf("%w: unexpected output length %d", domain.ErrPrediction, len(out))
	}
	return checkProbability(float64(out[o.positive]))
}

// Close releases the session, its tensors and the runtime environment.
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	o.destroy()
	return releaseEnvironment()
}

func (o *ONNX) destroy() {
	if o.session != nil {
		_ = o.session.Destroy()
	}
	if o.input != nil {
		_ = o.input.Destroy()
	}
	if o.output != nil {
		_ = o.output.Destroy()
	}
}
