package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// PredictRequest is the payload of a kestrel.oracle.predict request.
type PredictRequest struct {
	Features []float64 `json:"features"`
}

// PredictReply carries either a probability or an error.
type PredictReply struct {
	Probability *float64 `json:"probability,omitempty"`
	Error       string   `json:"error,omitempty"`
	Kind        string   `json:"kind,omitempty"`
}

// Remote asks another node's oracle over the event bus.
type Remote struct {
	bus     domain.EventBus
	timeout time.Duration
}

// NewRemote creates a remote oracle. A zero timeout defaults to two seconds.
func NewRemote(bus domain.EventBus, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Remote{bus: bus, timeout: timeout}
}

// Predict sends the feature vector and waits for the reply.
func (r *Remote) Predict(ctx context.Context, f *domain.ScoringFeatures) (float64, error) {
	if f == nil {
		return 0, domain.MissingFieldError("features")
	}

	payload, err := json.Marshal(PredictRequest{Features: f.Vector()})
	if err != nil {
		return 0, fmt.Errorf("%w: encode request: %v", domain.ErrPrediction, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.bus.Request(ctx, domain.TopicOraclePredict, payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}

	var reply PredictReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return 0, fmt.Errorf("%w: decode reply: %v", domain.ErrPrediction, err)
	}
	if reply.Error != "" {
		if reply.Kind == domain.ErrorKind(domain.ErrOracleUnavailable) {
			return 0, fmt.Errorf("%w: remote: %s", domain.ErrOracleUnavailable, reply.Error)
		}
		return 0, fmt.Errorf("%w: remote: %s", domain.ErrPrediction, reply.Error)
	}
	if reply.Probability == nil {
		return 0, fmt.Errorf("%w: reply has no probability", domain.ErrPrediction)
	}
	return checkProbability(*reply.Probability)
}

// Serve answers predict requests with a local oracle until ctx is done or
// the returned subscription is cancelled.
func Serve(ctx context.Context, bus domain.EventBus, o domain.Oracle) (domain.Subscription, error) {
	return bus.Subscribe(ctx, domain.TopicOraclePredict, func(ctx context.Context, msg *domain.Message) error {
		reply := answer(ctx, o, msg.Payload)

		data, err := json.Marshal(reply)
		if err != nil {
			return err
		}
		return bus.Reply(ctx, msg, data)
	})
}

func answer(ctx context.Context, o domain.Oracle, payload []byte) PredictReply {
	var req PredictRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errorReply(fmt.Errorf("%w: decode request: %v", domain.ErrPrediction, err))
	}

	f, err := domain.FeaturesFromVector(req.Features)
	if err != nil {
		return errorReply(fmt.Errorf("%w: %v", domain.ErrPrediction, err))
	}

	p, err := o.Predict(ctx, f)
	if err != nil {
		return errorReply(err)
	}
	return PredictReply{Probability: &p}
}

func errorReply(err error) PredictReply {
	kind := domain.ErrorKind(err)
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		kind = domain.ErrorKind(domain.ErrPrediction)
	}
	return PredictReply{Error: err.Error(), Kind: kind}
}
