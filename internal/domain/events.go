package domain

import (
	"context"
)

// DecisionPublisher emits decision events to downstream consumers.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, event *DecisionEvent) error
	Close() error
}
