// Package events publishes decision events to downstream consumers.
package events

import (
	"context"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// New creates the publisher selected by cfg.Type. bus is used by "bus".
func New(cfg domain.EventsConfig, bus domain.EventBus) (domain.DecisionPublisher, error) {
	switch cfg.Type {
	case "none", "":
		return NoopPublisher{}, nil
	case "bus":
		if bus == nil {
			return nil, domain.ConfigError("bus events require an event bus")
		}
		return NewBusPublisher(bus), nil
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, domain.ConfigError("unsupported events type: %s", cfg.Type)
	}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishDecision(ctx context.Context, event *domain.DecisionEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

func checkEvent(event *domain.DecisionEvent) error {
	if event == nil || event.DecisionID == "" {
		return fmt.Errorf("decision event without decision id")
	}
	return nil
}
