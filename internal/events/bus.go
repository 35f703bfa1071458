package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// BusPublisher publishes decision events on the internal event bus. Review
// outcomes are also sent to the review queue topic.
type BusPublisher struct {
	bus domain.EventBus
}

// NewBusPublisher creates a publisher on bus.
func NewBusPublisher(bus domain.EventBus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

// PublishDecision publishes event.
func (p *BusPublisher) PublishDecision(ctx context.Context, event *domain.DecisionEvent) error {
	if err := checkEvent(event); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal decision event: %w", err)
	}

	if err := p.bus.Publish(ctx, domain.TopicDecisionIssued, payload); err != nil {
		return fmt.Errorf("publish %s: %w", domain.TopicDecisionIssued, err)
	}
	if event.Decision == domain.OutcomeReview && event.Type == domain.EventDecisionIssued {
		if err := p.bus.Publish(ctx, domain.TopicReviewRequired, payload); err != nil {
			return fmt.Errorf("publish %s: %w", domain.TopicReviewRequired, err)
		}
	}
	return nil
}

// Close is a no-op; the bus is owned by the caller.
func (p *BusPublisher) Close() error { return nil }
