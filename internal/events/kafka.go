package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Kafka header names.
const (
	HeaderEventType = "event-type"
	HeaderDecision  = "decision"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes decision events to a Kafka topic keyed by decision
// ID, so events for one decision stay on one partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, domain.ConfigError("kafka publisher needs at least one broker")
	}
	if topic == "" {
		return nil, domain.ConfigError("kafka publisher needs a topic")
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}

	slog.Info("kafka publisher initialized", "brokers", brokers, "topic", topic)

	return &KafkaPublisher{writer: w, topic: topic}, nil
}

// PublishDecision writes one message for event.
func (p *KafkaPublisher) PublishDecision(ctx context.Context, event *domain.DecisionEvent) error {
	if err := checkEvent(event); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal decision event: %w", err)
	}

	slog.Debug("publishing decision event",
		"event_type", event.Type,
		"decision_id", event.DecisionID,
		"topic", p.topic,
		"payload_size", len(payload),
	)

	msg := kafkago.Message{
		Key:   []byte(event.DecisionID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderDecision, Value: []byte(event.Decision)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
