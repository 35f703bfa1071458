// Package worker decides queued applications from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Processor decides one queued application and stores its record.
type Processor interface {
	Process(ctx context.Context, app *scoring.Application) (*domain.Decision, error)
}

// Worker consumes kestrel.application.submitted and hands each application
// to the processor, at most Concurrency at a time.
type Worker struct {
	bus       domain.EventBus
	processor Processor

	mu            sync.Mutex
	subscriptions []domain.Subscription
	sem           chan struct{}
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Concurrency is the number of applications decided in parallel
	Concurrency int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, processor Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to submitted applications.
func (w *Worker) Start(cfg Config) error {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.sem = make(chan struct{}, cfg.Concurrency)

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicApplicationSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicApplicationSubmitted,
		"concurrency", cfg.Concurrency,
	)
	return nil
}

// handleMessage parses the application and decides it in the background.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var app scoring.Application
	if err := json.Unmarshal(msg.Payload, &app); err != nil {
		slog.Error("failed to parse application message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		return w.ctx.Err()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.process(&app)
	}()
	return nil
}

func (w *Worker) process(app *scoring.Application) {
	start := time.Now()

	slog.Debug("processing application", "decision_id", app.DecisionID)

	d, err := w.processor.Process(w.ctx, app)
	if err != nil {
		slog.Warn("application failed",
			"decision_id", app.DecisionID,
			"kind", domain.ErrorKind(err),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	slog.Info("application processed",
		"decision_id", d.ID,
		"status", d.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop unsubscribes and waits for in-flight applications.
func (w *Worker) Stop() error {
	w.mu.Lock()
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	w.wg.Wait()
	w.cancel()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
