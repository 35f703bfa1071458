package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
	err  error
	done chan struct{}
}

func (p *recordingProcessor) Process(ctx context.Context, app *scoring.Application) (*domain.Decision, error) {
	p.mu.Lock()
	p.seen = append(p.seen, app.DecisionID)
	p.mu.Unlock()
	defer func() { p.done <- struct{}{} }()
	if p.err != nil {
		return nil, p.err
	}
	return &domain.Decision{ID: app.DecisionID, Status: domain.DecisionCompleted}, nil
}

type approveOracle struct{}

func (approveOracle) Predict(ctx context.Context, f *domain.ScoringFeatures) (float64, error) {
	return 0.84, nil
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout after %d of %d applications", i, n)
		}
	}
}

func publish(t *testing.T, b domain.EventBus, app scoring.Application) {
	t.Helper()
	payload, _ := json.Marshal(app)
	if err := b.Publish(context.Background(), domain.TopicApplicationSubmitted, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, &recordingProcessor{done: make(chan struct{}, 1)})
		if err := w.Start(Config{Concurrency: 1}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 || stats.Topics[0] != domain.TopicApplicationSubmitted {
			t.Errorf("unexpected stats: %+v", stats)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
		if w.GetStats().SubscriptionCount != 0 {
			t.Error("expected 0 subscriptions after stop")
		}
	})

	t.Run("ProcessesApplications", func(t *testing.T) {
		p := &recordingProcessor{done: make(chan struct{}, 10)}
		w := NewWorker(eventBus, p)
		w.Start(Config{Concurrency: 2})
		defer w.Stop()

		for _, id := range []string{"dec-1", "dec-2", "dec-3"} {
			publish(t, eventBus, scoring.Application{DecisionID: id})
		}
		waitFor(t, p.done, 3)

		p.mu.Lock()
		defer p.mu.Unlock()
		if len(p.seen) != 3 {
			t.Errorf("expected 3 processed applications, got %v", p.seen)
		}
	})

	t.Run("FailuresDoNotStopWorker", func(t *testing.T) {
		p := &recordingProcessor{err: errors.New("boom"), done: make(chan struct{}, 10)}
		w := NewWorker(eventBus, p)
		w.Start(Config{})
		defer w.Stop()

		publish(t, eventBus, scoring.Application{DecisionID: "bad-1"})
		publish(t, eventBus, scoring.Application{DecisionID: "bad-2"})
		waitFor(t, p.done, 2)
	})

	t.Run("IgnoresMalformedPayload", func(t *testing.T) {
		p := &recordingProcessor{done: make(chan struct{}, 10)}
		w := NewWorker(eventBus, p)
		w.Start(Config{})
		defer w.Stop()

		eventBus.Publish(context.Background(), domain.TopicApplicationSubmitted, []byte("{not json"))
		publish(t, eventBus, scoring.Application{DecisionID: "ok"})
		waitFor(t, p.done, 1)

		p.mu.Lock()
		defer p.mu.Unlock()
		if len(p.seen) != 1 || p.seen[0] != "ok" {
			t.Errorf("expected only the valid application, got %v", p.seen)
		}
	})
}

func TestWorkerEndToEnd(t *testing.T) {
	ctx := context.Background()
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	engine, err := decision.NewEngine(approveOracle{}, nil, domain.DefaultScoringConfig())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	svc, err := scoring.NewService(scoring.Options{
		Engine: engine,
		Cache:  cache.NewLRUCache(100),
		Bus:    eventBus,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	w := NewWorker(eventBus, svc)
	if err := w.Start(Config{Concurrency: 2}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	pending, err := svc.Submit(ctx, "officer1", &domain.ApplicantProfile{
		AgeGroup:             "35-44",
		Gender:               "Male",
		Region:               "Rural",
		MonthlyIncome:        40000,
		EmploymentStatus:     "Self-employed",
		EducationGrade:       "C+",
		LearningAdaptability: "Moderate",
		SupportServicesUsage: "No",
		PsychosocialSupport:  "Low",
		RepaymentHistory:     "good",
		RequestedAmount:      60000,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		d, err := svc.Get(ctx, pending.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if d.Status == domain.DecisionCompleted {
			if d.Result.Decision != domain.OutcomeApproved || d.Result.CreditScore != 720 {
				t.Errorf("unexpected result: %+v", d.Result)
			}
			if d.SubmittedBy != "officer1" {
				t.Errorf("expected submitter officer1, got %s", d.SubmittedBy)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("decision still %s", d.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// gatedProcessor holds every application until release is closed.
type gatedProcessor struct {
	next    Processor
	release chan struct{}
}

func (p *gatedProcessor) Process(ctx context.Context, app *scoring.Application) (*domain.Decision, error) {
	<-p.release
	return p.next.Process(ctx, app)
}

func TestWorkerBackpressure(t *testing.T) {
	ctx := context.Background()
	eventBus := bus.NewChannelBus(1)
	defer eventBus.Close()

	engine, err := decision.NewEngine(approveOracle{}, nil, domain.DefaultScoringConfig())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	svc, err := scoring.NewService(scoring.Options{
		Engine: engine,
		Cache:  cache.NewLRUCache(100),
		Bus:    eventBus,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	gate := &gatedProcessor{next: svc, release: make(chan struct{})}
	w := NewWorker(eventBus, gate)
	if err := w.Start(Config{Concurrency: 1}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	var ids []string
	rejected := 0
	for i := 0; i < 5; i++ {
		d, err := svc.Submit(ctx, "officer1", &domain.ApplicantProfile{
			AgeGroup:             "25-34",
			Gender:               "Female",
			Region:               "Urban",
			MonthlyIncome:        50000,
			EmploymentStatus:     "Full-time",
			EducationGrade:       "B",
			LearningAdaptability: "High",
			SupportServicesUsage: "Yes",
			PsychosocialSupport:  "Moderate",
			RepaymentHistory:     "good",
			RequestedAmount:      30000,
		})
		if err != nil {
			if !errors.Is(err, domain.ErrBusy) {
				t.Fatalf("submit %d: unexpected error %v", i, err)
			}
			if d == nil || d.Status != domain.DecisionFailed {
				t.Fatalf("submit %d: expected failed record, got %+v", i, d)
			}
			rejected++
		}
		ids = append(ids, d.ID)
		time.Sleep(20 * time.Millisecond)
	}
	if rejected == 0 {
		t.Fatal("expected submissions beyond capacity to be rejected")
	}

	close(gate.release)

	deadline := time.Now().Add(2 * time.Second)
	for _, id := range ids {
		for {
			d, err := svc.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get %s failed: %v", id, err)
			}
			if d.Status != domain.DecisionPending {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("decision %s still pending", id)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	failed := 0
	for _, id := range ids {
		d, _ := svc.Get(ctx, id)
		if d.Status == domain.DecisionFailed {
			failed++
		}
	}
	if failed != rejected {
		t.Errorf("expected %d failed records, got %d", rejected, failed)
	}
}
