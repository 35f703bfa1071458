// Package scoring runs the decisioning pipeline for one application and
// records its side effects: the cached decision record, metrics, the audit
// trail and decision events.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultResultTTL = 24 * time.Hour

// Application is the payload of an asynchronous submission.
type Application struct {
	DecisionID  string                   `json:"decision_id"`
	SubmittedBy string                   `json:"submitted_by,omitempty"`
	SubmittedAt time.Time                `json:"submitted_at"`
	Profile     *domain.ApplicantProfile `json:"profile"`
}

// Options wires a Service. Cache is required; the rest may be nil.
type Options struct {
	Normalizer *features.Normalizer
	Engine     *decision.Engine
	Cache      domain.Cache
	Repository domain.Repository
	Bus        domain.EventBus
	Publisher  domain.DecisionPublisher
	Metrics    *observability.Metrics
	ResultTTL  time.Duration
}

// Service decides applications and manages their records.
type Service struct {
	normalizer *features.Normalizer
	engine     *decision.Engine
	cache      domain.Cache
	repo       domain.Repository
	bus        domain.EventBus
	publisher  domain.DecisionPublisher
	metrics    *observability.Metrics
	tracer     trace.Tracer
	resultTTL  time.Duration
	now        func() time.Time
}

// NewService creates a scoring service.
func NewService(opts Options) (*Service, error) {
	if opts.Engine == nil {
		return nil, domain.ConfigError("scoring service needs a decision engine")
	}
	if opts.Cache == nil {
		return nil, domain.ConfigError("scoring service needs a cache")
	}
	if opts.Normalizer == nil {
		opts.Normalizer = features.NewNormalizer(nil)
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = defaultResultTTL
	}

	return &Service{
		normalizer: opts.Normalizer,
		engine:     opts.Engine,
		cache:      opts.Cache,
		repo:       opts.Repository,
		bus:        opts.Bus,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		tracer:     otel.Tracer("kestrel/scoring"),
		resultTTL:  opts.ResultTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Engine returns the decision engine.
func (s *Service) Engine() *decision.Engine {
	return s.engine
}

// Vocabulary returns the categorical vocabulary used for normalization.
func (s *Service) Vocabulary() *features.Vocabulary {
	return s.normalizer.Vocabulary()
}

// Score decides profile synchronously and stores the completed record.
// Decisioning errors are returned unchanged.
func (s *Service) Score(ctx context.Context, actor string, profile *domain.ApplicantProfile) (*domain.Decision, error) {
	return s.decide(ctx, uuid.New().String(), actor, s.now(), profile)
}

// Submit validates profile, stores a pending record and queues the
// application for the worker. If the application cannot be queued the
// record is stored as failed and returned with the error.
func (s *Service) Submit(ctx context.Context, actor string, profile *domain.ApplicantProfile) (*domain.Decision, error) {
	if s.bus == nil {
		return nil, domain.ConfigError("async decisions need an event bus")
	}
	if _, err := s.normalizer.Normalize(profile); err != nil {
		s.metrics.RecordError(ctx, domain.ErrorKind(err))
		return nil, err
	}

	app := &Application{
		DecisionID:  uuid.New().String(),
		SubmittedBy: actor,
		SubmittedAt: s.now(),
		Profile:     profile,
	}

	pending := &domain.Decision{
		ID:              app.DecisionID,
		Status:          domain.DecisionPending,
		RequestedAmount: profile.RequestedAmount,
		SubmittedBy:     actor,
		CreatedAt:       app.SubmittedAt,
	}
	if err := s.cache.SetDecision(ctx, pending, s.resultTTL); err != nil {
		return nil, fmt.Errorf("store pending decision: %w", err)
	}

	payload, err := json.Marshal(app)
	if err != nil {
		return nil, fmt.Errorf("marshal application: %w", err)
	}
	if err := s.bus.Publish(ctx, domain.TopicApplicationSubmitted, payload); err != nil {
		err = fmt.Errorf("queue application: %w", err)
		s.storeFailure(ctx, pending, err)
		s.metrics.RecordError(ctx, domain.ErrorKind(err))
		return pending, err
	}

	slog.Debug("application queued", "decision_id", app.DecisionID)
	return pending, nil
}

// Process decides a queued application. Failures are stored as a failed
// record under the application's decision ID and also returned.
func (s *Service) Process(ctx context.Context, app *Application) (*domain.Decision, error) {
	if app == nil || app.DecisionID == "" {
		return nil, domain.MissingFieldError("decision_id")
	}
	createdAt := app.SubmittedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	d, err := s.decide(ctx, app.DecisionID, app.SubmittedBy, createdAt, app.Profile)
	if err == nil {
		return d, nil
	}

	failed := &domain.Decision{
		ID:          app.DecisionID,
		SubmittedBy: app.SubmittedBy,
		CreatedAt:   createdAt,
	}
	if app.Profile != nil {
		failed.RequestedAmount = app.Profile.RequestedAmount
	}
	s.storeFailure(ctx, failed, err)
	return failed, err
}

func (s *Service) storeFailure(ctx context.Context, d *domain.Decision, cause error) {
	completed := s.now()
	d.Status = domain.DecisionFailed
	d.CompletedAt = &completed
	d.ErrorKind = domain.ErrorKind(cause)
	d.ErrorMessage = cause.Error()

	if err := s.cache.SetDecision(ctx, d, s.resultTTL); err != nil {
		slog.Error("failed to store failed decision",
			"decision_id", d.ID,
			"error", err,
		)
	}
}

// Get returns the decision record for id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Decision, error) {
	d, err := s.cache.GetDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("decision %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

func (s *Service) decide(ctx context.Context, id, actor string, createdAt time.Time, profile *domain.ApplicantProfile) (*domain.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.decide",
		trace.WithAttributes(attribute.String("decision.id", id)))
	defer span.End()

	start := time.Now()

	result, err := s.evaluate(ctx, profile)
	if err != nil {
		kind := domain.ErrorKind(err)
		s.metrics.RecordError(ctx, kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		slog.Warn("decision failed",
			"decision_id", id,
			"kind", kind,
			"error", err,
		)
		return nil, err
	}

	completed := s.now()
	d := &domain.Decision{
		ID:              id,
		Status:          domain.DecisionCompleted,
		Result:          result,
		RequestedAmount: profile.RequestedAmount,
		SubmittedBy:     actor,
		CreatedAt:       createdAt,
		CompletedAt:     &completed,
	}
	if result.Decision == domain.OutcomeReview {
		offer := s.engine.EstimateLoanAmount(profile.MonthlyIncome, result.CreditScore)
		d.ProspectiveAmount = &offer
	}

	if err := s.cache.SetDecision(ctx, d, s.resultTTL); err != nil {
		slog.Error("failed to store decision",
			"decision_id", id,
			"error", err,
		)
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000
	s.metrics.RecordDecision(ctx, string(result.Decision), result.CreditScore, durationMs)

	span.SetAttributes(
		attribute.String("decision.outcome", string(result.Decision)),
		attribute.Int("decision.credit_score", result.CreditScore),
	)

	s.audit(ctx, actor, domain.AuditDecisionIssued, id, map[string]any{
		"decision":     string(result.Decision),
		"credit_score": result.CreditScore,
		"matched_rule": result.MatchedRule,
	})
	s.publish(ctx, domain.EventDecisionIssued, actor, d)

	slog.Info("decision issued",
		"decision_id", id,
		"decision", result.Decision,
		"credit_score", result.CreditScore,
		"duration_ms", durationMs,
	)

	return d, nil
}

func (s *Service) evaluate(ctx context.Context, profile *domain.ApplicantProfile) (*domain.DecisionResult, error) {
	f, err := s.normalizer.Normalize(profile)
	if err != nil {
		return nil, err
	}
	return s.engine.Decide(ctx, f, profile)
}

func (s *Service) audit(ctx context.Context, actor, action, subject string, detail map[string]any) {
	if s.repo == nil {
		return
	}
	if actor == "" {
		actor = "anonymous"
	}
	event := &domain.AuditEvent{
		Actor:   actor,
		Action:  action,
		Subject: subject,
		Detail:  detail,
	}
	if err := s.repo.RecordAudit(ctx, event); err != nil {
		slog.Error("failed to record audit event",
			"action", action,
			"subject", subject,
			"error", err,
		)
	}
}

func (s *Service) publish(ctx context.Context, eventType, actor string, d *domain.Decision) {
	if s.publisher == nil || d.Result == nil {
		return
	}
	event := &domain.DecisionEvent{
		Type:        eventType,
		DecisionID:  d.ID,
		Decision:    d.Result.Decision,
		CreditScore: d.Result.CreditScore,
		Probability: d.Result.Probability,
		LoanAmount:  d.Result.LoanAmount,
		Actor:       actor,
		OccurredAt:  s.now(),
	}
	if err := s.publisher.PublishDecision(ctx, event); err != nil {
		slog.Warn("failed to publish decision event",
			"decision_id", d.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}
