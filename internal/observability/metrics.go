package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics creates a meter provider exporting to a private Prometheus
// registry, and the /metrics handler serving it.
func InitMetrics() (*sdkmetric.MeterProvider, http.Handler, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return provider, handler, nil
}

// Metrics holds the decisioning instruments. A nil *Metrics records nothing.
type Metrics struct {
	decisions metric.Int64Counter
	errors    metric.Int64Counter
	scores    metric.Int64Histogram
	duration  metric.Float64Histogram
}

// NewMetrics registers the instruments on provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("kestrel")

	decisions, err := meter.Int64Counter("kestrel.decisions",
		metric.WithDescription("Decisions issued by outcome"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("kestrel.decision_errors",
		metric.WithDescription("Failed decision requests by error kind"))
	if err != nil {
		return nil, err
	}
	scores, err := meter.Int64Histogram("kestrel.credit_score",
		metric.WithDescription("Issued credit scores"),
		metric.WithExplicitBucketBoundaries(300, 400, 500, 550, 600, 650, 700, 750, 800))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("kestrel.decision_duration",
		metric.WithDescription("Time to decide one application"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		decisions: decisions,
		errors:    errs,
		scores:    scores,
		duration:  duration,
	}, nil
}

// RecordDecision counts an issued decision.
func (m *Metrics) RecordDecision(ctx context.Context, outcome string, score int, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("decision", outcome))
	m.decisions.Add(ctx, 1, attrs)
	m.scores.Record(ctx, int64(score))
	m.duration.Record(ctx, durationMs, attrs)
}

// RecordError counts a failed decision by kind.
func (m *Metrics) RecordError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
