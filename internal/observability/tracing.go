package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitTracing installs an SDK tracer provider when tracing is enabled, so
// spans carry real trace IDs. The returned function flushes and stops it.
func InitTracing(enabled bool, serviceName string) func(context.Context) error {
	if !enabled {
		return func(context.Context) error { return nil }
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	slog.Info("tracing enabled", "service", serviceName)

	return provider.Shutdown
}
