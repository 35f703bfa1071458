package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"go.opentelemetry.io/otel"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestInitLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := initLogger(&buf, domain.LoggingConfig{Level: "warn", Format: "json"})

	logger.Info("dropped")
	logger.Warn("kept", "decision_id", "abc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" || entry["decision_id"] != "abc" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if slog.Default().Handler() != logger.Handler() {
		t.Error("InitLogger did not set the default logger")
	}
}

func TestInitLoggerText(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := initLogger(&buf, domain.LoggingConfig{Level: "info", Format: "text"})
	logger.Info("hello", "k", "v")

	if !bytes.Contains(buf.Bytes(), []byte("k=v")) {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestMetricsExport(t *testing.T) {
	provider, handler, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	defer provider.Shutdown(context.Background())

	m, err := NewMetrics(provider)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	ctx := context.Background()
	m.RecordDecision(ctx, "Approved", 720, 3.5)
	m.RecordError(ctx, "unknown_category")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"kestrel_decisions", "kestrel_decision_errors", "kestrel_credit_score", `decision="Approved"`, `kind="unknown_category"`} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics output missing %s", want)
		}
	}

	// A second registry must not collide with the first.
	other, _, err := InitMetrics()
	if err != nil {
		t.Fatalf("second InitMetrics failed: %v", err)
	}
	other.Shutdown(ctx)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordDecision(context.Background(), "Review", 550, 1)
	m.RecordError(context.Background(), "internal")
}

func TestInitTracing(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown := InitTracing(false, "kestrel")
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown failed: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("disabled tracing must not replace the provider")
	}

	shutdown = InitTracing(true, "kestrel")

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	if !span.SpanContext().TraceID().IsValid() {
		t.Error("expected a valid trace ID once tracing is enabled")
	}
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}
