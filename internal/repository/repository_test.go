package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "kestrel-test.db"),
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("RecordAndList", func(t *testing.T) {
		events := []*domain.AuditEvent{
			{Actor: "admin", Action: domain.AuditAuthVerified, CreatedAt: base},
			{Actor: "api", Action: domain.AuditDecisionIssued, Subject: "dec-1",
				Detail: map[string]any{"decision": "Approved", "credit_score": 720}, CreatedAt: base.Add(time.Minute)},
			{Actor: "officer1", Action: domain.AuditDecisionOverridden, Subject: "dec-2", CreatedAt: base.Add(2 * time.Minute)},
		}
		for _, e := range events {
			if err := repo.RecordAudit(ctx, e); err != nil {
				t.Fatalf("RecordAudit failed: %v", err)
			}
			if e.ID == "" {
				t.Error("expected generated ID")
			}
		}

		got, err := repo.ListAudit(ctx, domain.AuditFilter{})
		if err != nil {
			t.Fatalf("ListAudit failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 events, got %d", len(got))
		}
		if got[0].Action != domain.AuditDecisionOverridden || got[2].Action != domain.AuditAuthVerified {
			t.Errorf("expected newest first, got %s ... %s", got[0].Action, got[2].Action)
		}
		if !got[2].CreatedAt.Equal(base) {
			t.Errorf("expected created_at %v, got %v", base, got[2].CreatedAt)
		}

		issued := got[1]
		if issued.Subject != "dec-1" {
			t.Errorf("expected subject dec-1, got %q", issued.Subject)
		}
		if issued.Detail["decision"] != "Approved" {
			t.Errorf("expected detail decision Approved, got %v", issued.Detail["decision"])
		}
		// JSON numbers come back as float64
		if issued.Detail["credit_score"] != float64(720) {
			t.Errorf("expected credit_score 720, got %v", issued.Detail["credit_score"])
		}
	})

	t.Run("Filters", func(t *testing.T) {
		byActor, err := repo.ListAudit(ctx, domain.AuditFilter{Actor: "officer1"})
		if err != nil {
			t.Fatalf("ListAudit failed: %v", err)
		}
		if len(byActor) != 1 || byActor[0].Subject != "dec-2" {
			t.Errorf("actor filter returned %d events", len(byActor))
		}

		byAction, _ := repo.ListAudit(ctx, domain.AuditFilter{Action: domain.AuditDecisionIssued})
		if len(byAction) != 1 {
			t.Errorf("expected 1 decision.issued event, got %d", len(byAction))
		}

		since, _ := repo.ListAudit(ctx, domain.AuditFilter{Since: base.Add(time.Minute)})
		if len(since) != 2 {
			t.Errorf("expected 2 events since %v, got %d", base.Add(time.Minute), len(since))
		}

		limited, _ := repo.ListAudit(ctx, domain.AuditFilter{Limit: 1})
		if len(limited) != 1 {
			t.Errorf("expected limit 1, got %d", len(limited))
		}
	})

	t.Run("Purge", func(t *testing.T) {
		removed, err := repo.PurgeAudit(ctx, base.Add(90*time.Second))
		if err != nil {
			t.Fatalf("PurgeAudit failed: %v", err)
		}
		if removed != 2 {
			t.Errorf("expected 2 purged events, got %d", removed)
		}

		left, _ := repo.ListAudit(ctx, domain.AuditFilter{})
		if len(left) != 1 || left[0].Action != domain.AuditDecisionOverridden {
			t.Errorf("unexpected events after purge: %d", len(left))
		}
	})

	t.Run("Validation", func(t *testing.T) {
		err := repo.RecordAudit(ctx, &domain.AuditEvent{Actor: "admin"})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for missing action, got %v", err)
		}

		err = repo.RecordAudit(ctx, &domain.AuditEvent{Action: domain.AuditAuthFailed})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for missing actor, got %v", err)
		}
	})

	t.Run("EmptyList", func(t *testing.T) {
		got, err := repo.ListAudit(ctx, domain.AuditFilter{Actor: "nobody"})
		if err != nil {
			t.Fatalf("ListAudit failed: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", got)
		}
	})
}

func TestTimeLayoutOrdering(t *testing.T) {
	a := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC).Format(timeLayout)
	b := time.Date(2026, 1, 1, 0, 0, 5, 123, time.UTC).Format(timeLayout)
	c := time.Date(2026, 1, 1, 0, 0, 6, 0, time.UTC).Format(timeLayout)

	if !(a < b && b < c) {
		t.Errorf("text order does not follow time order: %s %s %s", a, b, c)
	}
	if len(a) != len(b) || len(b) != len(c) {
		t.Error("expected fixed-width timestamps")
	}
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}

	sqlite := &SQLRepository{driver: "sqlite"}
	if got := sqlite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestInMemorySQLite(t *testing.T) {
	repo, err := New(domain.RepositoryConfig{
		Driver:          "sqlite",
		SQLitePath:      ":memory:",
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.RecordAudit(ctx, &domain.AuditEvent{Actor: "admin", Action: domain.AuditUserAdded, Subject: "officer2"}); err != nil {
		t.Fatalf("RecordAudit failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	events, err := repo.ListAudit(ctx, domain.AuditFilter{})
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected the event to survive in memory, got %d events", len(events))
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("/var/lib/kestrel/audit.db")
	if !strings.HasPrefix(dsn, "file:/var/lib/kestrel/audit.db?") {
		t.Errorf("unexpected dsn %q", dsn)
	}
	if !strings.Contains(dsn, "busy_timeout") {
		t.Errorf("expected busy_timeout pragma in %q", dsn)
	}
	if got := sqliteDSN(":memory:"); !strings.HasPrefix(got, "file::memory:?") {
		t.Errorf("unexpected in-memory dsn %q", got)
	}
}

func TestPostgresDSN(t *testing.T) {
	got := postgresDSN(domain.RepositoryConfig{
		PostgresHost:     "db.internal",
		PostgresUser:     "kestrel",
		PostgresPassword: `p w'd`,
	})
	want := `host='db.internal' port=5432 dbname='kestrel' sslmode='disable' user='kestrel' password='p w\'d'`
	if got != want {
		t.Errorf("postgresDSN = %s\nwant          %s", got, want)
	}

	bare := postgresDSN(domain.RepositoryConfig{PostgresSSLMode: "require", PostgresPort: 6432})
	if strings.Contains(bare, "user=") || strings.Contains(bare, "password=") {
		t.Errorf("empty credentials must be omitted: %s", bare)
	}
	if !strings.Contains(bare, "port=6432") || !strings.Contains(bare, "sslmode='require'") {
		t.Errorf("unexpected dsn %s", bare)
	}
}
