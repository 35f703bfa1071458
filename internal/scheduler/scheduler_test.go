package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "audit.db"),
	})
	if err != nil {
		t.Fatalf("repository.New failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestPurgeNow(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	now := time.Now().UTC()
	old := &domain.AuditEvent{Actor: "admin", Action: domain.AuditAuthVerified, CreatedAt: now.Add(-100 * 24 * time.Hour)}
	recent := &domain.AuditEvent{Actor: "admin", Action: domain.AuditAuthVerified, CreatedAt: now.Add(-time.Hour)}
	for _, e := range []*domain.AuditEvent{old, recent} {
		if err := repo.RecordAudit(ctx, e); err != nil {
			t.Fatalf("RecordAudit failed: %v", err)
		}
	}

	s := NewScheduler(ctx, repo, domain.AuditConfig{RetentionDays: 90})
	n, err := s.PurgeNow(ctx)
	if err != nil {
		t.Fatalf("PurgeNow failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged event, got %d", n)
	}

	events, _ := repo.ListAudit(ctx, domain.AuditFilter{})
	if len(events) != 2 {
		t.Fatalf("expected recent event and purge record, got %d", len(events))
	}
	if events[0].Action != domain.AuditPurged {
		t.Errorf("expected newest event to be the purge record, got %s", events[0].Action)
	}

	n, err = s.PurgeNow(ctx)
	if err != nil || n != 0 {
		t.Errorf("expected nothing left to purge, got %d, %v", n, err)
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	s := NewScheduler(ctx, repo, domain.AuditConfig{RetentionDays: 90})
	if err := s.Register("0 0 3 * * *"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := s.Register("every day"); err == nil {
		t.Error("expected error for invalid cron expression")
	}

	s.Start()
	s.Stop()

	bad := NewScheduler(ctx, repo, domain.AuditConfig{})
	if err := bad.Register("0 0 3 * * *"); err == nil {
		t.Error("expected error without retention")
	}
}
