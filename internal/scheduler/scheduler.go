// Package scheduler runs the audit retention job.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/robfig/cron/v3"
)

// Scheduler purges audit events older than the retention period.
type Scheduler struct {
	cron      *cron.Cron
	repo      domain.Repository
	retention time.Duration
	ctx       context.Context
	now       func() time.Time
}

// NewScheduler creates a scheduler; the job is not registered until Register.
func NewScheduler(ctx context.Context, repo domain.Repository, cfg domain.AuditConfig) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		repo:      repo,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		ctx:       ctx,
		now:       time.Now,
	}
}

// Register adds the purge job on spec, a six-field cron expression.
func (s *Scheduler) Register(spec string) error {
	if s.retention <= 0 {
		return domain.ConfigError("audit retention must be positive")
	}
	if _, err := s.cron.AddFunc(spec, s.purgeTask); err != nil {
		return fmt.Errorf("register purge task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// PurgeNow deletes expired audit events and returns how many were removed.
func (s *Scheduler) PurgeNow(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)

	n, err := s.repo.PurgeAudit(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		event := &domain.AuditEvent{
			Actor:  "system",
			Action: domain.AuditPurged,
			Detail: map[string]any{"removed": n, "before": cutoff.Format(time.RFC3339)},
		}
		if err := s.repo.RecordAudit(ctx, event); err != nil {
			slog.Error("failed to record purge", "error", err)
		}
	}
	return n, nil
}

func (s *Scheduler) purgeTask() {
	n, err := s.PurgeNow(s.ctx)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return
	}
	slog.Info("audit purge completed", "removed", n)
}
