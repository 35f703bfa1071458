package scoring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Override replaces the outcome of a Review decision with Approved or
// Rejected. An approval uses the offer computed when the decision was made.
func (s *Service) Override(ctx context.Context, actor, id string, outcome domain.Outcome, reason string) (*domain.Decision, error) {
	if outcome != domain.OutcomeApproved && outcome != domain.OutcomeRejected {
		return nil, &domain.UnknownCategoryError{Field: "decision", Value: string(outcome)}
	}

	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.DecisionCompleted || d.Result == nil || d.Result.Decision != domain.OutcomeReview {
		return nil, fmt.Errorf("decision %s: %w", id, domain.ErrNotOverridable)
	}

	now := s.now()
	original := d.Result.Decision

	d.Result = s.engine.Reissue(d.Result, outcome, d.ProspectiveAmount)
	d.OriginalDecision = original
	d.OverriddenBy = actor
	d.OverriddenAt = &now
	d.OverrideReason = reason

	if err := s.cache.SetDecision(ctx, d, s.resultTTL); err != nil {
		return nil, fmt.Errorf("store overridden decision: %w", err)
	}

	s.audit(ctx, actor, domain.AuditDecisionOverridden, id, map[string]any{
		"from":   string(original),
		"to":     string(outcome),
		"reason": reason,
	})
	s.publish(ctx, domain.EventDecisionOverridden, actor, d)

	slog.Info("decision overridden",
		"decision_id", id,
		"from", original,
		"to", outcome,
		"officer", actor,
	)

	return d, nil
}
