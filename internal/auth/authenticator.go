package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Authenticator combines the credential store, throttling and the audit trail.
type Authenticator struct {
	store    domain.CredentialStore
	throttle *Throttle
	repo     domain.Repository
}

// NewAuthenticator wires the pieces together. throttle and repo may be nil.
func NewAuthenticator(store domain.CredentialStore, throttle *Throttle, repo domain.Repository) *Authenticator {
	return &Authenticator{store: store, throttle: throttle, repo: repo}
}

// Authenticate verifies the credentials and records the attempt.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*domain.Principal, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if a.throttle != nil {
		if err := a.throttle.Allow(ctx, username); err != nil {
			if errors.Is(err, domain.ErrTooManyAttempts) {
				a.audit(ctx, username, domain.AuditAuthFailed, map[string]any{"reason": "locked_out"})
			}
			return nil, err
		}
	}

	role, err := a.store.Verify(ctx, username, password)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			return nil, err
		}
		detail := map[string]any{"reason": "invalid_credentials"}
		if a.throttle != nil {
			n, terr := a.throttle.Failure(ctx, username)
			if terr != nil {
				slog.Warn("failed to count login failure", "username", username, "error", terr)
			}
			detail["attempts"] = n
		}
		a.audit(ctx, username, domain.AuditAuthFailed, detail)
		return nil, err
	}

	if a.throttle != nil {
		if err := a.throttle.Success(ctx, username); err != nil {
			slog.Warn("failed to reset login failures", "username", username, "error", err)
		}
	}
	a.audit(ctx, username, domain.AuditAuthVerified, map[string]any{"role": string(role)})

	return &domain.Principal{Username: username, Role: role}, nil
}

func (a *Authenticator) audit(ctx context.Context, username, action string, detail map[string]any) {
	if a.repo == nil {
		return
	}
	event := &domain.AuditEvent{
		Actor:   username,
		Action:  action,
		Subject: username,
		Detail:  detail,
	}
	if err := a.repo.RecordAudit(ctx, event); err != nil {
		slog.Error("failed to record audit event", "action", action, "error", err)
	}
}
