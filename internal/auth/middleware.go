package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opensource-finance/kestrel/internal/domain"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Middleware requires HTTP Basic credentials on every request and, when
// roles are given, one of those roles.
func Middleware(a *Authenticator, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w, "credentials required")
				return
			}

			principal, err := a.Authenticate(r.Context(), username, password)
			switch {
			case errors.Is(err, domain.ErrTooManyAttempts):
				writeError(w, http.StatusTooManyRequests, err.Error())
				return
			case errors.Is(err, domain.ErrInvalidCredentials):
				unauthorized(w, err.Error())
				return
			case err != nil:
				slog.Error("authentication failed", "username", username, "error", err)
				writeError(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}

			if len(roles) > 0 && !hasRole(principal.Role, roles) {
				writeError(w, http.StatusForbidden, domain.ErrForbidden.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func hasRole(role domain.Role, allowed []domain.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="kestrel"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
