package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/auth"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// UserManager lists and edits the credential store.
type UserManager interface {
	Users() []domain.UserInfo
	Add(ctx context.Context, username, password string, role domain.Role) error
	Delete(ctx context.Context, username string) error
}

// Handler holds dependencies for API handlers.
type Handler struct {
	service *scoring.Service
	authn   *auth.Authenticator
	users   UserManager
	repo    domain.Repository
	cache   domain.Cache
	version string
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies, version string) *Handler {
	return &Handler{
		service: deps.Service,
		authn:   deps.Authenticator,
		users:   deps.Users,
		repo:    deps.Repository,
		cache:   deps.Cache,
		version: version,
	}
}

// DecisionResponse is the response for POST /decisions.
type DecisionResponse struct {
	ID string `json:"id"`
	*domain.DecisionResult
	RequestedAmount float64 `json:"requested_amount"`
	Metadata        struct {
		TraceID string `json:"trace_id"`
		TotalMs int64  `json:"total_ms"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// SubmitResponse is the response for POST /decisions/async.
type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// OverrideRequest is the request body for POST /decisions/{id}/override.
type OverrideRequest struct {
	Decision domain.Outcome `json:"decision"`
	Reason   string         `json:"reason"`
}

// CreateUserRequest is the request body for POST /users.
type CreateUserRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// VerifyRequest is the request body for POST /auth/verify.
type VerifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Decide handles POST /decisions.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var profile domain.ApplicantProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	d, err := h.service.Score(ctx, actor(r), &profile)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := DecisionResponse{
		ID:              d.ID,
		DecisionResult:  d.Result,
		RequestedAmount: d.RequestedAmount,
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// SubmitDecision handles POST /decisions/async.
func (h *Handler) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	var profile domain.ApplicantProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	d, err := h.service.Submit(r.Context(), actor(r), &profile)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/decisions/"+d.ID)
	writeJSON(w, http.StatusAccepted, SubmitResponse{ID: d.ID, Status: d.Status})
}

// GetDecision handles GET /decisions/{id}.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// OverrideDecision handles POST /decisions/{id}/override.
func (h *Handler) OverrideDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	d, err := h.service.Override(r.Context(), actor(r), id, req.Decision, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// Vocabulary returns the registered categorical values per field.
func (h *Handler) Vocabulary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Vocabulary().Snapshot())
}

// VerifyCredentials handles POST /auth/verify.
func (h *Handler) VerifyCredentials(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	principal, err := h.authn.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, principal)
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users := h.users.Users()
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.users.Add(r.Context(), req.Username, req.Password, req.Role); err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, domain.AuditUserAdded, req.Username, map[string]any{"role": string(req.Role)})

	writeJSON(w, http.StatusCreated, domain.UserInfo{Username: req.Username, Role: req.Role})
}

// DeleteUser handles DELETE /users/{username}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.users.Delete(r.Context(), username); err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, domain.AuditUserDeleted, username, nil)

	w.WriteHeader(http.StatusNoContent)
}

// ListAudit handles GET /audit?actor=&action=&since=&limit=.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	q := r.URL.Query()
	filter := domain.AuditFilter{
		Actor:  q.Get("actor"),
		Action: q.Get("action"),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be an RFC 3339 timestamp",
			})
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		filter.Limit = limit
	}

	events, err := h.repo.ListAudit(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// actor names the caller for audit records.
func actor(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return p.Username
	}
	return ""
}

func (h *Handler) audit(r *http.Request, action, subject string, detail map[string]any) {
	if h.repo == nil {
		return
	}
	event := &domain.AuditEvent{
		Actor:   actor(r),
		Action:  action,
		Subject: subject,
		Detail:  detail,
	}
	if err := h.repo.RecordAudit(r.Context(), event); err != nil {
		slog.Error("failed to record audit event", "action", action, "error", err)
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInputValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotOverridable), errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrOracleUnavailable), errors.Is(err, domain.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrPrediction):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {"error": ..., "field": ...}. Internal errors are
// logged and not echoed.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	body := map[string]string{"error": err.Error()}
	if field := domain.ErrorField(err); field != "" {
		body["field"] = field
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		body["error"] = "internal server error"
	}

	writeJSON(w, status, body)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
