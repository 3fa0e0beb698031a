package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attesta/internal/credential/models"
	"attesta/internal/platform/metrics"
	"attesta/internal/platform/middleware"
	"attesta/internal/serial"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/httputil"
	s "attesta/pkg/string"
	"attesta/pkg/validation"
)

// Service defines the interface for credential operations.
type Service interface {
	Issue(ctx context.Context, issuerID id.IssuerID, holderID id.HolderID, level serial.Level, birthDate time.Time) (*models.Credential, error)
	SetShareable(ctx context.Context, credID id.CredentialID, holderID id.HolderID, shareable bool) (*models.Credential, error)
	Revoke(ctx context.Context, credID id.CredentialID, actorID string) error
	ListByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Credential, error)
}

// Handler handles credential endpoints.
type Handler struct {
	logger      *slog.Logger
	credentials Service
	metrics     *metrics.Metrics
}

// New creates a credential Handler.
func New(credentials Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:      logger,
		credentials: credentials,
		metrics:     m,
	}
}

// Register registers the credential routes with the chi router. All routes
// require authentication; role checks happen per endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.handleIssue)
	r.Get("/credentials", h.handleList)
	r.Patch("/credentials/{credentialID}/shareable", h.handleSetShareable)
	r.Delete("/credentials/{credentialID}", h.handleRevoke)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("issue_credential", start)

	principal, ok := requireRole(ctx, middleware.RoleIssuer, middleware.RoleAdmin)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "issuer role required"))
		return
	}

	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode issue request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	s.TrimStrings(&req.HolderID, &req.Level, &req.BirthDate)
	if err := validation.Validate(&req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	issuerID, err := id.ParseIssuerID(principal.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	holderID, err := id.ParseHolderID(req.HolderID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	level, err := serial.ParseLevel(req.Level)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "birth_date must match format 2006-01-02"))
		return
	}

	cred, err := h.credentials.Issue(ctx, issuerID, holderID, level, birthDate)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue credential",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, formatCredential(cred))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("list_credentials", start)

	holderID, ok := holderFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "holder role required"))
		return
	}

	creds, err := h.credentials.ListByHolder(ctx, holderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list credentials",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ListResponse{Credentials: formatCredentials(creds)})
}

func (h *Handler) handleSetShareable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("set_shareable", start)

	holderID, ok := holderFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "holder role required"))
		return
	}

	credID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req ShareableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validation.Validate(&req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.credentials.SetShareable(ctx, credID, holderID, *req.Shareable)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update shareable flag",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, formatCredential(cred))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("revoke_credential", start)

	principal, ok := requireRole(ctx, middleware.RoleAdmin)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
		return
	}

	credID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.credentials.Revoke(ctx, credID, principal.ID); err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke credential",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) observe(endpoint string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveEndpointLatency(endpoint, time.Since(start).Seconds())
	}
}

// requireRole returns the principal when it carries one of the given roles.
func requireRole(ctx context.Context, roles ...string) (middleware.Principal, bool) {
	principal, ok := middleware.GetPrincipal(ctx)
	if !ok {
		return middleware.Principal{}, false
	}
	for _, role := range roles {
		if principal.Role == role {
			return principal, true
		}
	}
	return middleware.Principal{}, false
}

func holderFromContext(ctx context.Context) (id.HolderID, bool) {
	principal, ok := requireRole(ctx, middleware.RoleHolder)
	if !ok {
		return id.HolderID{}, false
	}
	holderID, err := id.ParseHolderID(principal.ID)
	if err != nil {
		return id.HolderID{}, false
	}
	return holderID, true
}
