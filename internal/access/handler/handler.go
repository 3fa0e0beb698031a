package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attesta/internal/access/models"
	"attesta/internal/access/service"
	"attesta/internal/platform/metrics"
	"attesta/internal/platform/middleware"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/httputil"
	s "attesta/pkg/string"
	"attesta/pkg/validation"
)

// Service defines the interface for consent lifecycle operations.
type Service interface {
	Create(ctx context.Context, requesterID id.RequesterID, in service.CreateInput) (*models.Request, error)
	Decide(ctx context.Context, reqID id.RequestID, holderID id.HolderID, approve bool, reason string) (*models.Request, *models.Grant, error)
	RevokeGrant(ctx context.Context, grantID id.GrantID, holderID id.HolderID, reason string) (*models.Grant, error)
	ListRequestsByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Request, error)
	ListRequestsByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Request, error)
	ListGrantsByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Grant, error)
	ListGrantsByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Grant, error)
}

// Handler handles access request and grant endpoints.
type Handler struct {
	logger  *slog.Logger
	access  Service
	metrics *metrics.Metrics
	clock   func() time.Time
}

// New creates an access Handler.
func New(access Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		access:  access,
		metrics: m,
		clock:   time.Now,
	}
}

// Register registers the access routes with the chi router. All routes
// require authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/access-requests", h.handleCreate)
	r.Get("/access-requests", h.handleListRequests)
	r.Post("/access-requests/{requestID}/decision", h.handleDecide)
	r.Get("/grants", h.handleListGrants)
	r.Post("/grants/{grantID}/revoke", h.handleRevokeGrant)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("create_access_request", start)

	principal, ok := middleware.GetPrincipal(ctx)
	if !ok || principal.Role != middleware.RoleVerifier {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "verifier role required"))
		return
	}
	requesterID, err := id.ParseRequesterID(principal.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode access request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	s.TrimStrings(&req.HolderID, &req.Scope, &req.CredentialID, &req.Purpose, &req.Reason)
	if err := validation.Validate(&req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	holderID, err := id.ParseHolderID(req.HolderID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in := service.CreateInput{
		HolderID: holderID,
		Scope:    models.Scope(req.Scope),
		Purpose:  models.Purpose(req.Purpose),
		Reason:   req.Reason,
	}
	if req.CredentialID != "" {
		credID, err := id.ParseCredentialID(req.CredentialID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		in.CredentialID = &credID
	}

	created, err := h.access.Create(ctx, requesterID, in)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create access request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, formatRequest(created, h.clock()))
}

// handleListRequests lists incoming requests for holders and outgoing
// requests for verifiers, keyed off the caller's role.
func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("list_access_requests", start)

	principal, ok := middleware.GetPrincipal(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var reqs []*models.Request
	var err error
	switch principal.Role {
	case middleware.RoleHolder:
		var holderID id.HolderID
		holderID, err = id.ParseHolderID(principal.ID)
		if err == nil {
			reqs, err = h.access.ListRequestsByHolder(ctx, holderID)
		}
	case middleware.RoleVerifier:
		var requesterID id.RequesterID
		requesterID, err = id.ParseRequesterID(principal.ID)
		if err == nil {
			reqs, err = h.access.ListRequestsByRequester(ctx, requesterID)
		}
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "holder or verifier role required"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list access requests",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	now := h.clock()
	status := r.URL.Query().Get("status")
	if status != "" {
		reqs = filterByStatus(reqs, models.RequestStatus(status), now)
	}
	httputil.WriteJSON(w, http.StatusOK, RequestListResponse{Requests: formatRequests(reqs, now)})
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("decide_access_request", start)

	holderID, ok := holderFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "holder role required"))
		return
	}

	reqID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	s.TrimStrings(&req.Decision, &req.Reason)
	if err := validation.Validate(&req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	decided, grant, err := h.access.Decide(ctx, reqID, holderID, req.Decision == "approve", req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to decide access request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	now := h.clock()
	resp := DecisionResponse{Request: formatRequest(decided, now)}
	if grant != nil {
		resp.Grant = formatGrant(grant, now)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleListGrants lists granted visibility: the grants a holder has issued,
// or the grants opened for a verifier, keyed off the caller's role.
func (h *Handler) handleListGrants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("list_grants", start)

	principal, ok := middleware.GetPrincipal(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var grants []*models.Grant
	var err error
	switch principal.Role {
	case middleware.RoleHolder:
		var holderID id.HolderID
		holderID, err = id.ParseHolderID(principal.ID)
		if err == nil {
			grants, err = h.access.ListGrantsByHolder(ctx, holderID)
		}
	case middleware.RoleVerifier:
		var requesterID id.RequesterID
		requesterID, err = id.ParseRequesterID(principal.ID)
		if err == nil {
			grants, err = h.access.ListGrantsByRequester(ctx, requesterID)
		}
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "holder or verifier role required"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list grants",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, GrantListResponse{Grants: formatGrants(grants, h.clock())})
}

func (h *Handler) handleRevokeGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("revoke_grant", start)

	holderID, ok := holderFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "holder role required"))
		return
	}

	grantID, err := id.ParseGrantID(chi.URLParam(r, "grantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req RevokeGrantRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
		s.TrimStrings(&req.Reason)
		if err := validation.Validate(&req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	grant, err := h.access.RevokeGrant(ctx, grantID, holderID, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke grant",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, formatGrant(grant, h.clock()))
}

func (h *Handler) observe(endpoint string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveEndpointLatency(endpoint, time.Since(start).Seconds())
	}
}

func filterByStatus(reqs []*models.Request, status models.RequestStatus, now time.Time) []*models.Request {
	var out []*models.Request
	for _, req := range reqs {
		if req.StatusAt(now) == status {
			out = append(out, req)
		}
	}
	return out
}

func holderFromContext(ctx context.Context) (id.HolderID, bool) {
	principal, ok := middleware.GetPrincipal(ctx)
	if !ok || principal.Role != middleware.RoleHolder {
		return id.HolderID{}, false
	}
	holderID, err := id.ParseHolderID(principal.ID)
	if err != nil {
		return id.HolderID{}, false
	}
	return holderID, true
}
