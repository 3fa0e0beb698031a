package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attesta/internal/platform/metrics"
	"attesta/internal/platform/middleware"
	"attesta/internal/verification/models"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/httputil"
	s "attesta/pkg/string"
	"attesta/pkg/validation"
)

// Service defines the interface for verification operations.
type Service interface {
	Verify(ctx context.Context, serialStr string, birthDate time.Time, requesterID id.RequesterID) (*models.Result, error)
	History(ctx context.Context, credID id.CredentialID, holderID id.HolderID) ([]*models.Event, error)
}

// Handler handles the public verification gate and the holder-facing
// verification history.
type Handler struct {
	logger       *slog.Logger
	verification Service
	metrics      *metrics.Metrics
}

// New creates a verification Handler.
func New(verification Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:       logger,
		verification: verification,
		metrics:      m,
	}
}

// RegisterPublic registers the verification gate. It is mounted behind
// optional auth: anonymous callers reach shareable credentials, verifiers
// with a token may additionally exercise their grants.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/verify", h.handleVerify)
}

// RegisterProtected registers the holder-only history route.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/credentials/{credentialID}/verifications", h.handleHistory)
}

// VerifyRequest is the caller's claim about a credential.
type VerifyRequest struct {
	Serial    string `json:"serial" validate:"required,notblank"`
	BirthDate string `json:"birth_date" validate:"required,datetime=2006-01-02"`
}

// HistoryResponse wraps the events recorded against one credential.
type HistoryResponse struct {
	Events []*EventResponse `json:"events"`
}

// EventResponse is one recorded verification attempt.
type EventResponse struct {
	ID            string    `json:"id"`
	SourceAddress string    `json:"source_address"`
	Country       string    `json:"country,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	Outcome       string    `json:"outcome"`
	VerifiedAt    time.Time `json:"verified_at"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("verify", start)

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode verify request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	s.TrimStrings(&req.Serial, &req.BirthDate)
	if err := validation.Validate(&req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "birth_date must match format 2006-01-02"))
		return
	}

	// An authenticated verifier may hold a grant; anyone else verifies
	// anonymously against shareable credentials only.
	var requesterID id.RequesterID
	if principal, ok := middleware.GetPrincipal(ctx); ok && principal.Role == middleware.RoleVerifier {
		if parsed, err := id.ParseRequesterID(principal.ID); err == nil {
			requesterID = parsed
		}
	}

	result, err := h.verification.Verify(ctx, req.Serial, birthDate, requesterID)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer h.observe("verification_history", start)

	principal, ok := middleware.GetPrincipal(ctx)
	if !ok || principal.Role != middleware.RoleHolder {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "holder role required"))
		return
	}
	holderID, err := id.ParseHolderID(principal.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	credID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.verification.History(ctx, credID, holderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list verification history",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := HistoryResponse{Events: make([]*EventResponse, 0, len(events))}
	for _, event := range events {
		resp.Events = append(resp.Events, &EventResponse{
			ID:            event.ID.String(),
			SourceAddress: event.SourceAddress,
			Country:       event.Country,
			UserAgent:     event.UserAgent,
			Outcome:       string(event.Outcome),
			VerifiedAt:    event.VerifiedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) observe(endpoint string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveEndpointLatency(endpoint, time.Since(start).Seconds())
	}
}
