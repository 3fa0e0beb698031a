package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attesta/internal/audit"
	"attesta/internal/platform/metrics"
	"attesta/internal/platform/middleware"
	"attesta/internal/serial"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/httputil"
	s "attesta/pkg/string"
	"attesta/pkg/validation"
)

// Allocator issues serials outside the credential issuance path, for
// pre-printing batches of blank certificates.
type Allocator interface {
	Allocate(ctx context.Context, level serial.Level) (serial.Allocation, error)
}

// Handler exposes the admin-only serial allocation endpoint.
type Handler struct {
	logger    *slog.Logger
	allocator Allocator
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
}

// New creates a serial Handler.
func New(allocator Allocator, auditor *audit.Publisher, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		allocator: allocator,
		auditor:   auditor,
		metrics:   m,
	}
}

// Register registers the serial routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/serials/allocate", h.handleAllocate)
}

// AllocateRequest names the level to allocate a serial for.
type AllocateRequest struct {
	Level string `json:"level" validate:"required,notblank"`
}

// AllocateResponse carries the freshly allocated serial.
type AllocateResponse struct {
	Serial         string `json:"serial"`
	SequenceNumber int64  `json:"sequence_number"`
	Level          string `json:"level"`
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer func() {
		if h.metrics != nil {
			h.metrics.ObserveEndpointLatency("allocate_serial", time.Since(start).Seconds())
		}
	}()

	principal, ok := middleware.GetPrincipal(ctx)
	if !ok || principal.Role != middleware.RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
		return
	}

	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	s.TrimStrings(&req.Level)
	if err := validation.Validate(&req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	level, err := serial.ParseLevel(req.Level)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	alloc, err := h.allocator.Allocate(ctx, level)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to allocate serial",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.emitAudit(ctx, audit.Event{
		ActorID: principal.ID,
		Action:  audit.ActionSerialAllocated,
		Serial:  alloc.Serial,
	})

	httputil.WriteJSON(w, http.StatusCreated, AllocateResponse{
		Serial:         alloc.Serial,
		SequenceNumber: alloc.SequenceNumber,
		Level:          string(level),
	})
}

func (h *Handler) emitAudit(ctx context.Context, event audit.Event) {
	if h.auditor == nil {
		return
	}
	if err := h.auditor.Emit(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
