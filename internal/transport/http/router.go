// Package httptransport wires the HTTP surface: middleware stack, feature
// handlers, health and metrics endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accesshandler "attesta/internal/access/handler"
	credentialhandler "attesta/internal/credential/handler"
	"attesta/internal/platform/health"
	"attesta/internal/platform/middleware"
	serialhandler "attesta/internal/serial/handler"
	verificationhandler "attesta/internal/verification/handler"
	"attesta/pkg/platform/middleware/metadata"
)

// Handlers bundles the feature handlers mounted on the router.
type Handlers struct {
	Serials      *serialhandler.Handler
	Credentials  *credentialhandler.Handler
	Access       *accesshandler.Handler
	Verification *verificationhandler.Handler
	Health       *health.Handler
}

// NewRouter assembles the middleware stack and mounts all endpoints. The
// verification gate sits behind optional auth so anonymous callers reach it;
// everything else under the API requires a bearer token.
func NewRouter(h Handlers, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(metadata.NewMiddleware(metadata.DefaultConfig()).Handler)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	h.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(validator, logger))
		h.Verification.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))
		h.Serials.Register(r)
		h.Credentials.Register(r)
		h.Access.Register(r)
		h.Verification.RegisterProtected(r)
	})

	return r
}
