package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Principal is the already-authenticated caller supplied by the identity
// collaborator. The core trusts it without re-verifying credentials.
type Principal struct {
	ID   string
	Role string
}

// Well-known principal roles.
const (
	RoleHolder   = "holder"
	RoleVerifier = "verifier"
	RoleIssuer   = "issuer"
	RoleAdmin    = "admin"
)

// TokenValidator validates a bearer token and returns the principal it
// identifies.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Principal, error)
}

type contextKeyPrincipal struct{}

// ContextKeyPrincipal is exported for use in tests.
var ContextKeyPrincipal = contextKeyPrincipal{}

// GetPrincipal retrieves the authenticated principal from the context.
// The second return is false for unauthenticated (public) requests.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(Principal)
	return p, ok
}

// WithPrincipal injects a principal into the context. Exposed for tests and
// the optional-auth path.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := principalFromRequest(r, validator, logger)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// OptionalAuth attaches a principal when a valid bearer token is present and
// lets the request through anonymously otherwise. Used by the public
// verification endpoint, where an authenticated verifier may carry a grant.
func OptionalAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if principal, ok := principalFromRequest(r, validator, logger); ok {
				r = r.WithContext(WithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalFromRequest(r *http.Request, validator TokenValidator, logger *slog.Logger) (Principal, bool) {
	const bearerPrefix = "Bearer "
	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, bearerPrefix)
	if !ok || token == "" {
		return Principal{}, false
	}

	principal, err := validator.ValidateToken(token)
	if err != nil || principal == nil {
		ctx := r.Context()
		logger.WarnContext(ctx, "invalid bearer token",
			"error", err,
			"request_id", GetRequestID(ctx),
		)
		return Principal{}, false
	}
	return *principal, true
}
