// Package identity adapts the external identity collaborator. The core only
// consumes already-authenticated (principal, role) pairs; token issuance
// lives with the identity provider, not here.
package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"attesta/internal/platform/middleware"
	dErrors "attesta/pkg/domain-errors"
)

// Claims are the JWT claims expected from the identity provider.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator validates HMAC-signed bearer tokens from the identity provider.
type JWTValidator struct {
	signingKey []byte
	leeway     time.Duration
}

func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{
		signingKey: []byte(signingKey),
		leeway:     30 * time.Second,
	}
}

// ValidateToken parses and verifies a token, returning the principal it
// identifies. Implements middleware.TokenValidator.
func (v *JWTValidator) ValidateToken(tokenString string) (*middleware.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
			}
			return v.signingKey, nil
		},
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if !token.Valid || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &middleware.Principal{
		ID:   claims.Subject,
		Role: claims.Role,
	}, nil
}
