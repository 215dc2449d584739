// Package auth verifies bearer tokens issued by an external identity
// provider and carries the verified claims through request contexts.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the verified claims of an access token. Subject identifies the
// list owner.
type Claims struct {
	jwt.RegisteredClaims

	Scope string `json:"scope,omitempty"`
	Email string `json:"email,omitempty"`
}

type claimsKey struct{}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// SubjectFromContext returns the verified subject, or "" when the request
// was not authenticated.
func SubjectFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Subject
	}
	return ""
}
