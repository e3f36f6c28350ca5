// Package auth issues and verifies account tokens and exposes the verified
// identity to handlers through the request context.
package auth

import "context"

type ctxKey int

const claimsKey ctxKey = iota

// Claims contains the verified token details handlers rely on.
// Subject is the account id.
type Claims struct {
	Subject string
	Email   string
}

// WithClaims stores auth claims in a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns claims from a context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// AccountID returns the authenticated account id, or "" when the request
// carries no verified identity.
func AccountID(ctx context.Context) string {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}
