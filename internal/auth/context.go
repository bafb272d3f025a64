// ABOUTME: Principal context for tracking identity through request handlers
// ABOUTME: Provides WithPrincipal/FromContext for propagating identity via context

package auth

import (
	"context"
)

// Principal holds the authenticated identity resolved from a session or
// bearer token.
type Principal struct {
	UserID string
	Email  string
}

// principalContextKey is the key type for storing a Principal in context.
type principalContextKey struct{}

// WithPrincipal returns a new context with the Principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// FromContext retrieves the Principal from the context, returning nil if
// not present.
func FromContext(ctx context.Context) *Principal {
	val := ctx.Value(principalContextKey{})
	if val == nil {
		return nil
	}
	p, ok := val.(*Principal)
	if !ok {
		return nil
	}
	return p
}
