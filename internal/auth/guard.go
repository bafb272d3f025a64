// ABOUTME: Request guard wrapping privileged operations
// ABOUTME: Requires a principal, consults the gate, logs denials, short-circuits

package auth

import (
	"context"
	"errors"

	"github.com/shortloop/shortloop/internal/audit"
	"github.com/shortloop/shortloop/internal/store"
)

// Authorization denials. Distinct from authentication failures and safe to
// report with their specific kind: they leak no account-existence signal.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Guard wraps privileged operations with the authorization gate and the
// security event log.
type Guard struct {
	gate   *Gate
	events *audit.Recorder
}

// NewGuard creates a Guard.
func NewGuard(gate *Gate, events *audit.Recorder) *Guard {
	return &Guard{gate: gate, events: events}
}

// Check enforces the guard contract: a nil principal short-circuits with
// ErrUnauthenticated (a routine boundary check, no security event); a gate
// deny logs a privilege_denied event and returns ErrForbidden; an allow
// returns nil and the wrapped operation proceeds with its own results and
// errors untouched.
func (g *Guard) Check(ctx context.Context, p *Principal, action Action, resourceOwner string) error {
	if p == nil {
		return ErrUnauthenticated
	}

	decision := g.gate.Authorize(p, action, resourceOwner)
	if !decision.Allowed {
		g.events.Security(ctx, store.SecurityEventPrivilegeDenied, p.Email, map[string]any{
			"action": string(action),
			"reason": decision.Reason,
		})
		return ErrForbidden
	}

	return nil
}
