// ABOUTME: Tests for the request guard wrapping privileged operations
// ABOUTME: Verifies error mapping and privilege_denied event emission

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/shortloop/shortloop/internal/audit"
	"github.com/shortloop/shortloop/internal/store"
)

func newTestGuard(allowlist []string) (*Guard, *store.MockStore) {
	st := store.NewMockStore()
	gate := NewGate(allowlist)
	return NewGuard(gate, audit.NewRecorder(st)), st
}

func TestGuard_Check_Unauthenticated(t *testing.T) {
	guard, st := newTestGuard([]string{"admin@example.com"})
	ctx := context.Background()

	err := guard.Check(ctx, nil, ActionMutateLink, "user-1")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	// Missing principal is a routine boundary check, not a security event
	events, _ := st.ListSecurityEvents(ctx, store.SecurityEventFilter{})
	if len(events) != 0 {
		t.Fatalf("expected no security events, got %d", len(events))
	}
}

func TestGuard_Check_Forbidden(t *testing.T) {
	guard, st := newTestGuard([]string{"admin@example.com"})
	ctx := context.Background()

	p := &Principal{UserID: "user-1", Email: "user@example.com"}
	err := guard.Check(ctx, p, ActionManageUsers, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	events, _ := st.ListSecurityEvents(ctx, store.SecurityEventFilter{})
	if len(events) != 1 {
		t.Fatalf("expected 1 security event, got %d", len(events))
	}
	if events[0].Kind != store.SecurityEventPrivilegeDenied {
		t.Fatalf("expected privilege_denied, got %s", events[0].Kind)
	}
	if events[0].Subject != "user@example.com" {
		t.Fatalf("unexpected subject: %s", events[0].Subject)
	}
	if events[0].Meta["action"] != string(ActionManageUsers) {
		t.Fatalf("unexpected action meta: %v", events[0].Meta["action"])
	}
}

func TestGuard_Check_Allowed(t *testing.T) {
	guard, st := newTestGuard([]string{"admin@example.com"})
	ctx := context.Background()

	owner := &Principal{UserID: "user-1", Email: "user@example.com"}
	if err := guard.Check(ctx, owner, ActionMutateLink, "user-1"); err != nil {
		t.Fatalf("expected owner to pass, got %v", err)
	}

	admin := &Principal{UserID: "admin-1", Email: "admin@example.com"}
	if err := guard.Check(ctx, admin, ActionManageUsers, ""); err != nil {
		t.Fatalf("expected superadmin to pass, got %v", err)
	}

	events, _ := st.ListSecurityEvents(ctx, store.SecurityEventFilter{})
	if len(events) != 0 {
		t.Fatalf("allowed checks must not log events, got %d", len(events))
	}
}
