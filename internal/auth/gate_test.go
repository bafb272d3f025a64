// ABOUTME: Tests for the authorization gate decision logic
// ABOUTME: Covers allowlist matching, ownership, admin-only actions, default deny

package auth

import (
	"testing"
)

func TestGate_IsSuperadmin(t *testing.T) {
	gate := NewGate([]string{" Admin@Example.com ", "root@example.com"})

	// Allowlist entries are trimmed and matched case-insensitively
	if !gate.IsSuperadmin("admin@example.com") {
		t.Error("expected lower-cased lookup to match")
	}
	if !gate.IsSuperadmin("ADMIN@EXAMPLE.COM") {
		t.Error("expected upper-cased lookup to match")
	}
	if gate.IsSuperadmin("other@example.com") {
		t.Error("unlisted email must not be superadmin")
	}
}

func TestGate_EmptyAllowlistDeniesEveryone(t *testing.T) {
	for _, gate := range []*Gate{NewGate(nil), NewGate([]string{}), NewGate([]string{"  ", ""})} {
		p := &Principal{UserID: "user-1", Email: "admin@example.com"}
		if d := gate.Authorize(p, ActionManageUsers, ""); d.Allowed {
			t.Error("empty allowlist must deny admin actions for everyone")
		}
	}
}

func TestGate_Authorize_NilPrincipal(t *testing.T) {
	gate := NewGate([]string{"admin@example.com"})

	d := gate.Authorize(nil, ActionMutateLink, "user-1")
	if d.Allowed {
		t.Fatal("nil principal must be denied")
	}
	if d.Reason == "" {
		t.Fatal("deny must carry a reason")
	}
}

func TestGate_Authorize_Superadmin(t *testing.T) {
	gate := NewGate([]string{"admin@example.com"})
	admin := &Principal{UserID: "admin-1", Email: "Admin@Example.com"}

	// Superadmin passes every action, owned or not
	for _, action := range []Action{ActionManageUsers, ActionViewAudit, ActionMutateLink, ActionMutatePaste, ActionManagePasskeys} {
		if d := gate.Authorize(admin, action, "someone-else"); !d.Allowed {
			t.Errorf("superadmin denied %s: %s", action, d.Reason)
		}
	}
}

func TestGate_Authorize_Owner(t *testing.T) {
	gate := NewGate([]string{"admin@example.com"})
	owner := &Principal{UserID: "user-1", Email: "user@example.com"}

	if d := gate.Authorize(owner, ActionMutateLink, "user-1"); !d.Allowed {
		t.Errorf("owner denied mutate_link: %s", d.Reason)
	}
	if d := gate.Authorize(owner, ActionMutateLink, "user-2"); d.Allowed {
		t.Error("non-owner must be denied")
	}
}

func TestGate_Authorize_AdminOnlyIgnoresOwnership(t *testing.T) {
	gate := NewGate([]string{"admin@example.com"})
	user := &Principal{UserID: "user-1", Email: "user@example.com"}

	// Even "owning" the resource does not grant admin-only actions
	if d := gate.Authorize(user, ActionManageUsers, "user-1"); d.Allowed {
		t.Error("manage_users must require superadmin")
	}
	if d := gate.Authorize(user, ActionViewAudit, "user-1"); d.Allowed {
		t.Error("view_audit must require superadmin")
	}
}

func TestGate_Authorize_DefaultDeny(t *testing.T) {
	gate := NewGate([]string{"admin@example.com"})
	user := &Principal{UserID: "user-1", Email: "user@example.com"}

	// Unknown action with no ownership match falls through to deny
	if d := gate.Authorize(user, Action("made_up"), ""); d.Allowed {
		t.Error("unknown action must default to deny")
	}
}
