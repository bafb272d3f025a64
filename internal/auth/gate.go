// ABOUTME: Authorization gate combining a superadmin allowlist with ownership checks
// ABOUTME: Pure decision logic, default-deny, denies are values not errors

package auth

import (
	"strings"
)

// Action identifies a privileged operation for authorization purposes.
type Action string

const (
	ActionManageUsers    Action = "manage_users"    // superadmin only
	ActionViewAudit      Action = "view_audit"      // superadmin only
	ActionMutateLink     Action = "mutate_link"     // owner or superadmin
	ActionMutatePaste    Action = "mutate_paste"    // owner or superadmin
	ActionManagePasskeys Action = "manage_passkeys" // owner or superadmin
)

// adminOnly lists the actions that require superadmin regardless of ownership.
var adminOnly = map[Action]bool{
	ActionManageUsers: true,
	ActionViewAudit:   true,
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string // populated on deny
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision with a reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Gate makes authorization decisions. The superadmin allowlist is injected
// at construction so tests never need process-wide configuration.
type Gate struct {
	superadmins map[string]struct{}
}

// NewGate creates a Gate from a superadmin email allowlist. Entries are
// trimmed and lower-cased; an empty or nil list denies every principal.
func NewGate(allowlist []string) *Gate {
	superadmins := make(map[string]struct{}, len(allowlist))
	for _, email := range allowlist {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			superadmins[email] = struct{}{}
		}
	}
	return &Gate{superadmins: superadmins}
}

// IsSuperadmin reports whether the email exactly matches an allowlist
// entry, case-insensitively.
func (g *Gate) IsSuperadmin(email string) bool {
	_, ok := g.superadmins[strings.ToLower(email)]
	return ok
}

// Authorize decides whether the principal may perform action on a resource
// owned by resourceOwner. For admin-only actions resourceOwner is ignored;
// pass "" there. Default is deny.
func (g *Gate) Authorize(p *Principal, action Action, resourceOwner string) Decision {
	if p == nil {
		return Deny("no principal")
	}

	if g.IsSuperadmin(p.Email) {
		return Allow
	}

	if adminOnly[action] {
		return Deny("superadmin required")
	}

	if resourceOwner != "" && p.UserID == resourceOwner {
		return Allow
	}

	return Deny("not resource owner")
}
