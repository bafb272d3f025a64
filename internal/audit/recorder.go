// ABOUTME: Best-effort recorder for security events and audit entries
// ABOUTME: The single place where log-sink failures are caught and swallowed

// Package audit decouples security-event and audit-trail writes from the
// operations that emit them. Appends are best-effort: a sink failure is
// logged to the operational log and swallowed, never propagated, so audit
// trouble cannot fail a user-facing action.
package audit

import (
	"context"
	"log/slog"

	"github.com/shortloop/shortloop/internal/store"
)

// Sink receives security events and audit entries, typically store-backed.
type Sink interface {
	AppendSecurityEvent(ctx context.Context, e *store.SecurityEvent) error
	AppendAuditEntry(ctx context.Context, e *store.AuditEntry) error
}

// Recorder writes to a Sink and absorbs its failures.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{
		sink:   sink,
		logger: slog.Default().With("component", "audit"),
	}
}

// Security appends a security event. Failures are logged and swallowed.
func (r *Recorder) Security(ctx context.Context, kind store.SecurityEventKind, subject string, meta map[string]any) {
	event := &store.SecurityEvent{
		Kind:    kind,
		Subject: subject,
		Meta:    meta,
	}
	if err := r.sink.AppendSecurityEvent(ctx, event); err != nil {
		r.logger.Warn("dropped security event",
			"kind", kind,
			"subject", subject,
			"error", err,
		)
	}
}

// Change appends an audit entry for a state-changing action on a resource.
// A nil actorID marks a system-initiated change. Failures are logged and
// swallowed.
func (r *Recorder) Change(ctx context.Context, resourceID string, actorID *string, action string, change map[string]any) {
	entry := &store.AuditEntry{
		ResourceID: resourceID,
		ActorID:    actorID,
		Action:     action,
		Change:     change,
	}
	if err := r.sink.AppendAuditEntry(ctx, entry); err != nil {
		r.logger.Warn("dropped audit entry",
			"action", action,
			"resource", resourceID,
			"error", err,
		)
	}
}
