// ABOUTME: Tests for the best-effort recorder
// ABOUTME: Verifies sink failures are swallowed and successful appends pass through

package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortloop/shortloop/internal/store"
)

// failingSink always errors, simulating an unavailable audit store.
type failingSink struct {
	events  int
	entries int
}

func (f *failingSink) AppendSecurityEvent(ctx context.Context, e *store.SecurityEvent) error {
	f.events++
	return errors.New("sink unavailable")
}

func (f *failingSink) AppendAuditEntry(ctx context.Context, e *store.AuditEntry) error {
	f.entries++
	return errors.New("sink unavailable")
}

func TestRecorder_Security_SwallowsSinkFailure(t *testing.T) {
	sink := &failingSink{}
	recorder := NewRecorder(sink)

	// Must not panic or propagate anything.
	recorder.Security(context.Background(), store.SecurityEventAuthFailure, "ghost@nowhere.test", map[string]any{
		"reason": "user_not_found",
	})

	assert.Equal(t, 1, sink.events)
}

func TestRecorder_Change_SwallowsSinkFailure(t *testing.T) {
	sink := &failingSink{}
	recorder := NewRecorder(sink)

	actor := "user-1"
	recorder.Change(context.Background(), "link-1", &actor, store.AuditUpdateLink, map[string]any{
		"target_url": "https://example.com/new",
	})

	assert.Equal(t, 1, sink.entries)
}

func TestRecorder_Security_WritesToSink(t *testing.T) {
	mock := store.NewMockStore()
	recorder := NewRecorder(mock)
	ctx := context.Background()

	recorder.Security(ctx, store.SecurityEventAuthSuccess, "user-1", map[string]any{"method": "passkey"})

	events, err := mock.ListSecurityEvents(ctx, store.SecurityEventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.SecurityEventAuthSuccess, events[0].Kind)
	assert.Equal(t, "user-1", events[0].Subject)
	assert.Equal(t, "passkey", events[0].Meta["method"])
}

func TestRecorder_Change_WritesToSink(t *testing.T) {
	mock := store.NewMockStore()
	recorder := NewRecorder(mock)
	ctx := context.Background()

	// System-initiated change: no actor.
	recorder.Change(ctx, "link-9", nil, store.AuditDeleteLink, nil)

	entries, err := mock.ListAuditEntries(ctx, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.AuditDeleteLink, entries[0].Action)
	assert.Nil(t, entries[0].ActorID)
}
