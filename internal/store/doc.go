// ABOUTME: Package documentation for the store package
// ABOUTME: Describes persistence layers and entity organization

// Package store provides SQLite-backed persistence for shortloop.
//
// Entities are split across files: users, passkey credentials, sessions,
// links, pastes, security events, and the audit log. All implementations
// hang off SQLiteStore; MockStore offers an in-memory substitute for
// handler and service tests.
//
// Timestamps are stored as RFC3339 UTC strings. Lookups that miss return
// ErrNotFound so callers can branch with errors.Is without caring which
// entity was requested.
package store
