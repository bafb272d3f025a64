// ABOUTME: Tests for user and session persistence against a temporary SQLite file
// ABOUTME: Shared setupTestStore helper lives here

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func testUser(id, email string) *User {
	return &User{
		ID:          id,
		Email:       email,
		DisplayName: "Test User",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_CreateUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CreateUser(ctx, testUser("user-1", "alice@example.com"))
	require.NoError(t, err)

	retrieved, err := store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", retrieved.Email)
	assert.Equal(t, "Test User", retrieved.DisplayName)
}

func TestStore_CreateUser_DuplicateEmail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CreateUser(ctx, testUser("user-1", "alice@example.com"))
	require.NoError(t, err)

	// Same email with different case should still collide
	err = store.CreateUser(ctx, testUser("user-2", "Alice@Example.com"))
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestStore_GetUserByEmail_CaseInsensitive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CreateUser(ctx, testUser("user-1", "Alice@Example.com"))
	require.NoError(t, err)

	retrieved, err := store.GetUserByEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "user-1", retrieved.ID)
	// Stored form is lower-cased
	assert.Equal(t, "alice@example.com", retrieved.Email)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetUser(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListUsers(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))
	require.NoError(t, store.CreateUser(ctx, testUser("user-2", "b@example.com")))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	count, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_CreateSession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))

	now := time.Now().UTC().Truncate(time.Second)
	session := &Session{
		ID:        "session-abc",
		UserID:    "user-1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, store.CreateSession(ctx, session))

	retrieved, err := store.GetSession(ctx, "session-abc")
	require.NoError(t, err)
	assert.Equal(t, "user-1", retrieved.UserID)
}

func TestStore_GetSession_Expired(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))

	now := time.Now().UTC().Truncate(time.Second)
	session := &Session{
		ID:        "session-old",
		UserID:    "user-1",
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	require.NoError(t, store.CreateSession(ctx, session))

	// Expired sessions are invisible to lookups
	_, err := store.GetSession(ctx, "session-old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteSession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))

	now := time.Now().UTC().Truncate(time.Second)
	session := &Session{
		ID:        "session-abc",
		UserID:    "user-1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, store.CreateSession(ctx, session))
	require.NoError(t, store.DeleteSession(ctx, "session-abc"))

	_, err := store.GetSession(ctx, "session-abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteExpiredSessions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateSession(ctx, &Session{
		ID: "live", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, store.CreateSession(ctx, &Session{
		ID: "dead", UserID: "user-1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	require.NoError(t, store.DeleteExpiredSessions(ctx))

	_, err := store.GetSession(ctx, "live")
	assert.NoError(t, err)
}
