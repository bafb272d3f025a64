// ABOUTME: Tests for passkey credential persistence and sign count CAS
// ABOUTME: Covers counter conflicts, flagging, and lookup by credential ID

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCredential(t *testing.T, store *SQLiteStore, id string, signCount uint32) *PasskeyCredential {
	t.Helper()
	ctx := context.Background()

	cred := &PasskeyCredential{
		ID:           id,
		UserID:       "user-1",
		CredentialID: []byte("raw-" + id),
		PublicKey:    []byte{0x01, 0x02, 0x03},
		DeviceLabel:  "laptop",
		DeviceType:   DeviceTypePlatform,
		SignCount:    signCount,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.CreateCredential(ctx, cred))
	return cred
}

func TestStore_CreateCredential(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))
	setupCredential(t, store, "cred-1", 5)

	retrieved, err := store.GetCredentialByCredentialID(ctx, []byte("raw-cred-1"))
	require.NoError(t, err)
	assert.Equal(t, "cred-1", retrieved.ID)
	assert.Equal(t, uint32(5), retrieved.SignCount)
	assert.False(t, retrieved.Flagged)
	assert.Nil(t, retrieved.LastUsedAt)
}

func TestStore_GetCredentialByCredentialID_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetCredentialByCredentialID(ctx, []byte("unknown"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetCredentialsByUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))
	setupCredential(t, store, "cred-1", 0)
	setupCredential(t, store, "cred-2", 0)

	creds, err := store.GetCredentialsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	creds, err = store.GetCredentialsByUser(ctx, "user-other")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestStore_CompareAndSetSignCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))
	setupCredential(t, store, "cred-1", 5)

	now := time.Now().UTC().Truncate(time.Second)
	err := store.CompareAndSetSignCount(ctx, "cred-1", 5, 6, now)
	require.NoError(t, err)

	retrieved, err := store.getCredential(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(6), retrieved.SignCount)
	require.NotNil(t, retrieved.LastUsedAt)
	assert.Equal(t, now, retrieved.LastUsedAt.UTC())
}

func TestStore_CompareAndSetSignCount_Conflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))
	setupCredential(t, store, "cred-1", 5)

	now := time.Now().UTC()

	// First update wins
	require.NoError(t, store.CompareAndSetSignCount(ctx, "cred-1", 5, 6, now))

	// Second update against the stale count loses
	err := store.CompareAndSetSignCount(ctx, "cred-1", 5, 7, now)
	assert.ErrorIs(t, err, ErrSignCountConflict)

	// Counter keeps the winner's value
	retrieved, err := store.getCredential(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(6), retrieved.SignCount)
}

func TestStore_CompareAndSetSignCount_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CompareAndSetSignCount(ctx, "nonexistent", 0, 1, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FlagCredential(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))
	setupCredential(t, store, "cred-1", 0)

	require.NoError(t, store.FlagCredential(ctx, "cred-1"))

	retrieved, err := store.getCredential(ctx, "cred-1")
	require.NoError(t, err)
	assert.True(t, retrieved.Flagged)

	assert.ErrorIs(t, store.FlagCredential(ctx, "nonexistent"), ErrNotFound)
}

func TestStore_DeleteCredential(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("user-1", "a@example.com")))
	setupCredential(t, store, "cred-1", 0)

	require.NoError(t, store.DeleteCredential(ctx, "cred-1"))

	_, err := store.getCredential(ctx, "cred-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteCredential(ctx, "cred-1"), ErrNotFound)
}
