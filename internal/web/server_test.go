// ABOUTME: Tests for authentication endpoints and session/bearer middleware
// ABOUTME: Shared newTestServer and seeding helpers live here

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shortloop/shortloop/internal/audit"
	"github.com/shortloop/shortloop/internal/auth"
	"github.com/shortloop/shortloop/internal/passkey"
	"github.com/shortloop/shortloop/internal/store"
)

func newTestServer(t *testing.T, superadmins ...string) (*Server, *store.MockStore) {
	t.Helper()

	st := store.NewMockStore()
	recorder := audit.NewRecorder(st)

	passkeys, err := passkey.New(st, recorder, passkey.Config{
		RPDisplayName: "test",
		RPID:          "localhost",
		RPOrigins:     []string{"http://localhost"},
	})
	require.NoError(t, err)

	gate := auth.NewGate(superadmins)
	guard := auth.NewGuard(gate, recorder)
	tokens := auth.NewTokenIssuer([]byte("test-secret"))

	server := New(st, passkeys, gate, guard, recorder, tokens, Config{
		BaseURL: "http://localhost:8080",
	})
	return server, st
}

func seedWebUser(t *testing.T, st *store.MockStore, id, email, password string) *store.User {
	t.Helper()

	user := &store.User{
		ID:          id,
		Email:       email,
		DisplayName: "Test User",
		CreatedAt:   time.Now().UTC(),
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		user.PasswordHash = string(hash)
	}
	require.NoError(t, st.CreateUser(context.Background(), user))
	return user
}

func sessionCookie(t *testing.T, st *store.MockStore, userID string) *http.Cookie {
	t.Helper()

	now := time.Now().UTC()
	session := &store.Session{
		ID:        "session-" + userID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, st.CreateSession(context.Background(), session))
	return &http.Cookie{Name: SessionCookieName, Value: session.ID}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	rr := doJSON(t, server.Routes(), http.MethodGet, "/healthz", nil, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}

func TestPasswordLogin(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "hunter22")

	rr := doJSON(t, server.Routes(), http.MethodPost, "/api/auth/password-login", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	}, nil)

	require.Equal(t, http.StatusOK, rr.Code)

	// Session cookie is set and usable
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)

	events, err := st.ListSecurityEvents(context.Background(), store.SecurityEventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.SecurityEventAuthSuccess, events[0].Kind)
}

func TestPasswordLogin_UniformDenial(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "hunter22")

	// Wrong password and unknown account produce identical responses
	wrongPassword := doJSON(t, server.Routes(), http.MethodPost, "/api/auth/password-login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	}, nil)
	unknownUser := doJSON(t, server.Routes(), http.MethodPost, "/api/auth/password-login", map[string]string{
		"email":    "ghost@example.com",
		"password": "whatever",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Equal(t, passkey.GenericDenial, decodeBody(t, wrongPassword)["error"])

	kind := store.SecurityEventAuthFailure
	events, err := st.ListSecurityEvents(context.Background(), store.SecurityEventFilter{Kind: &kind})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLoginBegin_SameShapeForUnknownEmail(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "")
	require.NoError(t, st.CreateCredential(context.Background(), &store.PasskeyCredential{
		ID:           "cred-1",
		UserID:       "user-1",
		CredentialID: []byte("raw-id"),
		PublicKey:    []byte{0x01},
		CreatedAt:    time.Now().UTC(),
	}))

	known := doJSON(t, server.Routes(), http.MethodPost, "/api/auth/login/begin", map[string]string{"email": "alice@example.com"}, nil)
	unknown := doJSON(t, server.Routes(), http.MethodPost, "/api/auth/login/begin", map[string]string{"email": "ghost@example.com"}, nil)

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)

	knownBody := decodeBody(t, known)
	unknownBody := decodeBody(t, unknown)
	assert.NotEmpty(t, knownBody["reference"])
	assert.NotEmpty(t, unknownBody["reference"])
	assert.NotNil(t, knownBody["options"])
	assert.NotNil(t, unknownBody["options"])
}

func TestLoginFinish_GenericDenial(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doJSON(t, server.Routes(), http.MethodPost, "/api/auth/login/finish", map[string]any{
		"reference": "never-issued",
		"response":  map[string]any{},
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, passkey.GenericDenial, decodeBody(t, rr)["error"])
}

func TestRequireSession(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doJSON(t, server.Routes(), http.MethodGet, "/api/links", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBearerToken(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "")

	token, err := server.tokens.Generate("user-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBearerToken_Invalid(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	server.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "")
	cookie := sessionCookie(t, st, "user-1")

	rr := doJSON(t, server.Routes(), http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	// Session is gone, subsequent requests are unauthenticated
	_, err := st.GetSession(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateToken(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "")
	cookie := sessionCookie(t, st, "user-1")

	rr := doJSON(t, server.Routes(), http.MethodPost, "/api/tokens", map[string]string{"expiresIn": "1h"}, cookie)
	require.Equal(t, http.StatusCreated, rr.Code)

	body := decodeBody(t, rr)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	userID, err := server.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestListPasskeys(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "")
	require.NoError(t, st.CreateCredential(context.Background(), &store.PasskeyCredential{
		ID:           "cred-1",
		UserID:       "user-1",
		CredentialID: []byte("raw-id"),
		PublicKey:    []byte{0x01},
		DeviceLabel:  "laptop",
		DeviceType:   store.DeviceTypePlatform,
		CreatedAt:    time.Now().UTC(),
	}))
	cookie := sessionCookie(t, st, "user-1")

	rr := doJSON(t, server.Routes(), http.MethodGet, "/api/passkeys", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	passkeys, ok := body["passkeys"].([]any)
	require.True(t, ok)
	require.Len(t, passkeys, 1)

	// Public key material stays server-side
	first := passkeys[0].(map[string]any)
	assert.Equal(t, "cred-1", first["id"])
	assert.NotContains(t, first, "publicKey")
	assert.NotContains(t, first, "signCount")
}

func TestDeletePasskey(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "")
	require.NoError(t, st.CreateCredential(context.Background(), &store.PasskeyCredential{
		ID:           "cred-1",
		UserID:       "user-1",
		CredentialID: []byte("raw-id"),
		PublicKey:    []byte{0x01},
		DeviceLabel:  "laptop",
		CreatedAt:    time.Now().UTC(),
	}))
	cookie := sessionCookie(t, st, "user-1")

	rr := doJSON(t, server.Routes(), http.MethodDelete, "/api/passkeys/cred-1", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	entries, err := st.ListAuditEntries(context.Background(), store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.AuditDeletePasskey, entries[0].Action)
}

func TestDeletePasskey_NotFound(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "")
	cookie := sessionCookie(t, st, "user-1")

	rr := doJSON(t, server.Routes(), http.MethodDelete, "/api/passkeys/nope", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRegisterBegin(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "")
	cookie := sessionCookie(t, st, "user-1")

	rr := doJSON(t, server.Routes(), http.MethodPost, "/api/passkeys/register/begin", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.NotEmpty(t, body["reference"])
	assert.NotNil(t, body["options"])
}

func TestSessionCookie_SecureFollowsBaseURLScheme(t *testing.T) {
	server, st := newTestServer(t)
	seedWebUser(t, st, "user-1", "alice@example.com", "hunter22")

	login := func() *http.Cookie {
		rr := doJSON(t, server.Routes(), http.MethodPost, "/api/auth/password-login", map[string]string{
			"email":    "alice@example.com",
			"password": "hunter22",
		}, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		for _, c := range rr.Result().Cookies() {
			if c.Name == SessionCookieName {
				return c
			}
		}
		t.Fatal("session cookie not set")
		return nil
	}

	assert.False(t, login().Secure, "plain-http deployment must not mark the cookie Secure")

	server.config.BaseURL = "https://short.example.com"
	assert.True(t, login().Secure, "https deployment must mark the cookie Secure")
}
