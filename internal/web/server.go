// ABOUTME: HTTP server for the shortloop JSON API, redirects, and paste pages
// ABOUTME: Wires session middleware, routes, and shared response helpers

package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/shortloop/shortloop/internal/audit"
	"github.com/shortloop/shortloop/internal/auth"
	"github.com/shortloop/shortloop/internal/passkey"
	"github.com/shortloop/shortloop/internal/store"
)

// SessionCookieName is the name of the session cookie
const SessionCookieName = "shortloop_session"

// Store combines the persistence capabilities the HTTP layer needs.
type Store interface {
	store.UserStore
	store.CredentialStore
	store.SessionStore
	store.LinkStore
	store.PasteStore

	ListSecurityEvents(ctx context.Context, f store.SecurityEventFilter) ([]store.SecurityEvent, error)
	ListAuditEntries(ctx context.Context, f store.AuditFilter) ([]store.AuditEntry, error)
}

// Config holds web server configuration
type Config struct {
	// BaseURL is the external URL of the service, used for short link
	// responses and relying-party derivation.
	BaseURL string
}

// Server handles HTTP routes for the API and public pages.
type Server struct {
	store    Store
	passkeys *passkey.Service
	gate     *auth.Gate
	guard    *auth.Guard
	events   *audit.Recorder
	tokens   *auth.TokenIssuer
	config   Config
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// New creates a new Server.
func New(st Store, passkeys *passkey.Service, gate *auth.Gate, guard *auth.Guard, events *audit.Recorder, tokens *auth.TokenIssuer, cfg Config) *Server {
	return &Server{
		store:    st,
		passkeys: passkeys,
		gate:     gate,
		guard:    guard,
		events:   events,
		tokens:   tokens,
		config:   cfg,
		markdown: goldmark.New(),
		logger:   slog.Default().With("component", "web"),
	}
}

// Routes returns the HTTP handler with all routes registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Authentication
	mux.HandleFunc("POST /api/auth/login/begin", s.handleLoginBegin)
	mux.HandleFunc("POST /api/auth/login/finish", s.handleLoginFinish)
	mux.HandleFunc("POST /api/auth/password-login", s.handlePasswordLogin)
	mux.HandleFunc("POST /api/auth/logout", s.requireSession(s.handleLogout))

	// Passkey management
	mux.HandleFunc("POST /api/passkeys/register/begin", s.requireSession(s.handleRegisterBegin))
	mux.HandleFunc("POST /api/passkeys/register/finish", s.requireSession(s.handleRegisterFinish))
	mux.HandleFunc("GET /api/passkeys", s.requireSession(s.handleListPasskeys))
	mux.HandleFunc("DELETE /api/passkeys/{id}", s.requireSession(s.handleDeletePasskey))

	// API tokens
	mux.HandleFunc("POST /api/tokens", s.requireSession(s.handleCreateToken))

	// Links
	mux.HandleFunc("POST /api/links", s.requireSession(s.handleCreateLink))
	mux.HandleFunc("GET /api/links", s.requireSession(s.handleListLinks))
	mux.HandleFunc("PATCH /api/links/{id}", s.requireSession(s.handleUpdateLink))
	mux.HandleFunc("DELETE /api/links/{id}", s.requireSession(s.handleDeleteLink))

	// Pastes
	mux.HandleFunc("POST /api/pastes", s.requireSession(s.handleCreatePaste))
	mux.HandleFunc("GET /api/pastes", s.requireSession(s.handleListPastes))
	mux.HandleFunc("DELETE /api/pastes/{id}", s.requireSession(s.handleDeletePaste))

	// Admin
	mux.HandleFunc("GET /api/admin/users", s.requireSession(s.handleAdminUsers))
	mux.HandleFunc("GET /api/admin/events", s.requireSession(s.handleAdminEvents))
	mux.HandleFunc("GET /api/admin/audit", s.requireSession(s.handleAdminAudit))

	// Public
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /p/{id}", s.handleViewPaste)
	mux.HandleFunc("GET /{code}", s.handleRedirect)

	return mux
}

// withPrincipal resolves the request's identity from the session cookie or
// a bearer token and attaches it to the context. Unauthenticated requests
// pass through with no principal.
func (s *Server) withPrincipal(r *http.Request) *http.Request {
	principal := s.resolvePrincipal(r)
	if principal == nil {
		return r
	}
	return r.WithContext(auth.WithPrincipal(r.Context(), principal))
}

// resolvePrincipal tries the session cookie first, then a bearer token.
func (s *Server) resolvePrincipal(r *http.Request) *auth.Principal {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		session, err := s.store.GetSession(r.Context(), cookie.Value)
		if err == nil {
			if user, err := s.store.GetUser(r.Context(), session.UserID); err == nil {
				return &auth.Principal{UserID: user.ID, Email: user.Email}
			}
		}
	}

	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		userID, err := s.tokens.Verify(tokenStr)
		if err != nil {
			return nil
		}
		if user, err := s.store.GetUser(r.Context(), userID); err == nil {
			return &auth.Principal{UserID: user.ID, Email: user.Email}
		}
	}

	return nil
}

// requireSession wraps a handler to require an authenticated principal.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = s.withPrincipal(r)
		if auth.FromContext(r.Context()) == nil {
			s.writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next(w, r)
	}
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeDenial maps guard errors onto HTTP responses. Authorization denials
// keep their specific kind.
func (s *Server) writeDenial(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		s.writeError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, auth.ErrForbidden):
		s.writeError(w, http.StatusForbidden, "forbidden")
	default:
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// DeriveRelyingParty extracts the WebAuthn relying-party ID and origins
// from a base URL. Returns localhost defaults if the URL is empty or invalid.
func DeriveRelyingParty(baseURL string) (rpID string, rpOrigins []string) {
	rpID = "localhost"
	rpOrigins = []string{"http://localhost", "https://localhost"}

	if baseURL == "" {
		return rpID, rpOrigins
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return rpID, rpOrigins
	}

	host := parsed.Hostname()
	if host == "" {
		return rpID, rpOrigins
	}

	rpID = host
	rpOrigins = []string{parsed.Scheme + "://" + parsed.Host}
	return rpID, rpOrigins
}
