// ABOUTME: Authentication HTTP handlers: passkey login, password fallback,
// ABOUTME: logout, passkey registration and management, API token issuance

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shortloop/shortloop/internal/auth"
	"github.com/shortloop/shortloop/internal/passkey"
	"github.com/shortloop/shortloop/internal/store"
)

type loginBeginRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleLoginBegin(w http.ResponseWriter, r *http.Request) {
	var req loginBeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		s.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	pending, err := s.passkeys.StartAuthentication(r.Context(), req.Email)
	if err != nil {
		s.logger.Error("failed to start authentication", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, pending)
}

type loginFinishRequest struct {
	Reference string          `json:"reference"`
	Response  json.RawMessage `json:"response"`
}

func (s *Server) handleLoginFinish(w http.ResponseWriter, r *http.Request) {
	var req loginFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		s.writeError(w, http.StatusBadRequest, "reference is required")
		return
	}

	session, err := s.passkeys.VerifyAuthentication(r.Context(), req.Reference, req.Response)
	if err != nil {
		if passkey.IsAuthFailure(err) {
			s.writeError(w, http.StatusUnauthorized, passkey.GenericDenial)
			return
		}
		s.logger.Error("failed to verify authentication", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.setSessionCookie(w, session)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type passwordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handlePasswordLogin is the fallback for accounts that have not enrolled a
// passkey yet. All failure modes get the same response.
func (s *Server) handlePasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req passwordLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.events.Security(r.Context(), store.SecurityEventAuthFailure, req.Email, map[string]any{
			"method": "password",
			"reason": "invalid_credentials",
		})
		s.writeError(w, http.StatusUnauthorized, passkey.GenericDenial)
		return
	}

	session, err := s.passkeys.CreateSession(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.events.Security(r.Context(), store.SecurityEventAuthSuccess, user.Email, map[string]any{
		"method":  "password",
		"user_id": user.ID,
	})
	s.setSessionCookie(w, session)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := s.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			s.logger.Debug("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, session *store.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}

// secureCookies reports whether session cookies should carry the Secure
// attribute, derived from the scheme the service is published under.
func (s *Server) secureCookies() bool {
	return strings.HasPrefix(s.config.BaseURL, "https://")
}

func (s *Server) handleRegisterBegin(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	pending, err := s.passkeys.BeginRegistration(r.Context(), principal.UserID)
	if err != nil {
		s.logger.Error("failed to begin registration", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, pending)
}

type registerFinishRequest struct {
	Reference   string          `json:"reference"`
	DeviceLabel string          `json:"deviceLabel"`
	Response    json.RawMessage `json:"response"`
}

func (s *Server) handleRegisterFinish(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	var req registerFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		s.writeError(w, http.StatusBadRequest, "reference is required")
		return
	}

	cred, err := s.passkeys.FinishRegistration(r.Context(), principal.UserID, req.Reference, req.DeviceLabel, req.Response)
	if err != nil {
		if passkey.IsAuthFailure(err) {
			s.writeError(w, http.StatusUnauthorized, passkey.GenericDenial)
			return
		}
		s.logger.Error("failed to finish registration", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{
		"id":          cred.ID,
		"deviceLabel": cred.DeviceLabel,
		"deviceType":  cred.DeviceType,
	})
}

func (s *Server) handleListPasskeys(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	creds, err := s.passkeys.ListCredentials(r.Context(), principal.UserID)
	if err != nil {
		s.logger.Error("failed to list credentials", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"passkeys": creds})
}

func (s *Server) handleDeletePasskey(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())
	id := r.PathValue("id")

	cred, err := s.findCredential(r, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "passkey not found")
			return
		}
		s.logger.Error("failed to load credential", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.guard.Check(r.Context(), principal, auth.ActionManagePasskeys, cred.UserID); err != nil {
		s.writeDenial(w, err)
		return
	}

	if err := s.store.DeleteCredential(r.Context(), id); err != nil {
		s.logger.Error("failed to delete credential", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.events.Change(r.Context(), id, &principal.UserID, store.AuditDeletePasskey, map[string]any{
		"device_label": cred.DeviceLabel,
		"owner_id":     cred.UserID,
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// findCredential looks up a credential row by its primary key across the
// owner's credentials. The store only exposes lookup by raw credential ID,
// so this goes through the owner listing.
func (s *Server) findCredential(r *http.Request, id string) (*store.PasskeyCredential, error) {
	principal := auth.FromContext(r.Context())

	creds, err := s.store.GetCredentialsByUser(r.Context(), principal.UserID)
	if err != nil {
		return nil, err
	}
	for _, cred := range creds {
		if cred.ID == id {
			return cred, nil
		}
	}
	return nil, store.ErrNotFound
}

type createTokenRequest struct {
	ExpiresIn string `json:"expiresIn"`
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	// An empty or absent body is fine: the default TTL applies.
	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = createTokenRequest{}
	}

	expiresIn := auth.DefaultTokenTTL
	if req.ExpiresIn != "" {
		parsed, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid expiresIn duration")
			return
		}
		expiresIn = parsed
	}

	token, err := s.tokens.Generate(principal.UserID, expiresIn)
	if err != nil {
		s.logger.Error("failed to generate token", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{
		"token":     token,
		"expiresAt": time.Now().UTC().Add(expiresIn).Format(time.RFC3339),
	})
}
