// ABOUTME: Short link HTTP handlers: create, list, update, delete, redirect
// ABOUTME: Mutations are ownership-guarded and recorded in the audit log

package web

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shortloop/shortloop/internal/auth"
	"github.com/shortloop/shortloop/internal/store"
)

const (
	codeAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength     = 7
	codeGenRetries = 5
)

type linkResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	ShortURL  string    `json:"shortUrl"`
	TargetURL string    `json:"targetUrl"`
	OwnerID   string    `json:"ownerId"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) linkResponse(link *store.Link) linkResponse {
	return linkResponse{
		ID:        link.ID,
		Code:      link.Code,
		ShortURL:  strings.TrimSuffix(s.config.BaseURL, "/") + "/" + link.Code,
		TargetURL: link.TargetURL,
		OwnerID:   link.OwnerID,
		Clicks:    link.Clicks,
		CreatedAt: link.CreatedAt,
		UpdatedAt: link.UpdatedAt,
	}
}

type createLinkRequest struct {
	TargetURL string `json:"targetUrl"`
	Code      string `json:"code"`
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetURL == "" {
		s.writeError(w, http.StatusBadRequest, "targetUrl is required")
		return
	}
	if !validTargetURL(req.TargetURL) {
		s.writeError(w, http.StatusBadRequest, "targetUrl must be an absolute http or https URL")
		return
	}
	if req.Code != "" && !validCode(req.Code) {
		s.writeError(w, http.StatusBadRequest, "code must be 1-64 letters, digits, hyphens, or underscores")
		return
	}

	now := time.Now().UTC()
	link := &store.Link{
		ID:        uuid.New().String(),
		Code:      req.Code,
		TargetURL: req.TargetURL,
		OwnerID:   principal.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	if link.Code != "" {
		err = s.store.CreateLink(r.Context(), link)
	} else {
		// Random codes can collide with existing ones, so retry a few
		// times with a fresh code.
		for attempt := 0; attempt < codeGenRetries; attempt++ {
			link.Code, err = generateCode(codeLength)
			if err != nil {
				break
			}
			err = s.store.CreateLink(r.Context(), link)
			if !errors.Is(err, store.ErrCodeExists) {
				break
			}
		}
	}
	if err != nil {
		if errors.Is(err, store.ErrCodeExists) {
			s.writeError(w, http.StatusConflict, "code is already taken")
			return
		}
		s.logger.Error("failed to create link", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.store.GetLink(r.Context(), link.ID)
	if err != nil {
		s.logger.Error("failed to load created link", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.events.Change(r.Context(), created.ID, &principal.UserID, store.AuditCreateLink, map[string]any{
		"code":       created.Code,
		"target_url": created.TargetURL,
	})
	s.writeJSON(w, http.StatusCreated, s.linkResponse(created))
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	links, err := s.store.ListLinksByOwner(r.Context(), principal.UserID)
	if err != nil {
		s.logger.Error("failed to list links", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]linkResponse, 0, len(links))
	for _, link := range links {
		out = append(out, s.linkResponse(link))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"links": out})
}

type updateLinkRequest struct {
	TargetURL string `json:"targetUrl"`
}

func (s *Server) handleUpdateLink(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())
	id := r.PathValue("id")

	link, err := s.store.GetLink(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "link not found")
			return
		}
		s.logger.Error("failed to load link", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.guard.Check(r.Context(), principal, auth.ActionMutateLink, link.OwnerID); err != nil {
		s.writeDenial(w, err)
		return
	}

	var req updateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetURL == "" {
		s.writeError(w, http.StatusBadRequest, "targetUrl is required")
		return
	}
	if !validTargetURL(req.TargetURL) {
		s.writeError(w, http.StatusBadRequest, "targetUrl must be an absolute http or https URL")
		return
	}

	previous := link.TargetURL
	link.TargetURL = req.TargetURL
	link.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateLink(r.Context(), link); err != nil {
		s.logger.Error("failed to update link", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.events.Change(r.Context(), link.ID, &principal.UserID, store.AuditUpdateLink, map[string]any{
		"code":           link.Code,
		"old_target_url": previous,
		"new_target_url": link.TargetURL,
	})

	updated, err := s.store.GetLink(r.Context(), link.ID)
	if err != nil {
		s.logger.Error("failed to load updated link", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, s.linkResponse(updated))
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())
	id := r.PathValue("id")

	link, err := s.store.GetLink(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "link not found")
			return
		}
		s.logger.Error("failed to load link", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.guard.Check(r.Context(), principal, auth.ActionMutateLink, link.OwnerID); err != nil {
		s.writeDenial(w, err)
		return
	}

	if err := s.store.DeleteLink(r.Context(), id); err != nil {
		s.logger.Error("failed to delete link", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.events.Change(r.Context(), link.ID, &principal.UserID, store.AuditDeleteLink, map[string]any{
		"code":       link.Code,
		"target_url": link.TargetURL,
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleRedirect resolves a short code and redirects to the target. The
// click count increments best-effort; a failed increment never blocks the
// redirect.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	link, err := s.store.GetLinkByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("failed to resolve code", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.store.IncrementLinkClicks(r.Context(), link.ID); err != nil {
		s.logger.Warn("failed to increment clicks", "link_id", link.ID, "error", err)
	}

	http.Redirect(w, r, link.TargetURL, http.StatusFound)
}

func validTargetURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func validCode(code string) bool {
	if len(code) == 0 || len(code) > 64 {
		return false
	}
	for _, c := range code {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func generateCode(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[idx.Int64()]
	}
	return string(out), nil
}
