// ABOUTME: Paste HTTP handlers: create, list, delete, and public rendering
// ABOUTME: Paste bodies are Markdown rendered to HTML on view

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shortloop/shortloop/internal/auth"
	"github.com/shortloop/shortloop/internal/store"
)

const maxPasteBytes = 256 * 1024

type pasteResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) pasteResponse(p *store.Paste) pasteResponse {
	return pasteResponse{
		ID:        p.ID,
		Title:     p.Title,
		URL:       fmt.Sprintf("%s/p/%s", s.config.BaseURL, p.ID),
		OwnerID:   p.OwnerID,
		CreatedAt: p.CreatedAt,
	}
}

type createPasteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleCreatePaste(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	var req createPasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > maxPasteBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "paste exceeds maximum size")
		return
	}

	paste := &store.Paste{
		ID:        uuid.New().String(),
		OwnerID:   principal.UserID,
		Title:     req.Title,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreatePaste(r.Context(), paste); err != nil {
		s.logger.Error("failed to create paste", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.store.GetPaste(r.Context(), paste.ID)
	if err != nil {
		s.logger.Error("failed to load created paste", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.events.Change(r.Context(), created.ID, &principal.UserID, store.AuditCreatePaste, map[string]any{
		"title": created.Title,
		"bytes": len(created.Content),
	})
	s.writeJSON(w, http.StatusCreated, s.pasteResponse(created))
}

func (s *Server) handleListPastes(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	pastes, err := s.store.ListPastesByOwner(r.Context(), principal.UserID)
	if err != nil {
		s.logger.Error("failed to list pastes", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]pasteResponse, 0, len(pastes))
	for _, paste := range pastes {
		out = append(out, s.pasteResponse(paste))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pastes": out})
}

func (s *Server) handleDeletePaste(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())
	id := r.PathValue("id")

	paste, err := s.store.GetPaste(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "paste not found")
			return
		}
		s.logger.Error("failed to load paste", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.guard.Check(r.Context(), principal, auth.ActionMutatePaste, paste.OwnerID); err != nil {
		s.writeDenial(w, err)
		return
	}

	if err := s.store.DeletePaste(r.Context(), id); err != nil {
		s.logger.Error("failed to delete paste", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.events.Change(r.Context(), paste.ID, &principal.UserID, store.AuditDeletePaste, map[string]any{
		"title": paste.Title,
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleViewPaste renders a paste as a public HTML page.
func (s *Server) handleViewPaste(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	paste, err := s.store.GetPaste(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("failed to load paste", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var body bytes.Buffer
	if err := s.markdown.Convert([]byte(paste.Content), &body); err != nil {
		s.logger.Error("failed to render paste", "paste_id", paste.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	title := paste.Title
	if title == "" {
		title = "paste"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, pastePageTemplate, html.EscapeString(title), body.String())
}

const pastePageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body { max-width: 48rem; margin: 2rem auto; padding: 0 1rem; font-family: system-ui, sans-serif; line-height: 1.6; }
pre { background: #f4f4f4; padding: 1rem; overflow-x: auto; }
code { background: #f4f4f4; padding: 0.1rem 0.3rem; }
</style>
</head>
<body>
%s
</body>
</html>
`
