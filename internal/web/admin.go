// ABOUTME: Admin HTTP handlers: user listing, security event log, audit trail
// ABOUTME: All routes are restricted to the superadmin allowlist

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shortloop/shortloop/internal/auth"
	"github.com/shortloop/shortloop/internal/store"
)

type adminUserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type securityEventResponse struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Subject   string         `json:"subject"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type auditEntryResponse struct {
	ID         string         `json:"id"`
	ResourceID string         `json:"resourceId"`
	ActorID    *string        `json:"actorId"`
	Action     string         `json:"action"`
	Change     map[string]any `json:"change,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	if err := s.guard.Check(r.Context(), principal, auth.ActionManageUsers, ""); err != nil {
		s.writeDenial(w, err)
		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserResponse{
			ID:          u.ID,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			CreatedAt:   u.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	if err := s.guard.Check(r.Context(), principal, auth.ActionViewAudit, ""); err != nil {
		s.writeDenial(w, err)
		return
	}

	filter := store.SecurityEventFilter{Limit: parseLimit(r)}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		k := store.SecurityEventKind(kind)
		filter.Kind = &k
	}
	if subject := r.URL.Query().Get("subject"); subject != "" {
		filter.Subject = &subject
	}
	if since, ok := parseSince(r); ok {
		filter.Since = &since
	}

	events, err := s.store.ListSecurityEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list security events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]securityEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, securityEventResponse{
			ID:        e.ID,
			Kind:      string(e.Kind),
			Subject:   e.Subject,
			Timestamp: e.Timestamp,
			Meta:      e.Meta,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())

	if err := s.guard.Check(r.Context(), principal, auth.ActionViewAudit, ""); err != nil {
		s.writeDenial(w, err)
		return
	}

	filter := store.AuditFilter{Limit: parseLimit(r)}
	if actor := r.URL.Query().Get("actor"); actor != "" {
		filter.ActorID = &actor
	}
	if resource := r.URL.Query().Get("resource"); resource != "" {
		filter.ResourceID = &resource
	}
	if action := r.URL.Query().Get("action"); action != "" {
		filter.Action = &action
	}
	if since, ok := parseSince(r); ok {
		filter.Since = &since
	}

	entries, err := s.store.ListAuditEntries(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:         e.ID,
			ResourceID: e.ResourceID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			Change:     e.Change,
			Timestamp:  e.Timestamp,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseSince(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
