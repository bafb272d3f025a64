// ABOUTME: Audit log entity and store methods for tracking state-changing actions
// ABOUTME: Records who changed which resource for accountability and debugging

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit action labels for protected resources.
const (
	AuditCreateLink    = "create_link"
	AuditUpdateLink    = "update_link"
	AuditDeleteLink    = "delete_link"
	AuditCreatePaste   = "create_paste"
	AuditDeletePaste   = "delete_paste"
	AuditDeletePasskey = "delete_passkey"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string
	ResourceID string         // ID of the affected resource
	ActorID    *string        // acting user, nil for system-initiated changes
	Action     string         // what action was performed
	Change     map[string]any // structured diff or snapshot
	Timestamp  time.Time
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since      *time.Time
	ActorID    *string
	ResourceID *string
	Action     *string
	Limit      int // max results (default 100, max 1000)
}

// AppendAuditEntry appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditEntry(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var changeJSON *string
	if e.Change != nil {
		data, err := json.Marshal(e.Change)
		if err != nil {
			return fmt.Errorf("marshaling audit change: %w", err)
		}
		str := string(data)
		changeJSON = &str
	}

	query := `
		INSERT INTO audit_log (id, resource_id, actor_id, action, change_json, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.ResourceID,
		e.ActorID,
		e.Action,
		changeJSON,
		e.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit entry",
		"id", e.ID,
		"action", e.Action,
		"resource", e.ResourceID,
	)
	return nil
}

// ListAuditEntries returns audit entries matching the filter criteria.
// Results are returned newest first.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := normalizeEventLimit(f.Limit)

	var sinceStr *string
	if f.Since != nil {
		str := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &str
	}

	query := `
		SELECT id, resource_id, actor_id, action, change_json, ts
		FROM audit_log
		WHERE (? IS NULL OR ts >= ?)
		  AND (? IS NULL OR actor_id = ?)
		  AND (? IS NULL OR resource_id = ?)
		  AND (? IS NULL OR action = ?)
		ORDER BY ts DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		sinceStr, sinceStr,
		f.ActorID, f.ActorID,
		f.ResourceID, f.ResourceID,
		f.Action, f.Action,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var tsStr string
		var changeJSON *string

		if err := rows.Scan(&e.ID, &e.ResourceID, &e.ActorID, &e.Action, &changeJSON, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.Timestamp, err = time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}

		if changeJSON != nil {
			if err := json.Unmarshal([]byte(*changeJSON), &e.Change); err != nil {
				return nil, fmt.Errorf("unmarshaling change: %w", err)
			}
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
