// ABOUTME: Security event entity and store methods for the append-only event log
// ABOUTME: Records auth outcomes and privilege denials for monitoring and forensics

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SecurityEventKind categorizes a security event.
type SecurityEventKind string

const (
	SecurityEventAuthSuccess     SecurityEventKind = "auth_success"
	SecurityEventAuthFailure     SecurityEventKind = "auth_failure"
	SecurityEventPrivilegeDenied SecurityEventKind = "privilege_denied"
)

// SecurityEvent represents a single security-relevant occurrence.
// Entries are append-only; the core never mutates or deletes them.
type SecurityEvent struct {
	ID        string
	Kind      SecurityEventKind
	Subject   string // user ID or email, possibly unauthenticated
	Timestamp time.Time
	Meta      map[string]any
}

// SecurityEventFilter specifies filtering options for listing security events.
type SecurityEventFilter struct {
	Since   *time.Time
	Kind    *SecurityEventKind
	Subject *string
	Limit   int // max results (default 100, max 1000)
}

// AppendSecurityEvent appends a new entry to the security event log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendSecurityEvent(ctx context.Context, e *SecurityEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var metaJSON *string
	if e.Meta != nil {
		data, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("marshaling event meta: %w", err)
		}
		str := string(data)
		metaJSON = &str
	}

	query := `
		INSERT INTO security_events (id, kind, subject, ts, meta_json)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Kind,
		e.Subject,
		e.Timestamp.UTC().Format(time.RFC3339),
		metaJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting security event: %w", err)
	}

	s.logger.Debug("appended security event",
		"id", e.ID,
		"kind", e.Kind,
		"subject", e.Subject,
	)
	return nil
}

// normalizeEventLimit applies default (100) and cap (1000) to event limit.
func normalizeEventLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// ListSecurityEvents returns security events matching the filter criteria.
// Results are returned newest first.
func (s *SQLiteStore) ListSecurityEvents(ctx context.Context, f SecurityEventFilter) ([]SecurityEvent, error) {
	limit := normalizeEventLimit(f.Limit)

	var sinceStr, kindStr *string
	if f.Since != nil {
		str := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &str
	}
	if f.Kind != nil {
		str := string(*f.Kind)
		kindStr = &str
	}

	query := `
		SELECT id, kind, subject, ts, meta_json
		FROM security_events
		WHERE (? IS NULL OR ts >= ?)
		  AND (? IS NULL OR kind = ?)
		  AND (? IS NULL OR subject = ?)
		ORDER BY ts DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		sinceStr, sinceStr,
		kindStr, kindStr,
		f.Subject, f.Subject,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying security events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []SecurityEvent
	for rows.Next() {
		var e SecurityEvent
		var kindRaw, tsStr string
		var metaJSON *string

		if err := rows.Scan(&e.ID, &kindRaw, &e.Subject, &tsStr, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning security event: %w", err)
		}

		e.Kind = SecurityEventKind(kindRaw)
		e.Timestamp, err = time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}

		if metaJSON != nil {
			if err := json.Unmarshal([]byte(*metaJSON), &e.Meta); err != nil {
				return nil, fmt.Errorf("unmarshaling meta: %w", err)
			}
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating security events: %w", err)
	}

	if events == nil {
		events = []SecurityEvent{}
	}
	return events, nil
}
