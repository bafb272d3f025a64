// ABOUTME: Paste store methods for shared markdown documents
// ABOUTME: Pastes are immutable after creation, only create/read/delete

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Ensure SQLiteStore implements PasteStore.
var _ PasteStore = (*SQLiteStore)(nil)

// CreatePaste creates a new paste.
func (s *SQLiteStore) CreatePaste(ctx context.Context, paste *Paste) error {
	query := `
		INSERT INTO pastes (id, owner_id, title, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		paste.ID,
		paste.OwnerID,
		paste.Title,
		paste.Content,
		paste.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting paste: %w", err)
	}

	s.logger.Info("created paste", "id", paste.ID, "owner_id", paste.OwnerID)
	return nil
}

// GetPaste retrieves a paste by ID.
func (s *SQLiteStore) GetPaste(ctx context.Context, id string) (*Paste, error) {
	query := `
		SELECT id, owner_id, title, content, created_at
		FROM pastes
		WHERE id = ?
	`

	var paste Paste
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&paste.ID,
		&paste.OwnerID,
		&paste.Title,
		&paste.Content,
		&createdAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying paste: %w", err)
	}

	paste.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &paste, nil
}

// ListPastesByOwner returns all pastes owned by a user, newest first.
func (s *SQLiteStore) ListPastesByOwner(ctx context.Context, ownerID string) ([]*Paste, error) {
	query := `
		SELECT id, owner_id, title, content, created_at
		FROM pastes
		WHERE owner_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying pastes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pastes []*Paste
	for rows.Next() {
		var paste Paste
		var createdAtStr string

		if err := rows.Scan(&paste.ID, &paste.OwnerID, &paste.Title, &paste.Content, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning paste: %w", err)
		}

		paste.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		pastes = append(pastes, &paste)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pastes: %w", err)
	}

	return pastes, nil
}

// DeletePaste deletes a paste.
func (s *SQLiteStore) DeletePaste(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM pastes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting paste: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("deleted paste", "id", id)
	return nil
}
