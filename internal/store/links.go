// ABOUTME: Short link store methods for creating, resolving, and mutating links
// ABOUTME: Click counting is a single UPDATE so concurrent redirects don't race

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Ensure SQLiteStore implements LinkStore.
var _ LinkStore = (*SQLiteStore)(nil)

// CreateLink creates a new short link.
func (s *SQLiteStore) CreateLink(ctx context.Context, link *Link) error {
	query := `
		INSERT INTO links (id, code, target_url, owner_id, clicks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		link.ID,
		link.Code,
		link.TargetURL,
		link.OwnerID,
		link.Clicks,
		link.CreatedAt.UTC().Format(time.RFC3339),
		link.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("inserting link: %w", err)
	}

	s.logger.Info("created link", "id", link.ID, "code", link.Code, "owner_id", link.OwnerID)
	return nil
}

// scanLink scans a row into a Link.
func scanLink(scanner interface{ Scan(dest ...any) error }) (*Link, error) {
	var link Link
	var createdAtStr, updatedAtStr string

	if err := scanner.Scan(
		&link.ID,
		&link.Code,
		&link.TargetURL,
		&link.OwnerID,
		&link.Clicks,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}

	var err error
	link.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	link.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &link, nil
}

const linkColumns = `id, code, target_url, owner_id, clicks, created_at, updated_at`

// GetLink retrieves a link by ID.
func (s *SQLiteStore) GetLink(ctx context.Context, id string) (*Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = ?`

	link, err := scanLink(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying link: %w", err)
	}
	return link, nil
}

// GetLinkByCode retrieves a link by its short code.
func (s *SQLiteStore) GetLinkByCode(ctx context.Context, code string) (*Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE code = ?`

	link, err := scanLink(s.db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying link by code: %w", err)
	}
	return link, nil
}

// ListLinksByOwner returns all links owned by a user, newest first.
func (s *SQLiteStore) ListLinksByOwner(ctx context.Context, ownerID string) ([]*Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE owner_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []*Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating links: %w", err)
	}

	return links, nil
}

// UpdateLink updates a link's target URL and updated_at timestamp.
func (s *SQLiteStore) UpdateLink(ctx context.Context, link *Link) error {
	query := `
		UPDATE links
		SET target_url = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		link.TargetURL,
		link.UpdatedAt.UTC().Format(time.RFC3339),
		link.ID,
	)
	if err != nil {
		return fmt.Errorf("updating link: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// IncrementLinkClicks bumps the click counter for a link.
func (s *SQLiteStore) IncrementLinkClicks(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE links SET clicks = clicks + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("incrementing link clicks: %w", err)
	}
	return nil
}

// DeleteLink deletes a link.
func (s *SQLiteStore) DeleteLink(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM links WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting link: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("deleted link", "id", id)
	return nil
}
