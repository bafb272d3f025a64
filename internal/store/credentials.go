// ABOUTME: Passkey credential entity and store methods
// ABOUTME: Sign count updates use compare-and-set to close the lost-update race

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSignCountConflict is returned when a compare-and-set on the sign count
// loses against a concurrent update. Callers treat it like a counter
// regression: the assertion cannot be trusted.
var ErrSignCountConflict = errors.New("sign count conflict")

// DeviceType constants for passkey credentials
const (
	DeviceTypePlatform      = "platform"       // built-in authenticator (Touch ID, Windows Hello)
	DeviceTypeCrossPlatform = "cross-platform" // roaming authenticator (security key, phone)
)

// PasskeyCredential represents a registered passkey.
type PasskeyCredential struct {
	ID              string
	UserID          string
	CredentialID    []byte // authenticator-assigned opaque ID, globally unique
	PublicKey       []byte
	AttestationType string
	Transports      string // JSON array
	DeviceLabel     string
	DeviceType      string // "platform" or "cross-platform"
	SignCount       uint32
	Flagged         bool // set when a counter regression suggested cloning
	CreatedAt       time.Time
	LastUsedAt      *time.Time
}

// Ensure SQLiteStore implements CredentialStore.
var _ CredentialStore = (*SQLiteStore)(nil)

// CreateCredential stores a new passkey credential.
func (s *SQLiteStore) CreateCredential(ctx context.Context, cred *PasskeyCredential) error {
	query := `
		INSERT INTO passkey_credentials (id, user_id, credential_id, public_key, attestation_type, transports, device_label, device_type, sign_count, flagged, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lastUsed *string
	if cred.LastUsedAt != nil {
		str := cred.LastUsedAt.UTC().Format(time.RFC3339)
		lastUsed = &str
	}

	_, err := s.db.ExecContext(ctx, query,
		cred.ID,
		cred.UserID,
		cred.CredentialID,
		cred.PublicKey,
		cred.AttestationType,
		cred.Transports,
		cred.DeviceLabel,
		cred.DeviceType,
		cred.SignCount,
		cred.Flagged,
		cred.CreatedAt.UTC().Format(time.RFC3339),
		lastUsed,
	)
	if err != nil {
		return fmt.Errorf("inserting passkey credential: %w", err)
	}

	s.logger.Info("created passkey credential", "id", cred.ID, "user_id", cred.UserID, "device", cred.DeviceLabel)
	return nil
}

// scanCredential scans a row into a PasskeyCredential.
func scanCredential(scanner interface{ Scan(dest ...any) error }) (*PasskeyCredential, error) {
	var cred PasskeyCredential
	var attestation, transports sql.NullString
	var createdAtStr string
	var lastUsedStr sql.NullString

	if err := scanner.Scan(
		&cred.ID,
		&cred.UserID,
		&cred.CredentialID,
		&cred.PublicKey,
		&attestation,
		&transports,
		&cred.DeviceLabel,
		&cred.DeviceType,
		&cred.SignCount,
		&cred.Flagged,
		&createdAtStr,
		&lastUsedStr,
	); err != nil {
		return nil, err
	}

	cred.AttestationType = attestation.String
	cred.Transports = transports.String

	var err error
	cred.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	if lastUsedStr.Valid {
		lastUsed, err := time.Parse(time.RFC3339, lastUsedStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_used_at: %w", err)
		}
		cred.LastUsedAt = &lastUsed
	}

	return &cred, nil
}

const credentialColumns = `id, user_id, credential_id, public_key, attestation_type, transports, device_label, device_type, sign_count, flagged, created_at, last_used_at`

// GetCredentialsByUser retrieves all passkey credentials for a user,
// oldest first.
func (s *SQLiteStore) GetCredentialsByUser(ctx context.Context, userID string) ([]*PasskeyCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM passkey_credentials
		WHERE user_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying passkey credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creds []*PasskeyCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning passkey credential: %w", err)
		}
		creds = append(creds, cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passkey credentials: %w", err)
	}

	return creds, nil
}

// GetCredentialByCredentialID retrieves a passkey credential by its
// authenticator-assigned credential ID.
func (s *SQLiteStore) GetCredentialByCredentialID(ctx context.Context, credentialID []byte) (*PasskeyCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM passkey_credentials
		WHERE credential_id = ?
	`

	cred, err := scanCredential(s.db.QueryRowContext(ctx, query, credentialID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying passkey credential: %w", err)
	}
	return cred, nil
}

// CompareAndSetSignCount updates the sign count and last-used timestamp only
// if the stored count still equals old. Returns ErrSignCountConflict when a
// concurrent verification already advanced the counter.
func (s *SQLiteStore) CompareAndSetSignCount(ctx context.Context, id string, old, new uint32, lastUsedAt time.Time) error {
	query := `
		UPDATE passkey_credentials
		SET sign_count = ?, last_used_at = ?
		WHERE id = ? AND sign_count = ?
	`

	result, err := s.db.ExecContext(ctx, query, new, lastUsedAt.UTC().Format(time.RFC3339), id, old)
	if err != nil {
		return fmt.Errorf("updating sign count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either the credential is gone or the counter moved underneath us.
		if _, getErr := s.getCredential(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrSignCountConflict
	}

	return nil
}

// getCredential retrieves a credential by row ID.
func (s *SQLiteStore) getCredential(ctx context.Context, id string) (*PasskeyCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM passkey_credentials
		WHERE id = ?
	`

	cred, err := scanCredential(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying passkey credential: %w", err)
	}
	return cred, nil
}

// FlagCredential marks a credential as suspect after a counter regression.
func (s *SQLiteStore) FlagCredential(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE passkey_credentials SET flagged = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("flagging passkey credential: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Warn("flagged passkey credential", "id", id)
	return nil
}

// DeleteCredential deletes a passkey credential.
func (s *SQLiteStore) DeleteCredential(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM passkey_credentials WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting passkey credential: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("deleted passkey credential", "id", id)
	return nil
}
