// ABOUTME: Core entity types and store interfaces for shortloop persistence
// ABOUTME: Defines User, Session, Link, Paste structs and the capability interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when trying to create a user with an existing email
var ErrEmailExists = errors.New("email already exists")

// ErrCodeExists is returned when trying to create a link with an existing short code
var ErrCodeExists = errors.New("link code already exists")

// User represents an account that can own links, pastes, and passkeys.
type User struct {
	ID           string
	Email        string // stored lower-case, unique
	DisplayName  string
	PasswordHash string // bcrypt hash, empty if passkey-only
	CreatedAt    time.Time
}

// Session represents an authenticated principal.
type Session struct {
	ID        string // opaque token, also the cookie value
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Link represents a shortened URL owned by a user.
type Link struct {
	ID        string
	Code      string // short code used in redirect URLs, unique
	TargetURL string
	OwnerID   string
	Clicks    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Paste represents a shared markdown document.
type Paste struct {
	ID        string
	OwnerID   string
	Title     string
	Content   string // markdown source
	CreatedAt time.Time
}

// UserStore defines user persistence operations.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CountUsers(ctx context.Context) (int, error)
}

// SessionStore defines session persistence operations.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) error
}

// CredentialStore defines passkey credential persistence operations.
type CredentialStore interface {
	CreateCredential(ctx context.Context, cred *PasskeyCredential) error
	GetCredentialsByUser(ctx context.Context, userID string) ([]*PasskeyCredential, error)
	GetCredentialByCredentialID(ctx context.Context, credentialID []byte) (*PasskeyCredential, error)
	CompareAndSetSignCount(ctx context.Context, id string, old, new uint32, lastUsedAt time.Time) error
	FlagCredential(ctx context.Context, id string) error
	DeleteCredential(ctx context.Context, id string) error
}

// LinkStore defines short link persistence operations.
type LinkStore interface {
	CreateLink(ctx context.Context, link *Link) error
	GetLink(ctx context.Context, id string) (*Link, error)
	GetLinkByCode(ctx context.Context, code string) (*Link, error)
	ListLinksByOwner(ctx context.Context, ownerID string) ([]*Link, error)
	UpdateLink(ctx context.Context, link *Link) error
	IncrementLinkClicks(ctx context.Context, id string) error
	DeleteLink(ctx context.Context, id string) error
}

// PasteStore defines paste persistence operations.
type PasteStore interface {
	CreatePaste(ctx context.Context, paste *Paste) error
	GetPaste(ctx context.Context, id string) (*Paste, error)
	ListPastesByOwner(ctx context.Context, ownerID string) ([]*Paste, error)
	DeletePaste(ctx context.Context, id string) error
}
