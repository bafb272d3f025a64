// ABOUTME: Mock in-memory store implementation for testing
// ABOUTME: Allows service and handler tests to run without SQLite

package store

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	users       map[string]*User
	emailIndex  map[string]string // lower-cased email -> user ID
	credentials map[string]*PasskeyCredential
	sessions    map[string]*Session
	links       map[string]*Link
	codeIndex   map[string]string // link code -> link ID
	pastes      map[string]*Paste
	events      []SecurityEvent
	audit       []AuditEntry
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:       make(map[string]*User),
		emailIndex:  make(map[string]string),
		credentials: make(map[string]*PasskeyCredential),
		sessions:    make(map[string]*Session),
		links:       make(map[string]*Link),
		codeIndex:   make(map[string]string),
		pastes:      make(map[string]*Paste),
	}
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := m.emailIndex[email]; exists {
		return ErrEmailExists
	}

	u := *user
	u.Email = email
	m.users[u.ID] = &u
	m.emailIndex[email] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emailIndex[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := *m.users[id]
	return &u, nil
}

// ListUsers returns all users ordered by creation time.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// CountUsers returns the number of users.
func (m *MockStore) CountUsers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// CreateCredential stores a new passkey credential.
func (m *MockStore) CreateCredential(ctx context.Context, cred *PasskeyCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *cred
	m.credentials[c.ID] = &c
	return nil
}

// GetCredentialsByUser retrieves all credentials for a user, oldest first.
func (m *MockStore) GetCredentialsByUser(ctx context.Context, userID string) ([]*PasskeyCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var creds []*PasskeyCredential
	for _, cred := range m.credentials {
		if cred.UserID == userID {
			c := *cred
			creds = append(creds, &c)
		}
	}
	sort.Slice(creds, func(i, j int) bool {
		return creds[i].CreatedAt.Before(creds[j].CreatedAt)
	})
	return creds, nil
}

// GetCredentialByCredentialID retrieves a credential by its authenticator ID.
func (m *MockStore) GetCredentialByCredentialID(ctx context.Context, credentialID []byte) (*PasskeyCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, cred := range m.credentials {
		if bytes.Equal(cred.CredentialID, credentialID) {
			c := *cred
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// CompareAndSetSignCount updates the sign count only when the stored value
// still equals old, mirroring the SQLite UPDATE ... WHERE guard.
func (m *MockStore) CompareAndSetSignCount(ctx context.Context, id string, old, new uint32, lastUsedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.credentials[id]
	if !ok {
		return ErrNotFound
	}
	if cred.SignCount != old {
		return ErrSignCountConflict
	}
	cred.SignCount = new
	t := lastUsedAt
	cred.LastUsedAt = &t
	return nil
}

// FlagCredential marks a credential as suspect.
func (m *MockStore) FlagCredential(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.credentials[id]
	if !ok {
		return ErrNotFound
	}
	cred.Flagged = true
	return nil
}

// DeleteCredential deletes a credential.
func (m *MockStore) DeleteCredential(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.credentials[id]; !ok {
		return ErrNotFound
	}
	delete(m.credentials, id)
	return nil
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *session
	m.sessions[s.ID] = &s
	return nil
}

// GetSession retrieves a valid (non-expired) session.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil, ErrNotFound
	}
	s := *session
	return &s, nil
}

// DeleteSession deletes a session.
func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpiredSessions removes all expired sessions.
func (m *MockStore) DeleteExpiredSessions(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
	return nil
}

// CreateLink stores a new link.
func (m *MockStore) CreateLink(ctx context.Context, link *Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.codeIndex[link.Code]; exists {
		return ErrCodeExists
	}

	l := *link
	m.links[l.ID] = &l
	m.codeIndex[l.Code] = l.ID
	return nil
}

// GetLink retrieves a link by ID.
func (m *MockStore) GetLink(ctx context.Context, id string) (*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[id]
	if !ok {
		return nil, ErrNotFound
	}
	l := *link
	return &l, nil
}

// GetLinkByCode retrieves a link by its short code.
func (m *MockStore) GetLinkByCode(ctx context.Context, code string) (*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.codeIndex[code]
	if !ok {
		return nil, ErrNotFound
	}
	l := *m.links[id]
	return &l, nil
}

// ListLinksByOwner returns all links owned by a user, newest first.
func (m *MockStore) ListLinksByOwner(ctx context.Context, ownerID string) ([]*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var links []*Link
	for _, link := range m.links {
		if link.OwnerID == ownerID {
			l := *link
			links = append(links, &l)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// UpdateLink updates a link's target URL.
func (m *MockStore) UpdateLink(ctx context.Context, link *Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.links[link.ID]
	if !ok {
		return ErrNotFound
	}
	stored.TargetURL = link.TargetURL
	stored.UpdatedAt = link.UpdatedAt
	return nil
}

// IncrementLinkClicks bumps a link's click counter.
func (m *MockStore) IncrementLinkClicks(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[id]
	if !ok {
		return ErrNotFound
	}
	link.Clicks++
	return nil
}

// DeleteLink deletes a link.
func (m *MockStore) DeleteLink(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.codeIndex, link.Code)
	delete(m.links, id)
	return nil
}

// CreatePaste stores a new paste.
func (m *MockStore) CreatePaste(ctx context.Context, paste *Paste) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := *paste
	m.pastes[p.ID] = &p
	return nil
}

// GetPaste retrieves a paste by ID.
func (m *MockStore) GetPaste(ctx context.Context, id string) (*Paste, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paste, ok := m.pastes[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := *paste
	return &p, nil
}

// ListPastesByOwner returns all pastes owned by a user, newest first.
func (m *MockStore) ListPastesByOwner(ctx context.Context, ownerID string) ([]*Paste, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pastes []*Paste
	for _, paste := range m.pastes {
		if paste.OwnerID == ownerID {
			p := *paste
			pastes = append(pastes, &p)
		}
	}
	sort.Slice(pastes, func(i, j int) bool {
		return pastes[i].CreatedAt.After(pastes[j].CreatedAt)
	})
	return pastes, nil
}

// DeletePaste deletes a paste.
func (m *MockStore) DeletePaste(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pastes[id]; !ok {
		return ErrNotFound
	}
	delete(m.pastes, id)
	return nil
}

// AppendSecurityEvent records a security event in memory.
func (m *MockStore) AppendSecurityEvent(ctx context.Context, e *SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.events = append(m.events, *e)
	return nil
}

// ListSecurityEvents returns recorded events, newest first.
func (m *MockStore) ListSecurityEvents(ctx context.Context, f SecurityEventFilter) ([]SecurityEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]SecurityEvent, 0, len(m.events))
	for _, e := range m.events {
		if f.Kind != nil && e.Kind != *f.Kind {
			continue
		}
		if f.Subject != nil && e.Subject != *f.Subject {
			continue
		}
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}

// AppendAuditEntry records an audit entry in memory.
func (m *MockStore) AppendAuditEntry(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.audit = append(m.audit, *e)
	return nil
}

// ListAuditEntries returns recorded audit entries, newest first.
func (m *MockStore) ListAuditEntries(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]AuditEntry, 0, len(m.audit))
	for _, e := range m.audit {
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.ResourceID != nil && e.ResourceID != *f.ResourceID {
			continue
		}
		if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
