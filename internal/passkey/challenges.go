// ABOUTME: In-memory pending challenge store with atomic take-once consumption
// ABOUTME: Expiry is checked lazily on take, there is no cleanup goroutine

package passkey

import (
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// pendingChallenge holds the WebAuthn session data for an in-progress
// login or registration, plus the identity it was issued for.
type pendingChallenge struct {
	session   webauthn.SessionData
	userID    string // empty for decoy challenges
	email     string
	decoy     bool // issued for an unknown email, can never verify
	expiresAt time.Time
}

// challengeStore keeps pending challenges keyed by their opaque reference.
// Challenges are transient; they are never persisted.
type challengeStore struct {
	mu      sync.Mutex
	pending map[string]*pendingChallenge
}

func newChallengeStore() *challengeStore {
	return &challengeStore{
		pending: make(map[string]*pendingChallenge),
	}
}

func (s *challengeStore) put(reference string, ch *pendingChallenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[reference] = ch
}

// take removes and returns the challenge for reference. The delete happens
// under the lock before expiry is evaluated, so concurrent callers for the
// same reference serialize here: exactly one observes the challenge, every
// later caller sees it absent. An expired challenge is consumed but not
// returned, making "expired" and "missing" indistinguishable to callers.
func (s *challengeStore) take(reference string, now time.Time) (*pendingChallenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.pending[reference]
	if !ok {
		return nil, false
	}
	delete(s.pending, reference)

	if now.After(ch.expiresAt) {
		return nil, false
	}
	return ch, true
}
