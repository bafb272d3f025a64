// ABOUTME: Passkey challenge/session manager for login and verification
// ABOUTME: Issues challenges, verifies assertions, detects clones, creates sessions

package passkey

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/shortloop/shortloop/internal/audit"
	"github.com/shortloop/shortloop/internal/store"
)

const (
	// DefaultChallengeTTL is how long an issued challenge stays valid.
	DefaultChallengeTTL = 2 * time.Minute

	// DefaultSessionTTL is how long an authenticated session lasts.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// Store combines the persistence capabilities the passkey service needs.
type Store interface {
	store.UserStore
	store.CredentialStore
	store.SessionStore
}

// Config holds relying-party and lifetime configuration for the service.
type Config struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
	ChallengeTTL  time.Duration // defaults to DefaultChallengeTTL
	SessionTTL    time.Duration // defaults to DefaultSessionTTL
}

// Service is the challenge/session manager. It issues authentication
// challenges, verifies signed assertions, and establishes sessions.
type Service struct {
	store        Store
	events       *audit.Recorder
	webauthn     *webauthn.WebAuthn
	challenges   *challengeStore
	decoySecret  []byte
	challengeTTL time.Duration
	sessionTTL   time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a passkey service for the given relying party.
func New(st Store, events *audit.Recorder, cfg Config) (*Service, error) {
	w, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring webauthn: %w", err)
	}

	// Per-process secret for decoy credential IDs. Rotating on restart is
	// fine: decoys only need to be stable within one challenge's lifetime.
	decoySecret := make([]byte, 32)
	if _, err := rand.Read(decoySecret); err != nil {
		return nil, fmt.Errorf("generating decoy secret: %w", err)
	}

	challengeTTL := cfg.ChallengeTTL
	if challengeTTL <= 0 {
		challengeTTL = DefaultChallengeTTL
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}

	return &Service{
		store:        st,
		events:       events,
		webauthn:     w,
		challenges:   newChallengeStore(),
		decoySecret:  decoySecret,
		challengeTTL: challengeTTL,
		sessionTTL:   sessionTTL,
		logger:       slog.Default().With("component", "passkey"),
		now:          time.Now,
	}, nil
}

// webAuthnUser wraps a store.User to implement the webauthn.User interface.
type webAuthnUser struct {
	user  *store.User
	creds []*store.PasskeyCredential
}

func (u *webAuthnUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *webAuthnUser) WebAuthnName() string {
	return u.user.Email
}

func (u *webAuthnUser) WebAuthnDisplayName() string {
	if u.user.DisplayName != "" {
		return u.user.DisplayName
	}
	return u.user.Email
}

func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.creds))
	for i, c := range u.creds {
		creds[i] = webauthn.Credential{
			ID:              c.CredentialID,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Authenticator: webauthn.Authenticator{
				SignCount: c.SignCount,
			},
		}
		if c.Transports != "" {
			var transports []protocol.AuthenticatorTransport
			_ = json.Unmarshal([]byte(c.Transports), &transports)
			creds[i].Transport = transports
		}
	}
	return creds
}

// PendingLogin is the challenge payload returned by StartAuthentication.
type PendingLogin struct {
	Reference string                        `json:"reference"`
	Options   *protocol.CredentialAssertion `json:"options"`
}

// StartAuthentication issues a login challenge for the given email.
// Unknown emails get a decoy challenge with the same response shape, so the
// endpoint does not reveal which accounts exist. The challenge is held
// in-memory keyed by the returned reference and expires after ChallengeTTL.
func (s *Service) StartAuthentication(ctx context.Context, email string) (*PendingLogin, error) {
	waUser, userID, decoy, err := s.loginUser(ctx, email)
	if err != nil {
		return nil, err
	}

	options, session, err := s.webauthn.BeginLogin(waUser)
	if err != nil {
		return nil, fmt.Errorf("beginning login: %w", err)
	}

	reference, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating challenge reference: %w", err)
	}

	s.challenges.put(reference, &pendingChallenge{
		session:   *session,
		userID:    userID,
		email:     email,
		decoy:     decoy,
		expiresAt: s.now().Add(s.challengeTTL),
	})

	return &PendingLogin{Reference: reference, Options: options}, nil
}

// loginUser resolves the webauthn user for an email, substituting a decoy
// with one synthetic credential when the account does not exist.
func (s *Service) loginUser(ctx context.Context, email string) (*webAuthnUser, string, bool, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return s.decoyUser(email), "", true, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("looking up user: %w", err)
	}

	creds, err := s.store.GetCredentialsByUser(ctx, user.ID)
	if err != nil {
		return nil, "", false, fmt.Errorf("loading credentials: %w", err)
	}
	if len(creds) == 0 {
		// Registered account without passkeys looks the same as an unknown
		// one: a decoy challenge that can never verify.
		return s.decoyUser(email), "", true, nil
	}

	return &webAuthnUser{user: user, creds: creds}, user.ID, false, nil
}

// decoyUser builds a synthetic webauthn user whose single credential ID is
// derived from the email via HMAC, so repeated requests stay consistent.
func (s *Service) decoyUser(email string) *webAuthnUser {
	return &webAuthnUser{
		user: &store.User{
			ID:    s.deriveDecoy("decoy-user", email),
			Email: email,
		},
		creds: []*store.PasskeyCredential{
			{
				CredentialID: []byte(s.deriveDecoy("decoy-credential", email)),
			},
		},
	}
}

func (s *Service) deriveDecoy(label, email string) string {
	mac := hmac.New(sha256.New, s.decoySecret)
	mac.Write([]byte(label))
	mac.Write([]byte{0})
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

// VerifyAuthentication consumes the pending challenge and verifies the
// signed assertion. On success it creates a session and logs an
// auth_success event. Every failure logs an auth_failure event with the
// specific reason in metadata; the deferred append cannot be skipped by an
// early return.
func (s *Service) VerifyAuthentication(ctx context.Context, reference string, assertion []byte) (session *store.Session, err error) {
	subject := "unknown"
	meta := map[string]any{"method": "passkey"}

	defer func() {
		if err != nil {
			meta["reason"] = failureReason(err)
			s.events.Security(ctx, store.SecurityEventAuthFailure, subject, meta)
		}
	}()

	ch, ok := s.challenges.take(reference, s.now())
	if !ok {
		return nil, ErrChallengeNotFound
	}
	subject = ch.email

	parsed, parseErr := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(assertion))
	if parseErr != nil {
		meta["detail"] = "malformed_assertion"
		return nil, ErrSignatureInvalid
	}

	if ch.decoy {
		meta["detail"] = "user_not_found"
		return nil, ErrCredentialNotRecognized
	}

	if !credentialAllowed(ch.session.AllowedCredentialIDs, parsed.RawID) {
		return nil, ErrCredentialNotRecognized
	}

	cred, credErr := s.store.GetCredentialByCredentialID(ctx, parsed.RawID)
	if errors.Is(credErr, store.ErrNotFound) {
		return nil, ErrCredentialNotRecognized
	}
	if credErr != nil {
		return nil, fmt.Errorf("loading credential: %w", credErr)
	}
	if cred.UserID != ch.userID {
		return nil, ErrCredentialNotRecognized
	}
	if cred.Flagged {
		// Previously implicated in a counter regression. The attempt may
		// still pass verification, but it gets a distinct trail.
		meta["flagged_credential"] = true
		s.logger.Warn("auth attempt with flagged credential", "credential_id", cred.ID, "user_id", cred.UserID)
	}

	user, userErr := s.store.GetUser(ctx, ch.userID)
	if userErr != nil {
		return nil, fmt.Errorf("loading user: %w", userErr)
	}
	subject = user.Email

	creds, credsErr := s.store.GetCredentialsByUser(ctx, user.ID)
	if credsErr != nil {
		return nil, fmt.Errorf("loading credentials: %w", credsErr)
	}

	waUser := &webAuthnUser{user: user, creds: creds}
	validated, loginErr := s.webauthn.ValidateLogin(waUser, ch.session, parsed)
	if loginErr != nil {
		return nil, ErrSignatureInvalid
	}

	if validated.Authenticator.CloneWarning {
		// Counter did not strictly increase. Flag the credential and leave
		// the stored counter untouched.
		meta["stored_count"] = cred.SignCount
		meta["asserted_count"] = parsed.Response.AuthenticatorData.Counter
		if flagErr := s.store.FlagCredential(ctx, cred.ID); flagErr != nil {
			s.logger.Error("failed to flag credential", "credential_id", cred.ID, "error", flagErr)
		}
		return nil, ErrPossibleClone
	}

	if casErr := s.store.CompareAndSetSignCount(ctx, cred.ID, cred.SignCount, validated.Authenticator.SignCount, s.now()); casErr != nil {
		if errors.Is(casErr, store.ErrSignCountConflict) {
			// A concurrent verification advanced the counter first; this
			// assertion is stale and cannot be trusted.
			meta["detail"] = "sign_count_conflict"
			return nil, ErrPossibleClone
		}
		return nil, fmt.Errorf("updating sign count: %w", casErr)
	}

	session, err = s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	meta["credential_id"] = cred.ID
	s.events.Security(ctx, store.SecurityEventAuthSuccess, user.Email, meta)
	s.logger.Info("passkey login successful", "user_id", user.ID, "credential_id", cred.ID)
	return session, nil
}

// credentialAllowed reports whether rawID is in the challenge's allowed set.
func credentialAllowed(allowed [][]byte, rawID []byte) bool {
	for _, id := range allowed {
		if bytes.Equal(id, rawID) {
			return true
		}
	}
	return false
}

// CreateSession establishes a session for an authenticated user.
func (s *Service) CreateSession(ctx context.Context, userID string) (*store.Session, error) {
	token, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	now := s.now()
	session := &store.Session{
		ID:        token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// CredentialSummary is the externally visible view of a passkey. Public key
// material and the signature counter never leave the package.
type CredentialSummary struct {
	ID          string     `json:"id"`
	DeviceLabel string     `json:"deviceLabel"`
	DeviceType  string     `json:"deviceType"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
}

// ListCredentials returns summaries of a user's passkeys, oldest first.
func (s *Service) ListCredentials(ctx context.Context, userID string) ([]CredentialSummary, error) {
	creds, err := s.store.GetCredentialsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	summaries := make([]CredentialSummary, len(creds))
	for i, c := range creds {
		summaries[i] = CredentialSummary{
			ID:          c.ID,
			DeviceLabel: c.DeviceLabel,
			DeviceType:  c.DeviceType,
			CreatedAt:   c.CreatedAt,
			LastUsedAt:  c.LastUsedAt,
		}
	}
	return summaries, nil
}

// generateSecureToken returns a hex-encoded token from n random bytes.
func generateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
