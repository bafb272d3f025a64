// ABOUTME: Passkey registration flow for authenticated users
// ABOUTME: Stores new credentials with device label and authenticator attachment

package passkey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/shortloop/shortloop/internal/store"
)

// PendingRegistration is the challenge payload returned by BeginRegistration.
type PendingRegistration struct {
	Reference string                       `json:"reference"`
	Options   *protocol.CredentialCreation `json:"options"`
}

// BeginRegistration issues a credential-creation challenge for an
// authenticated user. The caller is responsible for having verified the
// session before calling this.
func (s *Service) BeginRegistration(ctx context.Context, userID string) (*PendingRegistration, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	creds, err := s.store.GetCredentialsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	waUser := &webAuthnUser{user: user, creds: creds}
	options, session, err := s.webauthn.BeginRegistration(waUser)
	if err != nil {
		return nil, fmt.Errorf("beginning registration: %w", err)
	}

	reference, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating challenge reference: %w", err)
	}

	s.challenges.put(reference, &pendingChallenge{
		session:   *session,
		userID:    userID,
		email:     user.Email,
		expiresAt: s.now().Add(s.challengeTTL),
	})

	return &PendingRegistration{Reference: reference, Options: options}, nil
}

// FinishRegistration verifies the attestation response and stores the new
// credential. The challenge reference is consumed exactly once.
func (s *Service) FinishRegistration(ctx context.Context, userID, reference, deviceLabel string, response []byte) (*store.PasskeyCredential, error) {
	ch, ok := s.challenges.take(reference, s.now())
	if !ok {
		return nil, ErrChallengeNotFound
	}
	if ch.userID != userID {
		return nil, ErrChallengeNotFound
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("parsing registration response: %w", err)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	creds, err := s.store.GetCredentialsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	waUser := &webAuthnUser{user: user, creds: creds}
	credential, err := s.webauthn.CreateCredential(waUser, ch.session, parsed)
	if err != nil {
		return nil, fmt.Errorf("verifying credential: %w", err)
	}

	stored, err := s.storeCredential(ctx, userID, deviceLabel, credential)
	if err != nil {
		return nil, err
	}

	s.logger.Info("passkey registered", "user_id", userID, "credential_id", stored.ID, "device", deviceLabel)
	return stored, nil
}

// storeCredential persists a verified webauthn credential.
func (s *Service) storeCredential(ctx context.Context, userID, deviceLabel string, cred *webauthn.Credential) (*store.PasskeyCredential, error) {
	id, err := generateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("generating credential id: %w", err)
	}

	transportsJSON, err := json.Marshal(cred.Transport)
	if err != nil {
		return nil, fmt.Errorf("marshaling transports: %w", err)
	}

	stored := &store.PasskeyCredential{
		ID:              id,
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		Transports:      string(transportsJSON),
		DeviceLabel:     deviceLabel,
		DeviceType:      deviceType(cred.Authenticator.Attachment),
		SignCount:       cred.Authenticator.SignCount,
		CreatedAt:       time.Now(),
	}

	if err := s.store.CreateCredential(ctx, stored); err != nil {
		return nil, fmt.Errorf("storing credential: %w", err)
	}
	return stored, nil
}

// deviceType maps an authenticator attachment to the stored device type.
func deviceType(attachment protocol.AuthenticatorAttachment) string {
	if attachment == protocol.Platform {
		return store.DeviceTypePlatform
	}
	return store.DeviceTypeCrossPlatform
}
