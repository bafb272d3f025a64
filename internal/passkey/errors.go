// ABOUTME: Authentication failure taxonomy and boundary mapping helpers
// ABOUTME: Specific kinds stay internal, the HTTP boundary shows one generic denial

package passkey

import "errors"

// Authentication failures. The specific kind is recorded in security event
// metadata but collapsed to GenericDenial at the HTTP boundary so responses
// don't reveal which verification step failed.
var (
	// ErrChallengeNotFound covers both a missing and an expired challenge.
	// The two cases are deliberately indistinguishable.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrCredentialNotRecognized is returned when the asserted credential ID
	// is not in the challenge's allowed set or is not registered.
	ErrCredentialNotRecognized = errors.New("credential not recognized")

	// ErrSignatureInvalid is returned when the assertion fails cryptographic
	// verification against the stored public key.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrPossibleClone is returned when the reported signature counter did
	// not strictly increase, which suggests a cloned authenticator.
	ErrPossibleClone = errors.New("possible cloned authenticator")
)

// GenericDenial is the uniform user-facing message for every authentication
// failure, preventing user-enumeration and credential-guessing oracles.
const GenericDenial = "authentication failed"

// IsAuthFailure reports whether err belongs to the authentication failure
// taxonomy (as opposed to an infrastructure failure).
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrChallengeNotFound) ||
		errors.Is(err, ErrCredentialNotRecognized) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrPossibleClone)
}

// failureReason returns the security-event metadata label for an
// authentication failure.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrChallengeNotFound):
		return "challenge_not_found"
	case errors.Is(err, ErrCredentialNotRecognized):
		return "credential_not_recognized"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrPossibleClone):
		return "possible_clone_detected"
	default:
		return "store_unavailable"
	}
}
