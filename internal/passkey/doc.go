// ABOUTME: Package documentation for passkey authentication
// ABOUTME: Explains the challenge lifecycle and verification pipeline

// Package passkey implements WebAuthn passkey authentication for shortloop.
//
// # Login Flow
//
// StartAuthentication looks up the account by email (case-insensitive),
// issues a challenge bound to the account's registered credential IDs, and
// returns an opaque reference for the follow-up call. For unknown emails the
// response keeps the same shape using a decoy credential derived from a
// per-process secret, so the endpoint does not reveal which accounts exist.
//
// VerifyAuthentication consumes the pending challenge exactly once (present
// and unexpired, or the attempt fails), validates the signed assertion
// against the stored public key, enforces a strictly increasing signature
// counter to detect cloned authenticators, and on success establishes a
// session. Every verification outcome, success or failure, lands in the
// security event log.
//
// # Challenge Storage
//
// Pending challenges live in memory keyed by a random reference token.
// Consumption is atomic: of two concurrent verification attempts for the
// same reference, exactly one observes the challenge. Expiry is checked
// lazily at consumption time; there is no background sweeper.
//
// # Registration
//
// BeginRegistration/FinishRegistration add passkeys to an already
// authenticated account, recording a device label and whether the
// authenticator is platform-bound or roaming.
package passkey
