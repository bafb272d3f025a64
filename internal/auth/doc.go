// ABOUTME: Package documentation for authorization
// ABOUTME: Covers the gate, the request guard, and principal context plumbing

// Package auth provides authorization for shortloop.
//
// # Authorization Gate
//
// The Gate decides whether a principal may perform an action. It combines
// two independent checks under default-deny: a configured superadmin
// allowlist (exact, case-insensitive email match; an empty list denies
// everyone) and resource ownership (the acting user must own the resource,
// or be a superadmin). A deny is a value, not an error.
//
// # Request Guard
//
// The Guard wraps privileged operations. It requires an authenticated
// principal, consults the Gate, and on a deny logs a privilege_denied
// security event and short-circuits. A missing session is a routine
// boundary condition and is not logged.
//
// # Principal Context
//
// WithPrincipal/FromContext propagate the authenticated identity through
// request handlers, mirroring how middleware attaches it after resolving
// the session cookie or a bearer token.
//
// # API Tokens
//
// TokenIssuer mints short-lived HS256 JWTs from an authenticated session so
// scripts can call the JSON API with a bearer token instead of a cookie.
package auth
