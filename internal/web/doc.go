// ABOUTME: Package documentation for the HTTP layer
// ABOUTME: Routes, middleware, and JSON handlers for the public API

// Package web exposes the HTTP surface: passkey and password login, link
// and paste CRUD, short-code redirects, paste pages, and admin read
// endpoints for users, security events, and the audit trail.
//
// Identity is carried by a session cookie or a bearer token; handlers that
// mutate protected resources go through the authorization guard before
// touching the store.
package web
