// Package auth is the credential and session authority exposed to request
// handlers: it authenticates users, issues and verifies bearer tokens,
// manages password lifecycle, and fronts the second-factor state machine.
//
// # Control flow
//
// Login checks primary credentials and issues a full token, or a partial
// token when the account has an enabled second factor. VerifySecondFactor is
// the only operation that accepts a partial token and the only path that
// upgrades one to a full token. Every other operation authenticates the
// caller with Authenticate, which re-validates the live credential record on
// each request - tokens are stateless and cannot be revoked individually, so
// a disabled or deleted account must lose access despite an unexpired token.
//
// # Error discipline
//
// The package maintains two error tiers. The sentinels in errors.go are the
// complete user-facing catalog; internal detail (store errors, crypto
// errors, twofa classifications) is joined onto them or logged, never
// interpolated into user-visible text. Login failures are uniformly
// ErrInvalidCredentials and recovery failures uniformly ErrRecoveryFailed,
// with matching response shape and latency between "user doesn't exist" and
// "user exists but wrong secret" - an anti-enumeration property, not a
// nice-to-have.
package auth
