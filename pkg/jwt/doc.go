// Package jwt issues and verifies the signed, time-bounded bearer tokens
// used by the auth core.
//
// The implementation focuses on the HS256 (HMAC-SHA256) algorithm. Two token
// classes exist, both stateless:
//
//   - Full tokens (Issue) carry identity and privilege claims.
//   - Partial tokens (IssuePartial) carry identity only, with the
//     pending_2fa marker set. They are issued when primary credentials
//     succeed on an account that requires a second factor, and must be
//     rejected by every endpoint except second-factor verification.
//
// Parse returns typed errors distinguishing malformed tokens, invalid
// signatures, and expired tokens. Callers collapse all three to a generic
// unauthenticated response while logs retain the distinction.
//
// ExtractToken pulls a token from an HTTP request, preferring the
// "Authorization: Bearer" header and falling back to a named cookie.
//
// # Error Handling
//
// Errors such as ErrExpiredToken or ErrInvalidSignature are returned as
// sentinel variables and can be compared using errors.Is.
package jwt
