// Package twofa implements the second-factor state machine governing TOTP
// enrollment: Absent -> Pending -> Enabled -> Absent, with Enabled
// self-transitions for mode changes and code-based recovery.
//
// The Service owns no mutable state of its own. All per-user state lives in
// the Enrollment record persisted through the Storage interface; the only
// in-process inputs are the envelope encryption key (provisioned once by
// pkg/secrets) and an injectable clock.
//
// # Rate limiting
//
// Every code verification (setup confirmation, login, recovery) is guarded
// by a sliding lockout window: a record with max_failures consecutive
// failures inside the window is rejected before any decryption happens. The
// window slides from the last failure timestamp, so the lockout self-heals
// once it elapses even if the counter is never reset. Concurrent failures
// may undercount slightly; the policy only needs "recently exceeded
// threshold", not exact accounting.
//
// # Error discipline
//
// The sentinels here are deliberately specific (ErrInvalidCode,
// ErrRateLimited, ErrRecoveryNotAllowed) so logs can tell them apart.
// Unauthenticated surfaces such as code-based password recovery must
// collapse all of them into one generic error before anything reaches the
// caller - that mapping belongs to pkg/auth, not here.
package twofa
