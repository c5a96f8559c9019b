package auth

import (
	"errors"
	"fmt"
	"time"
)

// User-facing error catalog. These are the only errors handlers may render;
// internal causes are joined onto them for logs and never interpolated into
// the message a caller sees.
var (
	// ErrUserNotFound is the storage sentinel for a missing credential record.
	// It never reaches a caller directly: login and recovery collapse it into
	// their generic failures to resist enumeration.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrShareNotFound is the storage sentinel for a missing share record.
	ErrShareNotFound = errors.New("auth: share not found")

	// ErrInvalidCredentials covers every primary-credential failure: unknown
	// user, wrong password, disabled account. Deliberately indistinct.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrUnauthenticated covers every token failure: malformed, bad
	// signature, expired, partial where full is required, account gone or
	// disabled. Logs retain the distinction.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrInvalidCode is the generic second-factor failure.
	ErrInvalidCode = errors.New("auth: invalid code")
	// ErrRateLimited is the rate-limit sentinel for authenticated
	// second-factor surfaces; the concrete error is a RateLimitedError
	// carrying the remaining window.
	ErrRateLimited = errors.New("auth: too many attempts, try again later")
	// ErrRecoveryFailed is the single error every recovery rejection maps to,
	// an anti-enumeration measure. Do not make it more specific.
	ErrRecoveryFailed = errors.New("auth: recovery failed")

	ErrPasswordTooWeak   = errors.New("auth: password must be at least 8 characters")
	ErrUsernameRequired  = errors.New("auth: username is required")
	ErrUsernameTaken     = errors.New("auth: username is already taken")
	ErrSecondFactorState = errors.New("auth: second factor state conflict")

	// ErrInternal is the opaque cover for store and crypto failures.
	ErrInternal = errors.New("auth: internal error")
)

// RateLimitedError is the rate-limit failure with its retry-after hint, for
// the authenticated second-factor surfaces. It unwraps to ErrRateLimited.
// The unauthenticated recovery path never returns it; recovery rejections
// stay ErrRecoveryFailed regardless of cause.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}
