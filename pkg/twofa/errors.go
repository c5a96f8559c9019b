package twofa

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEnrollmentNotFound is returned by Storage when no record exists.
	ErrEnrollmentNotFound = errors.New("twofa: enrollment not found")

	ErrAlreadyEnabled          = errors.New("twofa: second factor is already enabled")
	ErrNoPendingSetup          = errors.New("twofa: no pending setup to confirm")
	ErrNotEnabled              = errors.New("twofa: second factor is not enabled")
	ErrInvalidCode             = errors.New("twofa: invalid code")
	ErrRateLimited             = errors.New("twofa: too many failed attempts, try again later")
	ErrRecoveryNotAllowed      = errors.New("twofa: enrollment mode does not allow recovery")
	ErrUnknownMode             = errors.New("twofa: unknown mode")
	ErrVerificationUnavailable = errors.New("twofa: verification unavailable")
)

// RateLimitError reports a verification rejected inside the lockout window,
// carrying how long remains until the window elapses. It unwraps to
// ErrRateLimited so errors.Is checks keep working.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
