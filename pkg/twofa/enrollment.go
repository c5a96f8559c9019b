package twofa

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Enrollment is the per-user second-factor record. At most one exists per
// user. A record with Enabled=false is a pending setup attempt; only an
// enabled record governs login.
type Enrollment struct {
	UserID          uuid.UUID
	EncryptedSecret string // AES-256-GCM envelope, never plaintext
	Enabled         bool
	Verified        bool
	Mode            Mode
	FailedAttempts  int
	LastFailedAt    time.Time
	LastUsedAt      time.Time
	CreatedAt       time.Time
}

// Locked reports whether the record is inside its lockout window:
// failed_attempts >= max AND (now - last_failed_at) < window.
// Once the window elapses the counter's practical effect expires even if it
// is never explicitly reset - the lockout self-heals.
func (e *Enrollment) Locked(now time.Time, maxFailures int, window time.Duration) bool {
	if e.FailedAttempts < maxFailures {
		return false
	}
	return now.Sub(e.LastFailedAt) < window
}

// Storage persists enrollment records. Mutations must provide at least
// read-modify-write atomicity per record; slight undercounting of racing
// failure increments is acceptable, record corruption (enabled without a
// secret) is not.
type Storage interface {
	// GetEnrollment returns the user's record or ErrEnrollmentNotFound.
	GetEnrollment(ctx context.Context, userID uuid.UUID) (*Enrollment, error)
	// CreateEnrollment stores a fresh pending record, discarding any prior
	// pending record for the user. Only one setup attempt is live at a time.
	CreateEnrollment(ctx context.Context, userID uuid.UUID, encryptedSecret string) error
	// EnableEnrollment promotes the pending record to enabled with the given
	// mode, marks it verified, and resets failure counters.
	EnableEnrollment(ctx context.Context, userID uuid.UUID, mode Mode) error
	// UpdateMode changes the operating mode of an enabled record.
	UpdateMode(ctx context.Context, userID uuid.UUID, mode Mode) error
	// DeleteEnrollment removes the record, reporting whether one existed.
	DeleteEnrollment(ctx context.Context, userID uuid.UUID) (bool, error)
	// IncrementFailure bumps the failure counter and stamps the failure time.
	IncrementFailure(ctx context.Context, userID uuid.UUID) error
	// ResetFailure zeroes the failure counter.
	ResetFailure(ctx context.Context, userID uuid.UUID) error
	// TouchLastUsed stamps the last successful use time.
	TouchLastUsed(ctx context.Context, userID uuid.UUID) error
}

// Status is the read-only projection of a user's enrollment. For an absent
// or non-enabled record, Enabled is false and the rest is zero - never an error.
type Status struct {
	Enabled    bool
	Mode       Mode
	LastUsedAt time.Time
	CreatedAt  time.Time
}
