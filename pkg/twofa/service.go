package twofa

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/totp"
)

// Service governs the lifecycle of a user's TOTP enrollment:
// Absent -> Pending -> Enabled -> Absent, with Enabled self-transitions for
// mode changes and recovery.
type Service struct {
	storage Storage
	key     []byte // TOTP envelope key, provisioned by pkg/secrets
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock injects a time source. Tests use it to simulate the lockout
// window elapsing without sleeping.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the second-factor state machine. key is the 32-byte
// envelope encryption key.
func NewService(storage Storage, key []byte, cfg Config, opts ...ServiceOption) *Service {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = 15 * time.Minute
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "Inventory"
	}

	s := &Service{
		storage: storage,
		key:     key,
		cfg:     cfg,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginSetup starts enrollment for a user: generates fresh setup material
// and stores a pending record, discarding any prior pending record. Rejected
// with ErrAlreadyEnabled if an enabled record exists - disable first.
func (s *Service) BeginSetup(ctx context.Context, userID uuid.UUID, accountName string) (totp.Setup, error) {
	existing, err := s.storage.GetEnrollment(ctx, userID)
	if err != nil && !errors.Is(err, ErrEnrollmentNotFound) {
		return totp.Setup{}, err
	}
	if existing != nil && existing.Enabled {
		return totp.Setup{}, ErrAlreadyEnabled
	}

	setup, err := totp.GenerateSetup(accountName, s.cfg.Issuer, s.key)
	if err != nil {
		return totp.Setup{}, err
	}

	if err := s.storage.CreateEnrollment(ctx, userID, setup.EncryptedSecret); err != nil {
		return totp.Setup{}, err
	}

	s.log.Info("second-factor setup started",
		logger.UserID(userID),
		logger.Component("twofa"),
	)

	return setup, nil
}

// ConfirmSetup verifies a code against the pending secret and, on success,
// promotes the record to enabled with the chosen mode and resets failure
// counters. Failures increment the counter; a record already at the lockout
// threshold is rejected without attempting decryption.
func (s *Service) ConfirmSetup(ctx context.Context, userID uuid.UUID, code string, mode Mode) error {
	enrollment, err := s.storage.GetEnrollment(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			return ErrNoPendingSetup
		}
		return err
	}
	if enrollment.Enabled {
		return ErrAlreadyEnabled
	}

	if err := s.checkCode(ctx, enrollment, code); err != nil {
		return err
	}

	if err := s.storage.EnableEnrollment(ctx, userID, mode); err != nil {
		return err
	}

	s.log.Info("second factor enabled",
		logger.UserID(userID),
		slog.String("mode", mode.String()),
		logger.Component("twofa"),
	)

	return nil
}

// VerifyLogin checks a login-time code against the user's enabled
// enrollment. On success it resets failure counters and stamps last-used;
// this backs the only path that upgrades a partial token to a full one.
func (s *Service) VerifyLogin(ctx context.Context, userID uuid.UUID, code string) error {
	enrollment, err := s.requireEnabled(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.checkCode(ctx, enrollment, code); err != nil {
		return err
	}

	if err := s.storage.ResetFailure(ctx, userID); err != nil {
		return err
	}
	return s.storage.TouchLastUsed(ctx, userID)
}

// VerifyRecovery checks a recovery code for a user whose enabled enrollment
// mode allows recovery. Callers must collapse every failure into one generic
// error; the distinct sentinels here exist for logging only.
func (s *Service) VerifyRecovery(ctx context.Context, userID uuid.UUID, code string) error {
	enrollment, err := s.requireEnabled(ctx, userID)
	if err != nil {
		return err
	}
	if !enrollment.Mode.AllowsRecovery() {
		return ErrRecoveryNotAllowed
	}

	if err := s.checkCode(ctx, enrollment, code); err != nil {
		return err
	}

	if err := s.storage.ResetFailure(ctx, userID); err != nil {
		return err
	}
	return s.storage.TouchLastUsed(ctx, userID)
}

// ChangeMode switches the operating mode of an enabled enrollment. Always
// permitted regardless of rate-limit state: mode change is not a
// secret-guessing surface.
func (s *Service) ChangeMode(ctx context.Context, userID uuid.UUID, mode Mode) error {
	if _, err := s.requireEnabled(ctx, userID); err != nil {
		return err
	}
	return s.storage.UpdateMode(ctx, userID, mode)
}

// Disable deletes the user's enabled enrollment. Primary-password
// re-authentication is enforced by the caller, which owns the credential
// record and the hasher.
func (s *Service) Disable(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.requireEnabled(ctx, userID); err != nil {
		return err
	}

	deleted, err := s.storage.DeleteEnrollment(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotEnabled
	}

	s.log.Info("second factor disabled",
		logger.UserID(userID),
		logger.Component("twofa"),
	)

	return nil
}

// Status returns the read-only enrollment projection. Absent or pending
// records report Enabled=false with everything else zero, never an error.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (Status, error) {
	enrollment, err := s.storage.GetEnrollment(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			return Status{}, nil
		}
		return Status{}, err
	}
	if !enrollment.Enabled {
		return Status{}, nil
	}

	return Status{
		Enabled:    true,
		Mode:       enrollment.Mode,
		LastUsedAt: enrollment.LastUsedAt,
		CreatedAt:  enrollment.CreatedAt,
	}, nil
}

// requireEnabled fetches the enrollment and demands the Enabled state.
func (s *Service) requireEnabled(ctx context.Context, userID uuid.UUID) (*Enrollment, error) {
	enrollment, err := s.storage.GetEnrollment(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			return nil, ErrNotEnabled
		}
		return nil, err
	}
	if !enrollment.Enabled {
		return nil, ErrNotEnabled
	}
	return enrollment, nil
}

// checkCode applies the rate-limit policy and verifies the code against the
// record's encrypted secret. A locked record is rejected before any
// decryption, avoiding both wasted cycles and a timing signal between
// "locked" and "about to fail".
func (s *Service) checkCode(ctx context.Context, enrollment *Enrollment, code string) error {
	now := s.now()

	if enrollment.Locked(now, s.cfg.MaxFailures, s.cfg.LockoutWindow) {
		s.log.Warn("second-factor verification rejected: rate limited",
			logger.UserID(enrollment.UserID),
			slog.Int("failed_attempts", enrollment.FailedAttempts),
			logger.Component("twofa"),
		)
		return &RateLimitError{RetryAfter: enrollment.LastFailedAt.Add(s.cfg.LockoutWindow).Sub(now)}
	}

	ok, err := totp.VerifyEncrypted(enrollment.EncryptedSecret, code, s.key, now)
	if err != nil {
		s.log.Error("second-factor secret verification failed",
			logger.UserID(enrollment.UserID),
			logger.Error(err),
			logger.Component("twofa"),
		)
		return errors.Join(ErrVerificationUnavailable, err)
	}
	if !ok {
		if err := s.storage.IncrementFailure(ctx, enrollment.UserID); err != nil {
			return err
		}
		return ErrInvalidCode
	}

	return nil
}
