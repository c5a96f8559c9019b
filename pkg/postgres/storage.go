package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/authcore/pkg/auth"
	"github.com/dmitrymomot/authcore/pkg/authz"
	"github.com/dmitrymomot/authcore/pkg/twofa"
)

// Storage is the PostgreSQL adapter behind the auth and twofa services.
// It implements auth.UserStorage, auth.ShareStorage, and twofa.Storage.
type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

const userColumns = "id, username, email, full_name, password_hash, is_active, is_admin, created_at"

func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (s *Storage) GetUserByLogin(ctx context.Context, login string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1 OR (email <> '' AND lower(email) = lower($1))",
		login)
	return scanUser(row)
}

func (s *Storage) CreateUser(ctx context.Context, user *auth.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, full_name, password_hash, is_active, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Username, user.Email, user.FullName, user.PasswordHash,
		user.IsActive, user.IsAdmin, user.CreatedAt)
	if IsDuplicateKeyError(err) {
		return auth.ErrUsernameTaken
	}
	return err
}

func (s *Storage) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET password_hash = $2 WHERE id = $1", userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *Storage) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM users WHERE is_admin AND is_active").Scan(&n)
	return n, err
}

// SetAdmin grants or revokes the admin flag. Revocation is guarded in the
// same statement: the UPDATE matches zero rows when the target is the only
// remaining active administrator, so the invariant holds under concurrency.
func (s *Storage) SetAdmin(ctx context.Context, userID uuid.UUID, admin bool) error {
	if admin {
		tag, err := s.pool.Exec(ctx,
			"UPDATE users SET is_admin = TRUE WHERE id = $1", userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return auth.ErrUserNotFound
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_admin = FALSE
		 WHERE id = $1
		   AND (NOT is_admin OR (SELECT count(*) FROM users WHERE is_admin AND is_active) > 1)`,
		userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return authz.ErrLastAdmin
	}
	return nil
}

// SetActive enables or disables an account. Deactivating the last active
// administrator is refused with the same single-statement guard as SetAdmin.
func (s *Storage) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	if active {
		tag, err := s.pool.Exec(ctx,
			"UPDATE users SET is_active = TRUE WHERE id = $1", userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return auth.ErrUserNotFound
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_active = FALSE
		 WHERE id = $1
		   AND (NOT (is_admin AND is_active) OR (SELECT count(*) FROM users WHERE is_admin AND is_active) > 1)`,
		userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return authz.ErrLastAdmin
	}
	return nil
}

const enrollmentColumns = "user_id, encrypted_secret, enabled, verified, mode, failed_attempts, last_failed_at, last_used_at, created_at"

func scanEnrollment(row pgx.Row) (*twofa.Enrollment, error) {
	var (
		e            twofa.Enrollment
		mode         string
		lastFailedAt *time.Time
		lastUsedAt   *time.Time
	)
	err := row.Scan(&e.UserID, &e.EncryptedSecret, &e.Enabled, &e.Verified, &mode,
		&e.FailedAttempts, &lastFailedAt, &lastUsedAt, &e.CreatedAt)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, twofa.ErrEnrollmentNotFound
		}
		return nil, err
	}
	e.Mode, err = twofa.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if lastFailedAt != nil {
		e.LastFailedAt = *lastFailedAt
	}
	if lastUsedAt != nil {
		e.LastUsedAt = *lastUsedAt
	}
	return &e, nil
}

func (s *Storage) GetEnrollment(ctx context.Context, userID uuid.UUID) (*twofa.Enrollment, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+enrollmentColumns+" FROM totp_enrollments WHERE user_id = $1", userID)
	return scanEnrollment(row)
}

// CreateEnrollment writes a fresh pending record. An existing pending record
// is replaced wholesale; an enabled record blocks the upsert so a concurrent
// completed setup can never be clobbered by a stale setup attempt.
func (s *Storage) CreateEnrollment(ctx context.Context, userID uuid.UUID, encryptedSecret string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO totp_enrollments (user_id, encrypted_secret, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET encrypted_secret = EXCLUDED.encrypted_secret,
		     enabled = FALSE, verified = FALSE,
		     failed_attempts = 0, last_failed_at = NULL, last_used_at = NULL,
		     created_at = now()
		 WHERE NOT totp_enrollments.enabled`,
		userID, encryptedSecret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return twofa.ErrAlreadyEnabled
	}
	return nil
}

func (s *Storage) EnableEnrollment(ctx context.Context, userID uuid.UUID, mode twofa.Mode) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE totp_enrollments
		 SET enabled = TRUE, verified = TRUE, mode = $2,
		     failed_attempts = 0, last_failed_at = NULL
		 WHERE user_id = $1 AND NOT enabled`,
		userID, mode.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return twofa.ErrEnrollmentNotFound
	}
	return nil
}

func (s *Storage) UpdateMode(ctx context.Context, userID uuid.UUID, mode twofa.Mode) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE totp_enrollments SET mode = $2 WHERE user_id = $1 AND enabled",
		userID, mode.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return twofa.ErrEnrollmentNotFound
	}
	return nil
}

func (s *Storage) DeleteEnrollment(ctx context.Context, userID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM totp_enrollments WHERE user_id = $1", userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) IncrementFailure(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE totp_enrollments
		 SET failed_attempts = failed_attempts + 1, last_failed_at = now()
		 WHERE user_id = $1`,
		userID)
	return err
}

func (s *Storage) ResetFailure(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE totp_enrollments SET failed_attempts = 0, last_failed_at = NULL WHERE user_id = $1",
		userID)
	return err
}

func (s *Storage) TouchLastUsed(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE totp_enrollments SET last_used_at = now() WHERE user_id = $1", userID)
	return err
}

func (s *Storage) GetShare(ctx context.Context, resourceID, granteeID uuid.UUID) (*authz.Share, error) {
	var (
		share authz.Share
		level string
	)
	err := s.pool.QueryRow(ctx,
		"SELECT resource_id, grantee_id, granted_by, level FROM shares WHERE resource_id = $1 AND grantee_id = $2",
		resourceID, granteeID).
		Scan(&share.ResourceID, &share.GranteeID, &share.GrantedBy, &level)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, auth.ErrShareNotFound
		}
		return nil, err
	}
	share.Level, err = authz.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// CreateShare inserts a share record. Self-shares are rejected before the
// statement runs; the primary key on (resource_id, grantee_id) enforces
// single-share-per-pair at the database, surfacing races the
// application-level check cannot see.
func (s *Storage) CreateShare(ctx context.Context, share *authz.Share) error {
	if err := authz.ValidateNewShare(share.GrantedBy, share.GranteeID, nil); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO shares (resource_id, grantee_id, granted_by, level)
		 VALUES ($1, $2, $3, $4)`,
		share.ResourceID, share.GranteeID, share.GrantedBy, share.Level.String())
	if IsDuplicateKeyError(err) {
		return authz.ErrShareConflict
	}
	return err
}

func (s *Storage) UpdateShareLevel(ctx context.Context, resourceID, granteeID uuid.UUID, level authz.Level) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE shares SET level = $3 WHERE resource_id = $1 AND grantee_id = $2",
		resourceID, granteeID, level.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrShareNotFound
	}
	return nil
}

func (s *Storage) DeleteShare(ctx context.Context, resourceID, granteeID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM shares WHERE resource_id = $1 AND grantee_id = $2",
		resourceID, granteeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// compile-time interface checks
var (
	_ auth.UserStorage  = (*Storage)(nil)
	_ auth.ShareStorage = (*Storage)(nil)
	_ twofa.Storage     = (*Storage)(nil)
)
