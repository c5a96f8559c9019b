package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authcore/pkg/authz"
)

// User is the credential record owned by the external user store. The
// password hash is an opaque string that never travels outward.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
}

// UserStorage defines the credential-store operations the auth core consumes.
// Implementations return ErrUserNotFound for missing records.
type UserStorage interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetUserByLogin resolves a username or email address.
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	CountAdmins(ctx context.Context) (int, error)
}

// ShareStorage resolves the share record consulted during authorization.
// Implementations return ErrShareNotFound when no share exists for the pair.
type ShareStorage interface {
	GetShare(ctx context.Context, resourceID, granteeID uuid.UUID) (*authz.Share, error)
}

// TokenResult is the outcome of a successful primary-credential login.
// When SecondFactorPending is true the token is partial: it grants access to
// nothing but the second-factor verification endpoint.
type TokenResult struct {
	Token               string
	SecondFactorPending bool
}
