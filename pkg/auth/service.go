package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authcore/pkg/authz"
	"github.com/dmitrymomot/authcore/pkg/jwt"
	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/password"
	"github.com/dmitrymomot/authcore/pkg/totp"
	"github.com/dmitrymomot/authcore/pkg/twofa"
)

const minPasswordLength = 8

// Service is the credential and session authority exposed to request
// handlers. It wires the hasher, token service, and second-factor state
// machine together over the external user and share stores.
type Service struct {
	users  UserStorage
	shares ShareStorage
	hasher *password.Hasher
	tokens *jwt.Service
	twofa  *twofa.Service
	log    *slog.Logger

	// dummyHash is verified against when the user is unknown so that the
	// response latency of "no such user" matches "wrong password".
	dummyHash string
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithShareStorage wires the share store consulted by Authorize. Without it
// only owner and admin access succeed.
func WithShareStorage(shares ShareStorage) Option {
	return func(s *Service) {
		s.shares = shares
	}
}

// NewService creates the auth facade.
func NewService(
	users UserStorage,
	hasher *password.Hasher,
	tokens *jwt.Service,
	secondFactor *twofa.Service,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		twofa:  secondFactor,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Hash a random throwaway value once so unknown-user logins burn the
	// same hashing cost as real ones.
	dummy, err := hasher.Hash(context.Background(), uuid.NewString())
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	s.dummyHash = dummy

	return s, nil
}

// Register creates a new credential record. Password strength validation is
// recovered locally with a specific, safe message.
func (s *Service) Register(ctx context.Context, username, email, fullName, plainPassword string, isAdmin bool) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if len(plainPassword) < minPasswordLength {
		return nil, ErrPasswordTooWeak
	}

	if _, err := s.users.GetUserByLogin(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, errors.Join(ErrInternal, err)
	}

	hash, err := s.hasher.Hash(ctx, plainPassword)
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}

	user := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.TrimSpace(strings.ToLower(email)),
		FullName:     fullName,
		PasswordHash: hash,
		IsActive:     true,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, errors.Join(ErrInternal, err)
	}

	s.log.Info("user registered",
		logger.UserID(user.ID),
		logger.Username(user.Username),
		logger.Component("auth"),
	)

	return user, nil
}

// Login checks primary credentials and issues a token. Accounts with an
// enabled second factor receive a partial token; everything else receives a
// full token. Every failure path returns ErrInvalidCredentials with matching
// response shape and latency.
func (s *Service) Login(ctx context.Context, login, plainPassword string) (TokenResult, error) {
	user, err := s.users.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return TokenResult{}, errors.Join(ErrInternal, err)
		}
		// Burn the same hashing cost as a real verification.
		_, _ = s.hasher.Verify(ctx, plainPassword, s.dummyHash)
		return TokenResult{}, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, plainPassword, user.PasswordHash)
	if err != nil {
		s.log.Error("stored password hash is unreadable",
			logger.UserID(user.ID),
			logger.Error(err),
			logger.Component("auth"),
		)
		return TokenResult{}, ErrInvalidCredentials
	}
	if !ok || !user.IsActive {
		return TokenResult{}, ErrInvalidCredentials
	}

	status, err := s.twofa.Status(ctx, user.ID)
	if err != nil {
		return TokenResult{}, errors.Join(ErrInternal, err)
	}

	if status.Enabled {
		token, err := s.tokens.IssuePartial(user.ID.String(), user.FullName)
		if err != nil {
			return TokenResult{}, errors.Join(ErrInternal, err)
		}
		return TokenResult{Token: token, SecondFactorPending: true}, nil
	}

	token, err := s.tokens.Issue(user.ID.String(), user.FullName, user.IsAdmin)
	if err != nil {
		return TokenResult{}, errors.Join(ErrInternal, err)
	}
	return TokenResult{Token: token}, nil
}

// VerifySecondFactor upgrades a partial token to a full one given a valid
// code. This is the only operation a partial token is accepted by, and the
// only path that issues a full token without a password.
func (s *Service) VerifySecondFactor(ctx context.Context, partialToken, code string) (string, error) {
	claims, err := s.tokens.Parse(partialToken)
	if err != nil {
		s.log.Info("second-factor verification with bad token",
			logger.Error(err),
			logger.Component("auth"),
		)
		return "", ErrUnauthenticated
	}
	if !claims.PendingSecondFactor {
		return "", ErrUnauthenticated
	}

	user, err := s.lookupActive(ctx, claims.Subject)
	if err != nil {
		return "", err
	}

	if err := s.twofa.VerifyLogin(ctx, user.ID, code); err != nil {
		return "", s.mapSecondFactorErr(user.ID, err)
	}

	token, err := s.tokens.Issue(user.ID.String(), user.FullName, user.IsAdmin)
	if err != nil {
		return "", errors.Join(ErrInternal, err)
	}
	return token, nil
}

// Authenticate validates a full token against the live credential record.
// A valid signature is necessary but not sufficient: a disabled or deleted
// account loses access immediately even with an unexpired token, and a
// partial token is rejected everywhere outside VerifySecondFactor.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, jwt.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.log.Info("token rejected",
			logger.Error(err),
			logger.Component("auth"),
		)
		return nil, jwt.Claims{}, ErrUnauthenticated
	}
	if claims.PendingSecondFactor {
		return nil, jwt.Claims{}, ErrUnauthenticated
	}

	user, err := s.lookupActive(ctx, claims.Subject)
	if err != nil {
		return nil, jwt.Claims{}, err
	}

	return user, claims, nil
}

// BeginEnrollment starts second-factor setup for the authenticated user and
// returns the one-time enrollment material.
func (s *Service) BeginEnrollment(ctx context.Context, token string) (totp.Setup, error) {
	user, _, err := s.Authenticate(ctx, token)
	if err != nil {
		return totp.Setup{}, err
	}

	setup, err := s.twofa.BeginSetup(ctx, user.ID, user.Username)
	if err != nil {
		if errors.Is(err, twofa.ErrAlreadyEnabled) {
			return totp.Setup{}, errors.Join(ErrSecondFactorState, err)
		}
		return totp.Setup{}, errors.Join(ErrInternal, err)
	}
	return setup, nil
}

// ConfirmEnrollment verifies the first code and enables the second factor
// with the chosen mode.
func (s *Service) ConfirmEnrollment(ctx context.Context, token, code string, mode twofa.Mode) error {
	user, _, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	if err := s.twofa.ConfirmSetup(ctx, user.ID, code, mode); err != nil {
		switch {
		case errors.Is(err, twofa.ErrAlreadyEnabled), errors.Is(err, twofa.ErrNoPendingSetup):
			return errors.Join(ErrSecondFactorState, err)
		default:
			return s.mapSecondFactorErr(user.ID, err)
		}
	}
	return nil
}

// ChangeMode switches the enrollment operating mode.
func (s *Service) ChangeMode(ctx context.Context, token string, mode twofa.Mode) error {
	user, _, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	if err := s.twofa.ChangeMode(ctx, user.ID, mode); err != nil {
		if errors.Is(err, twofa.ErrNotEnabled) {
			return errors.Join(ErrSecondFactorState, err)
		}
		return errors.Join(ErrInternal, err)
	}
	return nil
}

// DisableSecondFactor deletes the enrollment. The primary password is
// re-verified even though the caller holds a valid full token, so a
// hijacked session cannot silently strip second-factor protection.
func (s *Service) DisableSecondFactor(ctx context.Context, token, plainPassword string) error {
	user, _, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(ctx, plainPassword, user.PasswordHash)
	if err != nil {
		return errors.Join(ErrInternal, err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := s.twofa.Disable(ctx, user.ID); err != nil {
		if errors.Is(err, twofa.ErrNotEnabled) {
			return errors.Join(ErrSecondFactorState, err)
		}
		return errors.Join(ErrInternal, err)
	}
	return nil
}

// SecondFactorStatus returns the read-only enrollment projection for the
// authenticated user.
func (s *Service) SecondFactorStatus(ctx context.Context, token string) (twofa.Status, error) {
	user, _, err := s.Authenticate(ctx, token)
	if err != nil {
		return twofa.Status{}, err
	}
	status, err := s.twofa.Status(ctx, user.ID)
	if err != nil {
		return twofa.Status{}, errors.Join(ErrInternal, err)
	}
	return status, nil
}

// RecoverViaCode resets a password given a valid TOTP code, without any
// token. Every rejection - unknown user, disabled account, second factor
// not enabled, mode disallows recovery, invalid code, even rate limiting -
// returns the same ErrRecoveryFailed so the response neither confirms nor
// denies that the account exists. Only password-strength validation, which
// leaks nothing about the account, is specific.
func (s *Service) RecoverViaCode(ctx context.Context, username, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooWeak
	}

	fail := func(reason string, err error) error {
		s.log.Info("recovery rejected",
			logger.Username(username),
			slog.String("reason", reason),
			logger.Error(err),
			logger.Component("auth"),
		)
		return ErrRecoveryFailed
	}

	user, err := s.users.GetUserByLogin(ctx, strings.TrimSpace(username))
	if err != nil {
		return fail("user lookup", err)
	}
	if !user.IsActive {
		return fail("account disabled", nil)
	}

	if err := s.twofa.VerifyRecovery(ctx, user.ID, code); err != nil {
		return fail("code verification", err)
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fail("hashing", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fail("password update", err)
	}

	s.log.Info("password recovered via second factor",
		logger.UserID(user.ID),
		logger.Component("auth"),
	)

	return nil
}

// Authorize decides whether the token's subject may perform an operation
// requiring the given capability on a shared resource owned by ownerID.
func (s *Service) Authorize(ctx context.Context, token string, resourceID, ownerID uuid.UUID, capability authz.Capability) (bool, error) {
	user, _, err := s.Authenticate(ctx, token)
	if err != nil {
		return false, err
	}

	subject := authz.Subject{ID: user.ID, Admin: user.IsAdmin}

	var share *authz.Share
	if s.shares != nil {
		share, err = s.shares.GetShare(ctx, resourceID, user.ID)
		if err != nil && !errors.Is(err, ErrShareNotFound) {
			return false, errors.Join(ErrInternal, err)
		}
	}

	return authz.Authorize(subject, ownerID, share, capability), nil
}

// lookupActive fetches the live credential record for a token subject,
// collapsing every failure to ErrUnauthenticated.
func (s *Service) lookupActive(ctx context.Context, subject string) (*User, error) {
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, errors.Join(ErrInternal, err)
	}
	if !user.IsActive {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// mapSecondFactorErr translates twofa sentinels to the user-facing catalog,
// keeping the internal classification in logs only.
func (s *Service) mapSecondFactorErr(userID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, twofa.ErrRateLimited):
		var locked *twofa.RateLimitError
		if errors.As(err, &locked) {
			return &RateLimitedError{RetryAfter: locked.RetryAfter}
		}
		return ErrRateLimited
	case errors.Is(err, twofa.ErrInvalidCode):
		return ErrInvalidCode
	case errors.Is(err, twofa.ErrNotEnabled):
		return ErrUnauthenticated
	default:
		s.log.Error("second-factor verification error",
			logger.UserID(userID),
			logger.Error(err),
			logger.Component("auth"),
		)
		return errors.Join(ErrInternal, err)
	}
}
