package twofa_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authcore/pkg/totp"
	"github.com/dmitrymomot/authcore/pkg/twofa"
)

// memStorage is an in-memory Storage for tests.
type memStorage struct {
	mu      sync.Mutex
	records map[uuid.UUID]*twofa.Enrollment
	now     func() time.Time
}

func newMemStorage(now func() time.Time) *memStorage {
	return &memStorage{
		records: make(map[uuid.UUID]*twofa.Enrollment),
		now:     now,
	}
}

func (m *memStorage) GetEnrollment(_ context.Context, userID uuid.UUID) (*twofa.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return nil, twofa.ErrEnrollmentNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStorage) CreateEnrollment(_ context.Context, userID uuid.UUID, encryptedSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = &twofa.Enrollment{
		UserID:          userID,
		EncryptedSecret: encryptedSecret,
		CreatedAt:       m.now(),
	}
	return nil
}

func (m *memStorage) EnableEnrollment(_ context.Context, userID uuid.UUID, mode twofa.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return twofa.ErrEnrollmentNotFound
	}
	e.Enabled = true
	e.Verified = true
	e.Mode = mode
	e.FailedAttempts = 0
	e.LastFailedAt = time.Time{}
	return nil
}

func (m *memStorage) UpdateMode(_ context.Context, userID uuid.UUID, mode twofa.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return twofa.ErrEnrollmentNotFound
	}
	e.Mode = mode
	return nil
}

func (m *memStorage) DeleteEnrollment(_ context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[userID]
	delete(m.records, userID)
	return ok, nil
}

func (m *memStorage) IncrementFailure(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return twofa.ErrEnrollmentNotFound
	}
	e.FailedAttempts++
	e.LastFailedAt = m.now()
	return nil
}

func (m *memStorage) ResetFailure(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return twofa.ErrEnrollmentNotFound
	}
	e.FailedAttempts = 0
	e.LastFailedAt = time.Time{}
	return nil
}

func (m *memStorage) TouchLastUsed(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return twofa.ErrEnrollmentNotFound
	}
	e.LastUsedAt = m.now()
	return nil
}

// fixture bundles a service with a controllable clock and storage.
type fixture struct {
	svc     *twofa.Service
	storage *memStorage
	key     []byte
	now     time.Time
	mu      sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := totp.GenerateEncryptionKey()
	require.NoError(t, err)

	f := &fixture{
		key: key,
		now: time.Unix(1700000000, 0),
	}
	clock := func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}
	f.storage = newMemStorage(clock)
	f.svc = twofa.NewService(f.storage, key, twofa.Config{
		Issuer:        "Inventory",
		MaxFailures:   5,
		LockoutWindow: 15 * time.Minute,
	}, twofa.WithClock(clock))

	return f
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()
	f.mu.Lock()
	now := f.now
	f.mu.Unlock()
	code, err := totp.GenerateCodeAt(secret, now)
	require.NoError(t, err)
	return code
}

func (f *fixture) enroll(t *testing.T, userID uuid.UUID, mode twofa.Mode) totp.Setup {
	t.Helper()
	ctx := context.Background()
	setup, err := f.svc.BeginSetup(ctx, userID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmSetup(ctx, userID, f.code(t, setup.Secret), mode))
	return setup
}

func TestBeginSetup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates pending record with enrollment material", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()

		setup, err := f.svc.BeginSetup(ctx, userID, "alice")
		require.NoError(t, err)
		assert.Contains(t, setup.URI, "Inventory:alice")
		assert.NotEmpty(t, setup.QRCodeImage)

		record, err := f.storage.GetEnrollment(ctx, userID)
		require.NoError(t, err)
		assert.False(t, record.Enabled)
		assert.Equal(t, setup.EncryptedSecret, record.EncryptedSecret)
	})

	t.Run("supersedes a prior pending attempt", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()

		first, err := f.svc.BeginSetup(ctx, userID, "alice")
		require.NoError(t, err)
		second, err := f.svc.BeginSetup(ctx, userID, "alice")
		require.NoError(t, err)
		assert.NotEqual(t, first.Secret, second.Secret)

		// Only the latest secret confirms.
		err = f.svc.ConfirmSetup(ctx, userID, f.code(t, first.Secret), twofa.ModeRequired)
		assert.ErrorIs(t, err, twofa.ErrInvalidCode)
		err = f.svc.ConfirmSetup(ctx, userID, f.code(t, second.Secret), twofa.ModeRequired)
		assert.NoError(t, err)
	})

	t.Run("conflict when already enabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.enroll(t, userID, twofa.ModeRequired)

		_, err := f.svc.BeginSetup(ctx, userID, "alice")
		assert.ErrorIs(t, err, twofa.ErrAlreadyEnabled)
	})
}

func TestConfirmSetup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("promotes to enabled with chosen mode", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.enroll(t, userID, twofa.ModeRequiredWithRecovery)

		status, err := f.svc.Status(ctx, userID)
		require.NoError(t, err)
		assert.True(t, status.Enabled)
		assert.Equal(t, twofa.ModeRequiredWithRecovery, status.Mode)
	})

	t.Run("no pending setup", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		err := f.svc.ConfirmSetup(ctx, uuid.New(), "123456", twofa.ModeRequired)
		assert.ErrorIs(t, err, twofa.ErrNoPendingSetup)
	})

	t.Run("wrong code increments failures", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		_, err := f.svc.BeginSetup(ctx, userID, "alice")
		require.NoError(t, err)

		err = f.svc.ConfirmSetup(ctx, userID, "000000", twofa.ModeRequired)
		assert.ErrorIs(t, err, twofa.ErrInvalidCode)

		record, err := f.storage.GetEnrollment(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, record.FailedAttempts)
	})
}

func TestVerifyLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid code resets counters and stamps last used", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		setup := f.enroll(t, userID, twofa.ModeRequired)

		// A couple of failures first.
		require.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, "000000"), twofa.ErrInvalidCode)
		require.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, "000000"), twofa.ErrInvalidCode)

		require.NoError(t, f.svc.VerifyLogin(ctx, userID, f.code(t, setup.Secret)))

		record, err := f.storage.GetEnrollment(ctx, userID)
		require.NoError(t, err)
		assert.Zero(t, record.FailedAttempts)
		assert.False(t, record.LastUsedAt.IsZero())
	})

	t.Run("not enabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()

		assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, "123456"), twofa.ErrNotEnabled)

		// A pending record is still "not enabled" for login purposes.
		_, err := f.svc.BeginSetup(ctx, userID, "alice")
		require.NoError(t, err)
		assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, "123456"), twofa.ErrNotEnabled)
	})
}

func TestRateLimitClosesAndSelfHeals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	userID := uuid.New()
	setup := f.enroll(t, userID, twofa.ModeRequired)

	// Five consecutive failures, each reported as a plain invalid code.
	for i := 0; i < 5; i++ {
		err := f.svc.VerifyLogin(ctx, userID, "000000")
		assert.ErrorIs(t, err, twofa.ErrInvalidCode, "attempt %d", i+1)
	}

	// Sixth attempt is locked out even with the correct code, and the error
	// says how long until the window opens.
	err := f.svc.VerifyLogin(ctx, userID, f.code(t, setup.Secret))
	assert.ErrorIs(t, err, twofa.ErrRateLimited)
	var locked *twofa.RateLimitError
	require.ErrorAs(t, err, &locked)
	assert.Greater(t, locked.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, locked.RetryAfter, 15*time.Minute)

	// Once the window elapses the lockout self-heals without any reset.
	f.advance(16 * time.Minute)
	require.NoError(t, f.svc.VerifyLogin(ctx, userID, f.code(t, setup.Secret)))
}

func TestVerifyRecovery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("mode gates recovery", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		setup := f.enroll(t, userID, twofa.ModeRequired)

		err := f.svc.VerifyRecovery(ctx, userID, f.code(t, setup.Secret))
		assert.ErrorIs(t, err, twofa.ErrRecoveryNotAllowed)
	})

	t.Run("allowed mode verifies and stamps last used", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		setup := f.enroll(t, userID, twofa.ModeRequiredWithRecovery)

		require.NoError(t, f.svc.VerifyRecovery(ctx, userID, f.code(t, setup.Secret)))

		record, err := f.storage.GetEnrollment(ctx, userID)
		require.NoError(t, err)
		assert.False(t, record.LastUsedAt.IsZero())
	})

	t.Run("rate limit applies", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		setup := f.enroll(t, userID, twofa.ModeRequiredWithRecovery)

		for j := 0; j < 5; j++ {
			require.ErrorIs(t, f.svc.VerifyRecovery(ctx, userID, "000000"), twofa.ErrInvalidCode)
		}
		err := f.svc.VerifyRecovery(ctx, userID, f.code(t, setup.Secret))
		assert.ErrorIs(t, err, twofa.ErrRateLimited)
	})
}

func TestChangeMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("requires enabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		err := f.svc.ChangeMode(ctx, uuid.New(), twofa.ModeRequired)
		assert.ErrorIs(t, err, twofa.ErrNotEnabled)
	})

	t.Run("permitted even while rate limited", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.enroll(t, userID, twofa.ModeRequired)

		for j := 0; j < 5; j++ {
			require.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, "000000"), twofa.ErrInvalidCode)
		}

		// Mode change is not a secret-guessing surface.
		require.NoError(t, f.svc.ChangeMode(ctx, userID, twofa.ModeRequiredWithRecovery))

		status, err := f.svc.Status(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, twofa.ModeRequiredWithRecovery, status.Mode)
	})
}

func TestDisable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	userID := uuid.New()
	f.enroll(t, userID, twofa.ModeRequired)

	require.NoError(t, f.svc.Disable(ctx, userID))

	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.False(t, status.Enabled)

	assert.ErrorIs(t, f.svc.Disable(ctx, userID), twofa.ErrNotEnabled)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	userID := uuid.New()

	// Absent: enabled=false, no error.
	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, twofa.Status{}, status)

	// Pending: still reports disabled.
	_, err = f.svc.BeginSetup(ctx, userID, "alice")
	require.NoError(t, err)
	status, err = f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.False(t, status.Enabled)
}

func TestModeCodec(t *testing.T) {
	t.Parallel()

	for _, mode := range []twofa.Mode{twofa.ModeRequired, twofa.ModeRequiredWithRecovery} {
		parsed, err := twofa.ParseMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}

	_, err := twofa.ParseMode("optional")
	assert.ErrorIs(t, err, twofa.ErrUnknownMode)

	assert.False(t, twofa.ModeRequired.AllowsRecovery())
	assert.True(t, twofa.ModeRequiredWithRecovery.AllowsRecovery())
	assert.Panics(t, func() { _ = twofa.Mode(9).String() })
}
