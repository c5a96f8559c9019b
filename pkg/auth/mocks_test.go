package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authcore/pkg/auth"
	"github.com/dmitrymomot/authcore/pkg/authz"
	"github.com/dmitrymomot/authcore/pkg/twofa"
)

// memUsers is an in-memory UserStorage.
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*auth.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]*auth.User)}
}

func (m *memUsers) GetUserByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetUserByLogin(_ context.Context, login string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == login || (u.Email != "" && strings.EqualFold(u.Email, login)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) CreateUser(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memUsers) CountAdmins(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, u := range m.users {
		if u.IsAdmin && u.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *memUsers) setActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsActive = active
	}
}

// memEnrollments is an in-memory twofa.Storage.
type memEnrollments struct {
	mu      sync.Mutex
	records map[uuid.UUID]*twofa.Enrollment
	now     func() time.Time
}

func newMemEnrollments(now func() time.Time) *memEnrollments {
	return &memEnrollments{
		records: make(map[uuid.UUID]*twofa.Enrollment),
		now:     now,
	}
}

func (m *memEnrollments) GetEnrollment(_ context.Context, userID uuid.UUID) (*twofa.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return nil, twofa.ErrEnrollmentNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memEnrollments) CreateEnrollment(_ context.Context, userID uuid.UUID, encryptedSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = &twofa.Enrollment{
		UserID:          userID,
		EncryptedSecret: encryptedSecret,
		CreatedAt:       m.now(),
	}
	return nil
}

func (m *memEnrollments) EnableEnrollment(_ context.Context, userID uuid.UUID, mode twofa.Mode) error {
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

func (m *memEnrollments) UpdateMode(_ context.Context, userID uuid.UUID, mode twofa.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return twofa.ErrEnrollmentNotFound
	}
	e.Mode = mode
	return nil
}

func (m *memEnrollments) DeleteEnrollment(_ context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[userID]
	delete(m.records, userID)
	return ok, nil
}

func (m *memEnrollments) IncrementFailure(_ context.Context, userID uuid.UUID) error {
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

func (m *memEnrollments) ResetFailure(_ context.Context, userID uuid.UUID) error {
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

func (m *memEnrollments) TouchLastUsed(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return twofa.ErrEnrollmentNotFound
	}
	e.LastUsedAt = m.now()
	return nil
}

// memShares is an in-memory ShareStorage.
type memShares struct {
	mu     sync.Mutex
	shares map[[2]uuid.UUID]*authz.Share
}

func newMemShares() *memShares {
	return &memShares{shares: make(map[[2]uuid.UUID]*authz.Share)}
}

func (m *memShares) GetShare(_ context.Context, resourceID, granteeID uuid.UUID) (*authz.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[[2]uuid.UUID{resourceID, granteeID}]
	if !ok {
		return nil, auth.ErrShareNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memShares) put(s authz.Share) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares[[2]uuid.UUID{s.ResourceID, s.GranteeID}] = &s
}
