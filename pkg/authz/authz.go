package authz

import (
	"context"

	"github.com/google/uuid"
)

// Capability is a predicate over a share level, such as Level.CanEdit.
type Capability func(Level) bool

// Subject is the minimal identity view needed for authorization decisions.
type Subject struct {
	ID    uuid.UUID
	Admin bool
}

// Authorize decides access to a shared resource:
// owner OR admin OR (share exists AND capability holds for its level).
// The administrative override is global and unconditional.
func Authorize(subject Subject, ownerID uuid.UUID, share *Share, capability Capability) bool {
	if subject.Admin {
		return true
	}
	if subject.ID == ownerID {
		return true
	}
	if share == nil {
		return false
	}
	if share.GranteeID != subject.ID {
		return false
	}
	return capability(share.Level)
}

// ValidateNewShare rejects self-shares and duplicate (resource, grantee)
// pairs. Duplicates are a conflict, never a silent overwrite; existing is
// the current share for the same pair, or nil.
func ValidateNewShare(granterID, granteeID uuid.UUID, existing *Share) error {
	if granterID == granteeID {
		return ErrSelfShare
	}
	if existing != nil {
		return ErrShareConflict
	}
	return nil
}

// AdminCounter is the single store operation the last-admin guard needs.
type AdminCounter interface {
	CountAdmins(ctx context.Context) (int, error)
}

// EnsureNotLastAdmin returns ErrLastAdmin when removing or demoting the
// given admin account would leave the system without any administrator.
//
// The check alone is advisory: callers that mutate the account must pair it
// atomically with the mutation (for example a conditional UPDATE guarded by
// an admin-count subquery) so a concurrent demotion cannot race past it.
func EnsureNotLastAdmin(ctx context.Context, store AdminCounter, isAdmin bool) error {
	if !isAdmin {
		return nil
	}
	count, err := store.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastAdmin
	}
	return nil
}
