package authz

import (
	"fmt"

	"github.com/google/uuid"
)

// Level is the permission granted by a share record. Levels form a totally
// ordered capability lattice: view < edit < full. A higher level always
// implies every capability of the levels below it.
type Level int

const (
	// LevelView grants read-only access to the shared resource.
	LevelView Level = iota
	// LevelEdit additionally allows mutating the resource contents.
	LevelEdit
	// LevelFull additionally allows managing the sharing relation itself.
	LevelFull
)

// Storage-boundary codes. The enum is a closed internal type; strings exist
// only at the storage and wire boundary.
const (
	levelViewCode = "view"
	levelEditCode = "edit"
	levelFullCode = "full"
)

// String serializes the level to its storage code. The switch is exhaustive:
// adding a level without extending it is a compile-visible change via
// ParseLevel's tests, and an unknown value panics loudly rather than
// serializing silently.
func (l Level) String() string {
	switch l {
	case LevelView:
		return levelViewCode
	case LevelEdit:
		return levelEditCode
	case LevelFull:
		return levelFullCode
	default:
		panic(fmt.Sprintf("authz: unknown permission level %d", int(l)))
	}
}

// ParseLevel converts a storage code back to a Level.
func ParseLevel(code string) (Level, error) {
	switch code {
	case levelViewCode:
		return LevelView, nil
	case levelEditCode:
		return LevelEdit, nil
	case levelFullCode:
		return LevelFull, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, code)
	}
}

// CanView reports whether the level permits reading the resource.
func (l Level) CanView() bool {
	return l >= LevelView
}

// CanEdit reports whether the level permits mutating resource contents.
func (l Level) CanEdit() bool {
	return l >= LevelEdit
}

// CanDelete reports whether the level permits deleting resource contents.
func (l Level) CanDelete() bool {
	return l >= LevelEdit
}

// CanManageSharing reports whether the level permits adding, removing, or
// altering other principals' access.
func (l Level) CanManageSharing() bool {
	return l >= LevelFull
}

// Share links a resource to a grantee with a permission level. At most one
// active share exists per (resource, grantee) pair.
type Share struct {
	ResourceID uuid.UUID
	GranteeID  uuid.UUID
	GrantedBy  uuid.UUID
	Level      Level
}
