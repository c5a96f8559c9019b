package twofa

import "fmt"

// Mode is the operating mode of an enabled enrollment. It is a closed enum
// internally and serializes to a compact string code only at the storage
// boundary.
type Mode int

const (
	// ModeRequired demands a valid code on every login.
	ModeRequired Mode = iota
	// ModeRequiredWithRecovery additionally allows password reset via a
	// valid code instead of email.
	ModeRequiredWithRecovery
)

const (
	modeRequiredCode     = "required"
	modeWithRecoveryCode = "required_with_recovery"
)

// String serializes the mode to its storage code. Unknown values panic
// rather than serializing silently.
func (m Mode) String() string {
	switch m {
	case ModeRequired:
		return modeRequiredCode
	case ModeRequiredWithRecovery:
		return modeWithRecoveryCode
	default:
		panic(fmt.Sprintf("twofa: unknown mode %d", int(m)))
	}
}

// ParseMode converts a storage code back to a Mode.
func ParseMode(code string) (Mode, error) {
	switch code {
	case modeRequiredCode:
		return ModeRequired, nil
	case modeWithRecoveryCode:
		return ModeRequiredWithRecovery, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, code)
	}
}

// AllowsRecovery reports whether the mode permits code-based password recovery.
func (m Mode) AllowsRecovery() bool {
	return m == ModeRequiredWithRecovery
}
