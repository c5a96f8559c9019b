package password

import "errors"

var (
	ErrHashingFailed       = errors.New("password: hashing failed")
	ErrInvalidHash         = errors.New("password: malformed encoded hash")
	ErrIncompatibleVersion = errors.New("password: incompatible argon2 version")
)
