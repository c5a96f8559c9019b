package secrets

import "errors"

var (
	ErrRandomSourceFailed         = errors.New("secrets: random source failed")
	ErrKeyDerivationFailed        = errors.New("secrets: encryption key derivation failed")
	ErrInvalidEncryptionKey       = errors.New("secrets: encryption key is not valid base64")
	ErrInvalidEncryptionKeyLength = errors.New("secrets: encryption key must decode to 32 bytes")
	ErrEncryptionKeyUnreadable    = errors.New("secrets: configured encryption key file is unreadable")
)
