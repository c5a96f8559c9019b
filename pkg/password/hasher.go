package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Params holds the Argon2id cost parameters. They are encoded into every
// produced hash, so verification needs no side-channel state and parameters
// can be tuned without invalidating existing hashes.
type Params struct {
	Memory  uint32 // memory cost in KiB
	Time    uint32 // number of passes
	Threads uint8  // degree of parallelism inside a single hash
	SaltLen uint32 // salt length in bytes
	KeyLen  uint32 // derived key length in bytes
}

// DefaultParams follows the RFC 9106 low-memory recommendation:
// 64 MiB, a single pass, four lanes.
func DefaultParams() Params {
	return Params{
		Memory:  64 * 1024,
		Time:    1,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Hasher hashes and verifies passwords with Argon2id. The algorithm is
// deliberately slow, so all work is dispatched through a bounded worker
// slot pool: concurrent login attempts queue on the pool instead of
// starving unrelated request handling.
type Hasher struct {
	params Params
	slots  chan struct{}
}

// Option configures the hasher.
type Option func(*Hasher)

// WithParams overrides the default Argon2id cost parameters.
func WithParams(p Params) Option {
	return func(h *Hasher) {
		if p.Memory > 0 && p.Time > 0 && p.Threads > 0 && p.SaltLen > 0 && p.KeyLen > 0 {
			h.params = p
		}
	}
}

// WithMaxConcurrency bounds how many hash computations may run at once.
// Defaults to GOMAXPROCS.
func WithMaxConcurrency(n int) Option {
	return func(h *Hasher) {
		if n > 0 {
			h.slots = make(chan struct{}, n)
		}
	}
}

// New creates a Hasher with default parameters, adjusted by options.
func New(opts ...Option) *Hasher {
	h := &Hasher{
		params: DefaultParams(),
		slots:  make(chan struct{}, runtime.GOMAXPROCS(0)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash derives an Argon2id hash of the password with a fresh random salt and
// returns it in PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<b64salt>$<b64key>
//
// Blocks while all worker slots are busy; ctx cancellation aborts the wait.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Join(ErrHashingFailed, err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify reports whether the password matches the encoded hash. The digest
// comparison is constant-time. A malformed encoded hash returns
// ErrInvalidHash rather than false, so callers can distinguish a wrong
// password from a corrupt stored hash.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	case <-ctx.Done():
		return false, ctx.Err()
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// decodeHash parses a PHC-format Argon2id hash into its parameters, salt, and key.
func decodeHash(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, errors.Join(ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return Params{}, nil, nil, ErrIncompatibleVersion
	}

	var params Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return Params{}, nil, nil, errors.Join(ErrInvalidHash, err)
	}
	if params.Memory == 0 || params.Time == 0 || params.Threads == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, errors.Join(ErrInvalidHash, err)
	}
	params.SaltLen = uint32(len(salt))

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, errors.Join(ErrInvalidHash, err)
	}
	params.KeyLen = uint32(len(key))

	return params, salt, key, nil
}
