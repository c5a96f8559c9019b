package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/dmitrymomot/authcore/pkg/logger"
)

const (
	// KeySize is the size of the derived TOTP envelope key (AES-256).
	KeySize = 32

	// MinSigningSecretLen is the minimum signing-secret length that does not
	// trigger a security warning. Shorter secrets are accepted but logged:
	// deployability over strictness.
	MinSigningSecretLen = 32

	// generatedSecretLen is the length of auto-generated signing secrets.
	generatedSecretLen = 48

	// derivationLabel is the fixed HKDF domain-separation label used when the
	// envelope key is derived from the signing secret.
	derivationLabel = "authcore-totp-envelope-v1"

	// persistedSecretFile is the filename used inside DataDir.
	persistedSecretFile = "signing.secret"
)

// Provider resolves and memoizes the token-signing secret and the TOTP
// envelope key, exactly once per process lifetime. It is constructed at
// startup and passed by handle to every component that needs secret
// material; there is no package-global state.
type Provider struct {
	cfg Config
	log *slog.Logger

	signingOnce   sync.Once
	signingSecret []byte

	keyOnce       sync.Once
	encryptionKey []byte
	keyErr        error
}

// New creates a Provider and eagerly resolves both secrets so configuration
// failures surface at startup rather than on the first request. Missing
// sources are never fatal for the signing secret (it auto-generates), but a
// malformed explicit encryption key is: the process cannot serve
// authenticated requests with broken crypto parameters.
func New(cfg Config, log *slog.Logger) (*Provider, error) {
	if log == nil {
		log = slog.Default()
	}

	p := &Provider{cfg: cfg, log: log}

	p.SigningSecret()
	if _, err := p.EncryptionKey(); err != nil {
		return nil, err
	}

	return p, nil
}

// SigningSecret returns the token-signing secret, resolving it on first call
// with the following precedence:
//
//  1. operator secret file at the conventional mount path
//  2. file named by AUTH_SIGNING_SECRET_FILE
//  3. value of AUTH_SIGNING_SECRET
//  4. previously auto-generated secret persisted under DataDir
//  5. freshly generated random secret, persisted best-effort
//
// The resolution runs under sync.Once, so concurrent first access is
// race-free and exactly one value wins for the process lifetime.
func (p *Provider) SigningSecret() []byte {
	p.signingOnce.Do(func() {
		p.signingSecret = p.resolveSigningSecret()
		if len(p.signingSecret) < MinSigningSecretLen {
			p.log.Warn("signing secret is shorter than the recommended minimum",
				slog.Int("length", len(p.signingSecret)),
				slog.Int("recommended", MinSigningSecretLen),
				logger.Component("secrets"),
			)
		}
	})
	return p.signingSecret
}

func (p *Provider) resolveSigningSecret() []byte {
	if secret := readSecretFile(p.cfg.SecretFile); len(secret) > 0 {
		return secret
	}

	if p.cfg.SigningSecretFile != "" {
		if secret := readSecretFile(p.cfg.SigningSecretFile); len(secret) > 0 {
			return secret
		}
		p.log.Warn("configured signing secret file is unreadable, falling through",
			slog.String("path", p.cfg.SigningSecretFile),
			logger.Component("secrets"),
		)
	}

	if p.cfg.SigningSecret != "" {
		return []byte(p.cfg.SigningSecret)
	}

	persisted := filepath.Join(p.cfg.DataDir, persistedSecretFile)
	if secret := readSecretFile(persisted); len(secret) > 0 {
		return secret
	}

	// Last resort: generate and try to persist so tokens survive restarts.
	secret := make([]byte, generatedSecretLen)
	if _, err := rand.Read(secret); err != nil {
		// crypto/rand failing means the platform RNG is broken; nothing
		// sensible can be served without it.
		panic(errors.Join(ErrRandomSourceFailed, err))
	}
	encoded := []byte(base64.StdEncoding.EncodeToString(secret))

	if err := persistSecret(persisted, encoded); err != nil {
		p.log.Warn("failed to persist generated signing secret, tokens will not survive restarts",
			slog.String("path", persisted),
			logger.Error(err),
			logger.Component("secrets"),
		)
	} else {
		p.log.Info("generated and persisted a new signing secret",
			slog.String("path", persisted),
			logger.Component("secrets"),
		)
	}

	return encoded
}

// EncryptionKey returns the 32-byte TOTP envelope key, resolving it on first
// call: operator key file, then TOTP_ENCRYPTION_KEY, then HKDF-SHA256
// derivation from the signing secret under a fixed domain-separation label.
// With derivation the key changes if and only if the signing secret changes,
// so small deployments need not provision a second secret.
func (p *Provider) EncryptionKey() ([]byte, error) {
	p.keyOnce.Do(func() {
		p.encryptionKey, p.keyErr = p.resolveEncryptionKey()
	})
	return p.encryptionKey, p.keyErr
}

func (p *Provider) resolveEncryptionKey() ([]byte, error) {
	if p.cfg.EncryptionKeyFile != "" {
		raw := readSecretFile(p.cfg.EncryptionKeyFile)
		if len(raw) == 0 {
			return nil, ErrEncryptionKeyUnreadable
		}
		return decodeEncryptionKey(string(raw))
	}

	if p.cfg.EncryptionKey != "" {
		return decodeEncryptionKey(p.cfg.EncryptionKey)
	}

	// Derive from the signing secret. This conflates the two secrets' blast
	// radius; high-security deployments should provision an independent key.
	reader := hkdf.New(sha256.New, p.SigningSecret(), nil, []byte(derivationLabel))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return key, nil
}

func decodeEncryptionKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, errors.Join(ErrInvalidEncryptionKey, err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidEncryptionKeyLength
	}
	return key, nil
}

// readSecretFile reads and trims a secret file, returning nil on any failure.
func readSecretFile(path string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	return []byte(trimmed)
}

func persistSecret(path string, secret []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, secret, 0o600)
}
