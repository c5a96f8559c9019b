package secrets_test

import (
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authcore/pkg/secrets"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSigningSecretPrecedence(t *testing.T) {
	t.Parallel()

	t.Run("operator file wins", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		mount := filepath.Join(dir, "mounted.secret")
		require.NoError(t, os.WriteFile(mount, []byte("file-secret-value-file-secret-value\n"), 0o600))

		p, err := secrets.New(secrets.Config{
			SecretFile:    mount,
			SigningSecret: "env-secret-should-lose",
			DataDir:       dir,
		}, discard())
		require.NoError(t, err)
		assert.Equal(t, []byte("file-secret-value-file-secret-value"), p.SigningSecret())
	})

	t.Run("explicit file path beats direct value", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "explicit.secret")
		require.NoError(t, os.WriteFile(path, []byte("explicit-file-secret-explicit-file"), 0o600))

		p, err := secrets.New(secrets.Config{
			SecretFile:        filepath.Join(dir, "does-not-exist"),
			SigningSecretFile: path,
			SigningSecret:     "env-secret-should-lose",
			DataDir:           dir,
		}, discard())
		require.NoError(t, err)
		assert.Equal(t, []byte("explicit-file-secret-explicit-file"), p.SigningSecret())
	})

	t.Run("direct value beats persisted", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		p, err := secrets.New(secrets.Config{
			SecretFile:    filepath.Join(dir, "does-not-exist"),
			SigningSecret: "direct-env-secret-direct-env-secret",
			DataDir:       dir,
		}, discard())
		require.NoError(t, err)
		assert.Equal(t, []byte("direct-env-secret-direct-env-secret"), p.SigningSecret())
	})

	t.Run("auto-generates and persists for restart stability", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfg := secrets.Config{
			SecretFile: filepath.Join(dir, "does-not-exist"),
			DataDir:    dir,
		}

		p1, err := secrets.New(cfg, discard())
		require.NoError(t, err)
		generated := p1.SigningSecret()
		assert.GreaterOrEqual(t, len(generated), secrets.MinSigningSecretLen)

		// A second provider (simulated restart) picks up the persisted secret.
		p2, err := secrets.New(cfg, discard())
		require.NoError(t, err)
		assert.Equal(t, generated, p2.SigningSecret())
	})
}

func TestSigningSecretMemoized(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p, err := secrets.New(secrets.Config{
		SecretFile: filepath.Join(dir, "does-not-exist"),
		DataDir:    dir,
	}, discard())
	require.NoError(t, err)

	first := p.SigningSecret()

	var wg sync.WaitGroup
	for j := 0; j < 16; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, first, p.SigningSecret())
		}()
	}
	wg.Wait()
}

func TestEncryptionKeyResolution(t *testing.T) {
	t.Parallel()

	t.Run("explicit base64 key", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		key := make([]byte, secrets.KeySize)
		for i := range key {
			key[i] = byte(i)
		}

		p, err := secrets.New(secrets.Config{
			SecretFile:    filepath.Join(dir, "does-not-exist"),
			SigningSecret: "some-signing-secret-some-signing",
			DataDir:       dir,
			EncryptionKey: base64.StdEncoding.EncodeToString(key),
		}, discard())
		require.NoError(t, err)

		got, err := p.EncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})

	t.Run("key file wins over direct value", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		fileKey := make([]byte, secrets.KeySize)
		for i := range fileKey {
			fileKey[i] = 0xAA
		}
		path := filepath.Join(dir, "envelope.key")
		require.NoError(t, os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(fileKey)+"\n"), 0o600))

		p, err := secrets.New(secrets.Config{
			SecretFile:        filepath.Join(dir, "does-not-exist"),
			SigningSecret:     "some-signing-secret-some-signing",
			DataDir:           dir,
			EncryptionKeyFile: path,
			EncryptionKey:     base64.StdEncoding.EncodeToString(make([]byte, secrets.KeySize)),
		}, discard())
		require.NoError(t, err)

		got, err := p.EncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, fileKey, got)
	})

	t.Run("derived from signing secret deterministically", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfg := secrets.Config{
			SecretFile:    filepath.Join(dir, "does-not-exist"),
			SigningSecret: "stable-signing-secret-stable-sig",
			DataDir:       dir,
		}

		p1, err := secrets.New(cfg, discard())
		require.NoError(t, err)
		k1, err := p1.EncryptionKey()
		require.NoError(t, err)
		require.Len(t, k1, secrets.KeySize)

		p2, err := secrets.New(cfg, discard())
		require.NoError(t, err)
		k2, err := p2.EncryptionKey()
		require.NoError(t, err)

		// Same signing secret, same derived key.
		assert.Equal(t, k1, k2)

		// Different signing secret, different derived key.
		cfg.SigningSecret = "another-signing-secret-another-s"
		p3, err := secrets.New(cfg, discard())
		require.NoError(t, err)
		k3, err := p3.EncryptionKey()
		require.NoError(t, err)
		assert.NotEqual(t, k1, k3)
	})

	t.Run("malformed explicit key is fatal", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		_, err := secrets.New(secrets.Config{
			SecretFile:    filepath.Join(dir, "does-not-exist"),
			SigningSecret: "some-signing-secret-some-signing",
			DataDir:       dir,
			EncryptionKey: "!!!not-base64!!!",
		}, discard())
		assert.ErrorIs(t, err, secrets.ErrInvalidEncryptionKey)
	})

	t.Run("wrong-length explicit key is fatal", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		_, err := secrets.New(secrets.Config{
			SecretFile:    filepath.Join(dir, "does-not-exist"),
			SigningSecret: "some-signing-secret-some-signing",
			DataDir:       dir,
			EncryptionKey: base64.StdEncoding.EncodeToString([]byte("short")),
		}, discard())
		assert.ErrorIs(t, err, secrets.ErrInvalidEncryptionKeyLength)
	})
}
