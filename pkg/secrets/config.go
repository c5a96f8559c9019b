package secrets

// Config describes where long-lived cryptographic material is resolved from.
// All sources are optional: a missing signing secret is auto-generated, and a
// missing encryption key is derived from the signing secret.
type Config struct {
	// SecretFile is the conventional operator-supplied mount path checked first.
	SecretFile string `env:"AUTH_SECRET_FILE" envDefault:"/etc/authcore/signing.secret"`
	// SigningSecretFile is an explicit path to a secret file.
	SigningSecretFile string `env:"AUTH_SIGNING_SECRET_FILE"`
	// SigningSecret is the secret value given directly.
	SigningSecret string `env:"AUTH_SIGNING_SECRET"`
	// DataDir is where an auto-generated secret is persisted for restart stability.
	DataDir string `env:"AUTH_DATA_DIR" envDefault:"./data"`

	// EncryptionKeyFile is an operator-supplied file holding the base64 TOTP envelope key.
	EncryptionKeyFile string `env:"TOTP_ENCRYPTION_KEY_FILE"`
	// EncryptionKey is the base64-encoded 32-byte TOTP envelope key given directly.
	EncryptionKey string `env:"TOTP_ENCRYPTION_KEY"`
}
