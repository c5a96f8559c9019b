// Package totp implements RFC 6238 time-based one-time passwords together
// with the envelope encryption used to persist shared secrets at rest.
//
// It bundles everything the second-factor subsystem needs: shared-secret
// generation, HOTP/TOTP code calculation and validation (6 digits, 30-second
// step, one step of skew on either side), otpauth URI construction compatible
// with Google Authenticator and friends, and AES-256-GCM helpers so the
// storage layer never sees a plaintext secret.
//
// # Architecture
//
//   - otp.go      - secret key generation (GenerateSecretKey), HOTP/TOTP code
//     calculation (GenerateCode/ValidateCode/GenerateHOTP) and otpauth URI
//     construction (URI).
//   - envelope.go - AES-256-GCM encryption of the secret for storage. The
//     blob is nonce || ciphertext || tag, base64-encoded. Nonce freshness is a
//     required property: the same secret encrypts to a different blob each time.
//   - setup.go    - GenerateSetup produces the complete enrollment bundle
//     (plaintext secret, URI, QR image, encrypted secret) in one call, and
//     VerifyEncrypted checks a code directly against a stored envelope.
//
// The 32-byte encryption key is provisioned by pkg/secrets; this package
// takes it as an argument and holds no process-wide state.
//
// # Usage
//
//	setup, err := totp.GenerateSetup("alice", "Inventory", key)
//	// show setup.Secret and setup.QRCodeImage once, store setup.EncryptedSecret
//
//	ok, err := totp.VerifyEncrypted(stored, userCode, key, time.Now())
package totp
