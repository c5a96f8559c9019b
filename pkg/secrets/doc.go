// Package secrets resolves the two long-lived pieces of cryptographic
// material the auth core depends on: the token-signing secret and the TOTP
// envelope encryption key.
//
// Resolution follows a strict precedence so deployments can override sources
// without code changes (operator file, explicit file path, environment
// value, persisted auto-generated secret, fresh generation). Both values are
// memoized with sync.Once: the first resolution wins for the process
// lifetime and concurrent first access is race-free. There is no runtime
// rotation.
//
// The Provider is an explicitly constructed, dependency-injected object
// built once at process start; nothing in this package holds global state.
//
// When no independent envelope key is configured, it is derived from the
// signing secret via HKDF-SHA256 under a fixed domain-separation label. That
// default trades blast-radius isolation for operational simplicity.
package secrets
