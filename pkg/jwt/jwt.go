package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// JWT header constants required by RFC 7519
const (
	HeaderType      = "JWT"
	HeaderAlgorithm = "HS256" // HMAC-SHA256 chosen for security/performance balance
)

// Header represents the JWT header as defined in RFC 7515
type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims is the identity payload carried by every token issued by the auth
// core. A token with PendingSecondFactor set asserts identity only: it grants
// no access beyond the second-factor verification endpoint and never carries
// the admin flag forward.
type Claims struct {
	Subject             string `json:"sub"`
	Name                string `json:"name,omitempty"`
	Admin               bool   `json:"admin,omitempty"`
	IssuedAt            int64  `json:"iat"`
	ExpiresAt           int64  `json:"exp"`
	PendingSecondFactor bool   `json:"pending_2fa,omitempty"`
}

// Valid validates required claims and expiry against the current time.
func (c Claims) Valid() error {
	if c.Subject == "" || c.IssuedAt == 0 || c.ExpiresAt == 0 {
		return ErrMissingClaims
	}
	if time.Now().Unix() > c.ExpiresAt {
		return ErrExpiredToken
	}
	return nil
}

// Service handles token generation and validation using HMAC-SHA256.
// Tokens are stateless: there is no server-side session store, so a valid
// signature is necessary but never sufficient - callers must re-validate the
// live credential record on every request.
type Service struct {
	signingKey []byte
	tokenTTL   time.Duration
}

// New creates a token service with the provided signing key.
// The key should be at least 32 bytes for adequate security with HMAC-SHA256.
func New(signingKey []byte, opts ...ServiceOption) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	s := &Service{
		signingKey: signingKey,
		tokenTTL:   DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// DefaultTokenTTL is the default lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// ServiceOption configures the token service.
type ServiceOption func(*Service)

// WithTokenTTL overrides the default token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// TokenTTL returns the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Issue creates a full token for the given subject with identity and
// privilege claims, expiring after the configured lifetime.
func (s *Service) Issue(subject, name string, admin bool) (string, error) {
	now := time.Now()
	return s.Generate(Claims{
		Subject:   subject,
		Name:      name,
		Admin:     admin,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.tokenTTL).Unix(),
	})
}

// IssuePartial creates a partial token asserting identity only, issued when
// primary credentials succeed but the account requires a second factor.
// Privilege is deliberately withheld: admin is only asserted on the full
// token issued after verification.
func (s *Service) IssuePartial(subject, name string) (string, error) {
	now := time.Now()
	return s.Generate(Claims{
		Subject:             subject,
		Name:                name,
		IssuedAt:            now.Unix(),
		ExpiresAt:           now.Add(s.tokenTTL).Unix(),
		PendingSecondFactor: true,
	})
}

// Generate creates a signed token with the given claims.
func (s *Service) Generate(claims Claims) (string, error) {
	header := Header{
		Type:      HeaderType,
		Algorithm: HeaderAlgorithm,
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", errors.Join(ErrMalformedToken, err)
	}

	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Join(ErrMalformedToken, err)
	}

	// Build JWT payload: base64url(header).base64url(claims)
	payload := base64URLEncode(headerJSON) + "." + base64URLEncode(claimsJSON)
	return payload + "." + s.sign(payload), nil
}

// Parse validates a token and returns its claims. Errors distinguish
// "malformed", "signature invalid", and "expired" so logs retain the
// classification; callers collapse all three to unauthenticated.
func (s *Service) Parse(tokenString string) (Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return Claims{}, ErrMalformedToken
	}

	headerEncoded := parts[0]
	claimsEncoded := parts[1]
	signatureEncoded := parts[2]

	// Verify signature using constant-time comparison to prevent timing attacks
	payload := headerEncoded + "." + claimsEncoded
	expectedSignature := s.sign(payload)
	if subtle.ConstantTimeCompare([]byte(signatureEncoded), []byte(expectedSignature)) != 1 {
		return Claims{}, ErrInvalidSignature
	}

	headerJSON, err := base64URLDecode(headerEncoded)
	if err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}

	// Reject tokens using unexpected algorithms to prevent algorithm confusion attacks
	if header.Algorithm != HeaderAlgorithm {
		return Claims{}, ErrUnexpectedSigningMethod
	}

	claimsJSON, err := base64URLDecode(claimsEncoded)
	if err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}

	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}

	if err := claims.Valid(); err != nil {
		return Claims{}, err
	}

	return claims, nil
}

// sign creates an HMAC-SHA256 signature for the given payload.
// Returns base64url-encoded signature as required by RFC 7515.
func (s *Service) sign(payload string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(payload))
	return base64URLEncode(h.Sum(nil))
}

// base64URLEncode encodes data using base64url encoding without padding.
// Padding removal is required by RFC 7515 for JWT tokens.
func base64URLEncode(data []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(data), "=")
}

// base64URLDecode decodes base64url-encoded data, restoring padding as needed.
// JWT tokens omit padding per RFC 7515, but Go's decoder requires it.
func base64URLDecode(s string) ([]byte, error) {
	switch len(s) % 4 {
	case 2:
		s += strings.Repeat("=", 2)
	case 3:
		s += strings.Repeat("=", 1)
	}

	return base64.URLEncoding.DecodeString(s)
}
