package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when content string is empty or only whitespace.
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrEncodeFailed is returned when the underlying encoder rejects the content.
	ErrEncodeFailed = errors.New("failed to encode QR code")
)

// Defaults tuned for authenticator enrollment screens: 256px scans reliably
// from a laptop display, and medium recovery keeps short otpauth URIs dense.
const defaultSize = 256

// Option adjusts image rendering.
type Option func(*settings)

type settings struct {
	size     int
	recovery skipqrcode.RecoveryLevel
}

// WithSize sets the image edge length in pixels. Non-positive values keep
// the default.
func WithSize(px int) Option {
	return func(s *settings) {
		if px > 0 {
			s.size = px
		}
	}
}

// WithHighRecovery raises the error-correction level for images that may be
// printed or partially obscured.
func WithHighRecovery() Option {
	return func(s *settings) {
		s.recovery = skipqrcode.High
	}
}

// Image renders the content as a PNG QR code.
func Image(content string, opts ...Option) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	s := settings{size: defaultSize, recovery: skipqrcode.Medium}
	for _, opt := range opts {
		opt(&s)
	}

	png, err := skipqrcode.Encode(content, s.recovery, s.size)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailed, err)
	}
	return png, nil
}

// DataURI renders the content as a PNG QR code wrapped in a data URI,
// ready for direct embedding in an <img> tag during enrollment.
func DataURI(content string, opts ...Option) (string, error) {
	png, err := Image(content, opts...)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
