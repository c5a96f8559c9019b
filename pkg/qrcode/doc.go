// Package qrcode renders otpauth enrollment URIs as PNG QR code images,
// either as raw bytes or as a base64 data URI ready for HTML embedding.
//
// Rendering is delegated to github.com/skip2/go-qrcode; size and recovery
// level are adjusted through options, with defaults chosen for on-screen
// authenticator enrollment.
package qrcode
