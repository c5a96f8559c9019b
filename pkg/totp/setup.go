package totp

import (
	"time"

	"github.com/dmitrymomot/authcore/pkg/qrcode"
)

// qrImageSize is the pixel size of the rendered enrollment image.
const qrImageSize = 256

// Setup is the one-time enrollment material returned to a user starting
// second-factor setup. Secret and QRCodeImage are shown once and never
// persisted; only EncryptedSecret is stored.
type Setup struct {
	Secret          string // Base32 shared secret, for manual entry
	URI             string // otpauth:// enrollment URI
	QRCodeImage     string // base64 data URI of a PNG encoding the URI
	EncryptedSecret string // AES-256-GCM envelope for storage
}

// GenerateSetup creates a fresh shared secret for the given account, renders
// the scannable enrollment image, and produces the encrypted form for storage.
func GenerateSetup(accountName, issuer string, key []byte) (Setup, error) {
	secret, err := GenerateSecretKey()
	if err != nil {
		return Setup{}, err
	}

	uri, err := URI(Params{
		Secret:      secret,
		AccountName: accountName,
		Issuer:      issuer,
	})
	if err != nil {
		return Setup{}, err
	}

	img, err := qrcode.DataURI(uri, qrcode.WithSize(qrImageSize))
	if err != nil {
		return Setup{}, err
	}

	encrypted, err := EncryptSecret(secret, key)
	if err != nil {
		return Setup{}, err
	}

	return Setup{
		Secret:          secret,
		URI:             uri,
		QRCodeImage:     img,
		EncryptedSecret: encrypted,
	}, nil
}

// VerifyEncrypted decrypts a stored envelope and checks the supplied code
// against it at time t. Decryption failures propagate as errors, distinct
// from a merely wrong code which returns (false, nil).
func VerifyEncrypted(encryptedSecret, code string, key []byte, t time.Time) (bool, error) {
	secret, err := DecryptSecret(encryptedSecret, key)
	if err != nil {
		return false, err
	}
	return ValidateCodeAt(secret, code, t)
}
