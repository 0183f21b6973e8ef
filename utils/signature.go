// utils/signature.go
package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

// VerifyCalSignature checks the hex HMAC-SHA256 digest Cal.com puts in the
// X-Cal-Signature-256 header against the raw request body. Comparison is
// constant time.
func VerifyCalSignature(secret, body []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	digest := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(digest), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
