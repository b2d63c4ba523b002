// Package webhook authenticates inbound provider notifications.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rookgm/storefront/internal/models"
)

// SignatureHeader is header carrying webhook signature
const SignatureHeader = "verif-hash"

// Verifier checks HMAC-SHA256 signature of webhook body
type Verifier struct {
	secret []byte
}

// NewVerifier creates new Verifier with pre-shared secret
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns hex encoded signature of body
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature over body exactly as received.
// Body must not be decoded and encoded again before the check.
func (v *Verifier) Verify(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if len(v.secret) == 0 || signature == "" {
		return models.ErrInvalidSignature
	}

	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return models.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return models.ErrInvalidSignature
	}

	return nil
}
