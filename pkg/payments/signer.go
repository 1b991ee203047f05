package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Signer produces and checks payment confirmation signatures:
// hex(HMAC-SHA256(secret, orderRef + "|" + paymentRef)).
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("payment signing secret is required")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the expected signature for the given references.
func (s *Signer) Sign(orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderRef))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. Malformed hex never matches.
func (s *Signer) Verify(orderRef, paymentRef, signature string) bool {
	if s == nil || orderRef == "" || paymentRef == "" || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(s.Sign(orderRef, paymentRef))
	return hmac.Equal(provided, expected)
}
