package subscription

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks a provider-signed webhook body against an
// HMAC-SHA256 digest using a constant-time comparison, the same shape the
// corpus uses for signed-request verification (generalized from a Slack
// signing-secret verifier to a provider-agnostic raw-body HMAC, since the
// billing provider's wire format is out of scope per spec §1).
func VerifySignature(secret, signatureHex string, body []byte) bool {
	if secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
