// Package crypto provides webhook payload signing.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload computes the hex-encoded HMAC-SHA256 signature of payload
// under the subscription's shared secret. Every delivery attempt signs the
// freshly serialized envelope; signatures are never cached because the
// envelope timestamp changes per attempt.
func SignPayload(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a hex signature against the expected HMAC of
// payload. The comparison is constant-time to avoid timing side-channels.
func VerifySignature(secret, payload []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
