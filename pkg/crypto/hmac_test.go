package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignPayload_MatchesReference(t *testing.T) {
	secret := []byte("whsec_test")
	payload := []byte(`{"event":"member.checked_in","data":{}}`)

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, SignPayload(secret, payload))
}

func TestSignPayload_Deterministic(t *testing.T) {
	secret := []byte("s1")
	payload := []byte("body")

	assert.Equal(t, SignPayload(secret, payload), SignPayload(secret, payload))
	assert.NotEqual(t, SignPayload(secret, payload), SignPayload([]byte("s2"), payload))
	assert.NotEqual(t, SignPayload(secret, payload), SignPayload(secret, []byte("other")))
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("whsec_test")
	payload := []byte(`{"event":"payment.overdue"}`)
	sig := SignPayload(secret, payload)

	assert.True(t, VerifySignature(secret, payload, sig))
	assert.False(t, VerifySignature(secret, payload, sig[:len(sig)-2]+"ff"))
	assert.False(t, VerifySignature([]byte("wrong"), payload, sig))
	assert.False(t, VerifySignature(secret, []byte("tampered"), sig))
}
