package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// ComputeWebhookSignature returns the base64 HMAC-SHA256 digest of the raw
// request body under the tenant's webhook secret
func ComputeWebhookSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a provided signature header against the
// expected digest in constant time. An empty secret never verifies.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := ComputeWebhookSignature(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
