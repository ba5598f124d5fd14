package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWebhookSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"id":123,"token":"abc","email":"buyer@example.com"}`)
	secret := "whsec_test"

	sig := ComputeWebhookSignature(body, secret)
	require.NotEmpty(t, sig)
	require.True(t, VerifyWebhookSignature(body, sig, secret))
}

func TestWebhookSignatureRejectsTamperedBody(t *testing.T) {
	secret := "whsec_test"
	sig := ComputeWebhookSignature([]byte(`{"total_price":"10.00"}`), secret)

	require.False(t, VerifyWebhookSignature([]byte(`{"total_price":"99.00"}`), sig, secret))
}

func TestWebhookSignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"id":1}`)
	sig := ComputeWebhookSignature(body, "secret-a")

	require.False(t, VerifyWebhookSignature(body, sig, "secret-b"))
}

func TestWebhookSignatureNeverVerifiesEmptyInputs(t *testing.T) {
	body := []byte(`{"id":1}`)

	require.False(t, VerifyWebhookSignature(body, "", "secret"))
	require.False(t, VerifyWebhookSignature(body, ComputeWebhookSignature(body, ""), ""))
}
