package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	secret := "jwt-test-secret"

	token, err := GenerateAdminToken("tenant-1", "admin", secret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateAdminToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.Equal(t, "admin", claims.Role)
}

func TestAdminTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateAdminToken("tenant-1", "admin", "secret-a", time.Hour)
	require.NoError(t, err)

	_, err = ValidateAdminToken(token, "secret-b")
	require.Error(t, err)
}

func TestAdminTokenRejectsExpired(t *testing.T) {
	token, err := GenerateAdminToken("tenant-1", "admin", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateAdminToken(token, "secret")
	require.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.True(t, VerifyPassword("hunter2", hash))
	require.False(t, VerifyPassword("hunter3", hash))
}

func TestGenerateULIDOrdering(t *testing.T) {
	first := GenerateULID()
	second := GenerateULID()
	require.Len(t, first, 26)
	require.NotEqual(t, first, second)
}
