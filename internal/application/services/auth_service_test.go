package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/security"
)

func TestAuthenticateAdmin(t *testing.T) {
	tenantCtx := newTestTenantContext(t)
	logger := tenantCtx.Logger
	auth := NewAuthService(logger, performance.NewTracker(logger))

	hash, err := security.HashPassword("correct-horse")
	require.NoError(t, err)
	tenantCtx.Config.AdminPasswordHash = hash

	result := auth.AuthenticateAdmin("correct-horse", tenantCtx)
	require.True(t, result.Success)
	require.Equal(t, "admin", result.Role)
	require.NotEmpty(t, result.Token)

	claims, err := auth.ValidateToken(result.Token, tenantCtx)
	require.NoError(t, err)
	require.Equal(t, tenantCtx.TenantID, claims.TenantID)
	require.Equal(t, "admin", claims.Role)
}

func TestAuthenticateAdminWrongPassword(t *testing.T) {
	tenantCtx := newTestTenantContext(t)
	logger := tenantCtx.Logger
	auth := NewAuthService(logger, performance.NewTracker(logger))

	hash, err := security.HashPassword("correct-horse")
	require.NoError(t, err)
	tenantCtx.Config.AdminPasswordHash = hash

	result := auth.AuthenticateAdmin("battery-staple", tenantCtx)
	require.False(t, result.Success)
	require.Empty(t, result.Token)
}

func TestAuthenticateAdminUnconfigured(t *testing.T) {
	tenantCtx := newTestTenantContext(t)
	logger := tenantCtx.Logger
	auth := NewAuthService(logger, performance.NewTracker(logger))

	result := auth.AuthenticateAdmin("anything", tenantCtx)
	require.False(t, result.Success)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	tenantCtx := newTestTenantContext(t)
	logger := tenantCtx.Logger
	auth := NewAuthService(logger, performance.NewTracker(logger))

	token, err := security.GenerateAdminToken(tenantCtx.TenantID, "admin", "some-other-secret", time.Hour)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token, tenantCtx)
	require.Error(t, err)
}
