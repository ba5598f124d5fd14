// Package services provides application-level orchestration services
package services

import (
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
)

// adminTokenTTL is how long a dashboard login stays valid.
const adminTokenTTL = 24 * time.Hour

// AuthService handles dashboard authentication and JWT operations
type AuthService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAuthService creates a new authentication service
func NewAuthService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AuthService {
	return &AuthService{
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// AuthResult holds authentication result data
type AuthResult struct {
	Token   string `json:"token"`
	Role    string `json:"role"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AuthenticateAdmin validates the dashboard password and issues a JWT.
func (a *AuthService) AuthenticateAdmin(password string, tenantCtx *tenant.Context) *AuthResult {
	if tenantCtx.Config.AdminPasswordHash == "" {
		return &AuthResult{Success: false, Error: "dashboard access is not configured for this tenant"}
	}

	if !security.VerifyPassword(password, tenantCtx.Config.AdminPasswordHash) {
		a.logger.Auth().Warn("Dashboard login rejected", "tenantId", tenantCtx.TenantID)
		return &AuthResult{Success: false, Error: "invalid credentials"}
	}

	token, err := security.GenerateAdminToken(tenantCtx.TenantID, "admin", tenantCtx.Config.JWTSecret, adminTokenTTL)
	if err != nil {
		a.logger.Auth().Error("Failed to generate admin token",
			"tenantId", tenantCtx.TenantID, "error", err.Error())
		return &AuthResult{Success: false, Error: "token generation failed"}
	}

	a.logger.Auth().Info("Dashboard login", "tenantId", tenantCtx.TenantID)
	return &AuthResult{Token: token, Role: "admin", Success: true}
}

// ValidateToken checks a dashboard JWT against the tenant's secret.
func (a *AuthService) ValidateToken(tokenString string, tenantCtx *tenant.Context) (*security.AdminClaims, error) {
	claims, err := security.ValidateAdminToken(tokenString, tenantCtx.Config.JWTSecret)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
