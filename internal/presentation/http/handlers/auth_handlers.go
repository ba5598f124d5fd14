// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/application/services"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// AuthHandlers contains all authentication-related HTTP handlers
type AuthHandlers struct {
	authService *services.AuthService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(authService *services.AuthService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// PostLogin handles POST /api/v1/auth/login - dashboard admin authentication
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	start := time.Now()
	marker := h.perfTracker.StartOperation("post_login_request", tenantCtx.TenantID)
	defer marker.Complete()
	h.logger.Auth().Debug("Received login request", "method", c.Request.Method, "path", c.Request.URL.Path, "tenantId", tenantCtx.TenantID)

	var loginReq struct {
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginReq); err != nil {
		h.logger.Auth().Error("Login request JSON binding failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result := h.authService.AuthenticateAdmin(loginReq.Password, tenantCtx)

	if !result.Success {
		h.logger.Auth().Warn("Login attempt failed", "tenantId", tenantCtx.TenantID, "error", result.Error, "duration", time.Since(start))
		marker.SetSuccess(false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": result.Error})
		return
	}

	h.logger.Auth().Info("Login successful", "tenantId", tenantCtx.TenantID, "role", result.Role, "duration", time.Since(start))
	marker.SetSuccess(true)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.Token,
		"role":    result.Role,
	})
}

// GetAuthStatus handles GET /api/v1/auth/status - validates the bearer token
func (h *AuthHandlers) GetAuthStatus(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	token := extractBearerToken(c)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	claims, err := h.authService.ValidateToken(token, tenantCtx)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"role":          claims.Role,
		"tenantId":      claims.TenantID,
	})
}

// AdminMiddleware guards dashboard routes behind a valid admin bearer token.
func (h *AuthHandlers) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantCtx, exists := middleware.GetTenantContext(c)
		if !exists {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
			c.Abort()
			return
		}

		token := extractBearerToken(c)
		if token == "" {
			// Websocket clients cannot set headers, so allow a query token.
			token = c.Query("token")
		}

		if token == "" {
			h.logger.Auth().Warn("Unauthorized access attempt", "tenantId", tenantCtx.TenantID, "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		claims, err := h.authService.ValidateToken(token, tenantCtx)
		if err != nil || claims.TenantID != tenantCtx.TenantID {
			h.logger.Auth().Warn("Invalid admin token", "tenantId", tenantCtx.TenantID, "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
