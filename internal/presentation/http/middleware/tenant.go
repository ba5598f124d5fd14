// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"net/http"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/gin-gonic/gin"
)

const tenantContextKey = "tenantCtx"

// TenantMiddleware resolves the tenant for the request and attaches a fully
// activated tenant context (config, database, cache) to the gin context.
func TenantMiddleware(tenantManager *tenant.Manager, perfTracker *performance.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantCtx, err := tenantManager.GetContext(c)
		if err != nil {
			tenantManager.GetLogger().Tenant().Warn("Tenant resolution failed", "path", c.Request.URL.Path, "error", err.Error())
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			c.Abort()
			return
		}

		marker := perfTracker.StartOperation("tenant_resolution", tenantCtx.TenantID)
		marker.SetSuccess(true)
		marker.Complete()

		c.Set(tenantContextKey, tenantCtx)
		c.Next()
	}
}

// GetTenantContext retrieves the tenant context stored by TenantMiddleware.
func GetTenantContext(c *gin.Context) (*tenant.Context, bool) {
	value, exists := c.Get(tenantContextKey)
	if !exists {
		return nil, false
	}

	tenantCtx, ok := value.(*tenant.Context)
	return tenantCtx, ok
}
