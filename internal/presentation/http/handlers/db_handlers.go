package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/application/services"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// DatabaseHandlers contains all database-related HTTP handlers
type DatabaseHandlers struct {
	dbService   *services.DBService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewDBHandlers creates database handlers with injected dependencies
func NewDBHandlers(dbService *services.DBService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DatabaseHandlers {
	return &DatabaseHandlers{
		dbService:   dbService,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetDatabaseStatus handles GET /api/v1/db/status - checks tenant database health
func (h *DatabaseHandlers) GetDatabaseStatus(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	start := time.Now()
	marker := h.perfTracker.StartOperation("get_database_status_request", tenantCtx.TenantID)
	defer marker.Complete()
	h.logger.System().Debug("Received database status request", "method", c.Request.Method, "path", c.Request.URL.Path, "tenantId", tenantCtx.TenantID)

	status := h.dbService.CheckStatus(tenantCtx)

	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		h.logger.System().Error("Database status check failed", "tenantId", tenantCtx.TenantID, "error", errMsg, "duration", time.Since(start))
		marker.SetSuccess(false)
		c.JSON(http.StatusOK, status)
		return
	}

	h.logger.System().Info("Database status check completed", "tenantId", tenantCtx.TenantID, "status", status["status"], "duration", time.Since(start))
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, status)
}
