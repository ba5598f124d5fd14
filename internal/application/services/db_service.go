// Package services provides application-level orchestration services
package services

import (
	"fmt"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
)

// DBService handles database connectivity and health checking
type DBService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewDBService creates a new database service
func NewDBService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DBService {
	return &DBService{
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// CheckStatus performs a basic database health check for a tenant
func (d *DBService) CheckStatus(tenantCtx *tenant.Context) map[string]any {
	result := map[string]any{
		"tenantId":  tenantCtx.TenantID,
		"status":    "checking",
		"timestamp": time.Now().UTC(),
	}

	if tenantCtx.Database == nil || tenantCtx.Database.Conn == nil {
		result["status"] = "error"
		result["error"] = "no database connection"
		return result
	}

	var testResult int
	err := tenantCtx.Database.Conn.QueryRow("SELECT 1").Scan(&testResult)
	if err != nil {
		result["status"] = "error"
		result["error"] = fmt.Sprintf("connection test failed: %v", err)
		return result
	}

	requiredTables := []string{"visitors", "sessions", "cart_snapshots", "abandoned_carts"}
	missing := []string{}
	for _, table := range requiredTables {
		var name string
		err := tenantCtx.Database.Conn.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			missing = append(missing, table)
		}
	}

	if len(missing) > 0 {
		result["status"] = "degraded"
		result["missingTables"] = missing
	} else {
		result["status"] = "ok"
	}

	result["connection"] = tenantCtx.GetDatabaseInfo()
	result["pools"] = tenant.GetConnectionPoolInfo()
	result["cachedHints"] = tenantCtx.CacheManager.HintCount(tenantCtx.TenantID)

	return result
}
