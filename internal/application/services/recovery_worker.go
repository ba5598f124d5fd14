package services

import (
	"context"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

// RecoveryWorker drives periodic recovery sweeps across all active tenants.
type RecoveryWorker struct {
	recoveryService *RecoveryService
	tenantManager   *tenant.Manager
}

// NewRecoveryWorker creates a new recovery worker
func NewRecoveryWorker(recoveryService *RecoveryService, tenantManager *tenant.Manager) *RecoveryWorker {
	return &RecoveryWorker{
		recoveryService: recoveryService,
		tenantManager:   tenantManager,
	}
}

// Start runs the sweep loop until the context is cancelled. This should be
// run as a goroutine.
func (w *RecoveryWorker) Start(ctx context.Context) {
	logger := w.recoveryService.logger
	ticker := time.NewTicker(config.RecoverySweepEvery)
	defer ticker.Stop()

	logger.Recovery().Info("Recovery worker started", "interval", config.RecoverySweepEvery)

	for {
		select {
		case <-ctx.Done():
			logger.Recovery().Info("Recovery worker stopping")
			return
		case <-ticker.C:
			w.sweepAllTenants(ctx)
		}
	}
}

// sweepAllTenants runs one sweep for every active tenant. One tenant's
// failure never blocks the others.
func (w *RecoveryWorker) sweepAllTenants(ctx context.Context) {
	logger := w.recoveryService.logger
	now := time.Now().UTC()

	for _, tenantID := range w.tenantManager.GetDetector().ActiveTenantIDs() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tenantCtx, err := w.tenantManager.NewContextFromID(tenantID)
		if err != nil {
			logger.Recovery().Error("Sweep could not create tenant context",
				"tenantId", tenantID, "error", err.Error())
			continue
		}

		stats, err := w.recoveryService.SweepTenant(ctx, tenantCtx, now)
		if err != nil {
			logger.Recovery().Error("Tenant sweep failed",
				"tenantId", tenantID, "error", err.Error())
			continue
		}

		if stats.Scanned > 0 || stats.Expired > 0 || stats.SessionsClosed > 0 {
			logger.Recovery().Info("Tenant sweep finished",
				"tenantId", tenantID,
				"scanned", stats.Scanned,
				"dispatched", stats.Dispatched,
				"skipped", stats.Skipped,
				"failed", stats.Failed,
				"expired", stats.Expired,
				"sessionsClosed", stats.SessionsClosed)
		}
	}
}
