// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/AtRiskMedia/cartloop-go/internal/application/services"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Tracker services (stateless singletons)
	SessionService  *services.SessionService
	CartService     *services.CartService
	IngestService   *services.IngestService
	WebhookService  *services.WebhookService
	RecoveryService *services.RecoveryService
	RecoveryWorker  *services.RecoveryWorker
	AuthService     *services.AuthService
	DBService       *services.DBService

	// Infrastructure Dependencies
	TenantManager   *tenant.Manager
	CacheManager    *manager.Manager
	Logger          *logging.ChanneledLogger
	PerfTracker     *performance.Tracker
	Dispatcher      tracking.Dispatcher
	LiveBroadcaster *messaging.LiveBroadcaster
}

// NewContainer creates and wires all singleton services
func NewContainer(tenantManager *tenant.Manager, logger *logging.ChanneledLogger, perfTracker *performance.Tracker, dispatcher tracking.Dispatcher) *Container {
	sessionService := services.NewSessionService(logger, perfTracker)
	cartService := services.NewCartService(logger, perfTracker)
	recoveryService := services.NewRecoveryService(logger, perfTracker, sessionService, dispatcher)

	return &Container{
		SessionService:  sessionService,
		CartService:     cartService,
		IngestService:   services.NewIngestService(logger, perfTracker, sessionService, cartService),
		WebhookService:  services.NewWebhookService(logger, perfTracker, cartService),
		RecoveryService: recoveryService,
		RecoveryWorker:  services.NewRecoveryWorker(recoveryService, tenantManager),
		AuthService:     services.NewAuthService(logger, perfTracker),
		DBService:       services.NewDBService(logger, perfTracker),

		TenantManager:   tenantManager,
		CacheManager:    tenantManager.GetCacheManager(),
		Logger:          logger,
		PerfTracker:     perfTracker,
		Dispatcher:      dispatcher,
		LiveBroadcaster: messaging.NewLiveBroadcaster(tenantManager, logger),
	}
}
