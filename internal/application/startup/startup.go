// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/application/container"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/caching/cleanup"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Initialize performs the complete multi-tenant startup sequence
func Initialize() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	// Step 1: Initialize channeled logging
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	perfTracker := performance.NewTracker(logger)

	logger.Startup().Info("Initializing CartLoop tracker")

	// Step 2: Load tenant registry to discover all tenants
	registry, err := tenant.LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("failed to load tenant registry: %w", err)
	}

	if len(registry.Tenants) == 0 {
		logger.Startup().Info("No tenants found in registry, creating default tenant")
		if err := tenant.RegisterTenant("default"); err != nil {
			return fmt.Errorf("failed to register default tenant: %w", err)
		}
		registry, err = tenant.LoadTenantRegistry()
		if err != nil {
			return fmt.Errorf("failed to reload registry: %w", err)
		}
	}

	logger.Startup().Info("Tenant registry loaded", "tenants", len(registry.Tenants))

	// Step 3: Initialize tenant system and pre-activate tenants
	tenantManager, err := tenant.NewManager(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tenant manager: %w", err)
	}

	if err := tenantManager.PreActivateAllTenants(); err != nil {
		return fmt.Errorf("tenant pre-activation failed: %w", err)
	}

	activeCount := tenantManager.GetActiveTenantCount()
	logger.Startup().Info("Tenant pre-activation complete", "activeTenants", activeCount)

	// Step 4: Initialize the notification dispatcher
	dispatcher := buildDispatcher(logger)

	// Step 5: Create dependency injection container
	appContainer := container.NewContainer(tenantManager, logger, perfTracker, dispatcher)
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 6: Start background workers
	cleanupWorker := cleanup.NewWorker(tenantManager.GetCacheManager(), logger)
	go cleanupWorker.Start(ctx)
	go appContainer.RecoveryWorker.Start(ctx)
	go appContainer.LiveBroadcaster.Run()

	logger.Startup().Info("Background workers started",
		"cleanupInterval", config.CleanupInterval,
		"recoverySweepEvery", config.RecoverySweepEvery)

	// Step 7: Start HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"activeTenants", activeCount,
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown")

	shutdownStart := time.Now()

	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	if err := tenantManager.Close(); err != nil {
		logger.Shutdown().Error("Error closing tenant manager", "error", err.Error())
	} else {
		logger.Shutdown().Info("Tenant manager closed successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return logger.Close()
}

// buildDispatcher wires the Resend email dispatcher, falling back to a
// log-only dispatcher when no API key is configured so local development
// works without credentials.
func buildDispatcher(logger *logging.ChanneledLogger) tracking.Dispatcher {
	client, err := email.NewClient()
	if err != nil {
		logger.Startup().Warn("Email dispatcher unavailable, recovery sends will be logged only", "reason", err.Error())
		return &logOnlyDispatcher{logger: logger}
	}
	logger.Startup().Info("Email dispatcher initialized")
	return client
}

// logOnlyDispatcher records dispatches without sending anything.
type logOnlyDispatcher struct {
	logger *logging.ChanneledLogger
}

func (d *logOnlyDispatcher) Send(ctx context.Context, dispatchType tracking.DispatchType, cart *tracking.AbandonedCart) (*tracking.DispatchResult, error) {
	d.logger.Email().Info("Dispatch suppressed (no email credentials)",
		"type", string(dispatchType),
		"checkoutId", cart.CheckoutID,
		"email", cart.Email)
	return &tracking.DispatchResult{MessageID: "suppressed", Accepted: true}, nil
}

// setupLogging configures gin's runtime mode before any engine is created
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
