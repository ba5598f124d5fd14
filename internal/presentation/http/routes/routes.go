// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/cartloop-go/internal/application/container"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSSelector())

	// Initialize handlers
	trackHandlers := handlers.NewTrackHandlers(container.IngestService, container.Logger, container.PerfTracker)
	webhookHandlers := handlers.NewWebhookHandlers(container.WebhookService, container.Logger, container.PerfTracker)
	sessionHandlers := handlers.NewSessionHandlers(container.SessionService, container.Logger, container.PerfTracker)
	cartHandlers := handlers.NewCartHandlers(container.CartService, container.Logger, container.PerfTracker)
	authHandlers := handlers.NewAuthHandlers(container.AuthService, container.Logger, container.PerfTracker)
	dbHandlers := handlers.NewDBHandlers(container.DBService, container.Logger, container.PerfTracker)
	dashboardHandlers := handlers.NewDashboardHandlers(container.LiveBroadcaster, container.Logger)

	// API routes with tenant middleware
	api := r.Group("/api/v1")
	api.Use(middleware.TenantMiddleware(container.TenantManager, container.PerfTracker))
	{
		// Storefront beacon ingest (public, open CORS via the selector)
		api.POST("/track", trackHandlers.PostBeacon)
		api.POST("/track/end", trackHandlers.PostEnd)

		// Platform webhooks (HMAC-signed, verified in the service)
		api.POST("/webhooks/cart", webhookHandlers.PostCheckoutWebhook)

		// Authentication
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandlers.PostLogin)
			auth.GET("/status", authHandlers.GetAuthStatus)
		}

		// Dashboard routes behind admin JWT
		admin := api.Group("")
		admin.Use(authHandlers.AdminMiddleware())
		{
			sessions := admin.Group("/sessions")
			{
				sessions.GET("/live", sessionHandlers.GetLiveSessions)
				sessions.GET("/stream", dashboardHandlers.GetSessionStream)
				sessions.POST("/:id/identify", sessionHandlers.PostIdentify)
				sessions.POST("/:id/end", sessionHandlers.PostEnd)
				sessions.PUT("/:id/flags", sessionHandlers.PutFlags)
			}

			carts := admin.Group("/carts")
			{
				carts.GET("/abandoned", cartHandlers.GetAbandonedCarts)
				carts.GET("/abandoned/:checkoutId", cartHandlers.GetAbandonedCart)
				carts.POST("/abandoned/:checkoutId/recovered", cartHandlers.PostMarkRecovered)
			}

			admin.GET("/db/status", dbHandlers.GetDatabaseStatus)
		}
	}

	return r
}
