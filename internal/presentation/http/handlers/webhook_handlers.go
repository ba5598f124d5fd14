package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/application/services"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// WebhookHandlers contains the platform checkout webhook handlers
type WebhookHandlers struct {
	webhookService *services.WebhookService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewWebhookHandlers creates webhook handlers with injected dependencies
func NewWebhookHandlers(webhookService *services.WebhookService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *WebhookHandlers {
	return &WebhookHandlers{
		webhookService: webhookService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// PostCheckoutWebhook handles POST /api/v1/webhooks/cart - signed checkout
// updates from the commerce platform. The raw body is needed for signature
// verification, so binding happens inside the service.
func (h *WebhookHandlers) PostCheckoutWebhook(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	start := time.Now()
	marker := h.perfTracker.StartOperation("post_checkout_webhook_request", tenantCtx.TenantID)
	defer marker.Complete()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")

	result, err := h.webhookService.Process(tenantCtx, body, signature, c.ClientIP(), time.Now().UTC())
	if err != nil {
		marker.SetSuccess(false)
		switch {
		case errors.Is(err, tracking.ErrSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
		case errors.Is(err, tracking.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Cart().Error("Webhook processing failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process webhook"})
		}
		return
	}

	marker.SetSuccess(true)
	h.logger.Cart().Info("Webhook processed", "tenantId", tenantCtx.TenantID, "checkoutId", result.CheckoutID, "state", result.State, "duration", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"checkoutId": result.CheckoutID,
		"state":      result.State,
	})
}
