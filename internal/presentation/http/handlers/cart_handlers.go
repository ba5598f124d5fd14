package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/application/services"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// CartHandlers contains all abandoned cart dashboard handlers
type CartHandlers struct {
	cartService *services.CartService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewCartHandlers creates cart handlers with injected dependencies
func NewCartHandlers(cartService *services.CartService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *CartHandlers {
	return &CartHandlers{
		cartService: cartService,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetAbandonedCarts handles GET /api/v1/carts/abandoned
func (h *CartHandlers) GetAbandonedCarts(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("get_abandoned_carts_request", tenantCtx.TenantID)
	defer marker.Complete()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	carts, err := h.cartService.ListAbandonedCarts(tenantCtx, limit, offset)
	if err != nil {
		h.logger.Cart().Error("Abandoned cart listing failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list abandoned carts"})
		return
	}

	// Surface the derived state alongside each row.
	now := time.Now().UTC()
	entries := make([]gin.H, 0, len(carts))
	for _, cart := range carts {
		entries = append(entries, gin.H{
			"cart":  cart,
			"state": cart.StateAsOf(now, config.CartStaleThreshold),
		})
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"carts": entries,
		"count": len(entries),
	})
}

// GetAbandonedCart handles GET /api/v1/carts/abandoned/:checkoutId
func (h *CartHandlers) GetAbandonedCart(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("get_abandoned_cart_request", tenantCtx.TenantID)
	defer marker.Complete()

	checkoutID := c.Param("checkoutId")

	cart, err := h.cartService.GetAbandonedCart(tenantCtx, checkoutID)
	if err != nil {
		marker.SetSuccess(false)
		if errors.Is(err, tracking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cart not found"})
			return
		}
		h.logger.Cart().Error("Abandoned cart lookup failed", "tenantId", tenantCtx.TenantID, "checkoutId", checkoutID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cart"})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"cart":  cart,
		"state": cart.StateAsOf(time.Now().UTC(), config.CartStaleThreshold),
	})
}

// PostMarkRecovered handles POST /api/v1/carts/abandoned/:checkoutId/recovered
func (h *CartHandlers) PostMarkRecovered(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("post_mark_recovered_request", tenantCtx.TenantID)
	defer marker.Complete()

	checkoutID := c.Param("checkoutId")

	cart, err := h.cartService.MarkRecovered(tenantCtx, checkoutID, time.Now().UTC())
	if err != nil {
		marker.SetSuccess(false)
		if errors.Is(err, tracking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cart not found"})
			return
		}
		h.logger.Cart().Error("Manual recovery failed", "tenantId", tenantCtx.TenantID, "checkoutId", checkoutID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark cart recovered"})
		return
	}

	marker.SetSuccess(true)
	h.logger.Cart().Info("Cart marked recovered", "tenantId", tenantCtx.TenantID, "checkoutId", checkoutID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cart":    cart,
		"state":   cart.State(),
	})
}
