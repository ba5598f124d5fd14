// Package services provides application-level orchestration services
package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/events"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
)

// WebhookService verifies and applies platform checkout webhooks.
type WebhookService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	cartService *CartService
}

// NewWebhookService creates a new webhook service
func NewWebhookService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker, cartService *CartService) *WebhookService {
	return &WebhookService{
		logger:      logger,
		perfTracker: perfTracker,
		cartService: cartService,
	}
}

// WebhookResult summarizes what a webhook produced.
type WebhookResult struct {
	CheckoutID string             `json:"checkoutId"`
	State      tracking.CartState `json:"state"`
}

// Process verifies the HMAC signature over the raw body, parses the checkout
// payload, and routes it: completion notifications mark the cart recovered,
// everything else upserts. Replaying an identical payload converges to the
// same row.
func (w *WebhookService) Process(tenantCtx *tenant.Context, body []byte, signature, remoteAddr string, now time.Time) (*WebhookResult, error) {
	marker := w.perfTracker.StartOperation("webhook_process", tenantCtx.TenantID)
	defer marker.Complete()

	if !security.VerifyWebhookSignature(body, signature, tenantCtx.Config.WebhookSecret) {
		w.logger.LogSecurityEvent("webhook_signature_mismatch", tenantCtx.TenantID, remoteAddr, nil)
		err := fmt.Errorf("%w: webhook signature mismatch", tracking.ErrSignature)
		marker.SetError(err)
		return nil, err
	}

	var payload events.CheckoutWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		err = fmt.Errorf("%w: malformed webhook body", tracking.ErrValidation)
		marker.SetError(err)
		return nil, err
	}

	checkoutID := payload.Token
	if checkoutID == "" && payload.ID != 0 {
		checkoutID = strconv.FormatInt(payload.ID, 10)
	}
	if checkoutID == "" {
		err := fmt.Errorf("%w: webhook missing checkout identifier", tracking.ErrValidation)
		marker.SetError(err)
		return nil, err
	}

	if payload.IsCompleted() {
		cart, err := w.cartService.MarkRecovered(tenantCtx, checkoutID, now)
		if err != nil {
			if isNotFound(err) {
				// Completion for a checkout this tenant never tracked.
				w.logger.Cart().Info("Completion webhook for untracked checkout",
					"tenantId", tenantCtx.TenantID, "checkoutId", checkoutID)
				marker.SetSuccess(true)
				return &WebhookResult{CheckoutID: checkoutID, State: tracking.CartRecovered}, nil
			}
			marker.SetError(err)
			return nil, err
		}
		marker.SetSuccess(true)
		return &WebhookResult{CheckoutID: checkoutID, State: cart.State()}, nil
	}

	patch, err := w.patchFromWebhook(&payload, now)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	cart, err := w.cartService.UpsertAbandonedCart(tenantCtx, checkoutID, patch, "webhook", now)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	marker.SetSuccess(true)
	return &WebhookResult{CheckoutID: checkoutID, State: cart.State()}, nil
}

// patchFromWebhook converts the platform payload into a cart patch.
func (w *WebhookService) patchFromWebhook(payload *events.CheckoutWebhook, now time.Time) (tracking.CartPatch, error) {
	patch := tracking.CartPatch{
		Email: &payload.Email,
	}
	if payload.AbandonedURL != "" {
		patch.CartURL = &payload.AbandonedURL
	}
	if payload.Currency != "" {
		patch.Currency = &payload.Currency
	}

	if payload.TotalPrice != "" {
		total, err := decimal.NewFromString(payload.TotalPrice)
		if err != nil {
			return patch, fmt.Errorf("%w: bad total_price %q", tracking.ErrValidation, payload.TotalPrice)
		}
		patch.TotalValue = &total
	}

	items := make([]tracking.LineItem, 0, len(payload.LineItems))
	count := 0
	for _, line := range payload.LineItems {
		price, err := decimal.NewFromString(line.Price)
		if err != nil {
			return patch, fmt.Errorf("%w: bad line item price %q", tracking.ErrValidation, line.Price)
		}
		items = append(items, tracking.LineItem{
			ProductID: strconv.FormatInt(line.ProductID, 10),
			Title:     line.Title,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
		count += line.Quantity
	}
	patch.Items = items
	patch.ItemsCount = &count

	return patch, nil
}
