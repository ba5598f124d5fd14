// Package services provides application-level orchestration services
package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

// upsertRetryLimit bounds the insert-conflict-merge loop.
const upsertRetryLimit = 3

// CartService handles the append-only snapshot log, session peaks, and the
// abandoned cart upsert.
type CartService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewCartService creates a new cart service
func NewCartService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *CartService {
	return &CartService{
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// RecordSnapshot appends a cart snapshot for a session and raises the
// session's cached peaks when exceeded. Value and item peaks move
// independently, so the maxima are order-independent.
func (c *CartService) RecordSnapshot(tenantCtx *tenant.Context, sessionID string, items []tracking.LineItem, total decimal.Decimal, itemsCount int, action tracking.SnapshotAction, at time.Time) (string, error) {
	if !tracking.ValidSnapshotAction(action) {
		return "", fmt.Errorf("%w: unknown snapshot action %q", tracking.ErrValidation, action)
	}

	marker := c.perfTracker.StartOperation("cart_record_snapshot", tenantCtx.TenantID)
	defer marker.Complete()

	sessionRepo := tenantCtx.SessionRepo()
	session, err := sessionRepo.FindByID(sessionID)
	if err != nil {
		marker.SetError(err)
		return "", err
	}
	if session == nil {
		err = fmt.Errorf("%w: session %s", tracking.ErrNotFound, sessionID)
		marker.SetError(err)
		return "", err
	}

	snapshot := &tracking.CartSnapshot{
		ID:         security.GenerateULID(),
		SessionID:  sessionID,
		Items:      items,
		TotalValue: total,
		ItemsCount: itemsCount,
		Action:     action,
		TakenAt:    at,
	}

	if err := tenantCtx.SnapshotRepo().Store(snapshot); err != nil {
		marker.SetError(err)
		return "", err
	}

	changed := false
	if total.GreaterThan(session.PeakValue) {
		session.PeakValue = total
		changed = true
	}
	if itemsCount > session.PeakItems {
		session.PeakItems = itemsCount
		changed = true
	}
	if changed {
		if err := sessionRepo.Update(session); err != nil {
			marker.SetError(err)
			return "", err
		}
	}

	marker.SetSuccess(true)
	return snapshot.ID, nil
}

// UpsertAbandonedCart creates or enriches the cart for a checkout id. A
// concurrent insert loses the UNIQUE race and retries as a merge-update, so
// the outcome is one row regardless of arrival order.
func (c *CartService) UpsertAbandonedCart(tenantCtx *tenant.Context, checkoutID string, patch tracking.CartPatch, source string, now time.Time) (*tracking.AbandonedCart, error) {
	if checkoutID == "" {
		return nil, fmt.Errorf("%w: checkoutId is required", tracking.ErrValidation)
	}

	marker := c.perfTracker.StartOperation("cart_upsert", tenantCtx.TenantID)
	defer marker.Complete()

	repo := tenantCtx.CartRepo()

	for attempt := 0; attempt < upsertRetryLimit; attempt++ {
		existing, err := repo.FindByCheckoutID(checkoutID)
		if err != nil {
			marker.SetError(err)
			return nil, err
		}

		if existing != nil {
			existing.Merge(patch, config.PlaceholderEmail, now)
			if err := repo.Update(existing); err != nil {
				marker.SetError(err)
				return nil, err
			}
			marker.SetSuccess(true)
			return existing, nil
		}

		cart := &tracking.AbandonedCart{
			ID:         security.GenerateULID(),
			CheckoutID: checkoutID,
			Items:      []tracking.LineItem{},
			TotalValue: decimal.Zero,
			Source:     source,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		cart.Merge(patch, config.PlaceholderEmail, now)

		err = repo.Store(cart)
		if err == nil {
			marker.SetSuccess(true)
			return cart, nil
		}
		if !database.IsUniqueConstraintError(err) {
			marker.SetError(err)
			return nil, err
		}
		// Lost the insert race; loop re-reads and merges instead.
	}

	err := fmt.Errorf("cart upsert for checkout %s did not converge", checkoutID)
	marker.SetError(err)
	return nil, err
}

// MarkRecovered flips the cart to recovered. The transition is one-way:
// marking an already-recovered cart is a no-op.
func (c *CartService) MarkRecovered(tenantCtx *tenant.Context, checkoutID string, now time.Time) (*tracking.AbandonedCart, error) {
	repo := tenantCtx.CartRepo()

	existing, err := repo.FindByCheckoutID(checkoutID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: checkout %s", tracking.ErrNotFound, checkoutID)
	}

	flipped, err := repo.MarkRecovered(checkoutID, now)
	if err != nil {
		return nil, err
	}
	if flipped {
		c.logger.Cart().Info("Cart recovered",
			"tenantId", tenantCtx.TenantID, "checkoutId", checkoutID)
	}

	return repo.FindByCheckoutID(checkoutID)
}

// GetAbandonedCart fetches one cart by checkout id.
func (c *CartService) GetAbandonedCart(tenantCtx *tenant.Context, checkoutID string) (*tracking.AbandonedCart, error) {
	cart, err := tenantCtx.CartRepo().FindByCheckoutID(checkoutID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("%w: checkout %s", tracking.ErrNotFound, checkoutID)
	}
	return cart, nil
}

// ListAbandonedCarts returns carts ordered by recency, paginated.
func (c *CartService) ListAbandonedCarts(tenantCtx *tenant.Context, limit, offset int) ([]*tracking.AbandonedCart, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return tenantCtx.CartRepo().FindAll(limit, offset)
}
