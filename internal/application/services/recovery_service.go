// Package services provides application-level orchestration services
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

// RecoveryService runs the periodic sweep that claims stale carts, sends
// recovery notifications, and expires the unrecoverable.
type RecoveryService struct {
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
	sessionService *SessionService
	dispatcher     tracking.Dispatcher
}

// NewRecoveryService creates a new recovery service
func NewRecoveryService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker, sessionService *SessionService, dispatcher tracking.Dispatcher) *RecoveryService {
	return &RecoveryService{
		logger:         logger,
		perfTracker:    perfTracker,
		sessionService: sessionService,
		dispatcher:     dispatcher,
	}
}

// SweepStats summarizes one tenant sweep.
type SweepStats struct {
	Scanned        int
	Dispatched     int
	Skipped        int
	Failed         int
	Expired        int
	SessionsClosed int
}

// SweepTenant runs one recovery pass for a tenant: close idle sessions,
// expire the spent carts, then claim and dispatch the stale ones. Expiry runs
// before dispatch so a cart that burned its budget on earlier sweeps is
// retired rather than racing the dispatch pass inside the same tick. Dispatch
// failures only log; the sweep never aborts on a single cart.
func (r *RecoveryService) SweepTenant(ctx context.Context, tenantCtx *tenant.Context, now time.Time) (*SweepStats, error) {
	marker := r.perfTracker.StartOperation("recovery_sweep", tenantCtx.TenantID)
	defer marker.Complete()

	stats := &SweepStats{}

	closed, err := r.sessionService.CloseIdleSessions(tenantCtx, now)
	if err != nil {
		r.logger.Recovery().Error("Idle session sweep failed",
			"tenantId", tenantCtx.TenantID, "error", err.Error())
	}
	stats.SessionsClosed = closed

	expired, err := r.expireSpent(tenantCtx, now)
	if err != nil {
		r.logger.Recovery().Error("Expiry pass failed",
			"tenantId", tenantCtx.TenantID, "error", err.Error())
	}
	stats.Expired = expired

	repo := tenantCtx.CartRepo()
	cutoff := now.Add(-config.CartStaleThreshold)

	stale, err := repo.FindStale(cutoff, config.RecoveryMaxAttempts)
	if err != nil {
		marker.SetError(err)
		return stats, fmt.Errorf("stale cart scan failed: %w", err)
	}
	stats.Scanned = len(stale)

	for _, cart := range stale {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if !cart.HasRealEmail(config.PlaceholderEmail) {
			r.logger.Recovery().Warn("Stale cart has no reachable email",
				"tenantId", tenantCtx.TenantID, "checkoutId", cart.CheckoutID)
			stats.Skipped++
			continue
		}

		if r.dispatchOne(ctx, tenantCtx, cart, cutoff, now) {
			stats.Dispatched++
		} else {
			stats.Failed++
		}
	}

	marker.SetMetadata("dispatched", stats.Dispatched)
	marker.SetMetadata("expired", stats.Expired)
	marker.SetSuccess(true)
	return stats, nil
}

// dispatchOne claims a single cart and sends its recovery notification. The
// staleness re-check rides inside the claim, so a cart refreshed by a beacon
// after the scan loses the claim and is left alone.
func (r *RecoveryService) dispatchOne(ctx context.Context, tenantCtx *tenant.Context, cart *tracking.AbandonedCart, cutoff, now time.Time) bool {
	repo := tenantCtx.CartRepo()

	claimed, err := repo.ClaimForDispatch(cart.CheckoutID, cutoff, now)
	if err != nil {
		r.logger.Recovery().Error("Cart claim failed",
			"tenantId", tenantCtx.TenantID, "checkoutId", cart.CheckoutID, "error", err.Error())
		return false
	}
	if !claimed {
		// Another worker won, or fresh activity defeated the claim.
		return false
	}

	// Mirror the claim the repository just recorded.
	cart.RecoverySent = true
	cart.RecoveryAttempts++
	attemptAt := now
	cart.LastAttemptAt = &attemptAt

	dispatchType := tracking.DispatchRecoveryEmail
	if config.CouponValuePercent > 0 {
		dispatchType = tracking.DispatchRecoveryCoupon
		if cart.CouponCode == "" {
			cart.CouponCode = generateCouponCode(config.CouponValuePercent)
			cart.CouponValue = config.CouponValuePercent
			expiry := now.Add(config.CouponTTL)
			cart.CouponExpiresAt = &expiry
			if err := repo.SetCoupon(cart.CheckoutID, cart.CouponCode, cart.CouponValue, expiry); err != nil {
				r.logger.Recovery().Error("Coupon persist failed",
					"tenantId", tenantCtx.TenantID, "checkoutId", cart.CheckoutID, "error", err.Error())
			}
		}
	}

	// The notification links back to the storefront when the cart never
	// carried its own resume URL.
	if cart.CartURL == "" {
		cart.CartURL = tenantCtx.Config.StoreURL
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, config.DispatchTimeout)
	defer cancel()

	result, err := r.dispatcherFor(tenantCtx).Send(dispatchCtx, dispatchType, cart)
	if err != nil {
		r.logger.Recovery().Error("Recovery dispatch failed",
			"tenantId", tenantCtx.TenantID, "checkoutId", cart.CheckoutID, "error", err.Error())
		if relErr := repo.ReleaseClaim(cart.CheckoutID); relErr != nil {
			r.logger.Recovery().Error("Claim release failed",
				"tenantId", tenantCtx.TenantID, "checkoutId", cart.CheckoutID, "error", relErr.Error())
		}
		return false
	}

	r.logger.Recovery().Info("Recovery notification sent",
		"tenantId", tenantCtx.TenantID,
		"checkoutId", cart.CheckoutID,
		"messageId", result.MessageID,
		"attempt", cart.RecoveryAttempts)
	return true
}

// dispatcherFor resolves the dispatcher for a tenant. Tenants with their own
// sender credentials in env.json send under those; everyone else shares the
// process-wide sender.
func (r *RecoveryService) dispatcherFor(tenantCtx *tenant.Context) tracking.Dispatcher {
	cd, ok := r.dispatcher.(tracking.CredentialedDispatcher)
	if !ok {
		return r.dispatcher
	}
	return cd.WithSender(tracking.SenderProfile{
		APIKey:    tenantCtx.Config.ResendAPIKey,
		FromEmail: tenantCtx.Config.SenderEmail,
	})
}

// expireSpent marks carts whose retry budget is exhausted or whose long-tail
// window has passed.
func (r *RecoveryService) expireSpent(tenantCtx *tenant.Context, now time.Time) (int, error) {
	repo := tenantCtx.CartRepo()

	candidates, err := repo.FindExpirable(now.Add(-config.RecoveryExpiryWindow), config.RecoveryMaxAttempts)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, cart := range candidates {
		if err := repo.MarkExpired(cart.CheckoutID, now); err != nil {
			r.logger.Recovery().Error("Cart expiry failed",
				"tenantId", tenantCtx.TenantID, "checkoutId", cart.CheckoutID, "error", err.Error())
			continue
		}
		expired++
	}

	if expired > 0 {
		r.logger.Recovery().Info("Expired unrecoverable carts",
			"tenantId", tenantCtx.TenantID, "count", expired)
	}
	return expired, nil
}

// generateCouponCode builds a short human-typable coupon code.
func generateCouponCode(valuePercent int) string {
	id := security.GenerateULID()
	return fmt.Sprintf("LOOP%d-%s", valuePercent, strings.ToUpper(id[len(id)-8:]))
}
