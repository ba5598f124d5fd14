// Package services provides application-level orchestration services
package services

import (
	"fmt"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/events"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

// IngestService normalizes beacon batches into liveness pings and cart
// updates, then drives the session and cart services.
type IngestService struct {
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
	sessionService *SessionService
	cartService    *CartService
}

// NewIngestService creates a new ingest service
func NewIngestService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker, sessionService *SessionService, cartService *CartService) *IngestService {
	return &IngestService{
		logger:         logger,
		perfTracker:    perfTracker,
		sessionService: sessionService,
		cartService:    cartService,
	}
}

// BeaconResult summarizes what a beacon batch produced.
type BeaconResult struct {
	SessionID string `json:"sessionId"`
	Events    int    `json:"events"`
	Snapshots int    `json:"snapshots"`
}

// ProcessBeacon validates and applies a tracking beacon. Every event in the
// batch counts as a liveness ping; cart-type events additionally append
// snapshots and enrich the abandoned cart for their checkout.
func (i *IngestService) ProcessBeacon(tenantCtx *tenant.Context, payload *events.BeaconPayload, at time.Time) (*BeaconResult, error) {
	if payload.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", tracking.ErrValidation)
	}
	if payload.TenantID == "" {
		return nil, fmt.Errorf("%w: tenantId is required", tracking.ErrValidation)
	}
	if payload.TenantID != tenantCtx.TenantID {
		return nil, fmt.Errorf("%w: tenantId does not match request tenant", tracking.ErrValidation)
	}
	if len(payload.Events) == 0 {
		return nil, fmt.Errorf("%w: events must not be empty", tracking.ErrValidation)
	}

	marker := i.perfTracker.StartOperation("ingest_beacon", tenantCtx.TenantID)
	defer marker.Complete()
	marker.SetMetadata("events", len(payload.Events))

	ping, updates := payload.Normalize(at)

	sessionID, err := i.sessionService.Touch(tenantCtx, ping.SessionToken, ping.Meta, ping.At)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	if payload.VisitorToken != "" {
		if _, err := i.sessionService.Identify(tenantCtx, sessionID, payload.VisitorToken, "", at); err != nil {
			i.logger.Ingest().Warn("Beacon identify failed",
				"tenantId", tenantCtx.TenantID, "sessionId", sessionID, "error", err.Error())
		}
	}

	result := &BeaconResult{SessionID: sessionID, Events: len(payload.Events)}

	for idx := range updates {
		update := &updates[idx]

		if _, err := i.cartService.RecordSnapshot(tenantCtx, sessionID, update.Items, update.TotalValue, update.ItemsCount, update.Action, update.At); err != nil {
			marker.SetError(err)
			return nil, err
		}
		result.Snapshots++

		if update.CheckoutID != "" {
			if err := i.enrichAbandonedCart(tenantCtx, update, at); err != nil {
				marker.SetError(err)
				return nil, err
			}
		}
	}

	marker.SetSuccess(true)
	return result, nil
}

// enrichAbandonedCart folds a normalized cart update into the abandoned cart
// row for its checkout. Beacon data merges additively and can never clobber a
// stored real email; updates without an address write the platform
// placeholder, which only ever fills an empty slot.
func (i *IngestService) enrichAbandonedCart(tenantCtx *tenant.Context, update *events.CartUpdateEvent, at time.Time) error {
	enrichedAt := at
	total := update.TotalValue
	email := update.Email
	if email == "" {
		email = config.PlaceholderEmail
	}

	patch := tracking.CartPatch{
		Email:          &email,
		TotalValue:     &total,
		Items:          update.Items,
		ItemsCount:     &update.ItemsCount,
		LastEnrichedAt: &enrichedAt,
	}
	if update.CartURL != "" {
		patch.CartURL = &update.CartURL
	}

	_, err := i.cartService.UpsertAbandonedCart(tenantCtx, update.CheckoutID, patch, "beacon", at)
	return err
}

// ProcessEnd applies an explicit end-of-session beacon (sendBeacon on
// unload). Unknown tokens are ignored; the browser fires these blind.
func (i *IngestService) ProcessEnd(tenantCtx *tenant.Context, sessionToken string, at time.Time) error {
	if sessionToken == "" {
		return fmt.Errorf("%w: sessionId is required", tracking.ErrValidation)
	}

	err := i.sessionService.MarkEndedByToken(tenantCtx, sessionToken, at)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}
