package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/events"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

func newIngestFixture(t *testing.T) (*IngestService, *tenant.Context) {
	t.Helper()

	tenantCtx := newTestTenantContext(t)
	logger := tenantCtx.Logger
	perfTracker := performance.NewTracker(logger)

	sessions := NewSessionService(logger, perfTracker)
	carts := NewCartService(logger, perfTracker)
	return NewIngestService(logger, perfTracker, sessions, carts), tenantCtx
}

func TestProcessBeaconValidation(t *testing.T) {
	ingest, tenantCtx := newIngestFixture(t)
	now := time.Now().UTC()

	cases := []struct {
		name    string
		payload events.BeaconPayload
	}{
		{"missing session", events.BeaconPayload{TenantID: "test-tenant", Events: []events.BeaconEvent{{Type: events.EventPageView}}}},
		{"missing tenant", events.BeaconPayload{SessionID: "tok-1", Events: []events.BeaconEvent{{Type: events.EventPageView}}}},
		{"tenant mismatch", events.BeaconPayload{SessionID: "tok-1", TenantID: "other-tenant", Events: []events.BeaconEvent{{Type: events.EventPageView}}}},
		{"no events", events.BeaconPayload{SessionID: "tok-1", TenantID: "test-tenant"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ingest.ProcessBeacon(tenantCtx, &tc.payload, now)
			require.ErrorIs(t, err, tracking.ErrValidation)
		})
	}
}

func TestProcessBeaconTouchesSession(t *testing.T) {
	ingest, tenantCtx := newIngestFixture(t)
	now := time.Now().UTC()

	result, err := ingest.ProcessBeacon(tenantCtx, &events.BeaconPayload{
		SessionID: "tok-1",
		TenantID:  "test-tenant",
		Device:    "mobile",
		Events: []events.BeaconEvent{
			{Type: events.EventPageView},
			{Type: events.EventHeartbeat},
		},
	}, now)
	require.NoError(t, err)
	require.Equal(t, 2, result.Events)
	require.Zero(t, result.Snapshots)

	session, err := tenantCtx.SessionRepo().FindByID(result.SessionID)
	require.NoError(t, err)
	require.Equal(t, "tok-1", session.SessionToken)
	require.Equal(t, "mobile", session.Device)
}

func TestProcessBeaconRecordsCartSnapshots(t *testing.T) {
	ingest, tenantCtx := newIngestFixture(t)
	now := time.Now().UTC()
	total := decimal.RequireFromString("79.98")

	result, err := ingest.ProcessBeacon(tenantCtx, &events.BeaconPayload{
		SessionID: "tok-1",
		TenantID:  "test-tenant",
		Events: []events.BeaconEvent{
			{Type: events.EventPageView},
			{
				Type:       events.EventCartAdd,
				Items:      []tracking.LineItem{{ProductID: "p1", Title: "Widget", Quantity: 2, UnitPrice: decimal.RequireFromString("39.99")}},
				TotalValue: &total,
				ItemsCount: 2,
			},
		},
	}, now)
	require.NoError(t, err)
	require.Equal(t, 1, result.Snapshots)

	snapshots, err := tenantCtx.SnapshotRepo().FindBySessionID(result.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, tracking.ActionAdd, snapshots[0].Action)

	session, err := tenantCtx.SessionRepo().FindByID(result.SessionID)
	require.NoError(t, err)
	require.True(t, session.PeakValue.Equal(total))
	require.Equal(t, 2, session.PeakItems)
}

func TestProcessBeaconEnrichesAbandonedCart(t *testing.T) {
	ingest, tenantCtx := newIngestFixture(t)
	now := time.Now().UTC()
	total := decimal.RequireFromString("25.00")

	_, err := ingest.ProcessBeacon(tenantCtx, &events.BeaconPayload{
		SessionID: "tok-1",
		TenantID:  "test-tenant",
		Events: []events.BeaconEvent{
			{
				Type:       events.EventCheckoutStart,
				CheckoutID: "chk-1",
				Email:      "buyer@example.com",
				TotalValue: &total,
				ItemsCount: 1,
				Items:      []tracking.LineItem{{ProductID: "p1", Title: "Widget", Quantity: 1, UnitPrice: total}},
			},
		},
	}, now)
	require.NoError(t, err)

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.NotNil(t, cart)
	require.Equal(t, "buyer@example.com", cart.Email)
	require.Equal(t, "beacon", cart.Source)
	require.True(t, cart.TotalValue.Equal(total))
	require.NotNil(t, cart.LastEnrichedAt)
}

func TestProcessBeaconWithoutEmailWritesPlaceholder(t *testing.T) {
	ingest, tenantCtx := newIngestFixture(t)
	now := time.Now().UTC()
	total := decimal.RequireFromString("25.00")

	_, err := ingest.ProcessBeacon(tenantCtx, &events.BeaconPayload{
		SessionID: "tok-1",
		TenantID:  "test-tenant",
		Events: []events.BeaconEvent{
			{
				Type:       events.EventCheckoutStart,
				CheckoutID: "chk-1",
				TotalValue: &total,
				ItemsCount: 1,
			},
		},
	}, now)
	require.NoError(t, err)

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.Equal(t, config.PlaceholderEmail, cart.Email)
	require.False(t, cart.HasRealEmail(config.PlaceholderEmail))

	// A later beacon with a real address replaces the placeholder.
	_, err = ingest.ProcessBeacon(tenantCtx, &events.BeaconPayload{
		SessionID: "tok-1",
		TenantID:  "test-tenant",
		Events: []events.BeaconEvent{
			{
				Type:       events.EventCheckoutStart,
				CheckoutID: "chk-1",
				Email:      "buyer@example.com",
				TotalValue: &total,
			},
		},
	}, now.Add(time.Minute))
	require.NoError(t, err)

	cart, err = tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.Equal(t, "buyer@example.com", cart.Email)
}

func TestProcessBeaconIdentifiesVisitor(t *testing.T) {
	ingest, tenantCtx := newIngestFixture(t)
	now := time.Now().UTC()

	result, err := ingest.ProcessBeacon(tenantCtx, &events.BeaconPayload{
		SessionID:    "tok-1",
		TenantID:     "test-tenant",
		VisitorToken: "vtok-1",
		Events:       []events.BeaconEvent{{Type: events.EventPageView}},
	}, now)
	require.NoError(t, err)

	session, err := tenantCtx.SessionRepo().FindByID(result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session.VisitorID)

	visitor, err := tenantCtx.VisitorRepo().FindByToken("vtok-1")
	require.NoError(t, err)
	require.NotNil(t, visitor)
	require.Equal(t, visitor.ID, *session.VisitorID)
}

func TestProcessEnd(t *testing.T) {
	ingest, tenantCtx := newIngestFixture(t)
	now := time.Now().UTC()

	result, err := ingest.ProcessBeacon(tenantCtx, &events.BeaconPayload{
		SessionID: "tok-1",
		TenantID:  "test-tenant",
		Events:    []events.BeaconEvent{{Type: events.EventPageView}},
	}, now)
	require.NoError(t, err)

	require.NoError(t, ingest.ProcessEnd(tenantCtx, "tok-1", now.Add(time.Minute)))

	session, err := tenantCtx.SessionRepo().FindByID(result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session.EndedAt)

	// Unknown tokens are swallowed; unload beacons fire blind.
	require.NoError(t, ingest.ProcessEnd(tenantCtx, "tok-unknown", now))
}
