package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestUpsertCreatesThenEnriches(t *testing.T) {
	_, carts, tenantCtx := newTestServices(t)
	now := time.Now().UTC()

	created, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", tracking.CartPatch{
		Email:      strP(config.PlaceholderEmail),
		TotalValue: decPtr("19.99"),
		Currency:   strP("USD"),
	}, "webhook", now)
	require.NoError(t, err)
	require.Equal(t, config.PlaceholderEmail, created.Email)

	enriched, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", tracking.CartPatch{
		Email: strP("buyer@example.com"),
	}, "beacon", now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, created.ID, enriched.ID)
	require.Equal(t, "buyer@example.com", enriched.Email)
	require.True(t, enriched.TotalValue.Equal(decimal.RequireFromString("19.99")))

	all, err := carts.ListAbandonedCarts(tenantCtx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestUpsertIsIdempotent(t *testing.T) {
	_, carts, tenantCtx := newTestServices(t)
	now := time.Now().UTC()

	patch := tracking.CartPatch{
		Email:      strP("buyer@example.com"),
		TotalValue: decPtr("50.00"),
		Items:      []tracking.LineItem{{ProductID: "p1", Title: "Widget", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00")}},
		ItemsCount: intP(1),
	}

	first, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", patch, "webhook", now)
	require.NoError(t, err)
	second, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", patch, "webhook", now)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Email, second.Email)
	require.True(t, first.TotalValue.Equal(second.TotalValue))

	all, err := carts.ListAbandonedCarts(tenantCtx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestUpsertEmailNeverReverts(t *testing.T) {
	_, carts, tenantCtx := newTestServices(t)
	now := time.Now().UTC()

	_, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", tracking.CartPatch{
		Email: strP("buyer@example.com"),
	}, "beacon", now)
	require.NoError(t, err)

	// A later placeholder webhook must not clobber the real address.
	cart, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", tracking.CartPatch{
		Email: strP(config.PlaceholderEmail),
	}, "webhook", now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "buyer@example.com", cart.Email)
}

func TestUpsertRequiresCheckoutID(t *testing.T) {
	_, carts, tenantCtx := newTestServices(t)

	_, err := carts.UpsertAbandonedCart(tenantCtx, "", tracking.CartPatch{}, "webhook", time.Now().UTC())
	require.ErrorIs(t, err, tracking.ErrValidation)
}

func TestRecordSnapshotPeaksAreOrderIndependent(t *testing.T) {
	sessions, carts, tenantCtx := newTestServices(t)
	now := time.Now().UTC()

	id, err := sessions.Touch(tenantCtx, "tok-1", tracking.SessionMeta{}, now)
	require.NoError(t, err)

	totals := []string{"10", "35", "20", "50", "5"}
	counts := []int{1, 3, 2, 4, 1}
	for i, total := range totals {
		_, err := carts.RecordSnapshot(tenantCtx, id, nil, decimal.RequireFromString(total), counts[i], tracking.ActionUpdate, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	session, err := tenantCtx.SessionRepo().FindByID(id)
	require.NoError(t, err)
	require.True(t, session.PeakValue.Equal(decimal.RequireFromString("50")))
	require.Equal(t, 4, session.PeakItems)

	snapshots, err := tenantCtx.SnapshotRepo().FindBySessionID(id, 10)
	require.NoError(t, err)
	require.Len(t, snapshots, 5)
}

func TestRecordSnapshotRejectsUnknownAction(t *testing.T) {
	sessions, carts, tenantCtx := newTestServices(t)
	now := time.Now().UTC()

	id, err := sessions.Touch(tenantCtx, "tok-1", tracking.SessionMeta{}, now)
	require.NoError(t, err)

	_, err = carts.RecordSnapshot(tenantCtx, id, nil, decimal.Zero, 0, tracking.SnapshotAction("browse"), now)
	require.ErrorIs(t, err, tracking.ErrValidation)
}

func TestRecordSnapshotUnknownSession(t *testing.T) {
	_, carts, tenantCtx := newTestServices(t)

	_, err := carts.RecordSnapshot(tenantCtx, "no-such-session", nil, decimal.Zero, 0, tracking.ActionAdd, time.Now().UTC())
	require.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestMarkRecoveredIsOneWay(t *testing.T) {
	_, carts, tenantCtx := newTestServices(t)
	now := time.Now().UTC()

	_, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", tracking.CartPatch{Email: strP("buyer@example.com")}, "webhook", now)
	require.NoError(t, err)

	cart, err := carts.MarkRecovered(tenantCtx, "chk-1", now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, tracking.CartRecovered, cart.State())

	// Second completion is a no-op.
	cart, err = carts.MarkRecovered(tenantCtx, "chk-1", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, tracking.CartRecovered, cart.State())
}

func TestMarkRecoveredUnknownCheckout(t *testing.T) {
	_, carts, tenantCtx := newTestServices(t)

	_, err := carts.MarkRecovered(tenantCtx, "chk-missing", time.Now().UTC())
	require.ErrorIs(t, err, tracking.ErrNotFound)
}

func strP(s string) *string { return &s }
func intP(i int) *int       { return &i }
