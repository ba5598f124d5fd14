package tracking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const placeholder = "pending@tracking.com"

func strPtr(s string) *string { return &s }

func TestSessionIsLive(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	window := 180 * time.Second

	session := &Session{LastActiveAt: now.Add(-30 * time.Second)}
	require.True(t, session.IsLive(now, window))

	session.LastActiveAt = now.Add(-181 * time.Second)
	require.False(t, session.IsLive(now, window))

	// An end marker trumps recency.
	ended := now.Add(-5 * time.Second)
	session.LastActiveAt = now.Add(-1 * time.Second)
	session.EndedAt = &ended
	require.False(t, session.IsLive(now, window))
}

func TestMergeRealEmailBeatsPlaceholder(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	cart := &AbandonedCart{CheckoutID: "chk-1", Email: placeholder}
	cart.Merge(CartPatch{Email: strPtr("buyer@example.com")}, placeholder, now)
	require.Equal(t, "buyer@example.com", cart.Email)

	// A later placeholder write never reverts a real address.
	cart.Merge(CartPatch{Email: strPtr(placeholder)}, placeholder, now.Add(time.Minute))
	require.Equal(t, "buyer@example.com", cart.Email)

	// Neither does an empty one.
	cart.Merge(CartPatch{Email: strPtr("")}, placeholder, now.Add(2*time.Minute))
	require.Equal(t, "buyer@example.com", cart.Email)
}

func TestMergeRealEmailLastWriterWins(t *testing.T) {
	now := time.Now().UTC()

	cart := &AbandonedCart{CheckoutID: "chk-2", Email: "first@example.com"}
	cart.Merge(CartPatch{Email: strPtr("second@example.com")}, placeholder, now)
	require.Equal(t, "second@example.com", cart.Email)
}

func TestMergePlaceholderFillsEmpty(t *testing.T) {
	now := time.Now().UTC()

	cart := &AbandonedCart{CheckoutID: "chk-3"}
	cart.Merge(CartPatch{Email: strPtr(placeholder)}, placeholder, now)
	require.Equal(t, placeholder, cart.Email)
}

func TestMergeNilFieldsLeaveStoredValues(t *testing.T) {
	now := time.Now().UTC()
	total := decimal.RequireFromString("42.50")

	cart := &AbandonedCart{
		CheckoutID: "chk-4",
		CartURL:    "https://shop.example/cart/abc",
		TotalValue: total,
		Currency:   "USD",
		Items:      []LineItem{{ProductID: "p1", Title: "Widget", Quantity: 2}},
		ItemsCount: 2,
		Source:     "webhook",
	}

	cart.Merge(CartPatch{}, placeholder, now)

	require.Equal(t, "https://shop.example/cart/abc", cart.CartURL)
	require.True(t, cart.TotalValue.Equal(total))
	require.Equal(t, "USD", cart.Currency)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 2, cart.ItemsCount)
	require.Equal(t, "webhook", cart.Source)
	require.Equal(t, now, cart.UpdatedAt)
}

func TestMergeSourceKeepsFirstWriter(t *testing.T) {
	now := time.Now().UTC()

	cart := &AbandonedCart{CheckoutID: "chk-5", Source: "webhook"}
	cart.Merge(CartPatch{Source: strPtr("beacon")}, placeholder, now)
	require.Equal(t, "webhook", cart.Source)
}

func TestCartStateDerivation(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	threshold := time.Hour

	cart := &AbandonedCart{CheckoutID: "chk-6", UpdatedAt: now.Add(-10 * time.Minute)}
	require.Equal(t, CartFresh, cart.State())
	require.Equal(t, CartFresh, cart.StateAsOf(now, threshold))

	cart.UpdatedAt = now.Add(-2 * time.Hour)
	require.Equal(t, CartStale, cart.StateAsOf(now, threshold))

	cart.RecoverySent = true
	require.Equal(t, CartRecoverySent, cart.StateAsOf(now, threshold))

	expired := now
	cart.ExpiredAt = &expired
	require.Equal(t, CartExpired, cart.StateAsOf(now, threshold))

	// Recovered dominates everything else.
	cart.IsRecovered = true
	require.Equal(t, CartRecovered, cart.StateAsOf(now, threshold))
}

func TestHasRealEmail(t *testing.T) {
	cart := &AbandonedCart{}
	require.False(t, cart.HasRealEmail(placeholder))

	cart.Email = placeholder
	require.False(t, cart.HasRealEmail(placeholder))

	cart.Email = "buyer@example.com"
	require.True(t, cart.HasRealEmail(placeholder))
}

func TestValidSnapshotAction(t *testing.T) {
	require.True(t, ValidSnapshotAction(ActionAdd))
	require.True(t, ValidSnapshotAction(ActionCheckoutStart))
	require.False(t, ValidSnapshotAction(SnapshotAction("browse")))
}
