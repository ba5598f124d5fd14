package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
)

func newWebhookFixture(t *testing.T) (*WebhookService, *CartService, *tenant.Context) {
	t.Helper()

	tenantCtx := newTestTenantContext(t)
	logger := tenantCtx.Logger
	perfTracker := performance.NewTracker(logger)

	carts := NewCartService(logger, perfTracker)
	return NewWebhookService(logger, perfTracker, carts), carts, tenantCtx
}

func sign(t *testing.T, tenantCtx *tenant.Context, body []byte) string {
	t.Helper()
	return security.ComputeWebhookSignature(body, tenantCtx.Config.WebhookSecret)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	webhooks, _, tenantCtx := newWebhookFixture(t)

	body := []byte(`{"token":"chk-1","email":"buyer@example.com"}`)

	_, err := webhooks.Process(tenantCtx, body, "bogus-signature", "203.0.113.9", time.Now().UTC())
	require.ErrorIs(t, err, tracking.ErrSignature)

	_, err = webhooks.Process(tenantCtx, body, "", "203.0.113.9", time.Now().UTC())
	require.ErrorIs(t, err, tracking.ErrSignature)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	webhooks, _, tenantCtx := newWebhookFixture(t)

	body := []byte(`{not json`)
	_, err := webhooks.Process(tenantCtx, body, sign(t, tenantCtx, body), "203.0.113.9", time.Now().UTC())
	require.ErrorIs(t, err, tracking.ErrValidation)
}

func TestWebhookRequiresCheckoutIdentifier(t *testing.T) {
	webhooks, _, tenantCtx := newWebhookFixture(t)

	body := []byte(`{"email":"buyer@example.com"}`)
	_, err := webhooks.Process(tenantCtx, body, sign(t, tenantCtx, body), "203.0.113.9", time.Now().UTC())
	require.ErrorIs(t, err, tracking.ErrValidation)
}

func TestWebhookUpsertsCart(t *testing.T) {
	webhooks, _, tenantCtx := newWebhookFixture(t)
	now := time.Now().UTC()

	body := []byte(`{
		"token": "chk-1",
		"email": "buyer@example.com",
		"abandoned_checkout_url": "https://shop.example/recover/chk-1",
		"total_price": "129.95",
		"currency": "USD",
		"line_items": [
			{"product_id": 11, "title": "Widget", "quantity": 2, "price": "39.99"},
			{"product_id": 12, "title": "Gadget", "quantity": 1, "price": "49.97"}
		]
	}`)

	result, err := webhooks.Process(tenantCtx, body, sign(t, tenantCtx, body), "203.0.113.9", now)
	require.NoError(t, err)
	require.Equal(t, "chk-1", result.CheckoutID)
	require.Equal(t, tracking.CartFresh, result.State)

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.Equal(t, "buyer@example.com", cart.Email)
	require.Equal(t, "https://shop.example/recover/chk-1", cart.CartURL)
	require.True(t, cart.TotalValue.Equal(decimal.RequireFromString("129.95")))
	require.Equal(t, "USD", cart.Currency)
	require.Len(t, cart.Items, 2)
	require.Equal(t, 3, cart.ItemsCount)
	require.Equal(t, "webhook", cart.Source)
}

func TestWebhookReplayConverges(t *testing.T) {
	webhooks, carts, tenantCtx := newWebhookFixture(t)
	now := time.Now().UTC()

	body := []byte(`{"token":"chk-1","email":"buyer@example.com","total_price":"10.00"}`)
	signature := sign(t, tenantCtx, body)

	_, err := webhooks.Process(tenantCtx, body, signature, "203.0.113.9", now)
	require.NoError(t, err)
	_, err = webhooks.Process(tenantCtx, body, signature, "203.0.113.9", now.Add(time.Second))
	require.NoError(t, err)

	all, err := carts.ListAbandonedCarts(tenantCtx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestWebhookRejectsBadPrice(t *testing.T) {
	webhooks, _, tenantCtx := newWebhookFixture(t)

	body := []byte(`{"token":"chk-1","total_price":"not-a-number"}`)
	_, err := webhooks.Process(tenantCtx, body, sign(t, tenantCtx, body), "203.0.113.9", time.Now().UTC())
	require.ErrorIs(t, err, tracking.ErrValidation)
}

func TestWebhookCompletionMarksRecovered(t *testing.T) {
	webhooks, carts, tenantCtx := newWebhookFixture(t)
	now := time.Now().UTC()

	_, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", tracking.CartPatch{Email: strP("buyer@example.com")}, "webhook", now.Add(-time.Hour))
	require.NoError(t, err)

	body := []byte(`{"token":"chk-1","completed":true}`)
	result, err := webhooks.Process(tenantCtx, body, sign(t, tenantCtx, body), "203.0.113.9", now)
	require.NoError(t, err)
	require.Equal(t, tracking.CartRecovered, result.State)

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.True(t, cart.IsRecovered)
}

func TestWebhookPaidFinancialStatusCountsAsCompleted(t *testing.T) {
	webhooks, carts, tenantCtx := newWebhookFixture(t)
	now := time.Now().UTC()

	_, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", tracking.CartPatch{}, "webhook", now.Add(-time.Hour))
	require.NoError(t, err)

	body := []byte(`{"token":"chk-1","financial_status":"paid"}`)
	result, err := webhooks.Process(tenantCtx, body, sign(t, tenantCtx, body), "203.0.113.9", now)
	require.NoError(t, err)
	require.Equal(t, tracking.CartRecovered, result.State)
}

func TestWebhookCompletionForUntrackedCheckoutIsNoOp(t *testing.T) {
	webhooks, carts, tenantCtx := newWebhookFixture(t)

	body := []byte(`{"token":"chk-unknown","completed":true}`)
	result, err := webhooks.Process(tenantCtx, body, sign(t, tenantCtx, body), "203.0.113.9", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, tracking.CartRecovered, result.State)

	all, err := carts.ListAbandonedCarts(tenantCtx, 0, 0)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestWebhookNumericIDFallback(t *testing.T) {
	webhooks, _, tenantCtx := newWebhookFixture(t)

	body := []byte(`{"id":987654,"email":"buyer@example.com"}`)
	result, err := webhooks.Process(tenantCtx, body, sign(t, tenantCtx, body), "203.0.113.9", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, "987654", result.CheckoutID)
}
