package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

func newRecoveryFixture(t *testing.T) (*RecoveryService, *CartService, *stubDispatcher, *tenant.Context) {
	t.Helper()

	tenantCtx := newTestTenantContext(t)
	logger := tenantCtx.Logger
	perfTracker := performance.NewTracker(logger)

	sessions := NewSessionService(logger, perfTracker)
	carts := NewCartService(logger, perfTracker)
	dispatcher := &stubDispatcher{}
	recovery := NewRecoveryService(logger, perfTracker, sessions, dispatcher)

	return recovery, carts, dispatcher, tenantCtx
}

func seedStaleCart(t *testing.T, carts *CartService, tenantCtx *tenant.Context, checkoutID, email string, age time.Duration) {
	t.Helper()

	_, err := carts.UpsertAbandonedCart(tenantCtx, checkoutID, tracking.CartPatch{
		Email:   strP(email),
		CartURL: strP("https://shop.example/cart/" + checkoutID),
	}, "webhook", time.Now().UTC().Add(-age))
	require.NoError(t, err)
}

func TestSweepDispatchesStaleCart(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	seedStaleCart(t, carts, tenantCtx, "chk-1", "buyer@example.com", 2*time.Hour)

	stats, err := recovery.SweepTenant(context.Background(), tenantCtx, now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Scanned)
	require.Equal(t, 1, stats.Dispatched)
	require.Equal(t, 1, dispatcher.sendCount())

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.True(t, cart.RecoverySent)
	require.Equal(t, 1, cart.RecoveryAttempts)
	require.NotNil(t, cart.LastAttemptAt)
	require.Equal(t, tracking.CartRecoverySent, cart.State())

	// A coupon is minted on first dispatch.
	require.True(t, strings.HasPrefix(cart.CouponCode, "LOOP"))
	require.Equal(t, config.CouponValuePercent, cart.CouponValue)
	require.NotNil(t, cart.CouponExpiresAt)
}

func TestSweepSkipsPlaceholderEmail(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	seedStaleCart(t, carts, tenantCtx, "chk-1", config.PlaceholderEmail, 2*time.Hour)

	stats, err := recovery.SweepTenant(context.Background(), tenantCtx, now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Scanned)
	require.Equal(t, 1, stats.Skipped)
	require.Zero(t, dispatcher.sendCount())

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.False(t, cart.RecoverySent)
	require.Zero(t, cart.RecoveryAttempts)
}

func TestSweepIgnoresFreshCarts(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	seedStaleCart(t, carts, tenantCtx, "chk-fresh", "buyer@example.com", 10*time.Minute)

	stats, err := recovery.SweepTenant(context.Background(), tenantCtx, now)
	require.NoError(t, err)
	require.Zero(t, stats.Scanned)
	require.Zero(t, dispatcher.sendCount())
}

func TestSweepNeverRedispatches(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	seedStaleCart(t, carts, tenantCtx, "chk-1", "buyer@example.com", 2*time.Hour)

	_, err := recovery.SweepTenant(context.Background(), tenantCtx, now)
	require.NoError(t, err)
	_, err = recovery.SweepTenant(context.Background(), tenantCtx, now.Add(config.RecoverySweepEvery))
	require.NoError(t, err)

	require.Equal(t, 1, dispatcher.sendCount())

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.Equal(t, 1, cart.RecoveryAttempts)
}

func TestSweepReleasesClaimOnDispatchFailure(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	seedStaleCart(t, carts, tenantCtx, "chk-1", "buyer@example.com", 2*time.Hour)
	dispatcher.failures = 1

	stats, err := recovery.SweepTenant(context.Background(), tenantCtx, now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)
	require.Zero(t, dispatcher.sendCount())

	// The claim is released but the attempt is not forgotten.
	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.False(t, cart.RecoverySent)
	require.Equal(t, 1, cart.RecoveryAttempts)

	// The next sweep retries and succeeds.
	stats, err = recovery.SweepTenant(context.Background(), tenantCtx, now.Add(config.RecoverySweepEvery))
	require.NoError(t, err)
	require.Equal(t, 1, stats.Dispatched)
	require.Equal(t, 1, dispatcher.sendCount())

	cart, err = tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.True(t, cart.RecoverySent)
	require.Equal(t, 2, cart.RecoveryAttempts)
}

func TestSweepExpiresSpentCarts(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	seedStaleCart(t, carts, tenantCtx, "chk-1", "buyer@example.com", 2*time.Hour)
	dispatcher.failures = config.RecoveryMaxAttempts

	sweepAt := now
	for i := 0; i < config.RecoveryMaxAttempts; i++ {
		_, err := recovery.SweepTenant(context.Background(), tenantCtx, sweepAt)
		require.NoError(t, err)
		sweepAt = sweepAt.Add(config.RecoverySweepEvery)
	}

	// Budget exhausted: the next sweep expires instead of retrying.
	stats, err := recovery.SweepTenant(context.Background(), tenantCtx, sweepAt)
	require.NoError(t, err)
	require.Zero(t, stats.Scanned)
	require.Equal(t, 1, stats.Expired)
	require.Zero(t, dispatcher.sendCount())

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.Equal(t, tracking.CartExpired, cart.State())
	require.Equal(t, config.RecoveryMaxAttempts, cart.RecoveryAttempts)
}

func TestFinalAttemptSuccessKeepsCartSent(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	seedStaleCart(t, carts, tenantCtx, "chk-1", "buyer@example.com", 2*time.Hour)
	dispatcher.failures = config.RecoveryMaxAttempts - 1

	sweepAt := now
	for i := 0; i < config.RecoveryMaxAttempts; i++ {
		_, err := recovery.SweepTenant(context.Background(), tenantCtx, sweepAt)
		require.NoError(t, err)
		sweepAt = sweepAt.Add(config.RecoverySweepEvery)
	}
	require.Equal(t, 1, dispatcher.sendCount())

	// The budget is spent, but the last attempt was delivered: the cart is
	// waiting on the customer, not expirable.
	stats, err := recovery.SweepTenant(context.Background(), tenantCtx, sweepAt)
	require.NoError(t, err)
	require.Zero(t, stats.Expired)
	require.Zero(t, stats.Scanned)

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.Equal(t, tracking.CartRecoverySent, cart.State())
	require.Equal(t, config.RecoveryMaxAttempts, cart.RecoveryAttempts)
}

func TestSweepUsesTenantSenderProfile(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	tenantCtx.Config.ResendAPIKey = "re_tenant_key"
	tenantCtx.Config.SenderEmail = "shop@merchant.example"

	// No resume URL on the cart; the store link fills in for the email.
	_, err := carts.UpsertAbandonedCart(tenantCtx, "chk-1", tracking.CartPatch{
		Email: strP("buyer@example.com"),
	}, "webhook", now.Add(-2*time.Hour))
	require.NoError(t, err)

	stats, err := recovery.SweepTenant(context.Background(), tenantCtx, now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Dispatched)

	require.Equal(t, "re_tenant_key", dispatcher.lastProfile.APIKey)
	require.Equal(t, "shop@merchant.example", dispatcher.lastProfile.FromEmail)
	require.Equal(t, tracking.DispatchRecoveryCoupon, dispatcher.lastType)
	require.Equal(t, tenantCtx.Config.StoreURL, dispatcher.lastCart.CartURL)
}

func TestSweepSendsPlainReminderWhenCouponsDisabled(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	orig := config.CouponValuePercent
	config.CouponValuePercent = 0
	t.Cleanup(func() { config.CouponValuePercent = orig })

	seedStaleCart(t, carts, tenantCtx, "chk-1", "buyer@example.com", 2*time.Hour)

	stats, err := recovery.SweepTenant(context.Background(), tenantCtx, now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Dispatched)
	require.Equal(t, tracking.DispatchRecoveryEmail, dispatcher.lastType)

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.Empty(t, cart.CouponCode)
}

func TestConcurrentSweepsDispatchExactlyOnce(t *testing.T) {
	recovery, carts, dispatcher, tenantCtx := newRecoveryFixture(t)
	now := time.Now().UTC()

	seedStaleCart(t, carts, tenantCtx, "chk-1", "buyer@example.com", 2*time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = recovery.SweepTenant(context.Background(), tenantCtx, now)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, dispatcher.sendCount())

	cart, err := tenantCtx.CartRepo().FindByCheckoutID("chk-1")
	require.NoError(t, err)
	require.Equal(t, 1, cart.RecoveryAttempts)
}

func TestSweepClosesIdleSessions(t *testing.T) {
	recovery, _, _, tenantCtx := newRecoveryFixture(t)
	logger := tenantCtx.Logger
	sessions := NewSessionService(logger, performance.NewTracker(logger))
	now := time.Now().UTC()

	_, err := sessions.Touch(tenantCtx, "tok-idle", tracking.SessionMeta{}, now.Add(-45*time.Minute))
	require.NoError(t, err)

	stats, err := recovery.SweepTenant(context.Background(), tenantCtx, now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.SessionsClosed)
}
