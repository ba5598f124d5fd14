package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()

	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: true,
		JSONFormat:      false,
		DefaultLevel:    slog.LevelError,
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	require.NoError(t, err)
	return logger
}

// newTestTenantContext builds a tenant context backed by a throwaway SQLite
// database with the full tracker schema applied.
func newTestTenantContext(t *testing.T) *tenant.Context {
	t.Helper()

	logger := newTestLogger(t)

	dbPath := filepath.Join(t.TempDir(), "cartloop.db")
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	tenantCtx := &tenant.Context{
		TenantID: "test-tenant",
		Config: &tenant.Config{
			TenantID:      "test-tenant",
			Status:        "active",
			JWTSecret:     "test-jwt-secret",
			WebhookSecret: "test-webhook-secret",
			StoreURL:      "https://shop.example",
		},
		Database:     &tenant.Database{Conn: conn, TenantID: "test-tenant"},
		Status:       "active",
		CacheManager: manager.NewManager(logger),
		Logger:       logger,
	}

	require.NoError(t, tenant.CreateTrackerTables(tenantCtx))
	return tenantCtx
}

func newTestServices(t *testing.T) (*SessionService, *CartService, *tenant.Context) {
	t.Helper()

	tenantCtx := newTestTenantContext(t)
	logger := tenantCtx.Logger
	perfTracker := performance.NewTracker(logger)

	return NewSessionService(logger, perfTracker), NewCartService(logger, perfTracker), tenantCtx
}

// stubDispatcher records sends and can be primed to fail.
type stubDispatcher struct {
	mu          sync.Mutex
	sends       int
	failures    int
	lastCart    *tracking.AbandonedCart
	lastType    tracking.DispatchType
	lastProfile tracking.SenderProfile
}

func (d *stubDispatcher) WithSender(profile tracking.SenderProfile) tracking.Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastProfile = profile
	return d
}

func (d *stubDispatcher) Send(ctx context.Context, dispatchType tracking.DispatchType, cart *tracking.AbandonedCart) (*tracking.DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failures > 0 {
		d.failures--
		return nil, fmt.Errorf("smtp unavailable")
	}

	d.sends++
	d.lastCart = cart
	d.lastType = dispatchType
	return &tracking.DispatchResult{MessageID: fmt.Sprintf("msg-%d", d.sends), Accepted: true}, nil
}

func (d *stubDispatcher) sendCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sends
}
