// Package tenant manages tenant-specific configurations and context,
// isolating multi-tenancy logic from the rest of the application.
package tenant

import (
	"fmt"
	"sync"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// Manager coordinates tenant detection and context creation
type Manager struct {
	detector       *Detector
	cacheManager   *manager.Manager
	contexts       map[string]*Context
	contextMutexes sync.Map // Per-tenant mutexes for fine-grained locking
	globalMutex    sync.RWMutex
	logger         *logging.ChanneledLogger
}

// NewManager creates and initializes a new tenant manager.
func NewManager(logger *logging.ChanneledLogger) (*Manager, error) {
	detector, err := NewDetector(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tenant detector: %w", err)
	}

	return &Manager{
		detector:     detector,
		cacheManager: manager.NewManager(logger),
		contexts:     make(map[string]*Context),
		logger:       logger,
	}, nil
}

// GetContext creates or retrieves a tenant context for the request
func (m *Manager) GetContext(c *gin.Context) (*Context, error) {
	tenantID, err := m.detector.DetectTenant(c)
	if err != nil {
		return nil, fmt.Errorf("tenant detection failed: %w", err)
	}

	return m.contextForID(tenantID)
}

// NewContextFromID creates or retrieves a tenant context from a tenant ID
// string, used by background workers that have no request.
func (m *Manager) NewContextFromID(tenantID string) (*Context, error) {
	return m.contextForID(tenantID)
}

func (m *Manager) contextForID(tenantID string) (*Context, error) {
	m.globalMutex.RLock()
	if ctx, exists := m.contexts[tenantID]; exists {
		m.globalMutex.RUnlock()
		if ctx.Database != nil && ctx.Database.Conn != nil {
			return ctx, nil
		}
	} else {
		m.globalMutex.RUnlock()
	}

	tenantMutexInterface, _ := m.contextMutexes.LoadOrStore(tenantID, &sync.Mutex{})
	tenantMutex := tenantMutexInterface.(*sync.Mutex)

	tenantMutex.Lock()
	defer tenantMutex.Unlock()

	m.globalMutex.RLock()
	if ctx, exists := m.contexts[tenantID]; exists {
		m.globalMutex.RUnlock()
		if ctx.Database != nil && ctx.Database.Conn != nil {
			return ctx, nil
		}
	} else {
		m.globalMutex.RUnlock()
	}

	return m.createContext(tenantID)
}

// createContext creates a new tenant context
func (m *Manager) createContext(tenantID string) (*Context, error) {
	config, err := LoadTenantConfig(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant config: %w", err)
	}

	db, err := NewDatabase(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	ctx := &Context{
		TenantID:     tenantID,
		Config:       config,
		Database:     db,
		Status:       m.detector.GetTenantStatus(tenantID),
		CacheManager: m.cacheManager,
		Logger:       m.logger,
	}

	m.globalMutex.Lock()
	m.contexts[tenantID] = ctx
	m.globalMutex.Unlock()

	return ctx, nil
}

// PreActivateAllTenants activates all tenants in the registry during startup
func (m *Manager) PreActivateAllTenants() error {
	registry, err := LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("failed to load tenant registry for pre-activation: %w", err)
	}

	if len(registry.Tenants) == 0 {
		return nil
	}

	var failedTenants []string

	for tenantID := range registry.Tenants {
		if err := m.preActivateSingleTenant(tenantID); err != nil {
			m.logger.Tenant().Error("Tenant pre-activation failed",
				"tenantId", tenantID, "error", err.Error())
			failedTenants = append(failedTenants, tenantID)
			continue
		}
	}

	if err := m.detector.RefreshRegistry(); err != nil {
		return fmt.Errorf("failed to refresh detector registry: %w", err)
	}

	if len(failedTenants) > 0 {
		return fmt.Errorf("pre-activation failed for tenants: %v", failedTenants)
	}

	return nil
}

// preActivateSingleTenant activates a single tenant during startup
func (m *Manager) preActivateSingleTenant(tenantID string) error {
	ctx, err := m.createContext(tenantID)
	if err != nil {
		return fmt.Errorf("failed to create context for tenant %s: %w", tenantID, err)
	}

	if err := ctx.Database.Conn.Ping(); err != nil {
		return fmt.Errorf("database connection test failed for tenant %s: %w", tenantID, err)
	}

	if err := CreateTrackerTables(ctx); err != nil {
		return fmt.Errorf("table creation failed for tenant %s: %w", tenantID, err)
	}

	dbType := "sqlite3"
	if ctx.Database.UseTurso {
		dbType = "turso"
	}
	m.detector.UpdateTenantStatus(tenantID, "active", dbType)
	ctx.Status = "active"

	m.logger.Tenant().Info("Tenant pre-activated",
		"tenantId", tenantID, "database", ctx.GetDatabaseInfo())

	return nil
}

// GetActiveTenantCount returns the number of active tenants
func (m *Manager) GetActiveTenantCount() int {
	return len(m.detector.ActiveTenantIDs())
}

// GetCacheManager returns the cache manager for external access
func (m *Manager) GetCacheManager() *manager.Manager {
	return m.cacheManager
}

// GetDetector returns the detector for external access (needed by startup code)
func (m *Manager) GetDetector() *Detector {
	return m.detector
}

// GetLogger returns the logger for middleware access
func (m *Manager) GetLogger() *logging.ChanneledLogger {
	return m.logger
}

// Close cleans up all tenant contexts
func (m *Manager) Close() error {
	m.globalMutex.Lock()
	defer m.globalMutex.Unlock()

	for _, ctx := range m.contexts {
		if err := ctx.Close(); err != nil {
			continue
		}
	}

	m.contexts = make(map[string]*Context)
	return nil
}
