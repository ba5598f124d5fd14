// Package manager provides centralized cache operations with proper tenant isolation
package manager

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

// sessionHint maps a client session token to its database row id so the hot
// beacon path can skip a lookup.
type sessionHint struct {
	SessionID string
	ExpiresAt time.Time
}

type tenantHintCache struct {
	mu    sync.RWMutex
	hints map[string]sessionHint
}

// Manager provides per-tenant session hint caching with last-access tracking
// for eviction of idle tenants.
type Manager struct {
	Mu           sync.RWMutex
	LastAccessed map[string]time.Time
	tenants      map[string]*tenantHintCache
	logger       *logging.ChanneledLogger
}

func NewManager(logger *logging.ChanneledLogger) *Manager {
	if logger != nil {
		logger.Cache().Info("Initializing cache manager", "stores", []string{"session-hints"})
	}

	return &Manager{
		LastAccessed: make(map[string]time.Time),
		tenants:      make(map[string]*tenantHintCache),
		logger:       logger,
	}
}

func (m *Manager) tenantCache(tenantID string, create bool) *tenantHintCache {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	m.LastAccessed[tenantID] = time.Now().UTC()

	cache, exists := m.tenants[tenantID]
	if !exists && create {
		cache = &tenantHintCache{hints: make(map[string]sessionHint)}
		m.tenants[tenantID] = cache
	}
	return cache
}

// GetSessionHint returns the cached session row id for a token, if fresh.
func (m *Manager) GetSessionHint(tenantID, sessionToken string) (string, bool) {
	cache := m.tenantCache(tenantID, false)
	if cache == nil {
		return "", false
	}

	cache.mu.RLock()
	defer cache.mu.RUnlock()

	hint, exists := cache.hints[sessionToken]
	if !exists || time.Now().After(hint.ExpiresAt) {
		return "", false
	}
	return hint.SessionID, true
}

// SetSessionHint caches the token→row-id mapping for the hint TTL.
func (m *Manager) SetSessionHint(tenantID, sessionToken, sessionID string) {
	cache := m.tenantCache(tenantID, true)

	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.hints[sessionToken] = sessionHint{
		SessionID: sessionID,
		ExpiresAt: time.Now().Add(config.SessionHintTTL),
	}
}

// InvalidateSessionHint drops a token's hint, used when a session ends.
func (m *Manager) InvalidateSessionHint(tenantID, sessionToken string) {
	cache := m.tenantCache(tenantID, false)
	if cache == nil {
		return
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.hints, sessionToken)
}

// PurgeExpired removes expired hints across all tenants and drops tenants
// idle past the tenant timeout. Returns the number of hints removed.
func (m *Manager) PurgeExpired() int {
	now := time.Now()
	removed := 0

	m.Mu.Lock()
	defer m.Mu.Unlock()

	for tenantID, cache := range m.tenants {
		if last, ok := m.LastAccessed[tenantID]; ok && now.Sub(last) > config.TenantTimeout {
			cache.mu.Lock()
			removed += len(cache.hints)
			cache.mu.Unlock()
			delete(m.tenants, tenantID)
			delete(m.LastAccessed, tenantID)
			continue
		}

		cache.mu.Lock()
		for token, hint := range cache.hints {
			if now.After(hint.ExpiresAt) {
				delete(cache.hints, token)
				removed++
			}
		}
		cache.mu.Unlock()
	}

	return removed
}

// HintCount returns the number of cached hints for a tenant.
func (m *Manager) HintCount(tenantID string) int {
	cache := m.tenantCache(tenantID, false)
	if cache == nil {
		return 0
	}

	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return len(cache.hints)
}
