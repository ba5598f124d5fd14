// Package tenant provides tenant detection and validation.
package tenant

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// Detector handles tenant detection from HTTP requests
type Detector struct {
	registry    *TenantRegistry
	multiTenant bool
	logger      *logging.ChanneledLogger
	mu          sync.RWMutex
}

// NewDetector creates a new tenant detector
func NewDetector(logger *logging.ChanneledLogger) (*Detector, error) {
	registry, err := LoadTenantRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant registry: %w", err)
	}

	multiTenant := false
	if val := os.Getenv("ENABLE_MULTI_TENANT"); val != "" {
		multiTenant, _ = strconv.ParseBool(val)
	}

	return &Detector{
		registry:    registry,
		multiTenant: multiTenant,
		logger:      logger,
	}, nil
}

// DetectTenant extracts the tenant ID from a request and auto-registers if
// the tenant has a config directory on disk.
func (d *Detector) DetectTenant(c *gin.Context) (string, error) {
	var tenantID string

	if d.multiTenant {
		tenantID = c.GetHeader("X-Tenant-ID")
		// Websocket and sendBeacon clients cannot always set custom
		// headers, so allow tenantId as a query parameter.
		if tenantID == "" {
			tenantID = c.Query("tenantId")
		}

		if tenantID == "" {
			return "", fmt.Errorf("missing tenant ID header in multi-tenant mode")
		}
	} else {
		tenantID = "default"
	}

	d.mu.RLock()
	_, exists := d.registry.Tenants[tenantID]
	d.mu.RUnlock()

	if !exists {
		if tenantID == "default" || d.hasConfigDirectory(tenantID) {
			if err := RegisterTenant(tenantID); err != nil {
				return "", fmt.Errorf("failed to auto-register tenant %s: %w", tenantID, err)
			}
			if err := d.RefreshRegistry(); err != nil {
				return "", fmt.Errorf("failed to reload registry after auto-registration: %w", err)
			}
		} else {
			return "", fmt.Errorf("unknown tenant: %s", tenantID)
		}
	}

	return tenantID, nil
}

// hasConfigDirectory checks if a tenant has a config directory
func (d *Detector) hasConfigDirectory(tenantID string) bool {
	baseDir, err := BaseDir()
	if err != nil {
		return false
	}

	configDir := filepath.Join(baseDir, "config", tenantID)
	if _, err := os.Stat(configDir); err == nil {
		return true
	}
	return false
}

// ValidateDomain checks if the request domain is allowed for the tenant
func (d *Detector) ValidateDomain(tenantID, domain string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tenantInfo, exists := d.registry.Tenants[tenantID]
	if !exists {
		return false
	}

	for _, allowedDomain := range tenantInfo.Domains {
		if allowedDomain == "*" {
			return true
		}
		if strings.EqualFold(allowedDomain, domain) {
			return true
		}
	}

	return false
}

// GetTenantStatus returns the current status of a tenant
func (d *Detector) GetTenantStatus(tenantID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if tenantInfo, exists := d.registry.Tenants[tenantID]; exists {
		return tenantInfo.Status
	}
	return "unknown"
}

// UpdateTenantStatus updates the cached registry status
func (d *Detector) UpdateTenantStatus(tenantID, status, dbType string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if tenantInfo, exists := d.registry.Tenants[tenantID]; exists {
		tenantInfo.Status = status
		if dbType != "" {
			tenantInfo.DatabaseType = dbType
		}
		d.registry.Tenants[tenantID] = tenantInfo
	}
}

// RefreshRegistry reloads the tenant registry from disk
func (d *Detector) RefreshRegistry() error {
	registry, err := LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("failed to refresh tenant registry: %w", err)
	}

	d.mu.Lock()
	d.registry = registry
	d.mu.Unlock()
	return nil
}

// ActiveTenantIDs returns the IDs of all tenants currently marked active
func (d *Detector) ActiveTenantIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.registry.Tenants))
	for id, info := range d.registry.Tenants {
		if info.Status == "active" {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetRegistry returns the current registry (for external access)
func (d *Detector) GetRegistry() *TenantRegistry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.registry
}
