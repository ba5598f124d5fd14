// Package tenant handles loading and providing tenant-specific configurations.
package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/security"
)

// Config represents the structure of a single tenant's configuration
type Config struct {
	TenantID          string   `json:"tenantId"`
	Domains           []string `json:"domains"`
	Status            string   `json:"status"`
	DatabaseType      string   `json:"databaseType"`
	TursoDatabase     string   `json:"TURSO_DATABASE_URL"`
	TursoToken        string   `json:"TURSO_AUTH_TOKEN"`
	TursoEnabled      bool     `json:"TURSO_ENABLED"`
	JWTSecret         string   `json:"JWT_SECRET"`
	WebhookSecret     string   `json:"WEBHOOK_SECRET"`
	AdminPasswordHash string   `json:"ADMIN_PASSWORD_HASH,omitempty"`
	SenderEmail       string   `json:"SENDER_EMAIL,omitempty"`
	ResendAPIKey      string   `json:"RESEND_APIKEY,omitempty"`
	StoreURL          string   `json:"STORE_URL,omitempty"`
	SQLitePath        string   `json:"-"`
}

// BaseDir returns the server's configuration root under the user home.
func BaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find user home directory: %w", err)
	}
	return filepath.Join(homeDir, "cartloop-go-server"), nil
}

// LoadTenantConfig loads configuration for a specific tenant from its
// env.json file, generating missing secrets on first load.
func LoadTenantConfig(tenantID string) (*Config, error) {
	baseDir, err := BaseDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(baseDir, "config", tenantID, "env.json")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("tenant config file not found at %s", configPath)
	}

	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read tenant config file: %w", err)
	}

	var tenantConfig Config
	if err := json.Unmarshal(configFile, &tenantConfig); err != nil {
		return nil, fmt.Errorf("could not parse tenant config json: %w", err)
	}

	tenantConfig.TenantID = tenantID
	tenantConfig.SQLitePath = filepath.Join(baseDir, "db", tenantID, "cartloop.db")

	changed, err := ensureSecrets(&tenantConfig)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := SaveTenantConfig(&tenantConfig); err != nil {
			return nil, fmt.Errorf("failed to persist generated secrets: %w", err)
		}
	}

	return &tenantConfig, nil
}

// ensureSecrets fills any missing generated credentials and reports whether
// the config needs to be written back.
func ensureSecrets(cfg *Config) (bool, error) {
	changed := false

	if cfg.JWTSecret == "" {
		secret, err := security.GenerateSecureKey(32)
		if err != nil {
			return false, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JWTSecret = secret
		changed = true
	}

	if cfg.WebhookSecret == "" {
		secret, err := security.GenerateSecureKey(32)
		if err != nil {
			return false, fmt.Errorf("failed to generate webhook secret: %w", err)
		}
		cfg.WebhookSecret = secret
		changed = true
	}

	return changed, nil
}

// SaveTenantConfig writes a tenant's env.json back to disk.
func SaveTenantConfig(cfg *Config) error {
	baseDir, err := BaseDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(baseDir, "config", cfg.TenantID)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create tenant config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tenant config: %w", err)
	}

	configPath := filepath.Join(configDir, "env.json")
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write tenant config: %w", err)
	}

	return nil
}

// TenantRegistry holds the global tenant configuration
type TenantRegistry struct {
	Tenants map[string]TenantInfo `json:"tenants"`
}

// TenantInfo holds tenant metadata
type TenantInfo struct {
	TenantID     string   `json:"tenantId"`
	Domains      []string `json:"domains"`
	Status       string   `json:"status"`       // "unknown", "inactive", "active"
	DatabaseType string   `json:"databaseType"` // "turso", "sqlite3"
}

func registryPath() (string, error) {
	baseDir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, "config", "system", "tenants.json"), nil
}

// LoadTenantRegistry loads the global tenant registry
func LoadTenantRegistry() (*TenantRegistry, error) {
	path, err := registryPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &TenantRegistry{
			Tenants: map[string]TenantInfo{
				"default": {
					TenantID:     "default",
					Domains:      []string{"*"},
					Status:       "inactive",
					DatabaseType: "",
				},
			},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant registry: %w", err)
	}

	var registry TenantRegistry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse tenant registry: %w", err)
	}

	return &registry, nil
}

// SaveTenantRegistry persists the global tenant registry
func SaveTenantRegistry(registry *TenantRegistry) error {
	path, err := registryPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}

	return nil
}

// RegisterTenant adds a new tenant to the registry if absent
func RegisterTenant(tenantID string) error {
	registry, err := LoadTenantRegistry()
	if err != nil {
		return err
	}

	if _, exists := registry.Tenants[tenantID]; exists {
		return nil
	}

	registry.Tenants[tenantID] = TenantInfo{
		TenantID:     tenantID,
		Domains:      []string{"*"},
		Status:       "inactive",
		DatabaseType: "",
	}

	return SaveTenantRegistry(registry)
}
