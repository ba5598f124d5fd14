// Package config provides centralized default values for CartLoop
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Cache Configuration
	MaxTenants           int
	MaxSessionsPerTenant int

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int

	// Session Tracking
	LiveSessionWindow   time.Duration
	SessionEndAfter     time.Duration
	SessionHintTTL      time.Duration
	MaxDashboardStreams int
	StreamTickSeconds   int
	PlaceholderEmail    string

	// Cart Recovery
	CartStaleThreshold   time.Duration
	RecoveryMaxAttempts  int
	RecoverySweepEvery   time.Duration
	RecoveryExpiryWindow time.Duration
	DispatchTimeout      time.Duration
	CouponValuePercent   int
	CouponTTL            time.Duration

	// Cleanup Intervals
	CleanupInterval time.Duration
	TenantTimeout   time.Duration

	// Observability
	SlowQueryThreshold time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Memory Management
	MaxTenants = getEnvInt("MAX_TENANTS", 5)
	MaxSessionsPerTenant = getEnvInt("MAX_SESSIONS_PER_TENANT", 5000)

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)

	// Session Tracking
	LiveSessionWindow = time.Duration(getEnvInt("LIVE_SESSION_WINDOW_SECONDS", 180)) * time.Second
	SessionEndAfter = time.Duration(getEnvInt("SESSION_END_AFTER_MINUTES", 30)) * time.Minute
	SessionHintTTL = time.Duration(getEnvInt("SESSION_HINT_TTL_MINUTES", 15)) * time.Minute
	MaxDashboardStreams = getEnvInt("MAX_DASHBOARD_STREAMS", 25)
	StreamTickSeconds = getEnvInt("STREAM_TICK_SECONDS", 10)
	PlaceholderEmail = getEnvString("PLACEHOLDER_EMAIL", "pending@tracking.com")

	// Cart Recovery
	CartStaleThreshold = time.Duration(getEnvInt("CART_STALE_THRESHOLD_SECONDS", 3600)) * time.Second
	RecoveryMaxAttempts = getEnvInt("RECOVERY_MAX_ATTEMPTS", 3)
	RecoverySweepEvery = time.Duration(getEnvInt("RECOVERY_SWEEP_INTERVAL_MINUTES", 5)) * time.Minute
	RecoveryExpiryWindow = time.Duration(getEnvInt("RECOVERY_EXPIRY_DAYS", 30)) * 24 * time.Hour
	DispatchTimeout = time.Duration(getEnvInt("DISPATCH_TIMEOUT_SECONDS", 10)) * time.Second
	CouponValuePercent = getEnvInt("RECOVERY_COUPON_VALUE_PERCENT", 10)
	CouponTTL = time.Duration(getEnvInt("RECOVERY_COUPON_TTL_HOURS", 48)) * time.Hour

	// Cleanup Intervals
	CleanupInterval = time.Duration(getEnvInt("CACHE_CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute
	TenantTimeout = time.Duration(getEnvInt("TENANT_TIMEOUT_HOURS", 4)) * time.Hour

	// Observability
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 250*time.Millisecond)
}
