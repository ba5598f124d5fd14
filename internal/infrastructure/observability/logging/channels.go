// Package logging provides structured logging channels for CartLoop operations
// with multi-tenant support and performance correlation capabilities.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Channel represents a logical logging channel for different system components
type Channel string

const (
	// System channels
	ChannelSystem   Channel = "system"
	ChannelStartup  Channel = "startup"
	ChannelShutdown Channel = "shutdown"

	// Business logic channels
	ChannelAuth     Channel = "auth"
	ChannelIngest   Channel = "ingest"
	ChannelSession  Channel = "session"
	ChannelCart     Channel = "cart"
	ChannelRecovery Channel = "recovery"

	// Infrastructure channels
	ChannelDatabase Channel = "database"
	ChannelTenant   Channel = "tenant"
	ChannelCache    Channel = "cache"
	ChannelStream   Channel = "stream"
	ChannelEmail    Channel = "email"

	// Performance and monitoring channels
	ChannelPerf      Channel = "performance"
	ChannelSlowQuery Channel = "slow-query"
)

// ChanneledLogger provides structured logging with multiple channels
type ChanneledLogger struct {
	channels map[Channel]*slog.Logger
	config   *LoggerConfig
	baseDir  string
	configMu sync.RWMutex
}

// LoggerConfig contains configuration options for the channeled logger
type LoggerConfig struct {
	OutputToFile    bool   `json:"outputToFile"`
	OutputToConsole bool   `json:"outputToConsole"`
	LogDirectory    string `json:"logDirectory"`

	JSONFormat    bool `json:"jsonFormat"`
	IncludeSource bool `json:"includeSource"`

	DefaultLevel  slog.Level             `json:"defaultLevel"`
	ChannelLevels map[Channel]slog.Level `json:"channelLevels"`
}

// DefaultLoggerConfig returns a sensible default configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    true,
		OutputToConsole: true,
		LogDirectory:    "logs",
		JSONFormat:      true,
		IncludeSource:   false,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// NewChanneledLogger creates a new channeled logger with the given configuration
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	logger := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		config:   config,
		baseDir:  config.LogDirectory,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	channels := []Channel{
		ChannelSystem, ChannelStartup, ChannelShutdown,
		ChannelAuth, ChannelIngest, ChannelSession, ChannelCart, ChannelRecovery,
		ChannelDatabase, ChannelTenant, ChannelCache, ChannelStream, ChannelEmail,
		ChannelPerf, ChannelSlowQuery,
	}

	for _, channel := range channels {
		channelLogger, err := logger.createChannelLogger(channel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger for channel %s: %w", channel, err)
		}
		logger.channels[channel] = channelLogger
	}

	return logger, nil
}

// createChannelLogger creates a slog.Logger for a specific channel
func (cl *ChanneledLogger) createChannelLogger(channel Channel) (*slog.Logger, error) {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()

	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer

	if cl.config.OutputToConsole {
		writers = append(writers, os.Stdout)
	}

	if cl.config.OutputToFile {
		filename := fmt.Sprintf("%s.log", string(channel))
		logPath := filepath.Join(cl.config.LogDirectory, filename)

		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}

		writers = append(writers, file)
	}

	var writer io.Writer
	if len(writers) == 1 {
		writer = writers[0]
	} else if len(writers) > 1 {
		writer = io.MultiWriter(writers...)
	} else {
		writer = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cl.config.IncludeSource,
	}

	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	logger := slog.New(handler).With(slog.String("channel", string(channel)))

	return logger, nil
}

func (cl *ChanneledLogger) System() *slog.Logger    { return cl.channels[ChannelSystem] }
func (cl *ChanneledLogger) Startup() *slog.Logger   { return cl.channels[ChannelStartup] }
func (cl *ChanneledLogger) Shutdown() *slog.Logger  { return cl.channels[ChannelShutdown] }
func (cl *ChanneledLogger) Auth() *slog.Logger      { return cl.channels[ChannelAuth] }
func (cl *ChanneledLogger) Ingest() *slog.Logger    { return cl.channels[ChannelIngest] }
func (cl *ChanneledLogger) Session() *slog.Logger   { return cl.channels[ChannelSession] }
func (cl *ChanneledLogger) Cart() *slog.Logger      { return cl.channels[ChannelCart] }
func (cl *ChanneledLogger) Recovery() *slog.Logger  { return cl.channels[ChannelRecovery] }
func (cl *ChanneledLogger) Database() *slog.Logger  { return cl.channels[ChannelDatabase] }
func (cl *ChanneledLogger) Tenant() *slog.Logger    { return cl.channels[ChannelTenant] }
func (cl *ChanneledLogger) Cache() *slog.Logger     { return cl.channels[ChannelCache] }
func (cl *ChanneledLogger) Stream() *slog.Logger    { return cl.channels[ChannelStream] }
func (cl *ChanneledLogger) Email() *slog.Logger     { return cl.channels[ChannelEmail] }
func (cl *ChanneledLogger) Perf() *slog.Logger      { return cl.channels[ChannelPerf] }
func (cl *ChanneledLogger) SlowQuery() *slog.Logger { return cl.channels[ChannelSlowQuery] }

// GetChannel returns a logger for a specific channel
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	if logger, exists := cl.channels[channel]; exists {
		return logger
	}
	return cl.channels[ChannelSystem]
}

// WithTenant returns a logger with tenant context
func (cl *ChanneledLogger) WithTenant(channel Channel, tenantID string) *slog.Logger {
	logger := cl.GetChannel(channel)
	return logger.With(slog.String("tenantId", tenantID))
}

// WithTenantAndOperation returns a logger with both tenant and operation context
func (cl *ChanneledLogger) WithTenantAndOperation(channel Channel, tenantID, operation string) *slog.Logger {
	logger := cl.GetChannel(channel)
	return logger.With(
		slog.String("tenantId", tenantID),
		slog.String("operation", operation),
	)
}

// LogSlowQuery records a database query that exceeded the slow-query threshold
func (cl *ChanneledLogger) LogSlowQuery(query string, duration time.Duration, tenantID string) {
	cl.SlowQuery().Warn("Slow query detected",
		"query", cl.sanitizeQuery(query),
		"duration", duration,
		"tenantId", tenantID,
	)
}

// LogSecurityEvent records an ingress security failure (bad signature, bad token)
func (cl *ChanneledLogger) LogSecurityEvent(event, tenantID, remoteAddr string, metadata map[string]any) {
	logger := cl.Auth().With(
		"securityEvent", event,
		"tenantId", tenantID,
		"remoteAddr", remoteAddr,
	)
	for k, v := range metadata {
		logger = logger.With(k, v)
	}
	logger.Warn("Security event")
}

// sanitizeQuery truncates and flattens a query string for log output
func (cl *ChanneledLogger) sanitizeQuery(query string) string {
	flat := strings.Join(strings.Fields(query), " ")
	if len(flat) > 200 {
		return flat[:200] + "..."
	}
	return flat
}

// SetChannelLevel changes the level of a single channel at runtime
func (cl *ChanneledLogger) SetChannelLevel(channel Channel, level slog.Level) error {
	cl.configMu.Lock()
	cl.config.ChannelLevels[channel] = level
	cl.configMu.Unlock()

	logger, err := cl.createChannelLogger(channel)
	if err != nil {
		return err
	}
	cl.channels[channel] = logger
	return nil
}

// Close flushes file-backed channels; the OS closes file handles at exit
func (cl *ChanneledLogger) Close() error {
	return nil
}
