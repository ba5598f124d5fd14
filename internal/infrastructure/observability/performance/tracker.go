// Package performance provides operation timing markers correlated with
// structured logging channels.
package performance

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
	"github.com/oklog/ulid/v2"
)

// Tracker manages performance markers for in-flight operations
type Tracker struct {
	markers map[string]*Marker
	mu      sync.RWMutex
	logger  *logging.ChanneledLogger
}

// Marker tracks a single operation from start to completion
type Marker struct {
	ID        string
	Operation string
	TenantID  string
	StartTime time.Time
	EndTime   time.Time
	Success   bool
	Error     string
	Metadata  map[string]any

	tracker *Tracker
	mu      sync.Mutex
	done    bool
}

// NewTracker creates a performance tracker bound to the given logger
func NewTracker(logger *logging.ChanneledLogger) *Tracker {
	return &Tracker{
		markers: make(map[string]*Marker),
		logger:  logger,
	}
}

// StartOperation begins tracking an operation for a tenant
func (t *Tracker) StartOperation(operation, tenantID string) *Marker {
	marker := &Marker{
		ID:        ulid.Make().String(),
		Operation: operation,
		TenantID:  tenantID,
		StartTime: time.Now().UTC(),
		Metadata:  make(map[string]any),
		tracker:   t,
	}

	t.mu.Lock()
	t.markers[marker.ID] = marker
	t.mu.Unlock()

	return marker
}

// SetMetadata attaches a key/value pair to the marker
func (m *Marker) SetMetadata(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Metadata[key] = value
}

// SetSuccess marks the operation outcome
func (m *Marker) SetSuccess(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Success = success
}

// SetError marks the operation as failed with the given error
func (m *Marker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Success = false
	if err != nil {
		m.Error = err.Error()
	}
}

// Complete finishes the marker, logs it, and releases it from the tracker
func (m *Marker) Complete() {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	m.EndTime = time.Now().UTC()
	duration := m.EndTime.Sub(m.StartTime)
	m.mu.Unlock()

	m.tracker.mu.Lock()
	delete(m.tracker.markers, m.ID)
	m.tracker.mu.Unlock()

	if m.tracker.logger == nil {
		return
	}

	logger := m.tracker.logger.Perf().With(
		"operation", m.Operation,
		"tenantId", m.TenantID,
		"duration", duration,
		"success", m.Success,
	)
	for k, v := range m.Metadata {
		logger = logger.With(k, v)
	}
	if m.Error != "" {
		logger = logger.With("error", m.Error)
	}

	if duration > config.SlowQueryThreshold {
		logger.Warn("Slow operation completed")
	} else {
		logger.Debug("Operation completed")
	}
}

// Duration returns the elapsed time for a completed marker, or time since
// start for an in-flight one
func (m *Marker) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return m.EndTime.Sub(m.StartTime)
	}
	return time.Since(m.StartTime)
}

// ActiveOperations returns the number of markers still in flight
func (t *Tracker) ActiveOperations() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.markers)
}
