// Package cleanup provides the background cache cleanup worker.
package cleanup

import (
	"context"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

// Worker handles background cache cleanup operations
type Worker struct {
	cache    *manager.Manager
	logger   *logging.ChanneledLogger
	interval time.Duration
}

// NewWorker creates a new cleanup worker
func NewWorker(cache *manager.Manager, logger *logging.ChanneledLogger) *Worker {
	return &Worker{
		cache:    cache,
		logger:   logger,
		interval: config.CleanupInterval,
	}
}

// Start begins the cleanup worker routine, using the configured interval
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Cache().Info("Cache cleanup worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Cache().Info("Cache cleanup worker stopping")
			return
		case <-ticker.C:
			w.performCleanup()
		}
	}
}

func (w *Worker) performCleanup() {
	start := time.Now()
	removed := w.cache.PurgeExpired()
	if removed > 0 {
		w.logger.Cache().Info("Cache cleanup finished",
			"removed", removed,
			"duration", time.Since(start))
	}
}
