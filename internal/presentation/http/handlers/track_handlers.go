package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/application/services"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/events"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// TrackHandlers contains the beacon ingest HTTP handlers
type TrackHandlers struct {
	ingestService *services.IngestService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

// NewTrackHandlers creates track handlers with injected dependencies
func NewTrackHandlers(ingestService *services.IngestService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *TrackHandlers {
	return &TrackHandlers{
		ingestService: ingestService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// PostBeacon handles POST /api/v1/track - processes a batched beacon payload
func (h *TrackHandlers) PostBeacon(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	start := time.Now()
	marker := h.perfTracker.StartOperation("post_beacon_request", tenantCtx.TenantID)
	defer marker.Complete()
	h.logger.Ingest().Debug("Received beacon request", "method", c.Request.Method, "path", c.Request.URL.Path, "tenantId", tenantCtx.TenantID)

	var payload events.BeaconPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Ingest().Error("Beacon request JSON binding failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result, err := h.ingestService.ProcessBeacon(tenantCtx, &payload, time.Now().UTC())
	if err != nil {
		if errors.Is(err, tracking.ErrValidation) {
			h.logger.Ingest().Warn("Beacon rejected", "tenantId", tenantCtx.TenantID, "sessionId", payload.SessionID, "error", err.Error())
			marker.SetSuccess(false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Ingest().Error("Beacon processing failed", "tenantId", tenantCtx.TenantID, "sessionId", payload.SessionID, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process beacon"})
		return
	}

	marker.SetSuccess(true)
	h.logger.Ingest().Info("Beacon processed", "tenantId", tenantCtx.TenantID, "sessionId", result.SessionID, "events", result.Events, "snapshots", result.Snapshots, "duration", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": result.SessionID,
		"events":    result.Events,
		"snapshots": result.Snapshots,
	})
}

// PostEnd handles POST /api/v1/track/end - explicit session end from the storefront
func (h *TrackHandlers) PostEnd(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("post_track_end_request", tenantCtx.TenantID)
	defer marker.Complete()

	var endReq struct {
		SessionID string `json:"sessionId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&endReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.ingestService.ProcessEnd(tenantCtx, endReq.SessionID, time.Now().UTC()); err != nil {
		h.logger.Ingest().Error("Session end failed", "tenantId", tenantCtx.TenantID, "sessionToken", endReq.SessionID, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end session"})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
