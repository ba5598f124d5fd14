package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/application/services"
	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SessionHandlers contains all dashboard session HTTP handlers
type SessionHandlers struct {
	sessionService *services.SessionService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewSessionHandlers creates session handlers with injected dependencies
func NewSessionHandlers(sessionService *services.SessionService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SessionHandlers {
	return &SessionHandlers{
		sessionService: sessionService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// GetLiveSessions handles GET /api/v1/sessions/live
func (h *SessionHandlers) GetLiveSessions(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("get_live_sessions_request", tenantCtx.TenantID)
	defer marker.Complete()

	sessions, err := h.sessionService.ListLive(tenantCtx, time.Now().UTC())
	if err != nil {
		h.logger.Session().Error("Live session listing failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list live sessions"})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// PostIdentify handles POST /api/v1/sessions/:id/identify
func (h *SessionHandlers) PostIdentify(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("post_identify_request", tenantCtx.TenantID)
	defer marker.Complete()

	sessionID := c.Param("id")

	var identifyReq struct {
		VisitorToken string `json:"visitorToken" binding:"required"`
		CustomLabel  string `json:"customLabel"`
	}

	if err := c.ShouldBindJSON(&identifyReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	visitor, err := h.sessionService.Identify(tenantCtx, sessionID, identifyReq.VisitorToken, identifyReq.CustomLabel, time.Now().UTC())
	if err != nil {
		marker.SetSuccess(false)
		if errors.Is(err, tracking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Session().Error("Session identify failed", "tenantId", tenantCtx.TenantID, "sessionId", sessionID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to identify session"})
		return
	}

	marker.SetSuccess(true)
	h.logger.Session().Info("Session identified", "tenantId", tenantCtx.TenantID, "sessionId", sessionID, "visitorId", visitor.ID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"visitor": visitor,
	})
}

// PostEnd handles POST /api/v1/sessions/:id/end - dashboard-initiated end
func (h *SessionHandlers) PostEnd(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("post_session_end_request", tenantCtx.TenantID)
	defer marker.Complete()

	sessionID := c.Param("id")

	if err := h.sessionService.MarkEnded(tenantCtx, sessionID, time.Now().UTC()); err != nil {
		marker.SetSuccess(false)
		if errors.Is(err, tracking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Session().Error("Session end failed", "tenantId", tenantCtx.TenantID, "sessionId", sessionID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end session"})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PutFlags handles PUT /api/v1/sessions/:id/flags - VIP flag and admin notes
func (h *SessionHandlers) PutFlags(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("put_session_flags_request", tenantCtx.TenantID)
	defer marker.Complete()

	sessionID := c.Param("id")

	var flagsReq struct {
		IsVIP      *bool   `json:"isVip"`
		AdminNotes *string `json:"adminNotes"`
	}

	if err := c.ShouldBindJSON(&flagsReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if flagsReq.IsVIP == nil && flagsReq.AdminNotes == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no flags provided"})
		return
	}

	if err := h.sessionService.SetFlags(tenantCtx, sessionID, flagsReq.IsVIP, flagsReq.AdminNotes); err != nil {
		marker.SetSuccess(false)
		if errors.Is(err, tracking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Session().Error("Session flag update failed", "tenantId", tenantCtx.TenantID, "sessionId", sessionID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update session flags"})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
