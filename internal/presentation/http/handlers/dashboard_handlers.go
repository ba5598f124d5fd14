package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	// Must be shorter than streamPongWait.
	streamPingPeriod = 54 * time.Second
)

// DashboardHandlers contains the live session stream handler
type DashboardHandlers struct {
	broadcaster *messaging.LiveBroadcaster
	logger      *logging.ChanneledLogger
	upgrader    websocket.Upgrader
}

// NewDashboardHandlers creates dashboard handlers with injected dependencies
func NewDashboardHandlers(broadcaster *messaging.LiveBroadcaster, logger *logging.ChanneledLogger) *DashboardHandlers {
	return &DashboardHandlers{
		broadcaster: broadcaster,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The route is admin-token guarded, origin filtering happens in CORS.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetSessionStream handles GET /api/v1/sessions/stream - upgrades to a
// websocket and pushes live session payloads on each broadcaster tick.
func (h *DashboardHandlers) GetSessionStream(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Stream().Error("Websocket upgrade failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		return
	}

	client := &messaging.DashboardClient{
		Conn:     conn,
		TenantID: tenantCtx.TenantID,
		Send:     make(chan []byte, 8),
	}

	if !h.broadcaster.Register(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "stream limit reached"),
			time.Now().Add(streamWriteWait))
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

// writePump forwards broadcaster payloads to the websocket connection.
func (h *DashboardHandlers) writePump(client *messaging.DashboardClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs are processed and disconnects are
// detected promptly.
func (h *DashboardHandlers) readPump(client *messaging.DashboardClient) {
	defer func() {
		h.broadcaster.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(streamPongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
