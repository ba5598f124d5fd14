// Package messaging provides the websocket feed that pushes live session
// state to connected dashboards.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

// DashboardClient represents a single connected dashboard client.
type DashboardClient struct {
	Conn     *websocket.Conn
	TenantID string
	Send     chan []byte
}

// LiveSessionEntry is one live session in the dashboard payload.
type LiveSessionEntry struct {
	SessionID    string    `json:"sessionId"`
	Identified   bool      `json:"identified"`
	IsVIP        bool      `json:"isVip"`
	Device       string    `json:"device"`
	PeakValue    string    `json:"peakValue"`
	PeakItems    int       `json:"peakItems"`
	LastActivity time.Time `json:"lastActivity"`
}

// LiveSessionPayload is the complete data structure sent to the frontend on
// each tick.
type LiveSessionPayload struct {
	Sessions        []LiveSessionEntry `json:"sessions"`
	TotalCount      int                `json:"totalCount"`
	IdentifiedCount int                `json:"identifiedCount"`
	VIPCount        int                `json:"vipCount"`
	CartedValue     string             `json:"cartedValue"`
	AsOf            time.Time          `json:"asOf"`
}

// LiveBroadcaster manages all connected dashboard clients and pushes live
// session state per tenant.
type LiveBroadcaster struct {
	tenantClients map[string]map[*DashboardClient]bool
	register      chan *DashboardClient
	unregister    chan *DashboardClient
	tenantManager *tenant.Manager
	logger        *logging.ChanneledLogger
	mu            sync.RWMutex
}

// NewLiveBroadcaster creates a new broadcaster instance.
func NewLiveBroadcaster(tm *tenant.Manager, logger *logging.ChanneledLogger) *LiveBroadcaster {
	return &LiveBroadcaster{
		tenantClients: make(map[string]map[*DashboardClient]bool),
		register:      make(chan *DashboardClient),
		unregister:    make(chan *DashboardClient),
		tenantManager: tm,
		logger:        logger,
	}
}

// Run starts the broadcaster's main loop. This should be run as a goroutine.
func (b *LiveBroadcaster) Run() {
	ticker := time.NewTicker(time.Duration(config.StreamTickSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			if _, ok := b.tenantClients[client.TenantID]; !ok {
				b.tenantClients[client.TenantID] = make(map[*DashboardClient]bool)
			}
			b.tenantClients[client.TenantID][client] = true
			b.mu.Unlock()
			b.logger.Stream().Info("Dashboard client registered", "tenantId", client.TenantID)

		case client := <-b.unregister:
			b.mu.Lock()
			if clients, ok := b.tenantClients[client.TenantID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(b.tenantClients, client.TenantID)
					}
				}
			}
			b.mu.Unlock()
			b.logger.Stream().Info("Dashboard client unregistered", "tenantId", client.TenantID)

		case <-ticker.C:
			b.broadcastLiveSessions()
		}
	}
}

// Register queues a client for registration. Returns false when the stream
// limit for the tenant is reached.
func (b *LiveBroadcaster) Register(client *DashboardClient) bool {
	b.mu.RLock()
	current := len(b.tenantClients[client.TenantID])
	b.mu.RUnlock()

	if current >= config.MaxDashboardStreams {
		b.logger.Stream().Warn("Dashboard stream limit reached", "tenantId", client.TenantID)
		return false
	}

	b.register <- client
	return true
}

// Unregister queues a client for unregistration.
func (b *LiveBroadcaster) Unregister(client *DashboardClient) {
	b.unregister <- client
}

// broadcastLiveSessions gathers and sends live session state for all tenants
// with connected clients.
func (b *LiveBroadcaster) broadcastLiveSessions() {
	b.mu.RLock()
	tenantIDs := make([]string, 0, len(b.tenantClients))
	for tenantID := range b.tenantClients {
		tenantIDs = append(tenantIDs, tenantID)
	}
	b.mu.RUnlock()

	for _, tenantID := range tenantIDs {
		payload := b.buildPayload(tenantID)

		message, err := json.Marshal(payload)
		if err != nil {
			b.logger.Stream().Error("Failed to marshal live session payload",
				"tenantId", tenantID, "error", err.Error())
			continue
		}

		b.mu.RLock()
		if clients, ok := b.tenantClients[tenantID]; ok {
			for client := range clients {
				select {
				case client.Send <- message:
				default:
				}
			}
		}
		b.mu.RUnlock()
	}
}

// buildPayload assembles the live session view for one tenant.
func (b *LiveBroadcaster) buildPayload(tenantID string) LiveSessionPayload {
	now := time.Now().UTC()
	payload := LiveSessionPayload{
		Sessions:    []LiveSessionEntry{},
		CartedValue: "0",
		AsOf:        now,
	}

	ctx, err := b.tenantManager.NewContextFromID(tenantID)
	if err != nil {
		b.logger.Stream().Error("Broadcaster could not create tenant context",
			"tenantId", tenantID, "error", err.Error())
		return payload
	}

	sessions, err := ctx.SessionRepo().FindLive(now, config.LiveSessionWindow)
	if err != nil {
		b.logger.Stream().Error("Broadcaster could not load live sessions",
			"tenantId", tenantID, "error", err.Error())
		return payload
	}

	cartedValue := decimal.Zero
	for _, s := range sessions {
		identified := s.VisitorID != nil && *s.VisitorID != ""
		payload.Sessions = append(payload.Sessions, LiveSessionEntry{
			SessionID:    s.ID,
			Identified:   identified,
			IsVIP:        s.IsVIP,
			Device:       s.Device,
			PeakValue:    s.PeakValue.String(),
			PeakItems:    s.PeakItems,
			LastActivity: s.LastActiveAt,
		})
		if identified {
			payload.IdentifiedCount++
		}
		if s.IsVIP {
			payload.VIPCount++
		}
		cartedValue = cartedValue.Add(s.PeakValue)
	}

	payload.TotalCount = len(sessions)
	payload.CartedValue = cartedValue.String()
	return payload
}
