// Package events defines the wire payloads accepted at ingress and the
// normalized internal events they reduce to.
package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
)

// BeaconPayload is the body of a tracking beacon from the storefront pixel.
type BeaconPayload struct {
	SessionID    string        `json:"sessionId"`
	TenantID     string        `json:"tenantId"`
	VisitorToken string        `json:"visitorToken,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	Device       string        `json:"device,omitempty"`
	Events       []BeaconEvent `json:"events"`
}

// BeaconEvent is one client-side interaction inside a beacon batch.
type BeaconEvent struct {
	Type       string              `json:"type"`
	CheckoutID string              `json:"checkoutId,omitempty"`
	Email      string              `json:"email,omitempty"`
	CartURL    string              `json:"cartUrl,omitempty"`
	Action     string              `json:"action,omitempty"`
	Items      []tracking.LineItem `json:"items,omitempty"`
	TotalValue *decimal.Decimal    `json:"totalValue,omitempty"`
	ItemsCount int                 `json:"itemsCount,omitempty"`
	OccurredAt *time.Time          `json:"occurredAt,omitempty"`
}

// Beacon event types the ingestor understands. Cart types additionally
// produce a CartUpdateEvent; everything produces a LivenessPing.
const (
	EventPageView      = "page-view"
	EventHeartbeat     = "heartbeat"
	EventCartAdd       = "cart-add"
	EventCartRemove    = "cart-remove"
	EventCartUpdate    = "cart-update"
	EventCheckoutStart = "checkout-start"
)

// IsCartEvent reports whether the beacon event carries cart contents.
func (e *BeaconEvent) IsCartEvent() bool {
	switch e.Type {
	case EventCartAdd, EventCartRemove, EventCartUpdate, EventCheckoutStart:
		return true
	}
	return false
}

// SnapshotAction maps a cart beacon event type to its snapshot action.
func (e *BeaconEvent) SnapshotAction() tracking.SnapshotAction {
	switch e.Type {
	case EventCartAdd:
		return tracking.ActionAdd
	case EventCartRemove:
		return tracking.ActionRemove
	case EventCheckoutStart:
		return tracking.ActionCheckoutStart
	default:
		return tracking.ActionUpdate
	}
}

// LivenessPing is the normalized "this session is alive" signal every beacon
// event reduces to.
type LivenessPing struct {
	SessionToken string
	Meta         tracking.SessionMeta
	At           time.Time
}

// CartUpdateEvent is the normalized cart mutation derived from a cart-type
// beacon event.
type CartUpdateEvent struct {
	SessionToken string
	CheckoutID   string
	Action       tracking.SnapshotAction
	Items        []tracking.LineItem
	TotalValue   decimal.Decimal
	ItemsCount   int
	Email        string
	CartURL      string
	At           time.Time
}

// Normalize reduces a beacon batch to its canonical internal events: one
// liveness ping for the session plus a cart update per cart-type event.
// Events without their own timestamp inherit the batch arrival time.
func (p *BeaconPayload) Normalize(at time.Time) (LivenessPing, []CartUpdateEvent) {
	ping := LivenessPing{
		SessionToken: p.SessionID,
		Meta: tracking.SessionMeta{
			UserAgent: p.UserAgent,
			Device:    p.Device,
		},
		At: at,
	}

	var updates []CartUpdateEvent
	for i := range p.Events {
		event := &p.Events[i]
		if !event.IsCartEvent() {
			continue
		}

		occurredAt := at
		if event.OccurredAt != nil {
			occurredAt = *event.OccurredAt
		}
		total := decimal.Zero
		if event.TotalValue != nil {
			total = *event.TotalValue
		}

		updates = append(updates, CartUpdateEvent{
			SessionToken: p.SessionID,
			CheckoutID:   event.CheckoutID,
			Action:       event.SnapshotAction(),
			Items:        event.Items,
			TotalValue:   total,
			ItemsCount:   event.ItemsCount,
			Email:        event.Email,
			CartURL:      event.CartURL,
			At:           occurredAt,
		})
	}

	return ping, updates
}

// CheckoutWebhook is the platform's checkout notification body. Field names
// follow the upstream commerce platform's JSON.
type CheckoutWebhook struct {
	ID              int64             `json:"id"`
	Token           string            `json:"token"`
	Email           string            `json:"email"`
	AbandonedURL    string            `json:"abandoned_checkout_url"`
	TotalPrice      string            `json:"total_price"`
	Currency        string            `json:"currency"`
	Completed       bool              `json:"completed"`
	FinancialStatus string            `json:"financial_status"`
	UpdatedAt       *time.Time        `json:"updated_at"`
	LineItems       []WebhookLineItem `json:"line_items"`
}

// WebhookLineItem is one product line in a checkout webhook.
type WebhookLineItem struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// IsCompleted reports whether the webhook describes a finished purchase.
func (w *CheckoutWebhook) IsCompleted() bool {
	return w.Completed || w.FinancialStatus == "paid"
}
