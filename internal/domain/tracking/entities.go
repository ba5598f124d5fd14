// Package tracking defines the visitor, session, and cart entities along with
// the repository and dispatcher interfaces that abstract their persistence and
// delivery. The core application stays decoupled from the database and the
// email provider.
package tracking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Visitor represents a durable identity behind one or more sessions.
type Visitor struct {
	ID           string    `json:"id"`
	VisitorToken string    `json:"visitorToken"`
	CustomLabel  string    `json:"customLabel,omitempty"`
	FirstSeenAt  time.Time `json:"firstSeenAt"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

// Session represents a single browsing session tied to a tenant.
// A session may be anonymous (VisitorID nil) until identified.
type Session struct {
	ID           string          `json:"id"`
	SessionToken string          `json:"sessionToken"`
	VisitorID    *string         `json:"visitorId,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	LastActiveAt time.Time       `json:"lastActiveAt"`
	EndedAt      *time.Time      `json:"endedAt,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
	Device       string          `json:"device,omitempty"`
	IPHint       string          `json:"ipHint,omitempty"`
	IsVIP        bool            `json:"isVip"`
	AdminNotes   string          `json:"adminNotes,omitempty"`
	PeakValue    decimal.Decimal `json:"peakValue"`
	PeakItems    int             `json:"peakItems"`
}

// IsLive reports whether the session counts as live at the given instant.
// A session is live while it has no end marker and its last activity falls
// inside the liveness window.
func (s *Session) IsLive(asOf time.Time, window time.Duration) bool {
	if s.EndedAt != nil {
		return false
	}
	return asOf.Sub(s.LastActiveAt) < window
}

// SessionMeta carries the optional client attributes of a beacon. Empty
// fields never overwrite stored non-empty values.
type SessionMeta struct {
	UserAgent string
	Device    string
	IPHint    string
}

// LineItem is one product line inside a cart.
type LineItem struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// SnapshotAction enumerates the cart interactions a snapshot records.
type SnapshotAction string

const (
	ActionAdd           SnapshotAction = "add"
	ActionRemove        SnapshotAction = "remove"
	ActionUpdate        SnapshotAction = "update"
	ActionCheckoutStart SnapshotAction = "checkout-start"
)

// ValidSnapshotAction reports whether the action is one of the known kinds.
func ValidSnapshotAction(a SnapshotAction) bool {
	switch a {
	case ActionAdd, ActionRemove, ActionUpdate, ActionCheckoutStart:
		return true
	}
	return false
}

// CartSnapshot is an append-only point-in-time copy of a session's cart.
type CartSnapshot struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"sessionId"`
	Items      []LineItem      `json:"items"`
	TotalValue decimal.Decimal `json:"totalValue"`
	ItemsCount int             `json:"itemsCount"`
	Action     SnapshotAction  `json:"action"`
	TakenAt    time.Time       `json:"takenAt"`
}

// CartState is the derived lifecycle position of an abandoned cart.
type CartState string

const (
	CartFresh        CartState = "FRESH"
	CartStale        CartState = "STALE"
	CartRecoverySent CartState = "RECOVERY_SENT"
	CartRecovered    CartState = "RECOVERED"
	CartExpired      CartState = "EXPIRED"
)

// AbandonedCart is the recovery-eligible checkout record, assembled from
// platform webhooks and enriched by on-site beacons.
type AbandonedCart struct {
	ID               string          `json:"id"`
	CheckoutID       string          `json:"checkoutId"`
	Email            string          `json:"email,omitempty"`
	CartURL          string          `json:"cartUrl,omitempty"`
	TotalValue       decimal.Decimal `json:"totalValue"`
	Currency         string          `json:"currency,omitempty"`
	Items            []LineItem      `json:"items"`
	ItemsCount       int             `json:"itemsCount"`
	IsRecovered      bool            `json:"isRecovered"`
	RecoverySent     bool            `json:"recoverySent"`
	RecoveryAttempts int             `json:"recoveryAttempts"`
	LastAttemptAt    *time.Time      `json:"lastAttemptAt,omitempty"`
	ExpiredAt        *time.Time      `json:"expiredAt,omitempty"`
	CouponCode       string          `json:"couponCode,omitempty"`
	CouponValue      int             `json:"couponValue,omitempty"`
	CouponExpiresAt  *time.Time      `json:"couponExpiresAt,omitempty"`
	Source           string          `json:"source,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	LastEnrichedAt   *time.Time      `json:"lastEnrichedAt,omitempty"`
}

// State derives the cart's lifecycle position. Recovery state is never stored
// as a column; it always falls out of the underlying facts.
func (c *AbandonedCart) State() CartState {
	if c.IsRecovered {
		return CartRecovered
	}
	if c.ExpiredAt != nil {
		return CartExpired
	}
	if c.RecoverySent {
		return CartRecoverySent
	}
	return CartFresh
}

// StateAsOf derives the state including time-based staleness, which State
// alone cannot see.
func (c *AbandonedCart) StateAsOf(asOf time.Time, staleThreshold time.Duration) CartState {
	state := c.State()
	if state == CartFresh && asOf.Sub(c.UpdatedAt) >= staleThreshold {
		return CartStale
	}
	return state
}

// HasRealEmail reports whether the cart carries an address worth dispatching
// to. Platform placeholder addresses do not count.
func (c *AbandonedCart) HasRealEmail(placeholder string) bool {
	return c.Email != "" && c.Email != placeholder
}

// CartPatch is a partial update applied to an abandoned cart during upsert.
// Nil fields are absent from the incoming payload and leave the stored value
// untouched; merge semantics for present fields live in Merge.
type CartPatch struct {
	Email          *string
	CartURL        *string
	TotalValue     *decimal.Decimal
	Currency       *string
	Items          []LineItem
	ItemsCount     *int
	Source         *string
	LastEnrichedAt *time.Time
}

// Merge folds a patch into the cart using field-wise more-complete-wins
// rules. A real email always beats an empty or placeholder one; a placeholder
// never replaces a real address. The result is independent of which of two
// concurrent writers lands first.
func (c *AbandonedCart) Merge(patch CartPatch, placeholder string, now time.Time) {
	if patch.Email != nil {
		incoming := *patch.Email
		incomingReal := incoming != "" && incoming != placeholder
		switch {
		case incomingReal:
			c.Email = incoming
		case c.Email == "":
			c.Email = incoming
		}
	}
	if patch.CartURL != nil && *patch.CartURL != "" {
		c.CartURL = *patch.CartURL
	}
	if patch.TotalValue != nil {
		c.TotalValue = *patch.TotalValue
	}
	if patch.Currency != nil && *patch.Currency != "" {
		c.Currency = *patch.Currency
	}
	if patch.Items != nil {
		c.Items = patch.Items
	}
	if patch.ItemsCount != nil {
		c.ItemsCount = *patch.ItemsCount
	}
	if patch.Source != nil && c.Source == "" {
		c.Source = *patch.Source
	}
	if patch.LastEnrichedAt != nil {
		c.LastEnrichedAt = patch.LastEnrichedAt
	}
	c.UpdatedAt = now
}
