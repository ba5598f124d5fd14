package tracking

import "time"

// VisitorRepository defines the operations for persisting Visitor entities.
type VisitorRepository interface {
	FindByID(id string) (*Visitor, error)
	FindByToken(visitorToken string) (*Visitor, error)
	Store(visitor *Visitor) error
	Update(visitor *Visitor) error
}

// SessionRepository defines the operations for persisting Session entities.
type SessionRepository interface {
	FindByID(id string) (*Session, error)
	FindByToken(sessionToken string) (*Session, error)
	FindLive(asOf time.Time, window time.Duration) ([]*Session, error)
	FindIdleOpen(cutoff time.Time) ([]*Session, error)
	Store(session *Session) error
	Update(session *Session) error
	CountOpen() (int, error)
}

// SnapshotRepository defines the operations for the append-only cart
// snapshot log.
type SnapshotRepository interface {
	Store(snapshot *CartSnapshot) error
	FindBySessionID(sessionID string, limit int) ([]*CartSnapshot, error)
}

// CartRepository defines the operations for persisting AbandonedCart
// entities, including the compare-and-set claim the recovery scheduler
// depends on.
type CartRepository interface {
	FindByID(id string) (*AbandonedCart, error)
	FindByCheckoutID(checkoutID string) (*AbandonedCart, error)
	FindAll(limit, offset int) ([]*AbandonedCart, error)
	FindStale(cutoff time.Time, maxAttempts int) ([]*AbandonedCart, error)

	// FindExpirable returns unresolved carts whose retry budget is spent
	// (released claims only; a delivered notification keeps the cart in
	// RECOVERY_SENT) or whose long-tail window has passed.
	FindExpirable(createdBefore time.Time, maxAttempts int) ([]*AbandonedCart, error)
	Store(cart *AbandonedCart) error
	Update(cart *AbandonedCart) error

	// ClaimForDispatch atomically marks the cart as recovery-sent and bumps
	// the attempt counter, but only while the cart is still unclaimed,
	// unrecovered, and stale as of the cutoff. Returns false when another
	// worker won the claim or fresh activity defeated the staleness check.
	ClaimForDispatch(checkoutID string, cutoff, now time.Time) (bool, error)

	// ReleaseClaim reverses a claim after a failed dispatch so the next
	// sweep retries; the attempt counter is kept.
	ReleaseClaim(checkoutID string) error

	// SetCoupon persists the minted coupon without touching the claim
	// columns or updated_at, so a concurrent claim is never clobbered and
	// retry staleness is not delayed.
	SetCoupon(checkoutID, code string, value int, expiresAt time.Time) error

	MarkRecovered(checkoutID string, now time.Time) (bool, error)
	MarkExpired(checkoutID string, now time.Time) error
}
