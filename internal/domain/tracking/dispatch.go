package tracking

import "context"

// DispatchType identifies the kind of recovery notification being sent.
type DispatchType string

const (
	DispatchRecoveryEmail  DispatchType = "recovery-email"
	DispatchRecoveryCoupon DispatchType = "recovery-coupon"
)

// DispatchResult reports the outcome of a delivery attempt.
type DispatchResult struct {
	MessageID string `json:"messageId,omitempty"`
	Accepted  bool   `json:"accepted"`
}

// Dispatcher is the narrow seam to the notification channel. Implementations
// must respect ctx cancellation; a timed-out send counts as a failure.
type Dispatcher interface {
	Send(ctx context.Context, dispatchType DispatchType, cart *AbandonedCart) (*DispatchResult, error)
}

// SenderProfile is a tenant's own sending identity. The zero value selects
// the process-wide default sender.
type SenderProfile struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// CredentialedDispatcher is implemented by dispatchers that can send under a
// tenant's own credentials instead of the shared ones.
type CredentialedDispatcher interface {
	Dispatcher
	WithSender(profile SenderProfile) Dispatcher
}
