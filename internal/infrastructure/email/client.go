// Package email provides the Resend-backed recovery notification dispatcher.
package email

import (
	"context"
	"fmt"
	"os"

	"github.com/resendlabs/resend-go"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/email/templates"
)

// Client sends recovery notifications through Resend. It implements
// tracking.Dispatcher.
type Client struct {
	resend    *resend.Client
	fromEmail string
	fromName  string
}

// NewClient builds a dispatcher from environment credentials.
func NewClient() (*Client, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}

	fromEmail := os.Getenv("SENDER_EMAIL")
	if fromEmail == "" {
		fromEmail = "noreply@yourdomain.com"
	}

	fromName := os.Getenv("SENDER_NAME")
	if fromName == "" {
		fromName = "CartLoop"
	}

	return &Client{
		resend:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// NewClientWithCredentials builds a dispatcher with explicit per-tenant
// credentials from the tenant's env.json.
func NewClientWithCredentials(apiKey, fromEmail, fromName string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if fromEmail == "" {
		fromEmail = "noreply@yourdomain.com"
	}
	if fromName == "" {
		fromName = "CartLoop"
	}

	return &Client{
		resend:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// WithSender returns a dispatcher using the tenant's own sending identity.
// An empty profile falls through to the shared client.
func (c *Client) WithSender(profile tracking.SenderProfile) tracking.Dispatcher {
	if profile.APIKey == "" {
		return c
	}

	fromEmail := profile.FromEmail
	if fromEmail == "" {
		fromEmail = c.fromEmail
	}
	fromName := profile.FromName
	if fromName == "" {
		fromName = c.fromName
	}

	tenantClient, err := NewClientWithCredentials(profile.APIKey, fromEmail, fromName)
	if err != nil {
		return c
	}
	return tenantClient
}

// Send delivers a recovery notification for the cart. The Resend SDK has no
// context support, so the call runs in a goroutine and the ctx deadline
// converts into a dispatch failure.
func (c *Client) Send(ctx context.Context, dispatchType tracking.DispatchType, cart *tracking.AbandonedCart) (*tracking.DispatchResult, error) {
	subject := "You left something in your cart"
	if dispatchType == tracking.DispatchRecoveryCoupon {
		subject = fmt.Sprintf("Your cart is waiting — here's %d%% off", cart.CouponValue)
	}

	props := templates.RecoveryEmailProps{
		CartURL:    cart.CartURL,
		TotalValue: cart.TotalValue.StringFixed(2),
		Currency:   cart.Currency,
		ItemsCount: cart.ItemsCount,
	}
	if dispatchType == tracking.DispatchRecoveryCoupon {
		props.CouponCode = cart.CouponCode
		props.CouponValue = cart.CouponValue
		if cart.CouponExpiresAt != nil {
			props.CouponExpiry = cart.CouponExpiresAt.Format("January 2, 2006 at 15:04 MST")
		}
	}

	htmlContent := templates.GetEmailLayout(templates.EmailLayoutProps{
		Content: templates.GetRecoveryEmailContent(props),
	})

	request := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{cart.Email},
		Subject: subject,
		Html:    htmlContent,
	}

	type sendOutcome struct {
		id  string
		err error
	}
	done := make(chan sendOutcome, 1)

	go func() {
		sent, err := c.resend.Emails.Send(request)
		if err != nil {
			done <- sendOutcome{err: err}
			return
		}
		done <- sendOutcome{id: sent.Id}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("recovery dispatch timed out: %w", ctx.Err())
	case outcome := <-done:
		if outcome.err != nil {
			return nil, fmt.Errorf("failed to send recovery email: %w", outcome.err)
		}
		return &tracking.DispatchResult{MessageID: outcome.id, Accepted: true}, nil
	}
}
