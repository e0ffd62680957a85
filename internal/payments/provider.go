package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	"github.com/YeLlowseaG/clientseeker/pkg/paypal"
	"github.com/YeLlowseaG/clientseeker/pkg/stripe"
)

// Provider confirms a charge with an external payment processor.
type Provider interface {
	Name() enums.PaymentProvider
	Capture(ctx context.Context, providerOrderID string) (*Confirmation, error)
	// Retryable reports whether a failed Capture may succeed when repeated.
	Retryable(err error) bool
}

// Confirmation is the provider's answer to a capture. ReferenceID is the
// order number the provider recorded when the payment was created.
type Confirmation struct {
	ProviderOrderID string
	Completed       bool
	Status          string
	ReferenceID     string
	Amount          decimal.Decimal
	Currency        string
	Detail          json.RawMessage
}

type paypalCapturer interface {
	CaptureOrder(ctx context.Context, providerOrderID string) (*paypal.CaptureResult, error)
}

// PayPalProvider captures approved PayPal orders.
type PayPalProvider struct {
	client paypalCapturer
}

func NewPayPalProvider(client paypalCapturer) *PayPalProvider {
	return &PayPalProvider{client: client}
}

func (p *PayPalProvider) Name() enums.PaymentProvider { return enums.PaymentProviderPayPal }

func (p *PayPalProvider) Capture(ctx context.Context, providerOrderID string) (*Confirmation, error) {
	res, err := p.client.CaptureOrder(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}
	return &Confirmation{
		ProviderOrderID: res.OrderID,
		Completed:       res.Completed(),
		Status:          res.Status,
		ReferenceID:     res.ReferenceID,
		Amount:          res.Amount,
		Currency:        res.Currency,
		Detail:          res.Raw,
	}, nil
}

func (p *PayPalProvider) Retryable(err error) bool {
	return paypal.IsRetryable(err)
}

type sessionGetter interface {
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

// StripeProvider confirms Checkout Sessions. Stripe captures on its own, so
// confirming means reading the session back and checking it was paid.
type StripeProvider struct {
	client sessionGetter
}

func NewStripeProvider(client sessionGetter) *StripeProvider {
	return &StripeProvider{client: client}
}

func (p *StripeProvider) Name() enums.PaymentProvider { return enums.PaymentProviderStripe }

func (p *StripeProvider) Capture(ctx context.Context, sessionID string) (*Confirmation, error) {
	sess, err := p.client.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ConfirmationFromSession(sess)
}

// Retryable treats every read failure as transient; reading a session has no side effects.
func (p *StripeProvider) Retryable(err error) bool {
	return err != nil && ctxErr(err) == nil
}

// ConfirmationFromSession converts a Stripe session into a Confirmation.
func ConfirmationFromSession(sess *stripe.CheckoutSession) (*Confirmation, error) {
	if sess == nil {
		return nil, fmt.Errorf("empty checkout session")
	}
	detail, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode checkout session: %w", err)
	}
	return &Confirmation{
		ProviderOrderID: sess.ID,
		Completed:       sess.Paid(),
		Status:          sess.PaymentStatus,
		ReferenceID:     sess.OrderNo,
		Amount:          decimal.New(sess.AmountTotal, -2),
		Currency:        strings.ToUpper(sess.Currency),
		Detail:          detail,
	}, nil
}
