package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	"github.com/YeLlowseaG/clientseeker/pkg/paypal"
	"github.com/YeLlowseaG/clientseeker/pkg/stripe"
)

// Gateway opens the provider-side payment the buyer is redirected to.
type Gateway interface {
	Name() enums.PaymentProvider
	Open(ctx context.Context, req GatewayRequest) (*GatewayCheckout, error)
}

// GatewayRequest describes one purchase of one product.
type GatewayRequest struct {
	OrderNo     string
	ProductName string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	ReturnURL   string
	CancelURL   string
}

// GatewayCheckout is where the buyer approves the payment.
type GatewayCheckout struct {
	ProviderOrderID string
	ApproveURL      string
}

type paypalOrderCreator interface {
	CreateOrder(ctx context.Context, req paypal.OrderRequest) (*paypal.CreatedOrder, error)
}

type PayPalGateway struct {
	client paypalOrderCreator
}

func NewPayPalGateway(client paypalOrderCreator) *PayPalGateway {
	return &PayPalGateway{client: client}
}

func (g *PayPalGateway) Name() enums.PaymentProvider { return enums.PaymentProviderPayPal }

func (g *PayPalGateway) Open(ctx context.Context, req GatewayRequest) (*GatewayCheckout, error) {
	order, err := g.client.CreateOrder(ctx, paypal.OrderRequest{
		OrderNo:     req.OrderNo,
		Description: req.ProductName,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		return nil, err
	}
	return &GatewayCheckout{ProviderOrderID: order.ID, ApproveURL: order.ApproveURL}, nil
}

type stripeSessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error)
}

type StripeGateway struct {
	client stripeSessionCreator
}

func NewStripeGateway(client stripeSessionCreator) *StripeGateway {
	return &StripeGateway{client: client}
}

func (g *StripeGateway) Name() enums.PaymentProvider { return enums.PaymentProviderStripe }

func (g *StripeGateway) Open(ctx context.Context, req GatewayRequest) (*GatewayCheckout, error) {
	sess, err := g.client.CreateCheckoutSession(ctx, stripe.CheckoutRequest{
		OrderNo:       req.OrderNo,
		ProductName:   req.ProductName,
		Amount:        req.Amount,
		Currency:      req.Currency,
		CustomerEmail: req.Email,
		SuccessURL:    req.ReturnURL,
		CancelURL:     req.CancelURL,
	})
	if err != nil {
		return nil, err
	}
	return &GatewayCheckout{ProviderOrderID: sess.ID, ApproveURL: sess.URL}, nil
}
