package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/YeLlowseaG/clientseeker/pkg/config"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	// StatusCompleted is the only capture status that settles an order.
	StatusCompleted = "COMPLETED"

	issueAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
)

var (
	errClientIDRequired  = errors.New("paypal client id is required")
	errSecretRequired    = errors.New("paypal secret is required")
	errInvalidPayPalEnv  = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)
	errOrderNoRequired   = errors.New("order number is required")
	errProviderIDMissing = errors.New("paypal order id is required")
)

var baseURLs = map[string]string{
	sandboxEnv: sdk.APIBaseSandBox,
	liveEnv:    sdk.APIBaseLive,
}

// Client exposes the two PayPal Orders v2 calls the billing core uses.
type Client struct {
	sdk         *sdk.Client
	environment string
	brand       string
}

// Option configures optional client behavior.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL points the client at a different API host (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			o.baseURL = trimmed
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// OrderRequest is a single-unit CAPTURE order for one catalog product.
type OrderRequest struct {
	OrderNo     string
	Description string
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	CancelURL   string
}

// CreatedOrder is the provider-side order plus the buyer approval link.
type CreatedOrder struct {
	ID         string
	Status     string
	ApproveURL string
}

// CaptureResult summarizes a capture call. Raw is the full provider response.
// ReferenceID is the purchase unit's reference_id (our order number); Amount
// and Currency are what was actually captured.
type CaptureResult struct {
	OrderID     string
	Status      string
	CaptureID   string
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
	Raw         json.RawMessage
}

// Completed reports whether the funds were captured.
func (r *CaptureResult) Completed() bool {
	return r != nil && strings.EqualFold(r.Status, StatusCompleted)
}

// NewClient validates credentials and builds the SDK client. No network call is made.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	o := options{baseURL: baseURLs[env]}
	for _, opt := range opts {
		opt(&o)
	}

	api, err := sdk.NewClient(clientID, secret, o.baseURL)
	if err != nil {
		return nil, fmt.Errorf("init paypal client: %w", err)
	}
	if o.httpClient != nil {
		api.SetHTTPClient(o.httpClient)
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", env))
	}
	return &Client{sdk: api, environment: env, brand: cfg.Brand}, nil
}

// Environment reports the normalized PayPal environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateOrder registers a CAPTURE-intent order whose reference_id is our order number.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*CreatedOrder, error) {
	if req.OrderNo == "" {
		return nil, errOrderNoRequired
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", req.Amount)
	}
	units := []sdk.PurchaseUnitRequest{{
		ReferenceID: req.OrderNo,
		CustomID:    req.OrderNo,
		Description: req.Description,
		Amount: &sdk.PurchaseUnitAmount{
			Currency: strings.ToUpper(req.Currency),
			Value:    req.Amount.StringFixed(2),
		},
	}}
	appCtx := &sdk.ApplicationContext{
		BrandName: c.brand,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	}

	order, err := c.sdk.CreateOrder(ctx, sdk.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return nil, err
	}
	return &CreatedOrder{
		ID:         order.ID,
		Status:     order.Status,
		ApproveURL: approveLink(order.Links),
	}, nil
}

// CaptureOrder captures an approved order. A repeat capture of an already
// captured order reads the order back instead of failing.
func (c *Client) CaptureOrder(ctx context.Context, providerOrderID string) (*CaptureResult, error) {
	if strings.TrimSpace(providerOrderID) == "" {
		return nil, errProviderIDMissing
	}
	resp, err := c.sdk.CaptureOrder(ctx, providerOrderID, sdk.CaptureOrderRequest{})
	if err != nil {
		if !IsAlreadyCaptured(err) {
			return nil, err
		}
		order, getErr := c.sdk.GetOrder(ctx, providerOrderID)
		if getErr != nil {
			return nil, getErr
		}
		raw, _ := json.Marshal(order)
		result := &CaptureResult{OrderID: order.ID, Status: order.Status, Raw: raw}
		if len(order.PurchaseUnits) > 0 {
			unit := order.PurchaseUnits[0]
			result.ReferenceID = firstNonEmpty(unit.ReferenceID, unit.CustomID)
			found := unit.Payments != nil && result.collect(unit.Payments.Captures)
			if !found && unit.Amount != nil {
				result.setAmount(unit.Amount.Value, unit.Amount.Currency)
			}
		}
		return result, nil
	}

	raw, _ := json.Marshal(resp)
	result := &CaptureResult{OrderID: resp.ID, Status: resp.Status, Raw: raw}
	for _, unit := range resp.PurchaseUnits {
		result.ReferenceID = unit.ReferenceID
		if unit.Payments == nil {
			continue
		}
		if result.collect(unit.Payments.Captures) {
			break
		}
	}
	return result, nil
}

// collect records the first capture with an id. It reports whether one was found.
func (r *CaptureResult) collect(captures []sdk.CaptureAmount) bool {
	for _, capture := range captures {
		if capture.ID == "" {
			continue
		}
		r.CaptureID = capture.ID
		if r.ReferenceID == "" {
			r.ReferenceID = capture.CustomID
		}
		if capture.Amount != nil {
			r.setAmount(capture.Amount.Value, capture.Amount.Currency)
		}
		return true
	}
	return false
}

func (r *CaptureResult) setAmount(value, currency string) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return
	}
	r.Amount = amount
	r.Currency = strings.ToUpper(strings.TrimSpace(currency))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsAlreadyCaptured reports whether PayPal rejected a capture because it already happened.
func IsAlreadyCaptured(err error) bool {
	var apiErr *sdk.ErrorResponse
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, detail := range apiErr.Details {
		if detail.Issue == issueAlreadyCaptured {
			return true
		}
	}
	return false
}

// IsRetryable reports whether err is a transport failure or a 5xx from PayPal.
// 4xx responses describe the order itself and never improve on retry.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *sdk.ErrorResponse
	if errors.As(err, &apiErr) {
		return apiErr.Response != nil && apiErr.Response.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func approveLink(links []sdk.Link) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidPayPalEnv
	}
}
