package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/YeLlowseaG/clientseeker/internal/catalog"
	"github.com/YeLlowseaG/clientseeker/internal/orders"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

type productSource interface {
	Get(id string) (catalog.Product, error)
}

type userEnsurer interface {
	EnsureByEmail(ctx context.Context, userUUID uuid.UUID, email string) (*models.User, error)
}

type numberSource interface {
	Next() string
}

// Service starts purchases.
type Service interface {
	Start(ctx context.Context, input Input) (*Result, error)
}

// Input is a purchase request from an authenticated user.
type Input struct {
	UserUUID  uuid.UUID
	Email     string
	ProductID string
	Provider  enums.PaymentProvider
}

// Result tells the client where to send the buyer.
type Result struct {
	OrderNo         string                `json:"order_no"`
	Provider        enums.PaymentProvider `json:"provider"`
	ProviderOrderID string                `json:"provider_order_id"`
	ApproveURL      string                `json:"approve_url"`
}

type ServiceParams struct {
	Catalog  productSource
	Users    userEnsurer
	Orders   orders.Repository
	Numbers  numberSource
	Gateways []Gateway
	// PublicURL is the web front end the provider redirects back to.
	PublicURL string
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	catalog   productSource
	users     userEnsurer
	orders    orders.Repository
	numbers   numberSource
	gateways  map[enums.PaymentProvider]Gateway
	publicURL string
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Numbers == nil {
		return nil, fmt.Errorf("order number generator required")
	}
	publicURL := strings.TrimRight(strings.TrimSpace(params.PublicURL), "/")
	if _, err := url.ParseRequestURI(publicURL); err != nil {
		return nil, fmt.Errorf("public url: %w", err)
	}
	gateways := make(map[enums.PaymentProvider]Gateway, len(params.Gateways))
	for _, g := range params.Gateways {
		if g != nil {
			gateways[g.Name()] = g
		}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		catalog:   params.Catalog,
		users:     params.Users,
		orders:    params.Orders,
		numbers:   params.Numbers,
		gateways:  gateways,
		publicURL: publicURL,
		logg:      params.Logger,
		now:       func() time.Time { return now().UTC() },
	}, nil
}

// Start snapshots the product into a pending order and opens the provider
// checkout for it. If the provider call fails the order stays pending until
// the timeout job fails it.
func (s *service) Start(ctx context.Context, input Input) (*Result, error) {
	if input.UserUUID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account email is required")
	}
	provider := input.Provider
	if provider == "" {
		provider = enums.PaymentProviderPayPal
	}
	gateway, ok := s.gateways[provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment provider %s is not available", provider))
	}
	product, err := s.catalog.Get(input.ProductID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.EnsureByEmail(ctx, input.UserUUID, input.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure user")
	}

	orderNo := s.numbers.Next()
	order := &models.Order{
		OrderNo:     orderNo,
		UserUUID:    user.UUID,
		UserEmail:   user.Email,
		ProductID:   product.ID,
		ProductName: product.Name,
		Credits:     product.Credits,
		ValidMonths: product.ValidMonths,
		Amount:      product.Amount,
		Currency:    product.Currency,
		Status:      enums.OrderStatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderNo(ctx, orderNo)
	}

	opened, err := gateway.Open(ctx, GatewayRequest{
		OrderNo:     orderNo,
		ProductName: product.Name,
		Amount:      product.Amount,
		Currency:    product.Currency,
		Email:       user.Email,
		ReturnURL:   s.redirect("/pay/success", orderNo),
		CancelURL:   s.redirect("/pay/cancel", orderNo),
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "provider", provider.String()), "open provider checkout failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open provider checkout")
	}
	if err := s.orders.AttachProviderOrder(ctx, orderNo, provider, opened.ProviderOrderID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record provider order")
	}

	return &Result{
		OrderNo:         orderNo,
		Provider:        provider,
		ProviderOrderID: opened.ProviderOrderID,
		ApproveURL:      opened.ApproveURL,
	}, nil
}

func (s *service) redirect(path, orderNo string) string {
	q := url.Values{}
	q.Set("order_no", orderNo)
	return s.publicURL + path + "?" + q.Encode()
}
