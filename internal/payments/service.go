package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/internal/ledger"
	"github.com/YeLlowseaG/clientseeker/internal/orders"
	"github.com/YeLlowseaG/clientseeker/internal/subscriptions"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/metrics"
	"github.com/YeLlowseaG/clientseeker/pkg/outbox"
)

const (
	defaultMaxAttempts = 1
	grantTransSuffix   = ":grant"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLocker interface {
	Lock(ctx context.Context, tx *gorm.DB, userUUID uuid.UUID) (bool, error)
}

type activator interface {
	ActivateFromOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*subscriptions.Activation, error)
}

type granter interface {
	Grant(ctx context.Context, tx *gorm.DB, input ledger.GrantInput) (bool, error)
}

// Service confirms payments and settles the orders they pay for.
type Service interface {
	Capture(ctx context.Context, input CaptureInput) (*Result, error)
	Settle(ctx context.Context, input SettleInput) (*Result, error)
}

// CaptureInput identifies a provider-side payment and the order it pays for.
// UserUUID, when set, must own the order.
type CaptureInput struct {
	ProviderOrderID string
	OrderNo         string
	UserUUID        uuid.UUID
	Provider        enums.PaymentProvider
}

// SettleInput records a confirmed payment against an order.
type SettleInput struct {
	OrderNo         string
	Provider        enums.PaymentProvider
	ProviderOrderID string
	PaidAt          time.Time
	PaidDetail      []byte
}

// Result is the capture response. Replayed is true when the order had already
// been settled and nothing changed.
type Result struct {
	Success  bool             `json:"success"`
	Order    *orders.OrderDTO `json:"order,omitempty"`
	Replayed bool             `json:"-"`
}

type ServiceParams struct {
	Orders        orders.Repository
	Users         userLocker
	Subscriptions activator
	Ledger        granter
	Tx            txRunner
	Outbox        outbox.Emitter
	Providers     []Provider
	Metrics       *metrics.PaymentMetrics
	Logger        *logger.Logger
	MaxAttempts   int
	RetryBackoff  time.Duration
	Now           func() time.Time
}

type service struct {
	orders        orders.Repository
	users         userLocker
	subscriptions activator
	ledger        granter
	tx            txRunner
	outbox        outbox.Emitter
	providers     map[enums.PaymentProvider]Provider
	metrics       *metrics.PaymentMetrics
	logg          *logger.Logger
	maxAttempts   int
	backoff       time.Duration
	now           func() time.Time
}

// NewService validates dependencies and builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user locker required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	providers := make(map[enums.PaymentProvider]Provider, len(params.Providers))
	for _, p := range params.Providers {
		if p == nil {
			continue
		}
		providers[p.Name()] = p
	}
	attempts := params.MaxAttempts
	if attempts < defaultMaxAttempts {
		attempts = defaultMaxAttempts
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		orders:        params.Orders,
		users:         params.Users,
		subscriptions: params.Subscriptions,
		ledger:        params.Ledger,
		tx:            params.Tx,
		outbox:        params.Outbox,
		providers:     providers,
		metrics:       params.Metrics,
		logg:          params.Logger,
		maxAttempts:   attempts,
		backoff:       params.RetryBackoff,
		now:           func() time.Time { return now().UTC() },
	}, nil
}

// Capture confirms the payment with the provider and settles the order once.
// A settled order is returned as-is without contacting the provider.
func (s *service) Capture(ctx context.Context, input CaptureInput) (*Result, error) {
	orderNo := strings.TrimSpace(input.OrderNo)
	providerOrderID := strings.TrimSpace(input.ProviderOrderID)
	if orderNo == "" || providerOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderID and orderNo are required")
	}
	providerName := input.Provider
	if providerName == "" {
		providerName = enums.PaymentProviderPayPal
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderNo(ctx, orderNo)
	}

	order, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeNotFound)
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if input.UserUUID != uuid.Nil && order.UserUUID != input.UserUUID {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeError)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	if order.Provider != nil {
		providerName = *order.Provider
	}
	if order.Status.IsSettled() {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeReplayed)
		return &Result{Success: true, Order: orders.FromModel(order), Replayed: true}, nil
	}
	if order.Status == enums.OrderStatusFailed {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeError)
		return nil, orderFailedError(orderNo)
	}
	if order.ProviderOrderID == nil {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeError)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no provider payment to capture")
	}
	if *order.ProviderOrderID != providerOrderID {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeError)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderID does not belong to this order")
	}

	provider, ok := s.providers[providerName]
	if !ok {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeError)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment provider %s is not configured", providerName))
	}

	conf, err := s.confirm(ctx, provider, providerOrderID)
	if err != nil {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeProviderFailed)
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "provider", providerName.String()), "payment capture failed; order left pending")
		}
		return nil, err
	}
	if err := matchOrder(order, conf); err != nil {
		s.metrics.IncCapture(providerName.String(), metrics.CaptureOutcomeProviderFailed)
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "provider", providerName.String()), "captured payment does not match order", err)
		}
		return nil, err
	}

	return s.Settle(ctx, SettleInput{
		OrderNo:         orderNo,
		Provider:        providerName,
		ProviderOrderID: providerOrderID,
		PaidAt:          s.now(),
		PaidDetail:      conf.Detail,
	})
}

// matchOrder checks that the provider charged for this order, at its price.
func matchOrder(order *models.Order, conf *Confirmation) error {
	if conf.ReferenceID != order.OrderNo {
		return pkgerrors.ProviderCaptureFailed(nil, fmt.Sprintf("payment reference %q does not match order", conf.ReferenceID))
	}
	if !conf.Amount.Equal(order.Amount) || !strings.EqualFold(conf.Currency, order.Currency) {
		return pkgerrors.ProviderCaptureFailed(nil, fmt.Sprintf("captured %s %s, order is %s %s",
			conf.Amount.StringFixed(2), conf.Currency, order.Amount.StringFixed(2), order.Currency))
	}
	return nil
}

// confirm calls the provider, retrying transport failures with backoff.
func (s *service) confirm(ctx context.Context, provider Provider, providerOrderID string) (*Confirmation, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		conf, err := provider.Capture(ctx, providerOrderID)
		if err == nil {
			if !conf.Completed {
				return nil, pkgerrors.ProviderCaptureFailed(nil, fmt.Sprintf("payment not completed (status %s)", conf.Status))
			}
			return conf, nil
		}
		lastErr = err
		if attempt == s.maxAttempts || !provider.Retryable(err) {
			break
		}
		if err := sleep(ctx, s.backoff*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return nil, pkgerrors.ProviderCaptureFailed(lastErr, "payment provider capture failed")
}

// Settle marks the order paid, opens its subscription, grants its credits and
// completes it in one transaction. The conditional pending->paid write decides
// the single winner among concurrent callers; everyone else gets the settled
// order back.
func (s *service) Settle(ctx context.Context, input SettleInput) (*Result, error) {
	orderNo := strings.TrimSpace(input.OrderNo)
	if orderNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	var (
		replayed   bool
		activation *subscriptions.Activation
		credited   int64
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByOrderNo(ctx, orderNo)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if _, err := s.users.Lock(ctx, tx, order.UserUUID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user")
		}

		paid, err := repo.MarkPaid(ctx, orders.MarkPaidInput{
			OrderNo:         orderNo,
			PaidAt:          paidAt,
			Provider:        input.Provider,
			ProviderOrderID: input.ProviderOrderID,
			PaidDetail:      datatypes.JSON(input.PaidDetail),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !paid {
			current, err := repo.FindByOrderNo(ctx, orderNo)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
			if current == nil || !current.Status.IsSettled() {
				return orderFailedError(orderNo)
			}
			replayed = true
			return nil
		}

		activation, err = s.subscriptions.ActivateFromOrder(ctx, tx, order)
		if err != nil {
			return err
		}
		periodEnd := activation.Subscription.PeriodEnd
		granted, err := s.ledger.Grant(ctx, tx, ledger.GrantInput{
			UserUUID:  order.UserUUID,
			TransNo:   orderNo + grantTransSuffix,
			TransType: enums.CreditTransOrderPay,
			Credits:   order.Credits,
			OrderNo:   &orderNo,
			ExpiredAt: &periodEnd,
		})
		if err != nil {
			return err
		}
		if granted {
			credited = order.Credits
		}
		if _, err := repo.MarkCompleted(ctx, orderNo); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order completed")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderNo,
			Data: outbox.OrderPaidEvent{
				OrderNo:         orderNo,
				UserUUID:        order.UserUUID.String(),
				ProductID:       order.ProductID,
				Amount:          order.Amount.StringFixed(2),
				Currency:        order.Currency,
				Provider:        input.Provider.String(),
				ProviderOrderID: input.ProviderOrderID,
				PaidAt:          paidAt.UTC(),
			},
		})
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.metrics.IncCapture(input.Provider.String(), metrics.CaptureOutcomeNotFound)
		} else {
			s.metrics.IncCapture(input.Provider.String(), metrics.CaptureOutcomeError)
		}
		return nil, err
	}

	order, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if replayed {
		s.metrics.IncCapture(input.Provider.String(), metrics.CaptureOutcomeReplayed)
		return &Result{Success: true, Order: orders.FromModel(order), Replayed: true}, nil
	}

	s.metrics.IncCapture(input.Provider.String(), metrics.CaptureOutcomeSettled)
	if activation != nil && activation.Created {
		s.metrics.IncActivation()
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_no": orderNo,
			"provider": input.Provider.String(),
			"credits":  credited,
		})
		s.logg.Info(logCtx, "order settled")
	}
	return &Result{Success: true, Order: orders.FromModel(order)}, nil
}

func orderFailedError(orderNo string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer payable").
		WithDetails(map[string]any{"reason": pkgerrors.ReasonOrderFailed, "order_no": orderNo})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func ctxErr(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return nil
	}
}
