package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/YeLlowseaG/clientseeker/internal/payments"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	pkgstripe "github.com/YeLlowseaG/clientseeker/pkg/stripe"
)

type settler interface {
	Settle(ctx context.Context, input payments.SettleInput) (*payments.Result, error)
}

// Service turns paid Checkout Sessions into settled orders.
type Service struct {
	payments settler
	logg     *logger.Logger
}

func NewService(payments settler, logg *logger.Logger) (*Service, error) {
	if payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	return &Service{payments: payments, logg: logg}, nil
}

// HandleEvent settles the order behind a paid checkout session. Other event
// types, unpaid sessions, sessions this service did not create and sessions
// naming an unknown order are acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		s.info(ctx, event, "async checkout payment failed; order left pending")
		return nil
	default:
		return nil
	}

	var raw stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	sess := pkgstripe.FromSession(&raw)
	if sess.OrderNo == "" {
		s.info(ctx, event, "checkout session without order number ignored")
		return nil
	}
	if !sess.Paid() {
		s.info(ctx, event, "checkout session not paid yet")
		return nil
	}

	conf, err := payments.ConfirmationFromSession(sess)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout session")
	}
	paidAt := time.Unix(event.Created, 0).UTC()
	if event.Created == 0 {
		paidAt = time.Now().UTC()
	}
	_, err = s.payments.Settle(ctx, payments.SettleInput{
		OrderNo:         sess.OrderNo,
		Provider:        enums.PaymentProviderStripe,
		ProviderOrderID: sess.ID,
		PaidAt:          paidAt,
		PaidDetail:      conf.Detail,
	})
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		// Redelivery cannot create the order; ack so Stripe stops retrying.
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(s.logg.WithOrderNo(ctx, sess.OrderNo), map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_session_id": sess.ID,
			}), "checkout session references unknown order; acknowledged")
		}
		return nil
	}
	return err
}

func (s *Service) info(ctx context.Context, event *stripe.Event, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)}), msg)
}
