package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/YeLlowseaG/clientseeker/internal/payments"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
)

type stubSettler struct {
	calls []payments.SettleInput
	err   error
}

func (s *stubSettler) Settle(_ context.Context, input payments.SettleInput) (*payments.Result, error) {
	s.calls = append(s.calls, input)
	if s.err != nil {
		return nil, s.err
	}
	return &payments.Result{Success: true}, nil
}

func sessionEvent(t *testing.T, typ stripe.EventType, status stripe.CheckoutSessionPaymentStatus, orderNo string) *stripe.Event {
	t.Helper()
	sess := stripe.CheckoutSession{ID: "cs_test_1", PaymentStatus: status, AmountTotal: 990}
	if orderNo != "" {
		sess.Metadata = map[string]string{"order_no": orderNo}
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{ID: "evt_1", Type: typ, Created: 1767225600, Data: &stripe.EventData{Raw: raw}}
}

func TestHandleEventSettlesPaidSession(t *testing.T) {
	settler := &stubSettler{}
	svc, err := NewService(settler, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSessionPaymentStatusPaid, "CS100")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(settler.calls) != 1 {
		t.Fatalf("expected one settlement, got %d", len(settler.calls))
	}
	got := settler.calls[0]
	if got.OrderNo != "CS100" || got.Provider != enums.PaymentProviderStripe || got.ProviderOrderID != "cs_test_1" {
		t.Fatalf("unexpected settle input %+v", got)
	}
	if !got.PaidAt.Equal(time.Unix(1767225600, 0)) {
		t.Fatalf("expected paid_at from event, got %v", got.PaidAt)
	}
	if len(got.PaidDetail) == 0 {
		t.Fatalf("expected paid detail")
	}
}

func TestHandleEventIgnoresUnpaidAndForeignSessions(t *testing.T) {
	settler := &stubSettler{}
	svc, _ := NewService(settler, nil)

	events := []*stripe.Event{
		sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSessionPaymentStatusUnpaid, "CS100"),
		sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSessionPaymentStatusPaid, ""),
		sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentFailed, stripe.CheckoutSessionPaymentStatusUnpaid, "CS100"),
		{ID: "evt_2", Type: stripe.EventTypeInvoicePaid, Data: &stripe.EventData{Raw: []byte(`{}`)}},
	}
	for _, event := range events {
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("event %s: %v", event.Type, err)
		}
	}
	if len(settler.calls) != 0 {
		t.Fatalf("expected no settlement, got %d", len(settler.calls))
	}
}

func TestHandleEventPropagatesSettlementErrors(t *testing.T) {
	settler := &stubSettler{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	svc, _ := NewService(settler, nil)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, stripe.CheckoutSessionPaymentStatusPaid, "CS100"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestHandleEventAcksUnknownOrder(t *testing.T) {
	settler := &stubSettler{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	svc, _ := NewService(settler, nil)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSessionPaymentStatusPaid, "CS404"))
	if err != nil {
		t.Fatalf("expected unknown order to be acknowledged, got %v", err)
	}
	if len(settler.calls) != 1 {
		t.Fatalf("expected one settlement attempt, got %d", len(settler.calls))
	}
}

func TestHandleEventRejectsMissingData(t *testing.T) {
	svc, _ := NewService(&stubSettler{}, nil)
	if err := svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventTypeCheckoutSessionCompleted}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type memStore struct {
	keys map[string]bool
	err  error
}

func (m *memStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memStore) Set(_ context.Context, key string, _ any, _ time.Duration) error {
	m.keys[key] = true
	return nil
}

func (m *memStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func TestEventGuardClaimRelease(t *testing.T) {
	store := &memStore{keys: map[string]bool{}}
	guard, err := NewEventGuard(store, time.Hour, "")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	ctx := context.Background()

	if ok, err := guard.Claim(ctx, "evt_1"); err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if ok, _ := guard.Claim(ctx, "evt_1"); ok {
		t.Fatalf("second claim should be rejected")
	}
	if err := guard.Release(ctx, "evt_1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := guard.Claim(ctx, "evt_1"); !ok {
		t.Fatalf("claim after release should succeed")
	}
	if !store.keys["stripe-webhook:evt_1"] {
		t.Fatalf("expected default scope in key")
	}

	store.err = errors.New("redis down")
	if _, err := guard.Claim(ctx, "evt_2"); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := NewEventGuard(store, 0, "x"); err == nil {
		t.Fatalf("expected ttl validation")
	}
}
