package enums

import "testing"

func TestOrderStatusSettled(t *testing.T) {
	cases := map[OrderStatus]bool{
		OrderStatusPending:   false,
		OrderStatusPaid:      true,
		OrderStatusCompleted: true,
		OrderStatusFailed:    false,
	}
	for status, want := range cases {
		if got := status.IsSettled(); got != want {
			t.Fatalf("%s: expected settled=%v, got %v", status, want, got)
		}
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	if _, err := ParseOrderStatus("refunded"); err == nil {
		t.Fatal("expected error for unknown order status")
	}
	if _, err := ParseSubscriptionStatus("trialing"); err == nil {
		t.Fatal("expected error for unknown subscription status")
	}
	if _, err := ParseCreditTransType("bonus"); err == nil {
		t.Fatal("expected error for unknown trans type")
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParsePaymentProviderNormalizes(t *testing.T) {
	got, err := ParsePaymentProvider(" PayPal ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != PaymentProviderPayPal {
		t.Fatalf("expected paypal, got %q", got)
	}
	if _, err := ParsePaymentProvider("square"); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestCreditTransTypeIsGrant(t *testing.T) {
	if !CreditTransOrderPay.IsGrant() || !CreditTransSystemAdd.IsGrant() {
		t.Fatal("order_pay and system_add are grants")
	}
	if CreditTransConsume.IsGrant() || CreditTransExpire.IsGrant() {
		t.Fatal("consume and expire are not grants")
	}
}

func TestOutboxDLQErrorReasonIsValid(t *testing.T) {
	if !OutboxDLQReasonMaxAttempts.IsValid() || !OutboxDLQReasonNonRetryable.IsValid() {
		t.Fatal("known dlq reasons must be valid")
	}
	if OutboxDLQErrorReason("timeout").IsValid() {
		t.Fatal("unknown dlq reason accepted")
	}
}
