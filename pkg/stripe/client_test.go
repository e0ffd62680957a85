package stripe

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/YeLlowseaG/clientseeker/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{WebhookSecret: "whsec"}, nil)
	require.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1"}, nil)
	require.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_live_1", WebhookSecret: "whsec", Env: "test"}, nil)
	require.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", WebhookSecret: "whsec", Env: "staging"}, nil)
	require.ErrorIs(t, err, errInvalidStripeEnv)

	client, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_live_1", WebhookSecret: " whsec ", Env: "LIVE"}, nil)
	require.NoError(t, err)
	require.Equal(t, "live", client.Environment())
	require.Equal(t, "whsec", client.SigningSecret())
}

func TestToMinorUnits(t *testing.T) {
	cents, err := ToMinorUnits(decimal.RequireFromString("19.90"))
	require.NoError(t, err)
	require.Equal(t, int64(1990), cents)

	_, err = ToMinorUnits(decimal.Zero)
	require.Error(t, err)

	_, err = ToMinorUnits(decimal.RequireFromString("1.999"))
	require.Error(t, err)
}

func TestFromSession(t *testing.T) {
	sess := &stripe.CheckoutSession{
		ID:                "cs_test_1",
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		ClientReferenceID: "CS-fallback",
		Metadata:          map[string]string{MetadataOrderNo: "CS123"},
		PaymentIntent:     &stripe.PaymentIntent{ID: "pi_1"},
		AmountTotal:       1990,
	}
	got := FromSession(sess)
	require.True(t, got.Paid())
	require.Equal(t, "CS123", got.OrderNo)
	require.Equal(t, "pi_1", got.PaymentIntent)

	sess.Metadata = nil
	sess.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
	got = FromSession(sess)
	require.False(t, got.Paid())
	require.Equal(t, "CS-fallback", got.OrderNo)

	require.Nil(t, FromSession(nil))
}
