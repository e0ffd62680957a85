package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPaymentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.IncCapture("PayPal", CaptureOutcomeSettled)
	m.IncCapture("paypal", CaptureOutcomeSettled)
	m.IncCapture("stripe", CaptureOutcomeProviderFailed)
	m.IncActivation()
	m.AddCreditsGranted("order", 100)
	m.AddCreditsGranted("order", 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	captured, err := fetchCounterValue(mfs, "clientseeker_payment_capture_total", map[string]string{"provider": "paypal", "outcome": CaptureOutcomeSettled})
	require.NoError(t, err)
	require.Equal(t, float64(2), captured)

	granted, err := fetchCounterValue(mfs, "clientseeker_credits_granted_total", map[string]string{"source": "order"})
	require.NoError(t, err)
	require.Equal(t, float64(100), granted)

	activations, err := fetchCounterValue(mfs, "clientseeker_subscription_activations_total", nil)
	require.NoError(t, err)
	require.Equal(t, float64(1), activations)
}

func TestPaymentMetricsNilSafe(t *testing.T) {
	var m *PaymentMetrics
	m.IncCapture("paypal", CaptureOutcomeProviderFailed)
	m.IncActivation()
	m.AddCreditsGranted("admin", 5)
}
