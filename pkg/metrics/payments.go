package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Capture outcomes.
const (
	CaptureOutcomeSettled        = "settled"
	CaptureOutcomeReplayed       = "replayed"
	CaptureOutcomeNotFound       = "not_found"
	CaptureOutcomeProviderFailed = "provider_failed"
	CaptureOutcomeError          = "error"
)

// PaymentMetrics counts capture attempts and subscription/credit side effects.
type PaymentMetrics struct {
	captures      *prometheus.CounterVec
	activations   prometheus.Counter
	creditsIssued *prometheus.CounterVec
}

// NewPaymentMetrics registers billing counters on reg. A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	captures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clientseeker_payment_capture_total",
		Help: "Payment capture attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	activations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clientseeker_subscription_activations_total",
		Help: "Subscriptions activated from paid orders.",
	})
	creditsIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clientseeker_credits_granted_total",
		Help: "Credits granted to users by source.",
	}, []string{"source"})
	reg.MustRegister(captures, activations, creditsIssued)
	return &PaymentMetrics{
		captures:      captures,
		activations:   activations,
		creditsIssued: creditsIssued,
	}
}

// IncCapture records one capture attempt.
func (p *PaymentMetrics) IncCapture(provider, outcome string) {
	if p == nil || p.captures == nil {
		return
	}
	p.captures.WithLabelValues(normalizeLabel(strings.ToLower(provider)), normalizeLabel(outcome)).Inc()
}

func (p *PaymentMetrics) IncActivation() {
	if p == nil || p.activations == nil {
		return
	}
	p.activations.Inc()
}

// AddCreditsGranted adds n credits under source ("order" or "admin").
func (p *PaymentMetrics) AddCreditsGranted(source string, n int64) {
	if p == nil || p.creditsIssued == nil || n <= 0 {
		return
	}
	p.creditsIssued.WithLabelValues(normalizeLabel(source)).Add(float64(n))
}
