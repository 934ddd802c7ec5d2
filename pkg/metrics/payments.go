package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks gateway calls, payment transitions, and webhook traffic.
type PaymentMetrics struct {
	gatewayDuration *prometheus.HistogramVec
	gatewayFailures *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_call_duration_seconds",
		Help:    "Duration of outbound payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "method"})
	gatewayFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_call_failures",
		Help: "Failed outbound payment gateway calls.",
	}, []string{"gateway", "method"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_state_transitions",
		Help: "Payment state machine transitions.",
	}, []string{"from", "to"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events",
		Help: "Gateway webhook events received, labeled by outcome.",
	}, []string{"gateway", "outcome"})
	reg.MustRegister(gatewayDuration, gatewayFailures, transitions, webhookEvents)
	return &PaymentMetrics{
		gatewayDuration: gatewayDuration,
		gatewayFailures: gatewayFailures,
		transitions:     transitions,
		webhookEvents:   webhookEvents,
	}
}

// ObserveGatewayCall records the latency of a gateway call.
func (p *PaymentMetrics) ObserveGatewayCall(gateway, method string, duration time.Duration) {
	if p == nil || p.gatewayDuration == nil {
		return
	}
	p.gatewayDuration.WithLabelValues(normalizeLabel(gateway), normalizeLabel(method)).Observe(duration.Seconds())
}

// IncGatewayFailure increments the failure counter for a gateway call.
func (p *PaymentMetrics) IncGatewayFailure(gateway, method string) {
	if p == nil || p.gatewayFailures == nil {
		return
	}
	p.gatewayFailures.WithLabelValues(normalizeLabel(gateway), normalizeLabel(method)).Inc()
}

// IncTransition increments the transition counter for a payment state change.
func (p *PaymentMetrics) IncTransition(from, to string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncWebhookEvent increments the webhook counter for the given outcome.
func (p *PaymentMetrics) IncWebhookEvent(gateway, outcome string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}
