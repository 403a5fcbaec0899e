package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// WebhookMetrics records billing-event processing outcomes.
type WebhookMetrics struct {
	events   *prometheus.CounterVec
	sessions *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sugarcraft_webhook_events_total",
		Help: "Stripe webhook events processed, by event type and outcome.",
	}, []string{"type", "outcome"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sugarcraft_checkout_sessions_total",
		Help: "Checkout sessions created, by flow.",
	}, []string{"flow"})
	reg.MustRegister(events, sessions)
	return &WebhookMetrics{
		events:   events,
		sessions: sessions,
	}
}

// IncEvent increments the event counter for the given type and outcome.
func (m *WebhookMetrics) IncEvent(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

// IncSession increments the checkout-session counter for the named flow.
func (m *WebhookMetrics) IncSession(flow string) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.WithLabelValues(flow).Inc()
}
