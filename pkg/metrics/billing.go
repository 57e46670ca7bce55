package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics records admission decisions, webhook outcomes and downstream latency.
type BillingMetrics struct {
	admissions *prometheus.CounterVec
	webhooks   *prometheus.CounterVec
	completion *prometheus.HistogramVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_decisions_total",
		Help: "Metered request admission decisions.",
	}, []string{"decision", "reason"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Billing webhook deliveries by event and outcome.",
	}, []string{"event", "outcome"})
	completion := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "completion_duration_seconds",
		Help:    "Duration of downstream completion calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(admissions, webhooks, completion)
	return &BillingMetrics{
		admissions: admissions,
		webhooks:   webhooks,
		completion: completion,
	}
}

// IncAdmission counts one admission decision. Admitted requests carry an empty reason.
func (m *BillingMetrics) IncAdmission(admitted bool, reason string) {
	if m == nil || m.admissions == nil {
		return
	}
	decision := "rejected"
	if admitted {
		decision = "admitted"
		reason = "none"
	}
	m.admissions.WithLabelValues(decision, normalizeLabel(reason)).Inc()
}

// IncWebhook counts one webhook delivery.
func (m *BillingMetrics) IncWebhook(event, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

// ObserveCompletion records a downstream call duration.
func (m *BillingMetrics) ObserveCompletion(outcome string, duration time.Duration) {
	if m == nil || m.completion == nil {
		return
	}
	m.completion.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
