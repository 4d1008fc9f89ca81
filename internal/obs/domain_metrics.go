package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SessionsOpenedTotal counts parking sessions opened, per tenant.
	SessionsOpenedTotal *prometheus.CounterVec
	// SessionsClosedTotal counts session close outcomes (closed, duplicate, error).
	SessionsClosedTotal *prometheus.CounterVec
	// FeesComputedTotal counts fee engine evaluations by outcome class.
	FeesComputedTotal *prometheus.CounterVec
	// RevenueMinorUnits accumulates charged fees in minor units, per tenant.
	RevenueMinorUnits *prometheus.CounterVec
	// WebhookDeliveriesTotal tracks webhook dispatch outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookAttemptLatency records delivery attempt latency in milliseconds.
	WebhookAttemptLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors. Safe to call more than once.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SessionsOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Count of parking sessions opened.",
		}, []string{"tenant"})
		SessionsClosedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Count of session close attempts by outcome.",
		}, []string{"tenant", "result"})
		FeesComputedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_computed_total",
			Help:      "Count of fee computations by outcome (charged, grace, pass).",
		}, []string{"tenant", "outcome"})
		RevenueMinorUnits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_minor_units_total",
			Help:      "Charged parking fees accumulated in minor currency units.",
		}, []string{"tenant"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook delivery outcomes.",
		}, []string{"result"})
		WebhookAttemptLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_attempt_duration_ms",
			Help:      "Latency for webhook delivery attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})

		for _, c := range []prometheus.Collector{
			SessionsOpenedTotal, SessionsClosedTotal, FeesComputedTotal,
			RevenueMinorUnits, WebhookDeliveriesTotal, WebhookAttemptLatency,
		} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}
