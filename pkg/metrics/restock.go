package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RestockMetrics tracks the restock pipeline: fulfillment passes, allocated
// backorders and waitlist mail.
type RestockMetrics struct {
	restocks      *prometheus.CounterVec
	fulfilled     prometheus.Counter
	skipped       prometheus.Counter
	notifications *prometheus.CounterVec
	expired       prometheus.Counter
}

// NewRestockMetrics registers the restock metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewRestockMetrics(reg prometheus.Registerer) *RestockMetrics {
	if reg == nil {
		return &RestockMetrics{}
	}
	m := &RestockMetrics{
		restocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "restock_events_total",
			Help:      "Restock processing runs by outcome.",
		}, []string{"result"}),
		fulfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backorders_fulfilled_total",
			Help:      "Backorders that received stock in a fulfillment pass.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backorders_skipped_total",
			Help:      "Backorders passed over because remaining stock could not cover them.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "restock_notifications_total",
			Help:      "Waitlist notifications by kind and result.",
		}, []string{"kind", "result"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "restock_schedules_expired_total",
			Help:      "Announced restock dates that lapsed.",
		}),
	}
	reg.MustRegister(m.restocks, m.fulfilled, m.skipped, m.notifications, m.expired)
	return m
}

// ObserveRestock records one restock run.
func (m *RestockMetrics) ObserveRestock(success bool) {
	if m == nil || m.restocks == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.restocks.WithLabelValues(result).Inc()
}

// AddFulfillment records the outcome of a fulfillment pass.
func (m *RestockMetrics) AddFulfillment(fulfilled, skipped int) {
	if m == nil || m.fulfilled == nil {
		return
	}
	m.fulfilled.Add(float64(fulfilled))
	m.skipped.Add(float64(skipped))
}

// ObserveNotification counts one dispatch outcome.
func (m *RestockMetrics) ObserveNotification(kind, result string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

// AddExpired counts lapsed restock schedules.
func (m *RestockMetrics) AddExpired(n int) {
	if m == nil || m.expired == nil {
		return
	}
	m.expired.Add(float64(n))
}
