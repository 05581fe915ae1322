package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bot process.
type Metrics struct {
	EventsHandled     *prometheus.CounterVec
	RemindersSent     prometheus.Counter
	DeliveryFailures  prometheus.Counter
	SweepRuns         prometheus.Counter
	SweepDurationSecs prometheus.Histogram
}

// New creates and registers all Prometheus metrics on reg. Pass a fresh
// registry in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sigreg_events_handled_total",
			Help: "Inbound chat events handled, by kind",
		}, []string{"kind"}),
		RemindersSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "sigreg_reminders_sent_total",
			Help: "Reminder notifications delivered to subscribers",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sigreg_reminder_delivery_failures_total",
			Help: "Reminder notifications that failed to deliver",
		}),
		SweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "sigreg_reminder_sweeps_total",
			Help: "Completed reminder sweep runs",
		}),
		SweepDurationSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigreg_reminder_sweep_duration_seconds",
			Help:    "Wall time of a reminder sweep including delivery",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}),
	}
}

// EventHandled records one handled inbound event of the given kind.
func (m *Metrics) EventHandled(kind string) {
	m.EventsHandled.WithLabelValues(kind).Inc()
}
