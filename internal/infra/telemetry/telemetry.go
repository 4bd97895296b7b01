package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skills_audit"

// Metrics holds the application level counters. HTTP request metrics live in the HTTP middleware.
type Metrics struct {
	authOutcomes        *prometheus.CounterVec
	eventFailures       *prometheus.CounterVec
	reminderRuns        *prometheus.CounterVec
	remindersDispatched prometheus.Counter
}

// NewMetrics registers the counters with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		authOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Authentication operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		eventFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_delivery_failures_total",
			Help:      "Domain events the broker rejected, by topic",
		}, []string{"topic"}),
		reminderRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_runs_total",
			Help:      "Training reminder job runs by outcome",
		}, []string{"outcome"}),
		remindersDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_dispatched_total",
			Help:      "Training reminder notifications written",
		}),
	}
}

// ObserveAuth counts one authentication operation; outcome is "success" or a failure code.
func (m *Metrics) ObserveAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(operation, outcome).Inc()
}

// ObserveEventFailure counts a failed event delivery.
func (m *Metrics) ObserveEventFailure(topic string) {
	if m == nil {
		return
	}
	m.eventFailures.WithLabelValues(topic).Inc()
}

// ObserveReminderRun counts a reminder job run and the notifications it wrote.
func (m *Metrics) ObserveReminderRun(dispatched int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.reminderRuns.WithLabelValues(outcome).Inc()
	m.remindersDispatched.Add(float64(dispatched))
}
