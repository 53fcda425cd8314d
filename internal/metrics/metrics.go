// ABOUTME: Prometheus metrics for sessions, messages, and viewers
// ABOUTME: Uses a private registry so tests can build metrics repeatedly

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the broker's counters and gauges.
type Metrics struct {
	registry *prometheus.Registry

	SessionsCreated   prometheus.Counter
	SessionsResumed   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	ActiveSessions    prometheus.Gauge

	MessagesStarted   prometheus.Counter
	MessagesCompleted prometheus.Counter
	MessagesFailed    prometheus.Counter

	ConnectedViewers prometheus.Gauge
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "parley_sessions_created_total",
			Help: "Upstream sessions created.",
		}),
		SessionsResumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "parley_sessions_resumed_total",
			Help: "Sessions reattached or rebuilt on resume.",
		}),
		SessionsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Name: "parley_sessions_destroyed_total",
			Help: "Sessions torn down, including idle reaping.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parley_active_sessions",
			Help: "Currently live upstream sessions.",
		}),
		MessagesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "parley_messages_started_total",
			Help: "Assistant messages started.",
		}),
		MessagesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "parley_messages_completed_total",
			Help: "Assistant messages completed.",
		}),
		MessagesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "parley_messages_failed_total",
			Help: "Assistant messages that ended in an error event.",
		}),
		ConnectedViewers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parley_connected_viewers",
			Help: "Open WebSocket viewer connections.",
		}),
	}
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
