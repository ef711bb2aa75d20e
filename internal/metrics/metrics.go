package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the auth counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AuthEvents     *prometheus.CounterVec
	AuditFailures  prometheus.Counter
	SessionRejects prometheus.Counter
}

// New registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifeline",
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Authentication events by type and outcome",
		}, []string{"event", "outcome"}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lifeline",
			Subsystem: "audit",
			Name:      "append_failures_total",
			Help:      "Audit log entries that could not be written",
		}),
		SessionRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lifeline",
			Subsystem: "auth",
			Name:      "session_rejections_total",
			Help:      "Requests rejected by the session resolver",
		}),
	}
	reg.MustRegister(m.AuthEvents, m.AuditFailures, m.SessionRejects)
	return m
}

// AuthEvent counts one auth event (register, login, mfa_enable).
func (m *Metrics) AuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

// AuditFailure counts a dropped audit entry.
func (m *Metrics) AuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}

// SessionRejected counts a 401 from the session resolver.
func (m *Metrics) SessionRejected() {
	if m == nil {
		return
	}
	m.SessionRejects.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
