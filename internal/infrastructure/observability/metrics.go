package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry         *prometheus.Registry
	ActiveSessions   prometheus.Gauge
	MessagesTotal    *prometheus.CounterVec
	CapturesTotal    *prometheus.CounterVec
	PendingCaptures  prometheus.Gauge
	RuntimeConnected prometheus.Gauge
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vr_screenshotter",
			Name:      "active_sessions",
			Help:      "Number of connected remote sessions",
		}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vr_screenshotter",
			Name:      "remote_messages_total",
			Help:      "Remote socket messages by direction (received, delivered, dropped)",
		}, []string{"direction"}),
		CapturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vr_screenshotter",
			Name:      "captures_total",
			Help:      "Capture lifecycle transitions by outcome",
		}, []string{"outcome"}),
		PendingCaptures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vr_screenshotter",
			Name:      "pending_captures",
			Help:      "Captures waiting for the runtime",
		}),
		RuntimeConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vr_screenshotter",
			Name:      "runtime_connected",
			Help:      "1 while the VR runtime is initialized",
		}),
	}
	r.MustRegister(m.ActiveSessions, m.MessagesTotal, m.CapturesTotal, m.PendingCaptures, m.RuntimeConnected)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) CaptureOutcome(outcome string) { m.CapturesTotal.WithLabelValues(outcome).Inc() }

func (m *Metrics) SetPendingCaptures(n int) { m.PendingCaptures.Set(float64(n)) }

func (m *Metrics) SetRuntimeConnected(on bool) {
	if on {
		m.RuntimeConnected.Set(1)
		return
	}
	m.RuntimeConnected.Set(0)
}

func (m *Metrics) SetActiveSessions(n int) { m.ActiveSessions.Set(float64(n)) }

// Message counts one remote message; direction is received, delivered or dropped.
func (m *Metrics) Message(direction string) { m.MessagesTotal.WithLabelValues(direction).Inc() }
