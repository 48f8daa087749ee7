// Package metrics defines the Prometheus collectors shared by the stream
// client, the subscriber hub, the dispatcher and the sinks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "touralert"

type Metrics struct {
	ConnectAttempts prometheus.Counter
	Connections     prometheus.Counter
	ConnectionState prometheus.Gauge
	Generation      prometheus.Gauge
	FramesReceived  *prometheus.CounterVec
	DecodeFailures  prometheus.Counter
	StaleDiscarded  prometheus.Counter
	MailboxDrops    prometheus.Counter
	Evaluations     *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	Duplicates      prometheus.Counter
	SinkFailures    *prometheus.CounterVec
}

// New builds the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connect_attempts_total",
			Help:      "Total number of websocket handshake attempts",
		}),
		Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connections_total",
			Help:      "Total number of successful handshakes",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_state",
			Help:      "Current connection state (0=disconnected 1=connecting 2=open 3=closing)",
		}),
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "generation",
			Help:      "Generation token of the most recent connection",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_received_total",
			Help:      "Frames read from the transport by frame type",
		}, []string{"type"}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "decode_failures_total",
			Help:      "Text frames discarded because the payload was malformed",
		}),
		StaleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "stale_discarded_total",
			Help:      "Frames discarded because their connection generation was superseded",
		}),
		MailboxDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "mailbox_drops_total",
			Help:      "Deliveries evicted from full subscriber mailboxes",
		}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "evaluations_total",
			Help:      "Filter evaluations by outcome",
		}, []string{"notify"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "notifications_total",
			Help:      "Notifications forwarded to sinks by matched rule",
		}, []string{"rule"}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duplicates_total",
			Help:      "Matching messages suppressed as recently dispatched duplicates",
		}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "failures_total",
			Help:      "Sink notify failures by sink name",
		}, []string{"sink"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ConnectAttempts,
			m.Connections,
			m.ConnectionState,
			m.Generation,
			m.FramesReceived,
			m.DecodeFailures,
			m.StaleDiscarded,
			m.MailboxDrops,
			m.Evaluations,
			m.Notifications,
			m.Duplicates,
			m.SinkFailures,
		)
	}
	return m
}
