package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "video_routing"

// Drop reasons for outbound frames that never reached a peer.
const (
	DropSlowConsumer = "slow_consumer"
	DropNotLive      = "not_live"
)

// Assignment results.
const (
	AssignApplied = "applied"
	AssignDropped = "dropped"
)

type Metrics struct {
	Clients           prometheus.Gauge
	Admins            prometheus.Gauge
	Connections       prometheus.Gauge
	Outbound          *prometheus.CounterVec
	Assignments       *prometheus.CounterVec
	DroppedSends      *prometheus.CounterVec
	RejectedHandshake prometheus.Counter
	HandlerPanics     prometheus.Counter
	JournalDropped    prometheus.Counter
}

// New builds the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "clients",
			Help:      "Clients currently present in the registry.",
		}),
		Admins: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "admins",
			Help:      "Admins currently present in the registry.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "open_connections",
			Help:      "Open transport connections, classified or not.",
		}),
		Outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "outbound_messages_total",
			Help:      "Messages routed by the gateway, by event. A broadcast counts once however many peers receive it.",
		}, []string{"event"}),
		Assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "assignments_total",
			Help:      "assign-admin requests, by result.",
		}, []string{"result"}),
		DroppedSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "dropped_sends_total",
			Help:      "Frames that could not be queued, by reason.",
		}, []string{"reason"}),
		RejectedHandshake: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "rejected_handshakes_total",
			Help:      "Connections left unclassified because of a malformed handshake.",
		}),
		HandlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "handler_panics_total",
			Help:      "Panics recovered at the handler boundary.",
		}),
		JournalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "dropped_entries_total",
			Help:      "Journal entries dropped because the write buffer was full.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Clients,
			m.Admins,
			m.Connections,
			m.Outbound,
			m.Assignments,
			m.DroppedSends,
			m.RejectedHandshake,
			m.HandlerPanics,
			m.JournalDropped,
		)
	}
	return m
}

func (m *Metrics) SetPresence(clients, admins int) {
	m.Clients.Set(float64(clients))
	m.Admins.Set(float64(admins))
}
