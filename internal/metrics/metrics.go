// Package metrics exposes this speaker's Prometheus instrumentation: one
// registry shared by every peer's `protocol` instance and the `reactor`
// that owns them, so a single /metrics handler covers the whole process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the process-wide collector registry. cmd/bgpd registers it
// under /metrics. It is a registry of its own, not prometheus's global
// default one.
var Registry = prometheus.NewRegistry()

var (
	// SessionState is 1 for the FSM state a peer currently occupies, 0
	// otherwise, labeled by peer and state name — a gauge-per-state
	// rather than one numeric gauge so Grafana can alert on
	// `bgp_session_state{state="Established"} == 0`.
	SessionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bgp_session_state",
		Help: "1 if the peer's FSM currently occupies this state, 0 otherwise.",
	}, []string{"peer", "state"})

	// MessagesTotal counts messages sent/received per peer and per BGP
	// message type (RFC 4271 §4.1 Type field).
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bgp_messages_total",
		Help: "BGP messages exchanged, labeled by peer, direction and message type.",
	}, []string{"peer", "direction", "type"})

	// RIBRoutes is the current route count in a peer's Adj-RIB-In or
	// Adj-RIB-Out.
	RIBRoutes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bgp_rib_routes",
		Help: "Routes currently held in a peer's Adj-RIB, labeled by peer and rib (in/out).",
	}, []string{"peer", "rib"})

	// NotificationsTotal counts sent/received NOTIFICATIONs by error
	// code, the signal an operator watches for flapping sessions.
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bgp_notifications_total",
		Help: "NOTIFICATION messages exchanged, labeled by peer, direction and error code.",
	}, []string{"peer", "direction", "code"})
)

func init() {
	Registry.MustRegister(SessionState, MessagesTotal, RIBRoutes, NotificationsTotal)
}
