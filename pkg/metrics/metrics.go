// Package metrics exposes prometheus counters for the peer wire protocol.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes
const (
	OutcomeHandled = "handled"
	OutcomeUnknown = "unknown"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// LabelUnknown replaces peer-supplied protocol names and type codes that
// are not registered locally, keeping label cardinality bounded.
const LabelUnknown = "unknown"

var (
	registerOnce sync.Once

	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zentalk",
			Subsystem: "p2p",
			Name:      "frames_received_total",
			Help:      "Frames read from inbound connections.",
		},
		[]string{"protocol", "type"},
	)
	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zentalk",
			Subsystem: "p2p",
			Name:      "dispatch_total",
			Help:      "Dispatch attempts by message type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zentalk",
			Subsystem: "p2p",
			Name:      "sends_total",
			Help:      "Frames written to peers.",
		},
		[]string{"success"},
	)
	readFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zentalk",
			Subsystem: "p2p",
			Name:      "read_failures_total",
			Help:      "Connections closed without a complete frame.",
		},
	)
	registeredPeers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zentalk",
			Subsystem: "p2p",
			Name:      "registered_peers",
			Help:      "Peers currently in the registry.",
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesReceived, dispatches, sends, readFailures, registeredPeers)
	})
}

func RecordFrame(protocol, msgType string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(protocol, msgType).Inc()
}

func RecordDispatch(msgType, outcome string) {
	RegisterMetrics()
	dispatches.WithLabelValues(msgType, outcome).Inc()
}

func RecordSend(success bool) {
	RegisterMetrics()
	sends.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordReadFailure() {
	RegisterMetrics()
	readFailures.Inc()
}

func SetPeers(node string, n int) {
	RegisterMetrics()
	registeredPeers.WithLabelValues(node).Set(float64(n))
}

// Handler serves the default registry in the prometheus text format
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
