// Package metrics exposes the Prometheus collectors for session lifecycle
// and relay throughput, and implements the internal/gateway.Recorder
// interface so the gateway package stays free of any metrics dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rdcleanpath/gateway/internal/gateway"
)

// Recorder implements gateway.Recorder against a registered set of
// Prometheus collectors.
type Recorder struct {
	sessionsTotal      *prometheus.CounterVec
	sessionsActive     prometheus.Gauge
	handshakeDuration  prometheus.Histogram
	relayBytesTotal    *prometheus.CounterVec
}

// New registers every collector with reg and returns a Recorder ready to
// pass to gateway.NewServer.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rdgateway_sessions_total",
			Help: "RDCleanPath sessions completed, labeled by outcome.",
		}, []string{"outcome"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rdgateway_sessions_active",
			Help: "RDCleanPath sessions currently open, counted from the WebSocket upgrade.",
		}),
		handshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rdgateway_handshake_duration_seconds",
			Help:    "Time from session start, including the wait for the Request PDU, until the handshake succeeds or fails.",
			Buckets: prometheus.DefBuckets,
		}),
		relayBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rdgateway_relay_bytes_total",
			Help: "Bytes relayed, labeled by direction.",
		}, []string{"direction"}),
	}

	reg.MustRegister(r.sessionsTotal, r.sessionsActive, r.handshakeDuration, r.relayBytesTotal)
	return r
}

// SessionStarted marks a session as open. The gateway calls it right after
// the WebSocket upgrade, before the Request PDU is read, so the gauge also
// counts sessions that never reach the dialing phase.
func (r *Recorder) SessionStarted() {
	r.sessionsActive.Inc()
}

// SessionEnded records the terminal outcome and handshake latency, and
// decrements the active gauge raised by SessionStarted.
func (r *Recorder) SessionEnded(kind gateway.Kind, handshakeDuration time.Duration) {
	outcome := string(kind)
	if outcome == "" {
		outcome = string(gateway.KindOK)
	}
	r.sessionsTotal.WithLabelValues(outcome).Inc()
	r.handshakeDuration.Observe(handshakeDuration.Seconds())
	r.sessionsActive.Dec()
}

// BytesRelayed adds to the per-direction relay byte counters.
func (r *Recorder) BytesRelayed(clientToUpstream, upstreamToClient int64) {
	if clientToUpstream > 0 {
		r.relayBytesTotal.WithLabelValues("client_to_upstream").Add(float64(clientToUpstream))
	}
	if upstreamToClient > 0 {
		r.relayBytesTotal.WithLabelValues("upstream_to_client").Add(float64(upstreamToClient))
	}
}
