// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Stream metrics
	EventsReceived   prometheus.Counter
	EventsDropped    *prometheus.CounterVec
	StreamReconnects prometheus.Counter
	StreamState      prometheus.Gauge

	// Trigger metrics
	Triggers *prometheus.CounterVec

	// Fan-out metrics
	Attempts        *prometheus.CounterVec
	FanoutSuccesses *prometheus.CounterVec
	FanoutDuration  *prometheus.HistogramVec
	GateState       prometheus.Gauge

	// Blockhash metrics
	BlockhashRetries   prometheus.Counter
	BlockhashExhausted prometheus.Counter

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg registers on the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_sniper"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Stream metrics
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_received_total",
			Help:      "Total number of log events decoded from the stream",
		}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_dropped_total",
			Help:      "Total number of stream messages dropped by reason",
		}, []string{"reason"}),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect cycles",
		}),
		StreamState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "Current stream state (0 disconnected, 1 connecting, 2 subscribed, 3 streaming)",
		}),

		// Trigger metrics
		Triggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "evaluated_total",
			Help:      "Total number of triggers by result",
		}, []string{"result"}),

		// Fan-out metrics
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "attempts_total",
			Help:      "Total number of submission attempts by leg and outcome",
		}, []string{"leg", "kind"}),
		FanoutSuccesses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "successes_total",
			Help:      "Total number of accepted submissions by leg, winners and losers",
		}, []string{"leg"}),
		FanoutDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "duration_seconds",
			Help:      "Fan-out wall time by leg and strategy",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"leg", "strategy"}),
		GateState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "gate_state",
			Help:      "Trade gate state (0 idle, 1 in flight, 2 closed)",
		}),

		// Blockhash metrics
		BlockhashRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blockhash",
			Name:      "retries_total",
			Help:      "Total number of failed blockhash fetches that were retried",
		}),
		BlockhashExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blockhash",
			Name:      "exhausted_total",
			Help:      "Total number of acquisitions that ran out of retries",
		}),

		// Latency metrics
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordEventReceived increments the decoded events counter.
func (m *Metrics) RecordEventReceived() {
	if m == nil {
		return
	}
	m.EventsReceived.Inc()
}

// RecordEventDropped records a dropped stream message.
func (m *Metrics) RecordEventDropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// RecordReconnect increments the reconnect counter.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.StreamReconnects.Inc()
}

// SetStreamState updates the stream state gauge.
func (m *Metrics) SetStreamState(state int) {
	if m == nil {
		return
	}
	m.StreamState.Set(float64(state))
}

// RecordTrigger records a trigger evaluation result.
func (m *Metrics) RecordTrigger(result string) {
	if m == nil {
		return
	}
	m.Triggers.WithLabelValues(result).Inc()
}

// RecordAttempt records one classified submission attempt.
func (m *Metrics) RecordAttempt(leg, kind string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(leg, kind).Inc()
}

// RecordFanout records a completed fan-out.
func (m *Metrics) RecordFanout(leg, strategy string, successes int, seconds float64) {
	if m == nil {
		return
	}
	m.FanoutSuccesses.WithLabelValues(leg).Add(float64(successes))
	m.FanoutDuration.WithLabelValues(leg, strategy).Observe(seconds)
}

// SetGateState updates the trade gate gauge.
func (m *Metrics) SetGateState(state int) {
	if m == nil {
		return
	}
	m.GateState.Set(float64(state))
}

// RecordBlockhashRetry increments the blockhash retry counter.
func (m *Metrics) RecordBlockhashRetry() {
	if m == nil {
		return
	}
	m.BlockhashRetries.Inc()
}

// RecordBlockhashExhausted increments the exhausted acquisitions counter.
func (m *Metrics) RecordBlockhashExhausted() {
	if m == nil {
		return
	}
	m.BlockhashExhausted.Inc()
}

// RecordRPCLatency records RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
