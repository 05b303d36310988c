package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RPC modules exposed by the node. Unknown names collapse into "other" so a
// misrouted method cannot grow label cardinality.
const (
	ModuleCampaign = "campaign"
	ModuleBank     = "bank"
)

type rpcMetrics struct {
	calls     *prometheus.CounterVec
	failures  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttled *prometheus.CounterVec
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics
)

// RPC returns the lazily-initialised registry for JSON-RPC traffic against the
// campaign and bank modules.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hoperise",
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "JSON-RPC calls to the campaign and bank modules by method and result (ok, rejected, failed).",
			}, []string{"module", "method", "result"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hoperise",
				Subsystem: "rpc",
				Name:      "failures_total",
				Help:      "JSON-RPC calls answered with an error envelope, by method and HTTP status.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "hoperise",
				Subsystem: "rpc",
				Name:      "call_duration_seconds",
				Help:      "Time spent in campaign and bank handlers, including the state commit.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			}, []string{"module", "method"}),
			throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hoperise",
				Subsystem: "rpc",
				Name:      "throttled_total",
				Help:      "JSON-RPC requests turned away by the rate limiter before method dispatch.",
			}, []string{"endpoint", "reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.calls,
			rpcRegistry.failures,
			rpcRegistry.latency,
			rpcRegistry.throttled,
		)
	})
	return rpcRegistry
}

func moduleLabel(module string) string {
	switch module {
	case ModuleCampaign, ModuleBank:
		return module
	default:
		return "other"
	}
}

// resultLabel buckets an HTTP status: 4xx is an engine or validation
// rejection, 5xx a node-side failure.
func resultLabel(status int) string {
	switch {
	case status >= 500:
		return "failed"
	case status >= 400:
		return "rejected"
	default:
		return "ok"
	}
}

// Observe records one dispatched call. status is the HTTP status written for
// the JSON-RPC response.
func (m *rpcMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	module = moduleLabel(module)
	if method == "" {
		method = "unknown"
	}
	m.calls.WithLabelValues(module, method, resultLabel(status)).Inc()
	if status >= 400 {
		m.failures.WithLabelValues(module, method, strconv.Itoa(status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle counts a request the rate limiter refused. The method is not
// known yet at that point, so the limiter reports its endpoint name.
func (m *rpcMetrics) RecordThrottle(endpoint, reason string) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttled.WithLabelValues(endpoint, reason).Inc()
}
