package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CampaignMetrics tracks lifecycle operations and escrow movements.
type CampaignMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	funds      *prometheus.CounterVec
	height     prometheus.Gauge
}

var (
	campaignOnce     sync.Once
	campaignRegistry *CampaignMetrics
)

func Campaign() *CampaignMetrics {
	campaignOnce.Do(func() {
		campaignRegistry = &CampaignMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_operations_total",
				Help: "Count of lifecycle operations by operation and outcome kind.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "campaign_operation_duration_seconds",
				Help:    "Latency of lifecycle operations including the state commit.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			funds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_funds_total",
				Help: "Units moved through campaign vaults by direction.",
			}, []string{"direction"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "campaign_state_height",
				Help: "Number of state commits applied.",
			}),
		}
		prometheus.MustRegister(
			campaignRegistry.operations,
			campaignRegistry.latency,
			campaignRegistry.funds,
			campaignRegistry.height,
		)
	})
	return campaignRegistry
}

// ObserveOperation records one lifecycle call. Outcome is "ok" or the error
// kind name.
func (m *CampaignMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddFunds records units entering ("in") or leaving ("released", "refunded")
// campaign vaults.
func (m *CampaignMetrics) AddFunds(direction string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.funds.WithLabelValues(direction).Add(float64(amount))
}

// SetHeight publishes the latest commit height.
func (m *CampaignMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}
