package metrics

import (
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics exposes collectors describing the rebase policy engine.
type PolicyMetrics struct {
	rebases       *prometheus.CounterVec
	latency       prometheus.Histogram
	epoch         prometheus.Gauge
	supplyDelta   prometheus.Gauge
	totalSupply   prometheus.Gauge
	inflationRate prometheus.Gauge
	windowOpen    prometheus.Gauge
}

var (
	policyOnce     sync.Once
	policyRegistry *PolicyMetrics
)

// Policy returns the lazily registered policy metrics.
func Policy() *PolicyMetrics {
	policyOnce.Do(func() {
		policyRegistry = &PolicyMetrics{
			rebases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rebase",
				Subsystem: "policy",
				Name:      "rebases_total",
				Help:      "Count of rebase attempts segmented by outcome.",
			}, []string{"outcome"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "rebase",
				Subsystem: "policy",
				Name:      "rebase_duration_seconds",
				Help:      "Latency distribution for rebase attempts including the ledger call.",
				Buckets:   prometheus.DefBuckets,
			}),
			epoch: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rebase",
				Subsystem: "policy",
				Name:      "epoch",
				Help:      "Current policy epoch.",
			}),
			supplyDelta: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rebase",
				Subsystem: "policy",
				Name:      "supply_delta",
				Help:      "Supply delta applied by the most recent rebase.",
			}),
			totalSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rebase",
				Subsystem: "policy",
				Name:      "total_supply",
				Help:      "Total supply reported by the ledger after the last rebase.",
			}),
			inflationRate: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rebase",
				Subsystem: "policy",
				Name:      "inflation_rate",
				Help:      "Configured inflation rate in millionths per rebase.",
			}),
			windowOpen: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rebase",
				Subsystem: "policy",
				Name:      "window_open",
				Help:      "Indicates whether the rebase window is currently open (1) or not (0).",
			}),
		}
		prometheus.MustRegister(
			policyRegistry.rebases,
			policyRegistry.latency,
			policyRegistry.epoch,
			policyRegistry.supplyDelta,
			policyRegistry.totalSupply,
			policyRegistry.inflationRate,
			policyRegistry.windowOpen,
		)
	})
	return policyRegistry
}

// ObserveRebase records the outcome and latency of a rebase attempt.
func (m *PolicyMetrics) ObserveRebase(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.rebases.WithLabelValues(outcome).Inc()
	m.latency.Observe(d.Seconds())
}

// RecordRebase updates the epoch, delta and supply gauges after a successful
// rebase.
func (m *PolicyMetrics) RecordRebase(epoch uint64, delta, totalSupply *big.Int) {
	if m == nil {
		return
	}
	m.epoch.Set(float64(epoch))
	m.supplyDelta.Set(bigToFloat(delta))
	m.totalSupply.Set(bigToFloat(totalSupply))
}

// RecordState seeds the epoch and supply gauges, e.g. after a restart.
func (m *PolicyMetrics) RecordState(epoch uint64, totalSupply *big.Int) {
	if m == nil {
		return
	}
	m.epoch.Set(float64(epoch))
	m.totalSupply.Set(bigToFloat(totalSupply))
}

// SetInflationRate records the configured inflation rate.
func (m *PolicyMetrics) SetInflationRate(rate uint64) {
	if m == nil {
		return
	}
	m.inflationRate.Set(float64(rate))
}

// SetWindowOpen records whether the rebase window is open.
func (m *PolicyMetrics) SetWindowOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.windowOpen.Set(1)
		return
	}
	m.windowOpen.Set(0)
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	switch {
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	}
	return f
}
