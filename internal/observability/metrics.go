// Package observability provides Prometheus metrics for the engine and the batch jobs.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Engine metrics
	OperationsTotal   *prometheus.CounterVec
	RejectionsTotal   *prometheus.CounterVec
	OperationLatency  *prometheus.HistogramVec
	SwapVolumeIn      *prometheus.CounterVec
	SwapFeesCollected *prometheus.CounterVec

	// Batch metrics
	ReplayInstructions   prometheus.Counter
	ReplayDecodeErrors   prometheus.Counter
	LastProcessedSeq     prometheus.Gauge
	JournalWriteDuration prometheus.Histogram
	WindowsComputed      prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "amm_ledger"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of applied operations by kind",
		}, []string{"kind"}),
		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rejections_total",
			Help:      "Total number of rejected operations by kind and error",
		}, []string{"kind", "error"}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_latency_seconds",
			Help:      "Operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		SwapVolumeIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "swap_volume_in_total",
			Help:      "Raw input amount swapped by pool and side",
		}, []string{"pool", "side"}),
		SwapFeesCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "swap_fees_total",
			Help:      "Raw fee amount retained in vaults by pool and side",
		}, []string{"pool", "side"}),

		ReplayInstructions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "instructions_total",
			Help:      "Total number of replayed instructions",
		}),
		ReplayDecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "decode_errors_total",
			Help:      "Total number of instruction lines that failed to decode",
		}),
		LastProcessedSeq: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "last_processed_seq",
			Help:      "Sequence number of the last checkpointed instruction",
		}),
		JournalWriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "write_duration_seconds",
			Help:      "Journal batch write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		WindowsComputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "windows_computed_total",
			Help:      "Total number of pool windows computed",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation records an applied or rejected operation. errName is empty on success.
func (m *Metrics) RecordOperation(kind, errName string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationLatency.WithLabelValues(kind).Observe(seconds)
	if errName != "" {
		m.RejectionsTotal.WithLabelValues(kind, errName).Inc()
		return
	}
	m.OperationsTotal.WithLabelValues(kind).Inc()
}

// RecordSwap records the input volume and fee of an executed swap.
func (m *Metrics) RecordSwap(pool string, isX bool, amountIn, fee uint64) {
	if m == nil {
		return
	}
	side := "y"
	if isX {
		side = "x"
	}
	m.SwapVolumeIn.WithLabelValues(pool, side).Add(float64(amountIn))
	m.SwapFeesCollected.WithLabelValues(pool, side).Add(float64(fee))
}
