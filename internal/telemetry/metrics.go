// Package telemetry exposes the Prometheus collectors shared across the
// screening pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the pipeline's Prometheus collectors.
type Metrics struct {
	PipelineRuns      *prometheus.CounterVec
	PipelineDuration  prometheus.Histogram
	AssetsProcessed   prometheus.Counter
	AssetsSkipped     *prometheus.CounterVec
	SignalsGenerated  *prometheus.CounterVec
	ActiveRuns        prometheus.Gauge
	OptimizationRuns  *prometheus.CounterVec
	CandleFetchErrors prometheus.Counter
}

// New registers the collectors on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a private
// registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_pipeline_runs_total",
			Help: "Pipeline executions by outcome.",
		}, []string{"outcome"}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_pipeline_duration_seconds",
			Help:    "End-to-end pipeline latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		AssetsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "screener_assets_processed_total",
			Help: "Assets that completed signal generation.",
		}),
		AssetsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_assets_skipped_total",
			Help: "Assets dropped before signal generation, by reason.",
		}, []string{"reason"}),
		SignalsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_signals_generated_total",
			Help: "Signals emitted by generator family.",
		}, []string{"family"}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "screener_active_pipeline_runs",
			Help: "Pipeline executions currently in flight.",
		}),
		OptimizationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_optimizations_total",
			Help: "Portfolio optimizations by objective and outcome.",
		}, []string{"objective", "outcome"}),
		CandleFetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "screener_candle_fetch_errors_total",
			Help: "Candle history fetches that failed.",
		}),
	}
}
