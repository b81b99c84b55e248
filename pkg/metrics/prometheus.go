package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exports fetch and cache counters through Prometheus.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry     *prometheus.Registry
	fetchTotal   *prometheus.CounterVec
	cacheTotal   *prometheus.CounterVec
	retriesTotal *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	failedGauge  prometheus.Gauge
}

// New creates a recorder with its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Name:      "fetch_total",
				Help:      "Upstream history fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		cacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Name:      "cache_lookups_total",
				Help:      "Snapshot cache lookups by store and result",
			},
			[]string{"store", "result"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Name:      "fetch_retries_total",
				Help:      "Retried upstream calls by error kind",
			},
			[]string{"kind"},
		),
		fetchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockboard",
				Name:      "fetch_duration_seconds",
				Help:      "Duration of upstream history fetches",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		failedGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "stockboard",
				Name:      "last_batch_failed_symbols",
				Help:      "Symbols that yielded no rows in the last batch",
			},
		),
	}
}

// RecordFetch records one upstream call outcome (ok, empty, error)
func (r *Recorder) RecordFetch(source, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.fetchTotal.WithLabelValues(source, outcome).Inc()
	r.fetchLatency.WithLabelValues(source).Observe(seconds)
}

// RecordCache records a cache lookup result (hit, miss, corrupt)
func (r *Recorder) RecordCache(store, result string) {
	if r == nil {
		return
	}
	r.cacheTotal.WithLabelValues(store, result).Inc()
}

// RecordRetry records a retried call
func (r *Recorder) RecordRetry(kind string) {
	if r == nil {
		return
	}
	r.retriesTotal.WithLabelValues(kind).Inc()
}

// RecordBatch records how many symbols failed in the last batch
func (r *Recorder) RecordBatch(failed int) {
	if r == nil {
		return
	}
	r.failedGauge.Set(float64(failed))
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
