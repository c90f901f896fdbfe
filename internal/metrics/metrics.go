package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the market API.
type Metrics struct {
	registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec   // labels: source, outcome
	UpstreamDuration *prometheus.HistogramVec // labels: source
	CacheLookups     *prometheus.CounterVec   // labels: result
	Predictions      *prometheus.CounterVec   // labels: mode, signal
	PredictFailures  *prometheus.CounterVec   // labels: kind
	WarmRuns         *prometheus.CounterVec   // labels: outcome
}

// New registers all collectors on a private registry, so several instances
// can coexist in one process.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_upstream_requests_total",
			Help: "Market data fetches by source and outcome",
		}, []string{"source", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_upstream_duration_seconds",
			Help:    "Market data fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_cache_lookups_total",
			Help: "Series cache lookups by result",
		}, []string{"result"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_predictions_total",
			Help: "Generated predictions by mode and signal",
		}, []string{"mode", "signal"}),
		PredictFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_prediction_failures_total",
			Help: "Failed prediction requests by error kind",
		}, []string{"kind"}),
		WarmRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_cache_warm_runs_total",
			Help: "Scheduled cache warm runs by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.CacheLookups,
		m.Predictions,
		m.PredictFailures,
		m.WarmRuns,
	)
	return m
}

// ObserveUpstream records one upstream fetch. Nil receivers are no-ops.
func (m *Metrics) ObserveUpstream(source string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(source, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) PredictionServed(mode, signal string) {
	if m == nil {
		return
	}
	m.Predictions.WithLabelValues(mode, signal).Inc()
}

func (m *Metrics) PredictionFailed(kind string) {
	if m == nil {
		return
	}
	m.PredictFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) WarmRun(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WarmRuns.WithLabelValues("error").Inc()
		return
	}
	m.WarmRuns.WithLabelValues("ok").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
