// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gstrecon/internal/domain"
)

// Metrics groups the collectors recorded by the HTTP layer and the reconciliation service.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	groups       *prometheus.CounterVec
	issues       *prometheus.CounterVec
	leakage      prometheus.Gauge
	cacheLookups *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gstrecon",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gstrecon",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gstrecon",
			Name:      "runs_total",
			Help:      "Reconciliation runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gstrecon",
			Name:      "run_duration_seconds",
			Help:      "Engine run latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		groups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gstrecon",
			Name:      "groups_total",
			Help:      "Reconciled invoice groups by status.",
		}, []string{"status"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gstrecon",
			Name:      "issues_total",
			Help:      "Non-fatal run issues by kind.",
		}, []string{"kind"}),
		leakage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gstrecon",
			Name:      "last_run_leakage_rupees",
			Help:      "Leakage risk of the most recent stored run.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gstrecon",
			Name:      "run_cache_lookups_total",
			Help:      "Fingerprint cache lookups by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.runs, m.runDuration, m.groups, m.issues, m.leakage, m.cacheLookups)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveRun records a finished engine run.
func (m *Metrics) ObserveRun(snap *domain.Snapshot, elapsed time.Duration) {
	m.runs.WithLabelValues("completed").Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.groups.WithLabelValues(string(domain.StatusMatched)).Add(float64(snap.Stats.Matched))
	m.groups.WithLabelValues(string(domain.StatusMismatch)).Add(float64(snap.Stats.Mismatches))
	m.groups.WithLabelValues(string(domain.StatusMissing)).Add(float64(snap.Stats.Missing))
	for i := range snap.Issues {
		m.issues.WithLabelValues(string(snap.Issues[i].Kind)).Inc()
	}
}

// ObserveStored records the leakage of a persisted run.
func (m *Metrics) ObserveStored(stats domain.ReconciliationStats) {
	m.leakage.Set(stats.LeakageRisk.InexactFloat64())
}

// ObserveFailure counts a run that did not complete.
func (m *Metrics) ObserveFailure() {
	m.runs.WithLabelValues("failed").Inc()
}

// ObserveCache counts a fingerprint lookup; hit is false on a miss.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}
