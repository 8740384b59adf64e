package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/langcenter-api/internal/models"
)

const metricsNamespace = "langcenter"

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	populationRuns     *prometheus.CounterVec
	populationDuration *prometheus.HistogramVec
	populationDecision *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	lastPopulation     prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	populationRunCount   uint64
	populationFailCount  uint64
	lastPopulationUnix   int64
	seatsAssigned        uint64
	notificationsQueued  uint64
	notificationsFailed  uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_latency_seconds",
		Help:      "Latency for cache operations",
		Buckets:   prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_write_seconds",
		Help:      "Latency for cache set operations",
		Buckets:   prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hits_total",
		Help:      "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_misses_total",
		Help:      "Total cache misses",
	})

	populationRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "population_runs_total",
		Help:      "Population runs by strategy and outcome",
	}, []string{"strategy", "outcome"})

	populationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "population_run_duration_seconds",
		Help:      "Duration of population runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"strategy"})

	populationDecision := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "population_decisions_total",
		Help:      "Attendances accepted or rejected by population runs",
	}, []string{"strategy", "decision"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "mail_notifications_total",
		Help:      "Applicant notifications by kind and outcome",
	}, []string{"kind", "outcome"})

	lastPopulation := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "population_last_success_timestamp_seconds",
		Help:      "Unix time of the last committed population run",
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		populationRuns, populationDuration, populationDecision, notifications, lastPopulation,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		populationRuns:     populationRuns,
		populationDuration: populationDuration,
		populationDecision: populationDecision,
		notifications:      notifications,
		lastPopulation:     lastPopulation,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObservePopulationRun records a finished run; outcome is "committed" or "failed".
func (m *MetricsService) ObservePopulationRun(strategy, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.populationRuns.WithLabelValues(strategy, outcome).Inc()
	m.populationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	atomic.AddUint64(&m.populationRunCount, 1)
	if outcome == "failed" {
		atomic.AddUint64(&m.populationFailCount, 1)
		return
	}
	now := time.Now()
	m.lastPopulation.Set(float64(now.Unix()))
	atomic.StoreInt64(&m.lastPopulationUnix, now.Unix())
}

// RecordPopulationDecisions counts the seats handed out and rejections issued by one run.
func (m *MetricsService) RecordPopulationDecisions(strategy string, accepted, rejected int) {
	if m == nil {
		return
	}
	m.populationDecision.WithLabelValues(strategy, "accepted").Add(float64(accepted))
	m.populationDecision.WithLabelValues(strategy, "rejected").Add(float64(rejected))
	atomic.AddUint64(&m.seatsAssigned, uint64(accepted))
}

// RecordNotification counts a notification attempt.
func (m *MetricsService) RecordNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
	switch outcome {
	case "queued":
		atomic.AddUint64(&m.notificationsQueued, 1)
	case "sent":
	default:
		atomic.AddUint64(&m.notificationsFailed, 1)
	}
}

// Snapshot returns aggregated metrics suitable for the admin API.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	snapshot := models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		PopulationRuns:           atomic.LoadUint64(&m.populationRunCount),
		PopulationFailures:       atomic.LoadUint64(&m.populationFailCount),
		SeatsAssigned:            atomic.LoadUint64(&m.seatsAssigned),
		NotificationsQueued:      atomic.LoadUint64(&m.notificationsQueued),
		NotificationFailures:     atomic.LoadUint64(&m.notificationsFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
	if last := atomic.LoadInt64(&m.lastPopulationUnix); last > 0 {
		ts := time.Unix(last, 0).UTC()
		snapshot.LastPopulationAt = &ts
	}
	return snapshot
}
