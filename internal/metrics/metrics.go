package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nmreggae"

// Database query types
const (
	DBQueryTypeSelect = "select"
	DBQueryTypeInsert = "insert"
	DBQueryTypeUpdate = "update"
	DBQueryTypeDelete = "delete"
)

// Replace outcomes
const (
	ReplaceOutcomeSuccess = "success"
	ReplaceOutcomeFailure = "failure"
)

// Metrics holds the service collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	dbQueries      *prometheus.CounterVec
	dbLatency      *prometheus.HistogramVec
	importRows     *prometheus.CounterVec
	replaceTotal   *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	publishedTotal *prometheus.CounterVec
	backupsTotal   *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
	m.httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	m.dbQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "db_queries_total",
		Help:      "Database queries by type and result",
	}, []string{"type", "result"})
	m.dbLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Database query latency",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"type"})
	m.importRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_rows_total",
		Help:      "CSV rows seen by the importer, accepted or skipped",
	}, []string{"result"})
	m.replaceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replace_all_total",
		Help:      "Replace-all uploads by outcome",
	}, []string{"outcome"})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Event window cache lookups by result",
	}, []string{"result"})
	m.publishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_published_total",
		Help:      "Change notifications published by type and result",
	}, []string{"type", "result"})
	m.backupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backups_written_total",
		Help:      "Backup files written by result",
	}, []string{"result"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpLatency,
		m.dbQueries, m.dbLatency,
		m.importRows, m.replaceTotal,
		m.cacheLookups, m.publishedTotal, m.backupsTotal,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one served request
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDatabaseQuery records one gorm operation
func (m *Metrics) RecordDatabaseQuery(queryType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueries.WithLabelValues(queryType, result(success)).Inc()
	m.dbLatency.WithLabelValues(queryType).Observe(duration.Seconds())
}

// RecordImport counts accepted and skipped CSV rows
func (m *Metrics) RecordImport(accepted, skipped int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues("accepted").Add(float64(accepted))
	m.importRows.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordReplace counts a replace-all attempt
func (m *Metrics) RecordReplace(outcome string) {
	if m == nil {
		return
	}
	m.replaceTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a window cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordPublish counts a change notification
func (m *Metrics) RecordPublish(messageType string, success bool) {
	if m == nil {
		return
	}
	m.publishedTotal.WithLabelValues(messageType, result(success)).Inc()
}

// RecordBackup counts a backup file write
func (m *Metrics) RecordBackup(success bool) {
	if m == nil {
		return
	}
	m.backupsTotal.WithLabelValues(result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
