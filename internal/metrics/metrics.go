// Package metrics provides Prometheus instrumentation for the room API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "covidroom"

// Query outcomes recorded by ObserveQuery.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Manager owns the registry and every collector the service exports.
type Manager struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	queries        *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	tableLoads     *prometheus.CounterVec
	tableRows      *prometheus.GaugeVec
	chartBatches   prometheus.Counter
	chartNotReady  prometheus.Counter
	featuresLoaded prometheus.Gauge
}

// NewManager creates a Manager with its own registry. Go runtime and
// process collectors are included when withRuntime is true.
func NewManager(withRuntime bool) *Manager {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Manager{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "SQL queries by query id and outcome.",
		}, []string{"query", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "SQL query latency by query id.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"query"}),
		tableLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "loads_total",
			Help:      "Data source loads by table and outcome.",
		}, []string{"table", "status"}),
		tableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "rows",
			Help:      "Rows loaded per table.",
		}, []string{"table"}),
		chartBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "charts",
			Name:      "batches_total",
			Help:      "Chart query batches issued.",
		}),
		chartNotReady: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "charts",
			Name:      "not_ready_total",
			Help:      "Chart requests answered while tables were missing.",
		}),
		featuresLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "map",
			Name:      "features",
			Help:      "State features currently loaded.",
		}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.queries,
		m.queryDuration,
		m.tableLoads,
		m.tableRows,
		m.chartBatches,
		m.chartNotReady,
		m.featuresLoaded,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one completed HTTP request.
func (m *Manager) ObserveHTTP(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// ObserveQuery records one engine query.
func (m *Manager) ObserveQuery(query string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.queries.WithLabelValues(query, status).Inc()
	m.queryDuration.WithLabelValues(query).Observe(d.Seconds())
}

// ObserveTableLoad records a data source load attempt.
func (m *Manager) ObserveTableLoad(table string, rows int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.tableLoads.WithLabelValues(table, StatusError).Inc()
		return
	}
	m.tableLoads.WithLabelValues(table, StatusOK).Inc()
	m.tableRows.WithLabelValues(table).Set(float64(rows))
}

// ChartBatchIssued counts one chart query batch.
func (m *Manager) ChartBatchIssued() {
	if m == nil {
		return
	}
	m.chartBatches.Inc()
}

// ChartNotReady counts a chart request that was refused for missing tables.
func (m *Manager) ChartNotReady() {
	if m == nil {
		return
	}
	m.chartNotReady.Inc()
}

// SetFeatures records how many state features are loaded.
func (m *Manager) SetFeatures(n int) {
	if m == nil {
		return
	}
	m.featuresLoaded.Set(float64(n))
}
