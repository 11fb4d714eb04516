package observability

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the API and the annotation engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	mutations       *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	txRetries       *prometheus.CounterVec
	sessionsCreated prometheus.Counter
	sessionsClosed  prometheus.Counter
	activityBuilds  *prometheus.CounterVec
	ingestedRecords prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: registry,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powerlens_api_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "powerlens_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerlens_api_inflight_requests",
			Help: "HTTP requests currently being served",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powerlens_annotation_mutations_total",
			Help: "Annotation mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		mutationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "powerlens_annotation_mutation_duration_seconds",
			Help:    "Annotation mutation latency including retries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		txRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powerlens_annotation_tx_retries_total",
			Help: "Transactions retried after an allocation conflict",
		}, []string{"op"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerlens_editing_sessions_created_total",
			Help: "Editing sessions opened",
		}),
		sessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerlens_editing_sessions_finished_total",
			Help: "Editing sessions marked completed",
		}),
		activityBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powerlens_activity_log_builds_total",
			Help: "Activity log builds; shared=true when coalesced with an in-flight build",
		}, []string{"shared"}),
		ingestedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerlens_ingested_detections_total",
			Help: "AI detections seeded from inference results",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.mutations, m.mutationLatency, m.txRetries,
		m.sessionsCreated, m.sessionsClosed, m.activityBuilds, m.ingestedRecords,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RegisterDB exports connection pool stats for the backing store.
func (m *Metrics) RegisterDB(sqlDB *sql.DB, name string) error {
	if m == nil || sqlDB == nil {
		return nil
	}
	return m.registry.Register(collectors.NewDBStatsCollector(sqlDB, name))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(strings.ToUpper(method), route, status).Inc()
	m.apiLatency.WithLabelValues(strings.ToUpper(method), route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveMutation(op, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
	m.mutationLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func (m *Metrics) IncTxRetry(op string) {
	if m == nil {
		return
	}
	m.txRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) IncSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) IncSessionFinished() {
	if m == nil {
		return
	}
	m.sessionsClosed.Inc()
}

func (m *Metrics) IncActivityBuild(shared bool) {
	if m == nil {
		return
	}
	if shared {
		m.activityBuilds.WithLabelValues("true").Inc()
		return
	}
	m.activityBuilds.WithLabelValues("false").Inc()
}

func (m *Metrics) AddIngested(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestedRecords.Add(float64(n))
}
