// Package metrics holds the Prometheus collectors. All methods are safe on a
// nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpInflight  prometheus.Gauge
	records       *prometheus.CounterVec
	reactions     *prometheus.CounterVec
	janitor       *prometheus.CounterVec
	mailDelivered *prometheus.CounterVec
}

// New registers the collectors on a fresh registry. Use one per process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		// route is the chi pattern, never the raw path, to keep label cardinality bounded.
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebox_records_total",
			Help: "Record lifecycle events by operation.",
		}, []string{"op"}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebox_reactions_total",
			Help: "Likes and dislikes applied.",
		}, []string{"kind"}),
		janitor: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebox_janitor_removed_total",
			Help: "Items removed by the background janitor.",
		}, []string{"kind"}),
		mailDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebox_mail_delivered_total",
			Help: "Outbound mail delivery attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.httpInflight,
		m.records,
		m.reactions,
		m.janitor,
		m.mailDelivered,
	)
	return m
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RequestStarted marks a request in flight and returns the func that records
// its outcome.
func (m *Metrics) RequestStarted() func(method, route string, status int) {
	if m == nil {
		return func(string, string, int) {}
	}
	start := time.Now()
	m.httpInflight.Inc()
	return func(method, route string, status int) {
		m.httpInflight.Dec()
		if route == "" {
			route = "UNMATCHED"
		}
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordOp counts a record lifecycle operation: created, updated, deleted.
func (m *Metrics) RecordOp(op string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(op).Inc()
}

func (m *Metrics) Reaction(kind string) {
	if m == nil {
		return
	}
	m.reactions.WithLabelValues(kind).Inc()
}

// JanitorRemoved counts sweeper removals: expired or orphan.
func (m *Metrics) JanitorRemoved(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.janitor.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) MailDelivered(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mailDelivered.WithLabelValues(result).Inc()
}
