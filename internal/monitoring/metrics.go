package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/incore-data/internal/hazus"
)

// Metrics holds the Prometheus collectors for fetches, classification, and the HTTP API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FetchRequests      *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	StructuresFetched  prometheus.Counter
	BlockGroupsFetched prometheus.Counter
	Classified         *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics creates collectors on a private registry under the given namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FetchRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_requests_total",
				Help:      "Remote fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		FetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Remote fetch duration in seconds by source",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		),

		StructuresFetched: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nsi_structures_fetched_total",
				Help:      "NSI structures fetched",
			},
		),

		BlockGroupsFetched: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "census_block_groups_fetched_total",
				Help:      "Census block-group rows fetched",
			},
		),

		Classified: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "buildings_classified_total",
				Help:      "Buildings classified by region and outcome",
			},
			[]string{"region", "outcome"}, // special, exact, fallback, unmatched
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "API request duration in seconds by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one remote fetch.
func (m *Metrics) ObserveFetch(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.FetchRequests.WithLabelValues(source, outcome).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// AddStructures counts fetched NSI structures.
func (m *Metrics) AddStructures(n int) {
	if m == nil {
		return
	}
	m.StructuresFetched.Add(float64(n))
}

// AddBlockGroups counts fetched Census block-group rows.
func (m *Metrics) AddBlockGroups(n int) {
	if m == nil {
		return
	}
	m.BlockGroupsFetched.Add(float64(n))
}

// ObserveReport records a classification batch.
func (m *Metrics) ObserveReport(rep hazus.Report) {
	if m == nil {
		return
	}
	region := string(rep.Region)
	m.Classified.WithLabelValues(region, "special").Add(float64(rep.Special))
	m.Classified.WithLabelValues(region, "exact").Add(float64(rep.Exact))
	m.Classified.WithLabelValues(region, "fallback").Add(float64(rep.Fallbacks))
	m.Classified.WithLabelValues(region, "unmatched").Add(float64(rep.Unmatched))
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
