package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private Prometheus registry. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	syncItems       *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	occurrences     prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_sync_runs_total",
		Help: "Calendar sync runs by direction and outcome",
	}, []string{"direction", "outcome"})

	syncItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_sync_items_total",
		Help: "Events processed by calendar sync, by result",
	}, []string{"result"})

	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "calendar_sync_duration_seconds",
		Help:    "Wall time of calendar sync runs",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	occurrences := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "calendar_occurrences_expanded",
		Help:    "Occurrences produced per recurring event expansion",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	registry.MustRegister(
		requestDuration, requestTotal, syncRuns, syncItems, syncDuration, occurrences,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		syncRuns:        syncRuns,
		syncItems:       syncItems,
		syncDuration:    syncDuration,
		occurrences:     occurrences,
	}
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, labelStatus).Inc()
}

// ObserveSync records one finished sync run.
func (m *Metrics) ObserveSync(direction string, imported, exported, conflicts, failures int, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case failures > 0:
		outcome = "partial"
	}
	m.syncRuns.WithLabelValues(direction, outcome).Inc()
	m.syncItems.WithLabelValues("imported").Add(float64(imported))
	m.syncItems.WithLabelValues("exported").Add(float64(exported))
	m.syncItems.WithLabelValues("conflict").Add(float64(conflicts))
	m.syncItems.WithLabelValues("failed").Add(float64(failures))
	m.syncDuration.Observe(duration.Seconds())
}

// ObserveOccurrences matches the recurrence.Expander observer signature.
func (m *Metrics) ObserveOccurrences(n int) {
	if m == nil {
		return
	}
	m.occurrences.Observe(float64(n))
}
