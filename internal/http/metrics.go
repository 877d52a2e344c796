package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the Prometheus side of core.Metrics plus the API request counter.
// Collectors live on their own registry so several servers can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal      *prometheus.CounterVec
	CacheLookupsTotal *prometheus.CounterVec
	FetchDuration     prometheus.Histogram
	TracksAddedTotal  *prometheus.CounterVec
	QueueLength       prometheus.Gauge
	APIRequestsTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytqueue_fetches_total",
				Help: "Provider calls made by the recommendation pipeline",
			},
			[]string{"source", "status"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytqueue_cache_lookups_total",
				Help: "Recommendation cache lookups",
			},
			[]string{"result"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ytqueue_fetch_duration_seconds",
				Help:    "Time spent in one recommendation fetch",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
			},
		),
		TracksAddedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytqueue_tracks_added_total",
				Help: "Tracks appended or inserted into the live queue",
			},
			[]string{"source"},
		),
		QueueLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ytqueue_queue_length",
				Help: "Current number of tracks in the live queue",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytqueue_api_requests_total",
				Help: "Control API requests by route and status code",
			},
			[]string{"route", "status"},
		),
	}

	m.registry.MustRegister(
		m.FetchesTotal,
		m.CacheLookupsTotal,
		m.FetchDuration,
		m.TracksAddedTotal,
		m.QueueLength,
		m.APIRequestsTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the collectors for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordFetch(source, status string) {
	m.FetchesTotal.WithLabelValues(source, status).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordTracksAdded(source string, n int) {
	if n <= 0 {
		return
	}
	m.TracksAddedTotal.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) SetQueueLength(n int) {
	m.QueueLength.Set(float64(n))
}

func (m *Metrics) RecordAPIRequest(route string, status int) {
	m.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
