package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catmatch"

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	registry *prometheus.Registry

	MatchDuration      *prometheus.HistogramVec
	MatchResults       *prometheus.HistogramVec
	MatchConfidence    prometheus.Histogram
	FeedbackTotal      *prometheus.CounterVec
	EmbeddingDuration  *prometheus.HistogramVec
	EmbeddingErrors    *prometheus.CounterVec
	EmbeddingCacheHits *prometheus.CounterVec
	CatalogSize        prometheus.Gauge
	CatalogGeneration  prometheus.Gauge
	CatalogLoadErrors  prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry along
// with the Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		MatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "match_duration_seconds",
				Help:      "Time spent matching user input against the category set",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"interaction_type"},
		),
		MatchResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "match_results_count",
				Help:      "Number of matches returned per request",
				Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
			},
			[]string{"interaction_type"},
		),
		MatchConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "match_confidence",
				Help:      "Confidence of returned matches",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),
		FeedbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedback_total",
				Help:      "Stored feedback items by type",
			},
			[]string{"feedback_type"},
		),
		EmbeddingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "embedding_duration_seconds",
				Help:      "Embedding provider latency",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),
		EmbeddingErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_errors_total",
				Help:      "Embedding provider failures",
			},
			[]string{"operation"},
		),
		EmbeddingCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_cache_requests_total",
				Help:      "Embedding cache lookups by result",
			},
			[]string{"result"},
		),
		CatalogSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_categories",
				Help:      "Categories in the live generation",
			},
		),
		CatalogGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_generation",
				Help:      "Sequence number of the live category generation",
			},
		),
		CatalogLoadErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_load_errors_total",
				Help:      "Failed category loads",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
	}

	reg.MustRegister(
		m.MatchDuration,
		m.MatchResults,
		m.MatchConfidence,
		m.FeedbackTotal,
		m.EmbeddingDuration,
		m.EmbeddingErrors,
		m.EmbeddingCacheHits,
		m.CatalogSize,
		m.CatalogGeneration,
		m.CatalogLoadErrors,
		m.HTTPRequests,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) ObserveMatch(interactionType string, elapsed time.Duration, confidences []float64) {
	if m == nil {
		return
	}
	m.MatchDuration.WithLabelValues(interactionType).Observe(elapsed.Seconds())
	m.MatchResults.WithLabelValues(interactionType).Observe(float64(len(confidences)))
	for _, c := range confidences {
		m.MatchConfidence.Observe(c)
	}
}

func (m *Metrics) ObserveFeedback(feedbackType string) {
	if m == nil {
		return
	}
	m.FeedbackTotal.WithLabelValues(feedbackType).Inc()
}

func (m *Metrics) ObserveEmbedding(operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.EmbeddingDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		m.EmbeddingErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.EmbeddingCacheHits.WithLabelValues(result).Inc()
}

func (m *Metrics) SetCatalog(size int, generation uint64) {
	if m == nil {
		return
	}
	m.CatalogSize.Set(float64(size))
	m.CatalogGeneration.Set(float64(generation))
}

func (m *Metrics) ObserveCatalogLoadError() {
	if m == nil {
		return
	}
	m.CatalogLoadErrors.Inc()
}

func (m *Metrics) ObserveHTTP(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
