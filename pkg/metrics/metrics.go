package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the pipeline. All methods are
// nil-safe so components can run without a registry wired in (tests, validate).
type Metrics struct {
	Registry *prometheus.Registry

	PagesFetchedTotal    *prometheus.CounterVec
	FetchAttemptsTotal   prometheus.Counter
	AttemptFailuresTotal *prometheus.CounterVec
	FetchDuration        prometheus.Histogram

	FilmsExtractedTotal prometheus.Counter
	FilmsFailedTotal    *prometheus.CounterVec
	DirectorsTotal      *prometheus.CounterVec
	DirectorsInFlight   prometheus.Gauge

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RunDuration prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pagesFetched := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filmstats_pages_fetched_total",
			Help: "Pages resolved by the fetcher, by terminal outcome.",
		},
		[]string{"outcome"},
	)
	fetchAttempts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filmstats_fetch_attempts_total",
			Help: "Individual HTTP request attempts, including retries.",
		},
	)
	attemptFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filmstats_fetch_attempt_failures_total",
			Help: "Failed HTTP attempts by error category.",
		},
		[]string{"category"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filmstats_fetch_duration_seconds",
			Help:    "Wall time per successful page fetch, retries included.",
			Buckets: prometheus.DefBuckets,
		},
	)
	filmsExtracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filmstats_films_extracted_total",
			Help: "Films that yielded a complete record.",
		},
	)
	filmsFailed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filmstats_films_failed_total",
			Help: "Films dropped during extraction, by error category.",
		},
		[]string{"category"},
	)
	directors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filmstats_directors_processed_total",
			Help: "Director tasks reaching a terminal outcome.",
		},
		[]string{"outcome"},
	)
	directorsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "filmstats_directors_in_flight",
			Help: "Director tasks currently running.",
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filmstats_cache_hits_total",
			Help: "Film records served from the cache.",
		},
	)
	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filmstats_cache_misses_total",
			Help: "Film cache lookups that required a fetch.",
		},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filmstats_run_duration_seconds",
			Help:    "Wall time of a full pipeline run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	registry.MustRegister(
		pagesFetched, fetchAttempts, attemptFailures, fetchDuration,
		filmsExtracted, filmsFailed, directors, directorsInFlight,
		cacheHits, cacheMisses, runDuration,
	)

	return &Metrics{
		Registry:             registry,
		PagesFetchedTotal:    pagesFetched,
		FetchAttemptsTotal:   fetchAttempts,
		AttemptFailuresTotal: attemptFailures,
		FetchDuration:        fetchDuration,
		FilmsExtractedTotal:  filmsExtracted,
		FilmsFailedTotal:     filmsFailed,
		DirectorsTotal:       directors,
		DirectorsInFlight:    directorsInFlight,
		CacheHitsTotal:       cacheHits,
		CacheMissesTotal:     cacheMisses,
		RunDuration:          runDuration,
	}
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncPageFetched increments the page outcome counter.
func (m *Metrics) IncPageFetched(outcome string) {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.WithLabelValues(outcome).Inc()
}

// IncFetchAttempt increments the attempt counter.
func (m *Metrics) IncFetchAttempt() {
	if m == nil {
		return
	}
	m.FetchAttemptsTotal.Inc()
}

// IncAttemptFailure increments the failed-attempt counter for a category label.
func (m *Metrics) IncAttemptFailure(category string) {
	if m == nil {
		return
	}
	m.AttemptFailuresTotal.WithLabelValues(category).Inc()
}

// ObserveFetchDuration records how long a successful page fetch took.
func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncFilmExtracted increments the extracted-film counter.
func (m *Metrics) IncFilmExtracted() {
	if m == nil {
		return
	}
	m.FilmsExtractedTotal.Inc()
}

// IncFilmFailed increments the dropped-film counter for a category label.
func (m *Metrics) IncFilmFailed(category string) {
	if m == nil {
		return
	}
	m.FilmsFailedTotal.WithLabelValues(category).Inc()
}

// IncDirector increments the director outcome counter.
func (m *Metrics) IncDirector(outcome string) {
	if m == nil {
		return
	}
	m.DirectorsTotal.WithLabelValues(outcome).Inc()
}

// DirectorStarted moves the in-flight gauge up by one.
func (m *Metrics) DirectorStarted() {
	if m == nil {
		return
	}
	m.DirectorsInFlight.Inc()
}

// DirectorFinished moves the in-flight gauge down by one.
func (m *Metrics) DirectorFinished() {
	if m == nil {
		return
	}
	m.DirectorsInFlight.Dec()
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncCacheMiss increments the cache miss counter.
func (m *Metrics) IncCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// ObserveRunDuration records the wall time of a completed run.
func (m *Metrics) ObserveRunDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}
