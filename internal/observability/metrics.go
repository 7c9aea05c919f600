package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the scholarly retrieval
// service. Metrics are organized by subsystem: dispatched requests,
// source searches, response caching, and PDF resolution. All counters
// and histograms are registered via promauto for automatic registration
// with the default Prometheus registry.
//
// Per-source failure counters are deliberately the only place partial
// aggregation failures surface: the response payload reports successes
// only.
type Metrics struct {
	// RequestsTotal counts dispatched requests, labeled by method.
	RequestsTotal *prometheus.CounterVec

	// RequestsFailed counts dispatched requests that returned an error
	// envelope, labeled by method and error code.
	RequestsFailed *prometheus.CounterVec

	// RequestDuration observes end-to-end request duration in seconds,
	// labeled by method.
	RequestDuration *prometheus.HistogramVec

	// SearchesStarted counts searches issued to a source, labeled by source.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful source searches, labeled by source.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed source searches, labeled by source and error kind.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes per-source search duration in seconds, labeled by source.
	SearchDuration *prometheus.HistogramVec

	// DocumentsPerSearch observes the distribution of documents returned per source search.
	DocumentsPerSearch *prometheus.HistogramVec

	// DocumentsDuplicate counts documents dropped by cross-source deduplication.
	DocumentsDuplicate prometheus.Counter

	// SourceRateLimited counts rate-limited upstream responses, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// CacheHits counts response cache hits, labeled by cache name.
	CacheHits *prometheus.CounterVec

	// CacheMisses counts response cache misses, labeled by cache name.
	CacheMisses *prometheus.CounterVec

	// CacheCoalesced counts lookups that joined another caller's
	// in-flight fetch instead of fetching themselves, labeled by cache name.
	CacheCoalesced *prometheus.CounterVec

	// PDFResolutions counts open-access PDF resolution attempts,
	// labeled by outcome (resolved, unresolved, error, skipped).
	PDFResolutions *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of dispatched requests",
		}, []string{"method"}),
		RequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_failed_total",
			Help:      "Total number of requests that returned an error envelope",
		}, []string{"method", "code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method"}),

		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of searches issued to a source",
		}, []string{"source"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of source searches that succeeded",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of source searches that failed",
		}, []string{"source", "kind"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Per-source search duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		DocumentsPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "documents_per_search",
			Help:      "Number of documents returned per source search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}, []string{"source"}),
		DocumentsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_duplicate_total",
			Help:      "Total number of documents dropped by deduplication",
		}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limited upstream responses",
		}, []string{"source"}),

		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits",
		}, []string{"cache"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of response cache misses",
		}, []string{"cache"}),
		CacheCoalesced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_coalesced_total",
			Help:      "Total number of lookups that joined an in-flight fetch",
		}, []string{"cache"}),

		PDFResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_resolutions_total",
			Help:      "Total number of open-access PDF resolution attempts",
		}, []string{"outcome"}),
	}
}
