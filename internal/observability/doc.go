// Package observability provides logging, metrics, and context helpers
// for the scholarly retrieval service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for dispatched requests, source searches,
//     caching, and PDF resolution
//   - Context helpers for propagating the request ID
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("request_id", reqID).Msg("search dispatched")
//
// # Metrics
//
// Initialize metrics once at process start:
//
//	metrics := observability.NewMetrics("scholarly_retrieval")
//	metrics.SearchesStarted.WithLabelValues("arxiv").Inc()
//
// Per-source failure counters are the side channel through which
// partial aggregation failures stay observable without appearing in the
// response payload.
//
// # Standard Fields
//
//   - request_id: identifier assigned to each dispatched envelope
//   - method: JSON-RPC method name
//   - query: the free-text search query
//   - source: scholarly source (google_scholar, pubmed, arxiv, openaire)
//   - doi: document DOI
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
