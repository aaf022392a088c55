// Package metrics holds the Prometheus collectors of every pipeline stage.
// Collectors are package variables registered once by Register and passed explicitly where a
// component should stay testable without the default registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every sda metric.
const Namespace = "sda"

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Name: name, Help: help}, labels)
}

func histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: Namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

// Embedding provider calls, recorded by the provider adapters and the cache.
var (
	EmbeddingRequestsTotal = counterVec("embedding_requests_total",
		"Embedding provider calls by outcome", "provider", "model", "status")
	EmbeddingRequestDuration = histogramVec("embedding_request_duration_seconds",
		"Embedding provider call latency", []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, "provider", "model")
	EmbeddingTokensTotal = counterVec("embedding_tokens_total",
		"Tokens billed by the embedding provider", "provider", "model", "type")
	EmbeddingErrorsTotal = counterVec("embedding_errors_total",
		"Embedding provider failures by kind", "provider", "model", "error_type")
	// EmbeddingCacheTotal is labelled result="hit" or "miss".
	EmbeddingCacheTotal = counterVec("embedding_cache_total",
		"Embedding cache lookups", "result")
)

// Ingestion.
var (
	// IngestFilesTotal is labelled outcome="indexed" or "skipped".
	IngestFilesTotal = counterVec("ingest_files_total",
		"Corpus entries seen by ingestion, by outcome", "outcome")
	IngestChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "ingest_chunks_total",
		Help:      "Chunks embedded and written to the index",
	})
)

// Retrieval and generation.
var (
	RetrievalDuration = histogramVec("retrieval_duration_seconds",
		"Retrieval latency, query embedding included",
		[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}, "rerank")
	RetrievalCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "retrieval_candidates",
		Help:      "Candidates returned by the vector index per query",
		Buckets:   []float64{0, 1, 5, 10, 20, 40, 60, 100},
	})
	GenerationTotal = counterVec("generation_total",
		"Generation attempts by status", "status")
)

// HTTP API.
var (
	httpRequestDuration = histogramVec("http_request_duration_seconds",
		"HTTP request latency by route",
		[]float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, "method", "route", "status")
	httpRequestsTotal = counterVec("http_requests_total",
		"HTTP requests by route and status", "method", "route", "status")
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served",
	})
)
