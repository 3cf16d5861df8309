// Package metrics exposes Prometheus instrumentation for the recommendation
// pipeline, its upstream clients, and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generation results used as the "result" label.
const (
	ResultSuccess              = "success"
	ResultQuotaExceeded        = "quota_exceeded"
	ResultOnboardingIncomplete = "onboarding_incomplete"
	ResultUpstreamUnavailable  = "upstream_unavailable"
	ResultMalformedOutput      = "malformed_output"
	ResultNoValid              = "no_valid_recommendations"
	ResultError                = "error"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmate_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfmate_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Recommendation pipeline
	RecommendationGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmate_recommendation_generations_total",
			Help: "Total number of recommendation generation attempts by result",
		},
		[]string{"result"},
	)

	RecommendationGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelfmate_recommendation_generation_duration_seconds",
			Help:    "End-to-end duration of a recommendation generation",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	EnrichmentResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmate_enrichment_results_total",
			Help: "Candidates resolved against the catalog, by outcome",
		},
		[]string{"outcome"}, // "enriched", "degraded"
	)

	// Text-generation collaborator
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfmate_llm_request_duration_seconds",
			Help:    "Duration of text-generation requests",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"status"}, // "success", "error"
	)

	// Catalog search
	ExternalSearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmate_external_search_requests_total",
			Help: "External bibliographic search requests by result",
		},
		[]string{"result"}, // "success", "error"
	)

	SearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfmate_search_cache_hits_total",
			Help: "External search results served from cache",
		},
	)

	SearchCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfmate_search_cache_misses_total",
			Help: "External search lookups that missed the cache",
		},
	)

	// Quota
	QuotaCountersSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfmate_quota_counters_swept_total",
			Help: "Quota counters deleted by the retention sweep",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records one handled HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordGeneration records the outcome of one generation attempt.
func RecordGeneration(result string, duration time.Duration) {
	RecommendationGenerations.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		RecommendationGenerationDuration.Observe(duration.Seconds())
	}
}

// RecordEnrichment records whether a candidate was matched to the catalog.
func RecordEnrichment(enriched bool) {
	if enriched {
		EnrichmentResults.WithLabelValues("enriched").Inc()
		return
	}
	EnrichmentResults.WithLabelValues("degraded").Inc()
}

// RecordLLMRequest records a text-generation call.
func RecordLLMRequest(duration time.Duration, err error) {
	LLMRequestDuration.WithLabelValues(statusLabel(err)).Observe(duration.Seconds())
}

// RecordExternalSearch records an external bibliographic search call.
func RecordExternalSearch(err error) {
	ExternalSearchRequests.WithLabelValues(statusLabel(err)).Inc()
}

// RecordSearchCache records a search cache lookup.
func RecordSearchCache(hit bool) {
	if hit {
		SearchCacheHits.Inc()
		return
	}
	SearchCacheMisses.Inc()
}

// RecordQuotaSweep records counters removed by one sweep.
func RecordQuotaSweep(deleted int64) {
	if deleted > 0 {
		QuotaCountersSwept.Add(float64(deleted))
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
