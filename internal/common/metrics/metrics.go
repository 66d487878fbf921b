// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of analysis operations dispatched",
		},
		[]string{"operation"},
	)

	AnalysisFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_failures_total",
			Help: "Total number of failed analysis operations",
		},
		[]string{"operation", "error_code"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "analysis_duration_seconds",
			Help: "Duration of analysis operations in seconds",
		},
		[]string{"operation"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of text-backend calls by outcome",
		},
		[]string{"status"},
	)
)
