package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the analysis API.
var (
	// RequestsTotal counts handled HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yield_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration tracks request latency per endpoint.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yield_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"endpoint", "method"},
	)

	// AnalysisRunsTotal counts completed analysis runs by outcome.
	AnalysisRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yield_analysis_runs_total",
			Help: "Total number of analysis runs",
		},
		[]string{"mode", "outcome"},
	)

	// AnalysisLatency tracks the analysis pipeline latency.
	AnalysisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yield_analysis_latency_seconds",
			Help:    "Analysis pipeline latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	// OutliersDetected counts points flagged as outliers.
	OutliersDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yield_outliers_detected_total",
			Help: "Total number of outlier points detected",
		},
	)

	// ClustersFound reports the cluster count of the last analysis run.
	ClustersFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yield_clusters_found",
			Help: "Number of clusters found by the last analysis run",
		},
	)
)
