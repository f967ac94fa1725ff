// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics track newsletter generation runs end to end
var (
	// PipelineRunsTotal counts completed pipeline runs by outcome
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of newsletter pipeline runs",
		},
		[]string{"status"}, // status: completed, failed
	)

	// PipelineRunDuration measures total pipeline run duration in seconds
	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Total newsletter pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// PipelineStageDuration measures per-stage duration in seconds
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"stage"},
	)

	// PipelineErrorsTotal counts errors recorded during pipeline runs
	PipelineErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_errors_total",
			Help: "Total number of errors recorded during pipeline runs",
		},
		[]string{"stage", "severity"},
	)
)

// Collection metrics track content gathering from external sources
var (
	// ContentCollectedTotal counts content items collected per source
	ContentCollectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_collected_total",
			Help: "Total number of content items collected from sources",
		},
		[]string{"source"},
	)

	// ContentFilteredTotal counts items removed by quality filtering
	ContentFilteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_filtered_total",
			Help: "Total number of content items removed by filtering",
		},
		[]string{"reason"}, // reason: duplicate, short_title, bad_url, low_stars, stale
	)

	// SourceErrorsTotal counts collection failures per source
	SourceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_errors_total",
			Help: "Total number of content source failures",
		},
		[]string{"source", "error_type"},
	)

	// SourceFetchDuration measures per-source fetch duration
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Time taken to fetch content from a source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)
)

// Scoring metrics track AI relevance and quality analysis
var (
	// ScoringRequestsTotal counts scoring calls by provider and result
	ScoringRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_requests_total",
			Help: "Total number of AI scoring requests",
		},
		[]string{"provider", "status"},
	)

	// ScoringDuration measures time to score a content batch
	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_duration_seconds",
			Help:    "Time taken to score a batch of content",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

// Delivery metrics track newsletter email sending
var (
	// EmailsDeliveredTotal counts delivery attempts by result
	EmailsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_delivered_total",
			Help: "Total number of newsletter delivery attempts",
		},
		[]string{"status"}, // status: sent, failed, dry_run
	)

	// EmailDeliveryDuration measures time to deliver one newsletter
	EmailDeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "email_delivery_duration_seconds",
			Help:    "Time taken to deliver a newsletter email",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// NewsletterArticles measures articles included per newsletter
	NewsletterArticles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsletter_articles",
			Help:    "Number of articles included in a generated newsletter",
			Buckets: []float64{1, 3, 5, 8, 10, 15, 20, 30, 50},
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)
