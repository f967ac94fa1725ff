package metrics

import (
	"time"
)

// RecordPipelineRun records the outcome and duration of a full pipeline run.
// Status should be either "completed" or "failed".
func RecordPipelineRun(status string, duration time.Duration) {
	PipelineRunsTotal.WithLabelValues(status).Inc()
	PipelineRunDuration.Observe(duration.Seconds())
}

// RecordStageDuration records the time spent in a single pipeline stage.
func RecordStageDuration(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordPipelineError records an error captured during a pipeline run.
// Severity should be one of "low", "medium", "high", "critical".
func RecordPipelineError(stage, severity string) {
	PipelineErrorsTotal.WithLabelValues(stage, severity).Inc()
}

// RecordContentCollected records the number of items collected from a source.
// This metric helps track source activity and collection performance.
func RecordContentCollected(source string, count int) {
	ContentCollectedTotal.WithLabelValues(source).Add(float64(count))
}

// RecordContentFiltered records items removed during quality filtering.
func RecordContentFiltered(reason string, count int) {
	if count <= 0 {
		return
	}
	ContentFilteredTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordSourceError records a collection failure for a source.
func RecordSourceError(source, errorType string) {
	SourceErrorsTotal.WithLabelValues(source, errorType).Inc()
}

// RecordSourceFetch records the duration of a source fetch operation.
func RecordSourceFetch(source string, duration time.Duration) {
	SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordScoring records the result of an AI scoring request.
// Provider identifies the backing service (e.g., "openai", "anthropic",
// "heuristic").
func RecordScoring(provider string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	ScoringRequestsTotal.WithLabelValues(provider, status).Inc()
	ScoringDuration.Observe(duration.Seconds())
}

// RecordEmailDelivered records a newsletter delivery attempt.
// Status should be one of "sent", "failed", "dry_run".
func RecordEmailDelivered(status string, duration time.Duration) {
	EmailsDeliveredTotal.WithLabelValues(status).Inc()
	if status != "dry_run" {
		EmailDeliveryDuration.Observe(duration.Seconds())
	}
}

// ObserveNewsletterSize records how many articles a generated newsletter
// contains. This helps spot content starvation before users notice.
func ObserveNewsletterSize(articles int) {
	NewsletterArticles.Observe(float64(articles))
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "insert_run", "select_recipients").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
