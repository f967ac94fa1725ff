package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"digestly/internal/pkg/config"
)

// WorkerMetrics provides Prometheus metrics for the scheduler. It embeds the
// standard ConfigMetrics for configuration monitoring and adds tick and
// generation tracking.
//
// Scheduler metrics:
//   - worker_scheduler_ticks_total: due-check ticks by status
//   - worker_tick_duration_seconds: duration histogram of a full tick
//   - worker_newsletters_generated_total: generations by final status
//   - worker_recipients_due_total: recipients found due across all ticks
//   - worker_last_success_timestamp: Unix timestamp of the last clean tick
type WorkerMetrics struct {
	*config.ConfigMetrics

	SchedulerTicksTotal       *prometheus.CounterVec
	TickDurationSeconds       prometheus.Histogram
	NewslettersGeneratedTotal *prometheus.CounterVec
	RecipientsDueTotal        prometheus.Counter
	LastSuccessTimestamp      prometheus.Gauge
}

// NewWorkerMetrics creates the scheduler metrics. Registration happens via
// promauto at construction.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		SchedulerTicksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_scheduler_ticks_total",
			Help: "Total due-check ticks by status (success/failure)",
		}, []string{"status"}),

		TickDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_tick_duration_seconds",
			Help:    "Duration of one full due-check tick in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		NewslettersGeneratedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_newsletters_generated_total",
			Help: "Total newsletter generations by final status",
		}, []string{"status"}),

		RecipientsDueTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_recipients_due_total",
			Help: "Total recipients found due across all ticks",
		}),

		LastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_last_success_timestamp",
			Help: "Unix timestamp of the last tick that completed without failures",
		}),
	}
}

// MustRegister is a no-op kept for the usual initialization pattern; promauto
// already registered everything in NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {}

// RecordTick increments the tick counter, status "success" or "failure".
func (m *WorkerMetrics) RecordTick(status string) {
	m.SchedulerTicksTotal.WithLabelValues(status).Inc()
}

// RecordTickDuration observes one tick's duration in seconds.
func (m *WorkerMetrics) RecordTickDuration(seconds float64) {
	m.TickDurationSeconds.Observe(seconds)
}

// RecordGeneration counts one finished generation by its final status.
func (m *WorkerMetrics) RecordGeneration(status string) {
	m.NewslettersGeneratedTotal.WithLabelValues(status).Inc()
}

// RecordRecipientsDue adds the number of recipients due in this tick.
func (m *WorkerMetrics) RecordRecipientsDue(count int) {
	m.RecipientsDueTotal.Add(float64(count))
}

// RecordLastSuccess marks the current time as the last clean tick.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.LastSuccessTimestamp.SetToCurrentTime()
}
