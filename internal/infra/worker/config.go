// Package worker holds the scheduler service's configuration, health
// endpoints, and metrics.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"digestly/internal/pkg/config"
)

// WorkerConfig controls the newsletter scheduler: how often the due-check
// tick fires, how many recipients run in parallel per tick, and how long a
// single generation may take.
//
// All fields have defaults and validation rules so the worker can start
// safely even with invalid or missing configuration.
type WorkerConfig struct {
	// CronSchedule is the cron expression for the due-check tick. Each
	// tick scans recipients and runs generations for those due.
	// Default: every 15 minutes.
	CronSchedule string

	// Timezone is the IANA timezone the cron schedule is evaluated in.
	// Recipient due-checks use each recipient's own timezone regardless.
	Timezone string

	// MaxConcurrentRuns bounds parallel newsletter generations per tick.
	// Range: 1-16.
	MaxConcurrentRuns int

	// RunTimeout is the maximum duration for one recipient's generation.
	RunTimeout time.Duration

	// HealthPort is the port for the health check HTTP server.
	// Range: 1024-65535.
	HealthPort int
}

// DefaultConfig returns production-ready scheduler defaults: a 15-minute
// due-check tick in UTC, two parallel generations, a 15-minute per-run
// timeout, and health checks on 9091.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule:      "*/15 * * * *",
		Timezone:          "UTC",
		MaxConcurrentRuns: 2,
		RunTimeout:        15 * time.Minute,
		HealthPort:        9091,
	}
}

// Validate checks every field and returns all violations together.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errors = append(errors, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxConcurrentRuns, 1, 16); err != nil {
		errors = append(errors, fmt.Errorf("max concurrent runs: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.RunTimeout); err != nil {
		errors = append(errors, fmt.Errorf("run timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}
	return nil
}

// LoadConfigFromEnv loads the scheduler configuration with the fail-open
// strategy: an invalid value falls back to its default, logs a warning, and
// increments the fallback metrics. It never returns an error.
//
// Environment variables:
//   - CRON_SCHEDULE: cron expression (default "*/15 * * * *")
//   - WORKER_TIMEZONE: IANA timezone (default "UTC")
//   - MAX_CONCURRENT_RUNS: integer 1-16 (default 2)
//   - RUN_TIMEOUT: duration string, e.g. "15m"
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	warn := func(field string, result config.ConfigLoadResult) config.ConfigLoadResult {
		if result.FallbackApplied {
			fallbackApplied = true
			if metrics != nil {
				metrics.RecordValidationError(field)
				metrics.RecordFallback(field)
			}
			for _, warning := range result.Warnings {
				logger.Warn("Configuration fallback applied",
					slog.String("field", field),
					slog.String("warning", warning))
			}
		}
		return result
	}

	cfg.CronSchedule = warn("cron_schedule",
		config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)).Value.(string)
	cfg.Timezone = warn("timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)).Value.(string)
	cfg.MaxConcurrentRuns = warn("max_concurrent_runs",
		config.LoadEnvInt("MAX_CONCURRENT_RUNS", cfg.MaxConcurrentRuns, func(v int) error {
			return config.ValidateIntRange(v, 1, 16)
		})).Value.(int)
	cfg.RunTimeout = warn("run_timeout",
		config.LoadEnvDuration("RUN_TIMEOUT", cfg.RunTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, 1*time.Minute, 2*time.Hour)
		})).Value.(time.Duration)
	cfg.HealthPort = warn("health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		})).Value.(int)

	if metrics != nil {
		metrics.SetFallbackActive(fallbackApplied)
		metrics.RecordLoadTimestamp()
	}

	return &cfg, nil
}
