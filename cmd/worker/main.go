package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"digestly/internal/app"
	"digestly/internal/domain/entity"
	workerPkg "digestly/internal/infra/worker"
	"digestly/internal/pipeline"
	pkgconfig "digestly/internal/pkg/config"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM user_profiles LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	a, err := app.Build()
	if err != nil {
		slog.Error("failed to wire pipeline", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close()
	logger := a.Logger

	if a.DB != nil {
		waitForMigrations(logger, a.DB)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("max_concurrent_runs", workerConfig.MaxConcurrentRuns),
		slog.Duration("run_timeout", workerConfig.RunTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	startCronWorker(logger, a, workerConfig, workerMetrics, healthServer)
}

// startCronWorker starts the scheduler and blocks forever.
func startCronWorker(logger *slog.Logger, a *app.App, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runTick(logger, a, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

// runTick scans recipients and runs a generation for everyone due.
func runTick(logger *slog.Logger, a *app.App, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	logger.Info("scheduler tick started")

	profiles, err := loadRecipients(a)
	if err != nil {
		logger.Error("failed to load recipients", slog.Any("error", err))
		metrics.RecordTick("failure")
		metrics.RecordTickDuration(time.Since(startTime).Seconds())
		return
	}

	now := time.Now()
	var due []*entity.UserProfile
	for _, profile := range profiles {
		if profile.IsNewsletterDue(now) {
			due = append(due, profile)
		}
	}
	metrics.RecordRecipientsDue(len(due))

	if len(due) == 0 {
		logger.Info("no recipients due", slog.Int("recipients", len(profiles)))
		metrics.RecordTick("success")
		metrics.RecordTickDuration(time.Since(startTime).Seconds())
		metrics.RecordLastSuccess()
		return
	}

	var g errgroup.Group
	g.SetLimit(cfg.MaxConcurrentRuns)

	failures := 0
	results := make([]*pipeline.State, len(due))
	for i, profile := range due {
		i, profile := i, profile
		g.Go(func() error {
			st := a.RunOnce(context.Background(), profile, pipeline.Request{DryRun: a.Cfg.DryRun})
			results[i] = st
			metrics.RecordGeneration(st.FinalStatus())
			return nil
		})
	}
	_ = g.Wait()

	for _, st := range results {
		if st != nil && st.FinalStatus() == "failed" {
			failures++
		}
	}

	if failures > 0 {
		metrics.RecordTick("failure")
	} else {
		metrics.RecordTick("success")
		metrics.RecordLastSuccess()
	}
	metrics.RecordTickDuration(time.Since(startTime).Seconds())

	logger.Info("scheduler tick completed",
		slog.Int("recipients", len(profiles)),
		slog.Int("due", len(due)),
		slog.Int("failed", failures),
		slog.Duration("duration", time.Since(startTime)))
}

// loadRecipients reads profiles from the database when available, the YAML
// recipients file otherwise.
func loadRecipients(a *app.App) ([]*entity.UserProfile, error) {
	if a.Users != nil {
		profiles, err := a.Users.List(context.Background())
		if err != nil {
			return nil, err
		}
		if len(profiles) > 0 {
			return profiles, nil
		}
	}

	file, err := pkgconfig.LoadRecipientsFile(a.Cfg.RecipientsFile)
	if err != nil {
		return nil, err
	}
	profiles := make([]*entity.UserProfile, 0, len(file.Recipients))
	for _, entry := range file.Recipients {
		profiles = append(profiles, app.ProfileFromEntry(entry))
	}
	return profiles, nil
}
