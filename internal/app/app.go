// Package app wires the newsletter pipeline from environment configuration.
// Both the CLI and the scheduler worker build the same App.
package app

import (
	"context"
	"crypto/tls"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"digestly/internal/domain/entity"
	pgRepo "digestly/internal/infra/adapter/persistence/postgres"
	"digestly/internal/infra/db"
	"digestly/internal/infra/email"
	"digestly/internal/infra/remote"
	"digestly/internal/infra/render"
	"digestly/internal/infra/scorer"
	"digestly/internal/infra/source"
	"digestly/internal/observability/logging"
	"digestly/internal/pipeline"
	pkgconfig "digestly/internal/pkg/config"
	"digestly/internal/repository"
	"digestly/internal/usecase/collect"
	"digestly/internal/usecase/curate"
	"digestly/internal/usecase/deliver"
)

// defaultFeeds seeds the RSS source when RSS_FEEDS is not set.
var defaultFeeds = []string{
	"https://go.dev/blog/feed.atom",
	"https://blog.golang.org/feed.atom",
	"https://lobste.rs/rss",
	"https://hnrss.org/best",
}

// App holds the wired pipeline and its supporting resources.
type App struct {
	Cfg     *pkgconfig.AppConfig
	Logger  *slog.Logger
	DB      *sql.DB
	Machine *pipeline.Machine
	Users   repository.UserProfileRepository

	// Interactions records engagement signals; nil without a database.
	Interactions repository.InteractionRepository

	// CanDeliver is false when no delivery credentials are configured;
	// runs are then forced into dry-run mode.
	CanDeliver bool

	analytics *pipeline.AnalyticsService
	cleanups  []func()
}

// Close releases the App's resources in reverse wiring order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}

// Build wires the full pipeline from environment configuration. Missing
// credentials disable the component that needs them instead of failing.
func Build() (*App, error) {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	cfg := pkgconfig.LoadAppConfig(logger, pkgconfig.NewConfigMetrics("app"))

	a := &App{Cfg: cfg, Logger: logger}

	var (
		runs  repository.RunRepository
		users repository.UserProfileRepository
		store repository.ContentEmbeddingRepository
	)
	if cfg.DatabaseURL != "" {
		a.DB = db.Open()
		a.cleanups = append(a.cleanups, func() {
			if err := a.DB.Close(); err != nil {
				logger.Error("failed to close database", slog.Any("error", err))
			}
		})
		runs = pgRepo.NewRunRepo(a.DB)
		users = pgRepo.NewUserProfileRepo(a.DB)
		store = pgRepo.NewContentEmbeddingRepo(a.DB)
		a.Users = users
		a.Interactions = pgRepo.NewInteractionRepo(a.DB)
	} else {
		logger.Warn("DATABASE_URL not set, running without persistence")
	}

	httpClient := newHTTPClient()

	// Sources. The GitHub source rides the analysis bridge when one is
	// configured; the rest speak HTTP directly.
	var (
		sources  []collect.Source
		activity collect.ActivityFeed
	)
	if cfg.BridgeCommand != "" {
		parts := strings.Fields(cfg.BridgeCommand)
		conn := remote.NewSubprocessConnection(parts[0], parts[1:], logger)
		client := remote.NewClient(conn, remote.DefaultClientConfig(), logger)
		a.cleanups = append(a.cleanups, func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close bridge client", slog.Any("error", err))
			}
		})
		gh := source.NewGitHubSource(client, cfg.MinRepoStars, logger)
		sources = append(sources, gh)
		activity = gh
	} else {
		logger.Info("BRIDGE_COMMAND not set, GitHub source disabled")
	}
	sources = append(sources, source.NewHackerNewsSource(httpClient, logger))
	sources = append(sources, source.NewRSSSource(feedList(), httpClient, logger))
	if cfg.FirecrawlAPIKey != "" {
		sources = append(sources, source.NewFirecrawlSource(cfg.FirecrawlAPIKey, httpClient, logger))
	}

	enricher := source.NewReadabilityEnricher(httpClient, logger)
	collector := collect.NewEngine(sources, activity, enricher, collect.LoadConfig(), logger)

	// Scoring. OpenAI when credentials exist, the heuristic scorer both as
	// primary fallback and as the degradation target.
	heuristic := scorer.NewHeuristicScorer(logger)
	curator := curate.NewEngine(heuristic, heuristic, curate.LoadConfig(logger), logger)
	if cfg.OpenAIAPIKey != "" {
		ai := scorer.NewOpenAIScorer(cfg.OpenAIAPIKey, scorer.DefaultOpenAIScorerConfig())
		curator.Scorer = ai
		curator.Subject = ai
		if store != nil {
			curator.Novelty = scorer.NewNoveltyScorer(cfg.OpenAIAPIKey, store, logger)
		}
	} else {
		logger.Warn("OPENAI_API_KEY not set, using heuristic scoring only")
	}
	if cfg.AnthropicAPIKey != "" {
		curator.Insights = scorer.NewClaudeInsights(cfg.AnthropicAPIKey)
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		return nil, err
	}

	var sender deliver.Sender
	if cfg.ResendAPIKey != "" {
		sender = email.NewResendSender(email.DefaultResendConfig(cfg.ResendAPIKey, cfg.FromEmail))
		a.CanDeliver = true
	} else {
		logger.Warn("RESEND_API_KEY not set, deliveries forced to dry-run")
	}
	deliverer := deliver.NewService(renderer, sender, logger)

	var recorder pipeline.Recorder
	if runs != nil {
		analytics := pipeline.NewAnalyticsService(runs, users, logger)
		analytics.Interactions = a.Interactions
		a.analytics = analytics
		recorder = analytics
	}

	a.Machine = pipeline.NewMachine(collector, curator, deliverer, recorder, logger)
	return a, nil
}

// RunOnce executes a single generation for one recipient, bounded by the
// configured run timeout.
func (a *App) RunOnce(ctx context.Context, profile *entity.UserProfile, req pipeline.Request) *pipeline.State {
	if !a.CanDeliver && !req.DryRun {
		a.Logger.Warn("No delivery credentials, forcing dry-run",
			slog.String("email", profile.Email))
		req.DryRun = true
	}

	rctx, cancel := contextWithTimeout(ctx, a.Cfg.RunTimeout)
	defer cancel()

	if a.analytics != nil {
		if err := a.analytics.ApplyEngagement(rctx, profile); err != nil {
			a.Logger.Warn("Engagement adjustment skipped",
				slog.String("email", profile.Email),
				slog.String("error", err.Error()))
		}
	}

	st := pipeline.NewState(profile, req)
	return a.Machine.Run(rctx, st)
}

func feedList() []string {
	raw := pkgconfig.LoadEnvString("RSS_FEEDS", "")
	if raw == "" {
		return defaultFeeds
	}
	var feeds []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			feeds = append(feeds, f)
		}
	}
	return feeds
}

// ProfileFromEntry converts a recipients file entry into a profile, filling
// defaults for anything the entry leaves zero.
func ProfileFromEntry(entry pkgconfig.RecipientEntry) *entity.UserProfile {
	profile := entity.NewUserProfile(entry.Email, entry.Name, entry.Interests)
	if entry.MaxArticles > 0 {
		profile.MaxArticles = entry.MaxArticles
	}
	if entry.ScheduleTime != "" {
		profile.ScheduleTime = entry.ScheduleTime
	}
	if entry.Timezone != "" {
		profile.Timezone = entry.Timezone
	}
	if len(entry.DeliveryDays) > 0 {
		profile.ScheduleDays = ParseWeekdays(entry.DeliveryDays)
	}
	if len(entry.ContentTypes) > 0 {
		profile.ContentTypePreferences = entry.ContentTypes
	}
	if entry.GitHubUsername != "" {
		profile.GitHubUsername = entry.GitHubUsername
	}
	return profile
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekdays maps lowercase day names to weekdays, skipping unknown names.
func ParseWeekdays(names []string) []time.Weekday {
	var days []time.Weekday
	for _, name := range names {
		if d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			days = append(days, d)
		}
	}
	return days
}

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
