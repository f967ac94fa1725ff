// Package collect implements the content collection stage: fanning out over
// the recipient's interests and the configured sources, merging the results,
// and reducing them to a deduplicated, filtered, ranked candidate list for
// curation.
package collect

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/metrics"
	"digestly/internal/resilience/ratelimit"
)

// Source fetches content for a single interest from one upstream. It mirrors
// the source package's interface so the engine does not depend on concrete
// connectors.
type Source interface {
	Name() string
	Fetch(ctx context.Context, interest string, limit int) ([]*entity.ContentItem, error)
}

// ActivityFeed fetches the recipient's own recent activity (e.g. their
// repositories and pushes) for the personal section of the newsletter.
type ActivityFeed interface {
	UserActivity(ctx context.Context, username string, limit int) ([]*entity.ContentItem, error)
}

// Enricher fills in summaries and word counts for items that arrived bare.
// Enrichment is best-effort; implementations log and skip on failure.
type Enricher interface {
	EnrichAll(ctx context.Context, items []*entity.ContentItem)
}

// Config holds collection tuning knobs.
type Config struct {
	// MaxConcurrent bounds the number of in-flight fetch tasks across all
	// interest and source combinations.
	MaxConcurrent int

	// MaxItemsPerSource is the per-task fetch limit.
	MaxItemsPerSource int

	// RequestsPerMinute caps fetch task starts across the fan-out so a
	// wide interest list cannot hammer the upstreams.
	RequestsPerMinute int

	// MaxContentAgeHours drops items older than this during filtering.
	MaxContentAgeHours float64

	// MinRepoStars is the minimum popularity signal for repository items.
	MinRepoStars int
}

// LoadConfig loads collection configuration from environment variables with
// fallback to defaults.
//
// Environment variables:
//   - COLLECT_MAX_CONCURRENT: maximum concurrent fetch tasks (default: 5)
//   - COLLECT_MAX_ITEMS_PER_SOURCE: per-task fetch limit (default: 20)
//   - COLLECT_REQUESTS_PER_MINUTE: fetch task start budget (default: 120)
//   - COLLECT_MAX_AGE_HOURS: maximum content age in hours (default: 168)
//   - COLLECT_MIN_REPO_STARS: minimum stars for repository items (default: 5)
func LoadConfig() Config {
	cfg := Config{
		MaxConcurrent:      5,
		MaxItemsPerSource:  20,
		RequestsPerMinute:  120,
		MaxContentAgeHours: 168,
		MinRepoStars:       5,
	}
	cfg.MaxConcurrent = envInt("COLLECT_MAX_CONCURRENT", cfg.MaxConcurrent, 1, 50)
	cfg.MaxItemsPerSource = envInt("COLLECT_MAX_ITEMS_PER_SOURCE", cfg.MaxItemsPerSource, 1, 100)
	cfg.RequestsPerMinute = envInt("COLLECT_REQUESTS_PER_MINUTE", cfg.RequestsPerMinute, 1, 10000)
	cfg.MinRepoStars = envInt("COLLECT_MIN_REPO_STARS", cfg.MinRepoStars, 0, 100000)
	if age := envInt("COLLECT_MAX_AGE_HOURS", int(cfg.MaxContentAgeHours), 1, 24*365); age > 0 {
		cfg.MaxContentAgeHours = float64(age)
	}
	return cfg
}

func envInt(key string, def, min, max int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer environment variable, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Int("default", def))
		return def
	}
	if parsed < min || parsed > max {
		slog.Warn("Environment variable out of valid range, using default",
			slog.String("key", key),
			slog.Int("value", parsed),
			slog.Int("min", min),
			slog.Int("max", max),
			slog.Int("default", def))
		return def
	}
	return parsed
}

// defaultInterests is used when a profile carries no interests, so a run can
// still produce a general-purpose newsletter.
var defaultInterests = []string{"technology", "programming"}

// Result is the outcome of one collection pass.
type Result struct {
	// Items is the deduplicated, filtered, ranked candidate list.
	Items []*entity.ContentItem

	// RawCount is the number of items gathered before dedup and filtering.
	RawCount int

	// SourceErrors maps "source/interest" to the error each failing task hit.
	SourceErrors map[string]error

	// UsedFallback reports whether any task degraded to synthetic content.
	UsedFallback bool
}

// Engine coordinates concurrent collection across sources. Fan-out runs
// through a worker pool paced by a shared rate limiter, the only concurrency
// control shared across the tasks of one pass.
type Engine struct {
	Sources  []Source
	Activity ActivityFeed
	Enricher Enricher
	Config   Config
	Logger   *slog.Logger

	limiter *ratelimit.Limiter
}

// NewEngine creates a collection engine. Activity and enricher may be nil to
// disable the personal feed and enrichment respectively.
func NewEngine(sources []Source, activity ActivityFeed, enricher Enricher, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Sources:  sources,
		Activity: activity,
		Enricher: enricher,
		Config:   cfg,
		Logger:   logger,
		limiter: ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.RequestsPerMinute,
			MaxConcurrent:     cfg.MaxConcurrent,
			// Tasks degrade to fallback content internally, so the
			// pool's retry budget stays at one attempt.
			MaxRetries: 1,
		}),
	}
}

// Collect gathers content for the profile from every enabled source and
// interest combination concurrently, then deduplicates, filters, ranks, and
// truncates the merged results.
//
// A failing task never aborts the pass: its error is recorded and the task
// degrades to deterministic fallback items so the newsletter can still be
// assembled. Collect returns an error only when the context is cancelled.
func (e *Engine) Collect(ctx context.Context, profile *entity.UserProfile) (*Result, error) {
	interests := profile.Interests
	if len(interests) == 0 {
		e.Logger.Warn("Profile has no interests, using defaults",
			slog.String("email", profile.Email))
		interests = defaultInterests
	}

	start := time.Now()
	e.Logger.Info("Starting content collection",
		slog.String("email", profile.Email),
		slog.Int("interests", len(interests)),
		slog.Int("sources", len(e.Sources)))

	var (
		mu           sync.Mutex
		sourceErrors = make(map[string]error)
		usedFallback bool
	)

	workers := e.Config.MaxConcurrent
	if workers <= 0 {
		workers = 5
	}
	pool := ratelimit.NewWorkerPool[[]*entity.ContentItem](e.limiter, workers, e.Logger)

	for _, src := range e.Sources {
		for _, interest := range interests {
			src, interest := src, interest
			pool.AddTask(func(ctx context.Context) ([]*entity.ContentItem, error) {
				fetchStart := time.Now()
				items, err := src.Fetch(ctx, interest, e.Config.MaxItemsPerSource)
				metrics.RecordSourceFetch(src.Name(), time.Since(fetchStart))
				if err != nil {
					e.Logger.Error("Source fetch failed, using fallback content",
						slog.String("source", src.Name()),
						slog.String("interest", interest),
						slog.String("error", err.Error()))
					metrics.RecordSourceError(src.Name(), "fetch")
					items = SyntheticFallback(src.Name(), interest, e.Config.MaxItemsPerSource)
					mu.Lock()
					sourceErrors[src.Name()+"/"+interest] = err
					usedFallback = true
					mu.Unlock()
				}
				metrics.RecordContentCollected(src.Name(), len(items))
				return items, nil
			})
		}
	}

	if e.Activity != nil && profile.IncludeGitHubActivity && profile.GitHubUsername != "" {
		username := profile.GitHubUsername
		pool.AddTask(func(ctx context.Context) ([]*entity.ContentItem, error) {
			items, err := e.Activity.UserActivity(ctx, username, e.Config.MaxItemsPerSource)
			if err != nil {
				// Personal activity is a bonus; no fallback, just a warning.
				e.Logger.Warn("User activity fetch failed",
					slog.String("username", username),
					slog.String("error", err.Error()))
				metrics.RecordSourceError("user_activity", "fetch")
				return nil, nil
			}
			metrics.RecordContentCollected("user_activity", len(items))
			return items, nil
		})
	}

	var collected []*entity.ContentItem
	for _, batch := range pool.ProcessAll(ctx) {
		collected = append(collected, batch...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.Enricher != nil {
		e.Enricher.EnrichAll(ctx, collected)
	}

	rawCount := len(collected)
	unique := Deduplicate(collected)
	if removed := rawCount - len(unique); removed > 0 {
		metrics.RecordContentFiltered("duplicate", removed)
	}
	filtered := e.filter(unique, profile, interests)
	ranked := rank(filtered, profile, interests)

	maxTotal := profile.MaxArticles * 3
	if maxTotal <= 0 {
		maxTotal = 30
	}
	if len(ranked) > maxTotal {
		ranked = ranked[:maxTotal]
	}

	e.Logger.Info("Content collection completed",
		slog.String("email", profile.Email),
		slog.Int("raw", rawCount),
		slog.Int("unique", len(unique)),
		slog.Int("final", len(ranked)),
		slog.Bool("used_fallback", usedFallback),
		slog.Duration("duration", time.Since(start)))

	return &Result{
		Items:        ranked,
		RawCount:     rawCount,
		SourceErrors: sourceErrors,
		UsedFallback: usedFallback,
	}, nil
}

// CollectFallback produces a purely synthetic candidate list for the
// remediation branch when a regular pass yielded nothing. It never fails.
func (e *Engine) CollectFallback(profile *entity.UserProfile) *Result {
	interests := profile.Interests
	if len(interests) == 0 {
		interests = defaultInterests
	}

	var items []*entity.ContentItem
	for _, interest := range interests {
		for _, name := range fallbackSourceNames {
			items = append(items, SyntheticFallback(name, interest, e.Config.MaxItemsPerSource)...)
		}
	}
	if profile.GitHubUsername != "" && profile.IncludeGitHubActivity {
		items = append(items, FallbackUserActivity(profile.GitHubUsername)...)
	}

	unique := Deduplicate(items)
	filtered := e.filter(unique, profile, interests)
	ranked := rank(filtered, profile, interests)

	maxTotal := profile.MaxArticles * 3
	if maxTotal <= 0 {
		maxTotal = 30
	}
	if len(ranked) > maxTotal {
		ranked = ranked[:maxTotal]
	}

	e.Logger.Info("Fallback collection completed",
		slog.String("email", profile.Email),
		slog.Int("items", len(ranked)))

	return &Result{
		Items:        ranked,
		RawCount:     len(items),
		SourceErrors: map[string]error{},
		UsedFallback: true,
	}
}
