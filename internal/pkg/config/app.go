package config

import (
	"log/slog"
	"time"
)

// AppConfig holds the runtime configuration for the newsletter pipeline.
// It is built once at startup from environment variables and passed down
// to the components that need it; nothing reads the environment after
// startup.
//
// Missing API keys do not fail startup. Components degrade instead:
// scoring falls back to heuristics, delivery falls back to dry-run.
type AppConfig struct {
	// API credentials
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GitHubToken     string
	FirecrawlAPIKey string
	ResendAPIKey    string

	// FromEmail is the sender address for delivered newsletters.
	FromEmail string

	// DatabaseURL is the Postgres connection string. Empty disables
	// persistence; runs still work but leave no history.
	DatabaseURL string

	// RecipientsFile is the path to the YAML recipients configuration.
	RecipientsFile string

	// BridgeCommand starts the external analysis process spoken to over
	// line-delimited JSON. Empty disables the bridge.
	BridgeCommand string

	// Rate limits, requests per minute per upstream API
	SearchRPM  int
	ScraperRPM int
	AIRPM      int
	EmailRPM   int

	// MaxConcurrentCollectors bounds parallel source fetches per run.
	MaxConcurrentCollectors int

	// Curation thresholds, all in [0, 1]
	CompositeThreshold float64
	QualityThreshold   float64
	FallbackThreshold  float64

	// DefaultMaxArticles is the article cap applied when a profile does
	// not set one.
	DefaultMaxArticles int

	// MaxContentAgeHours drops content older than this during filtering.
	MaxContentAgeHours int

	// MinRepoStars drops repositories below this star count.
	MinRepoStars int

	// RunTimeout bounds one full generation run.
	RunTimeout time.Duration

	// DryRun skips real delivery and analytics persistence.
	DryRun bool
}

// LoadAppConfig builds an AppConfig from environment variables using the
// fail-open loaders. Every fallback is logged as a warning on the given
// logger and counted on the metrics, when provided.
func LoadAppConfig(logger *slog.Logger, metrics *ConfigMetrics) *AppConfig {
	cfg := &AppConfig{
		OpenAIAPIKey:    LoadEnvString("OPENAI_API_KEY", ""),
		AnthropicAPIKey: LoadEnvString("ANTHROPIC_API_KEY", ""),
		GitHubToken:     LoadEnvString("GITHUB_TOKEN", ""),
		FirecrawlAPIKey: LoadEnvString("FIRECRAWL_API_KEY", ""),
		ResendAPIKey:    LoadEnvString("RESEND_API_KEY", ""),
		FromEmail:       LoadEnvString("FROM_EMAIL", "newsletter@localhost"),
		DatabaseURL:     LoadEnvString("DATABASE_URL", ""),
		RecipientsFile:  LoadEnvString("RECIPIENTS_FILE", "recipients.yaml"),
		BridgeCommand:   LoadEnvString("BRIDGE_COMMAND", ""),
	}

	warnings := make([]string, 0, 8)
	apply := func(field string, result ConfigLoadResult) ConfigLoadResult {
		if result.FallbackApplied {
			warnings = append(warnings, result.Warnings...)
			if metrics != nil {
				metrics.RecordFallback(field)
			}
		}
		return result
	}

	cfg.SearchRPM = apply("search_rpm",
		LoadEnvInt("SEARCH_RPM", 30, positiveInt)).Value.(int)
	cfg.ScraperRPM = apply("scraper_rpm",
		LoadEnvInt("SCRAPER_RPM", 20, positiveInt)).Value.(int)
	cfg.AIRPM = apply("ai_rpm",
		LoadEnvInt("AI_RPM", 60, positiveInt)).Value.(int)
	cfg.EmailRPM = apply("email_rpm",
		LoadEnvInt("EMAIL_RPM", 10, positiveInt)).Value.(int)
	cfg.MaxConcurrentCollectors = apply("max_concurrent_collectors",
		LoadEnvInt("MAX_CONCURRENT_COLLECTORS", 4, func(v int) error {
			return ValidateIntRange(v, 1, 32)
		})).Value.(int)

	cfg.CompositeThreshold = apply("composite_threshold",
		LoadEnvFloat("COMPOSITE_THRESHOLD", 0.2, unitInterval)).Value.(float64)
	cfg.QualityThreshold = apply("quality_threshold",
		LoadEnvFloat("QUALITY_THRESHOLD", 0.2, unitInterval)).Value.(float64)
	cfg.FallbackThreshold = apply("fallback_threshold",
		LoadEnvFloat("FALLBACK_THRESHOLD", 0.1, unitInterval)).Value.(float64)

	cfg.DefaultMaxArticles = apply("default_max_articles",
		LoadEnvInt("DEFAULT_MAX_ARTICLES", 10, func(v int) error {
			return ValidateIntRange(v, 1, 50)
		})).Value.(int)
	cfg.MaxContentAgeHours = apply("max_content_age_hours",
		LoadEnvInt("MAX_CONTENT_AGE_HOURS", 168, positiveInt)).Value.(int)
	cfg.MinRepoStars = apply("min_repo_stars",
		LoadEnvInt("MIN_REPO_STARS", 5, func(v int) error {
			return ValidateIntRange(v, 0, 1000000)
		})).Value.(int)

	cfg.RunTimeout = apply("run_timeout",
		LoadEnvDuration("RUN_TIMEOUT", 15*time.Minute, ValidatePositiveDuration)).Value.(time.Duration)
	cfg.DryRun = apply("dry_run",
		LoadEnvBool("DRY_RUN", false)).Value.(bool)

	if logger != nil {
		for _, w := range warnings {
			logger.Warn("configuration fallback", slog.String("detail", w))
		}
	}
	if metrics != nil {
		metrics.RecordLoadTimestamp()
		metrics.SetFallbackActive(len(warnings) > 0)
	}

	return cfg
}

func positiveInt(v int) error {
	return ValidateIntRange(v, 1, 100000)
}

func unitInterval(v float64) error {
	return ValidateFloatRange(v, 0, 1)
}
