// Package curate turns the collected candidate list into a curated
// newsletter: per-item scoring through a pluggable scorer, a two-tier
// quality gate, interest-keyed sections, insights, subject line, and a
// fallback composer that never fails.
package curate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/metrics"
	pkgconfig "digestly/internal/pkg/config"
)

// Scorer analyzes a batch of items for one recipient. The AI-backed and
// heuristic scorers both satisfy this.
type Scorer interface {
	Name() string
	ScoreBatch(ctx context.Context, profile *entity.UserProfile, items []*entity.ContentItem) ([]*entity.AnalyzedContent, error)
}

// NoveltyScorer attaches novelty scores in place. Optional.
type NoveltyScorer interface {
	Score(ctx context.Context, profile *entity.UserProfile, analyzed []*entity.AnalyzedContent) error
}

// InsightsGenerator produces cross-article observations. Optional.
type InsightsGenerator interface {
	GenerateInsights(ctx context.Context, profile *entity.UserProfile, top []*entity.AnalyzedContent) ([]*entity.PersonalizedInsight, error)
}

// SubjectLineGenerator produces the email subject. Optional.
type SubjectLineGenerator interface {
	GenerateSubjectLine(ctx context.Context, profile *entity.UserProfile, topTitles []string) (string, error)
}

// Config holds the curation thresholds.
type Config struct {
	// CompositeThreshold is the primary gate on the blended score.
	CompositeThreshold float64

	// QualityThreshold is the primary gate on the quality score.
	QualityThreshold float64

	// FallbackThreshold replaces CompositeThreshold when fewer than
	// MinNewsletterItems clear the primary gate.
	FallbackThreshold float64

	// MinNewsletterItems is the point below which the gate relaxes.
	MinNewsletterItems int

	// MaxQuickReads caps the quick-reads subset.
	MaxQuickReads int

	// QuickReadMaxMinutes is the reading-time ceiling for a quick read.
	QuickReadMaxMinutes int
}

// LoadConfig loads curation thresholds from environment variables with
// fallback to defaults.
//
// Environment variables:
//   - CURATE_COMPOSITE_THRESHOLD: primary composite gate (default: 0.2)
//   - CURATE_QUALITY_THRESHOLD: primary quality gate (default: 0.2)
//   - CURATE_FALLBACK_THRESHOLD: relaxed composite gate (default: 0.1)
func LoadConfig(logger *slog.Logger) Config {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := Config{
		CompositeThreshold:  0.2,
		QualityThreshold:    0.2,
		FallbackThreshold:   0.1,
		MinNewsletterItems:  3,
		MaxQuickReads:       3,
		QuickReadMaxMinutes: 3,
	}

	unitRange := func(v float64) error { return pkgconfig.ValidateFloatRange(v, 0, 1) }
	load := func(key string, target *float64) {
		result := pkgconfig.LoadEnvFloat(key, *target, unitRange)
		for _, w := range result.Warnings {
			logger.Warn(w)
		}
		*target = result.Value.(float64)
	}
	load("CURATE_COMPOSITE_THRESHOLD", &cfg.CompositeThreshold)
	load("CURATE_QUALITY_THRESHOLD", &cfg.QualityThreshold)
	load("CURATE_FALLBACK_THRESHOLD", &cfg.FallbackThreshold)
	return cfg
}

// Engine curates newsletters. Scorer is required; everything else may be nil
// and degrades gracefully.
type Engine struct {
	Scorer   Scorer
	Fallback Scorer
	Novelty  NoveltyScorer
	Insights InsightsGenerator
	Subject  SubjectLineGenerator
	Config   Config
	Logger   *slog.Logger

	// Now is injectable for greeting tests; defaults to time.Now.
	Now func() time.Time

	// usedFallbackScorer records whether the last score call degraded.
	// The engine serves one generation run at a time.
	usedFallbackScorer bool
}

// NewEngine creates a curation engine.
func NewEngine(primary, fallback Scorer, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Scorer:   primary,
		Fallback: fallback,
		Config:   cfg,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Curate scores the items, applies the quality gate, and composes the
// newsletter. A primary scorer failure degrades to the fallback scorer; only
// a failure of both is an error, and callers should then use ComposeFallback.
func (e *Engine) Curate(ctx context.Context, profile *entity.UserProfile, items []*entity.ContentItem) (*entity.CuratedNewsletter, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("Curate: no content to curate")
	}

	scorerName := ""
	fallbackMode := false
	analyzed, err := e.score(ctx, profile, items)
	if err != nil {
		return nil, err
	}
	if e.Scorer != nil {
		scorerName = e.Scorer.Name()
	}
	if e.usedFallbackScorer {
		scorerName = e.Fallback.Name()
		fallbackMode = true
	}

	if e.Novelty != nil {
		if err := e.Novelty.Score(ctx, profile, analyzed); err != nil {
			e.Logger.Warn("Novelty scoring failed, continuing without it",
				slog.String("error", err.Error()))
		}
	}

	interests := profile.Interests
	if len(interests) == 0 {
		interests = []string{"technology"}
	}

	categorized, relaxed := e.organize(analyzed, profile, interests)
	sections := buildSections(interests, categorized)

	top := topArticles(categorized, 10)
	insights := e.generateInsights(ctx, profile, top)
	subject := e.subjectLine(ctx, profile, top)

	newsletter := &entity.CuratedNewsletter{
		SubjectLine: subject,
		Greeting:    greeting(e.now(), profile.Name),
		Sections:    sections,
		Insights:    insights,
		QuickReads:  e.selectQuickReads(categorized),
		Footer:      "Thanks for reading your personalized newsletter!",
		GenerationMetadata: map[string]any{
			"scorer":          scorerName,
			"fallback_mode":   fallbackMode,
			"relaxed_gate":    relaxed,
			"items_analyzed":  len(analyzed),
			"content_sources": sourceNames(analyzed),
		},
		CreatedAt: e.now().UTC(),
	}

	metrics.ObserveNewsletterSize(newsletter.TotalArticles())
	e.Logger.Info("Curation completed",
		slog.String("email", profile.Email),
		slog.Int("analyzed", len(analyzed)),
		slog.Int("selected", newsletter.TotalArticles()),
		slog.Int("sections", len(sections)),
		slog.Bool("relaxed_gate", relaxed),
		slog.Bool("fallback_scorer", fallbackMode))

	return newsletter, nil
}

func (e *Engine) score(ctx context.Context, profile *entity.UserProfile, items []*entity.ContentItem) ([]*entity.AnalyzedContent, error) {
	e.usedFallbackScorer = false
	if e.Scorer != nil {
		analyzed, err := e.Scorer.ScoreBatch(ctx, profile, items)
		if err == nil {
			return analyzed, nil
		}
		e.Logger.Warn("Primary scorer failed, degrading to fallback scorer",
			slog.String("scorer", e.Scorer.Name()),
			slog.String("error", err.Error()))
	}
	if e.Fallback == nil {
		return nil, fmt.Errorf("Curate: no scorer available")
	}
	analyzed, err := e.Fallback.ScoreBatch(ctx, profile, items)
	if err != nil {
		return nil, fmt.Errorf("Curate: fallback scorer: %w", err)
	}
	e.usedFallbackScorer = e.Scorer != nil
	return analyzed, nil
}

// organize applies the two-tier quality gate and groups items by interest.
// It reports whether the relaxed tier was used.
func (e *Engine) organize(analyzed []*entity.AnalyzedContent, profile *entity.UserProfile, interests []string) (map[string][]*entity.AnalyzedContent, bool) {
	maxPerSection := profile.MaxArticles / len(interests)
	if maxPerSection < 5 {
		maxPerSection = 5
	}

	var gated []*entity.AnalyzedContent
	for _, a := range analyzed {
		if a.IsHighQuality(e.Config.CompositeThreshold, e.Config.QualityThreshold) {
			gated = append(gated, a)
		}
	}
	categorized := categorize(gated, interests, maxPerSection)

	minItems := e.Config.MinNewsletterItems
	if minItems <= 0 {
		minItems = 3
	}
	if countArticles(categorized) >= minItems {
		return categorized, false
	}

	var relaxed []*entity.AnalyzedContent
	for _, a := range analyzed {
		if a.CompositeScore() >= e.Config.FallbackThreshold {
			relaxed = append(relaxed, a)
		}
	}
	return categorize(relaxed, interests, maxPerSection), true
}

func (e *Engine) generateInsights(ctx context.Context, profile *entity.UserProfile, top []*entity.AnalyzedContent) []*entity.PersonalizedInsight {
	if e.Insights == nil || len(top) == 0 {
		return nil
	}
	insights, err := e.Insights.GenerateInsights(ctx, profile, top)
	if err != nil {
		e.Logger.Warn("Insights generation failed, continuing without insights",
			slog.String("error", err.Error()))
		return nil
	}
	return insights
}

func (e *Engine) subjectLine(ctx context.Context, profile *entity.UserProfile, top []*entity.AnalyzedContent) string {
	if e.Subject != nil && len(top) > 0 {
		titles := make([]string, 0, len(top))
		for _, a := range top {
			titles = append(titles, a.Item.Title)
		}
		subject, err := e.Subject.GenerateSubjectLine(ctx, profile, titles)
		if err != nil {
			e.Logger.Warn("Subject line generation failed, using default",
				slog.String("error", err.Error()))
		} else if subject != "" {
			return subject
		}
	}
	return defaultSubjectLine(e.now())
}

func defaultSubjectLine(now time.Time) string {
	return "Your Daily Digest - " + now.Format("January 2")
}

// greeting is time-of-day aware in the run's local clock.
func greeting(now time.Time, name string) string {
	var salutation string
	switch hour := now.Hour(); {
	case hour < 12:
		salutation = "Good morning"
	case hour < 17:
		salutation = "Good afternoon"
	default:
		salutation = "Good evening"
	}
	if name == "" {
		return salutation + "!"
	}
	return fmt.Sprintf("%s, %s!", salutation, name)
}

func (e *Engine) selectQuickReads(categorized map[string][]*entity.AnalyzedContent) []*entity.AnalyzedContent {
	maxMinutes := e.Config.QuickReadMaxMinutes
	if maxMinutes <= 0 {
		maxMinutes = 3
	}
	limit := e.Config.MaxQuickReads
	if limit <= 0 {
		limit = 3
	}

	var quick []*entity.AnalyzedContent
	for _, items := range categorized {
		for _, a := range items {
			minutes := a.Item.ReadingTimeMinutes
			if minutes == 0 {
				minutes = 5 // unknown length is assumed not quick
			}
			if minutes <= maxMinutes {
				quick = append(quick, a)
			}
		}
	}
	sortByComposite(quick)
	if len(quick) > limit {
		quick = quick[:limit]
	}
	return quick
}

func sourceNames(analyzed []*entity.AnalyzedContent) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, a := range analyzed {
		name := string(a.Item.Source)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
