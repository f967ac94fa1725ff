package curate

import (
	"strings"
	"time"

	"digestly/internal/domain/entity"
)

// ComposeFallback builds a minimal single-section newsletter from raw,
// unanalyzed items using only recency and keyword scoring. It is the last
// resort when regular curation produced nothing, and it never fails: with an
// empty input it returns a newsletter with no sections, which the delivery
// stage renders as a service notice.
func (e *Engine) ComposeFallback(profile *entity.UserProfile, items []*entity.ContentItem) *entity.CuratedNewsletter {
	now := e.now()

	scored := make([]*entity.AnalyzedContent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		scored = append(scored, fallbackAnalyze(item, profile, now))
	}
	sortByComposite(scored)

	maxArticles := profile.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 10
	}
	if len(scored) > maxArticles {
		scored = scored[:maxArticles]
	}

	var sections []*entity.ContentSection
	if len(scored) > 0 {
		sections = append(sections, &entity.ContentSection{
			Title:       "Today's Highlights",
			Description: "Curated content based on your interests",
			Emoji:       "⚡",
			Articles:    scored,
		})
	}

	return &entity.CuratedNewsletter{
		SubjectLine: defaultSubjectLine(now),
		Greeting:    greeting(now, profile.Name),
		Sections:    sections,
		Footer:      "Thanks for reading your personalized newsletter!",
		GenerationMetadata: map[string]any{
			"scorer":        "simple",
			"fallback_mode": true,
		},
		CreatedAt: now.UTC(),
	}
}

// fallbackAnalyze scores one item without any external service: a base score
// plus recency and a keyword boost for the first matching interest.
func fallbackAnalyze(item *entity.ContentItem, profile *entity.UserProfile, now time.Time) *entity.AnalyzedContent {
	score := 0.5
	switch age := item.AgeHours(); {
	case age < 24:
		score += 0.3
	case age < 72:
		score += 0.1
	}

	title := strings.ToLower(item.Title)
	var matches []string
	for _, interest := range profile.Interests {
		if strings.Contains(title, strings.ToLower(interest)) {
			matches = append(matches, interest)
		}
	}
	if len(matches) > 0 {
		score += 0.4
	}
	if score > 1 {
		score = 1
	}

	quality := 0.7
	summary := item.Summary
	if summary == "" {
		summary = "Article about " + item.Title
	}

	return &entity.AnalyzedContent{
		Item:            item,
		RelevanceScore:  score,
		QualityScore:    &quality,
		InterestMatches: matches,
		AISummary:       summary,
		AnalyzedAt:      now.UTC(),
	}
}
