// Package scorer provides content analysis implementations for the curation
// stage. It includes AI-backed scorers (OpenAI, Claude) with reliability
// patterns, an embedding-based novelty scorer, and a heuristic fallback that
// needs no external service.
package scorer

import (
	"context"
	"strings"
	"time"

	"digestly/internal/domain/entity"
)

// Scorer assigns relevance and quality scores to collected content for one
// recipient. Implementations must return one AnalyzedContent per input item,
// in input order.
type Scorer interface {
	// Name identifies the scorer in logs and metrics.
	Name() string

	// ScoreBatch analyzes items against the recipient's interests.
	ScoreBatch(ctx context.Context, profile *entity.UserProfile, items []*entity.ContentItem) ([]*entity.AnalyzedContent, error)
}

// InsightsGenerator produces cross-article observations for the newsletter.
type InsightsGenerator interface {
	GenerateInsights(ctx context.Context, profile *entity.UserProfile, top []*entity.AnalyzedContent) ([]*entity.PersonalizedInsight, error)
}

// SubjectLineGenerator produces the email subject for a curated newsletter.
type SubjectLineGenerator interface {
	GenerateSubjectLine(ctx context.Context, profile *entity.UserProfile, topTitles []string) (string, error)
}

// clamp limits a score to [0, 1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// matchedInterests returns the profile interests mentioned in the item's
// title, summary, or tags.
func matchedInterests(profile *entity.UserProfile, item *entity.ContentItem) []string {
	haystack := strings.ToLower(item.Title + " " + item.Summary)
	var matches []string
	for _, interest := range profile.Interests {
		needle := strings.ToLower(interest)
		if strings.Contains(haystack, needle) || hasTag(item, needle) {
			matches = append(matches, interest)
		}
	}
	return matches
}

func hasTag(item *entity.ContentItem, needle string) bool {
	for _, tag := range item.Tags {
		if strings.EqualFold(tag, needle) {
			return true
		}
	}
	return false
}

func newAnalyzed(item *entity.ContentItem) *entity.AnalyzedContent {
	return &entity.AnalyzedContent{
		Item:       item,
		AnalyzedAt: time.Now().UTC(),
	}
}

func floatPtr(v float64) *float64 { return &v }
