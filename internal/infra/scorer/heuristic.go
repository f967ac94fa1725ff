package scorer

import (
	"context"
	"log/slog"

	"digestly/internal/domain/entity"
)

// HeuristicScorer scores content without any external service. It is the
// fallback when AI scorers are unavailable or misconfigured, so it must
// never fail.
type HeuristicScorer struct {
	logger *slog.Logger
}

func NewHeuristicScorer(logger *slog.Logger) *HeuristicScorer {
	return &HeuristicScorer{logger: logger}
}

func (h *HeuristicScorer) Name() string { return "heuristic" }

// ScoreBatch derives relevance from keyword matches against the recipient's
// interests and quality from source popularity signals. It always succeeds.
func (h *HeuristicScorer) ScoreBatch(ctx context.Context, profile *entity.UserProfile, items []*entity.ContentItem) ([]*entity.AnalyzedContent, error) {
	analyzed := make([]*entity.AnalyzedContent, len(items))
	for i, item := range items {
		a := newAnalyzed(item)
		a.InterestMatches = matchedInterests(profile, item)
		a.RelevanceScore = heuristicRelevance(profile, a.InterestMatches)
		a.QualityScore = floatPtr(heuristicQuality(item))
		analyzed[i] = a
	}
	h.logger.DebugContext(ctx, "heuristic scoring completed",
		slog.Int("items", len(items)))
	return analyzed, nil
}

// heuristicRelevance grows with the number and weight of matched interests.
// Unmatched items keep a small baseline so fallback newsletters are still
// possible when interests are missing or too narrow.
func heuristicRelevance(profile *entity.UserProfile, matches []string) float64 {
	if len(matches) == 0 {
		return 0.2
	}
	score := 0.4
	for _, m := range matches {
		score += 0.25 * profile.InterestWeight(m)
	}
	return clamp(score)
}

// heuristicQuality blends popularity signals when present: repository stars,
// discussion points, and article length.
func heuristicQuality(item *entity.ContentItem) float64 {
	score := 0.5

	if stars := item.Stars(); stars > 0 {
		switch {
		case stars >= 1000:
			score += 0.3
		case stars >= 100:
			score += 0.2
		default:
			score += 0.1
		}
	}

	if points, ok := item.Metadata["points"].(int); ok && points > 0 {
		switch {
		case points >= 500:
			score += 0.3
		case points >= 100:
			score += 0.2
		default:
			score += 0.1
		}
	}

	// Very short items are likely link dumps; substantial articles read
	// better in a newsletter.
	if item.WordCount > 0 {
		if item.WordCount < 100 {
			score -= 0.1
		} else if item.WordCount >= 600 {
			score += 0.1
		}
	}

	return clamp(score)
}
