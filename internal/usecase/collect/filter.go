package collect

import (
	"sort"
	"strings"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/metrics"
)

// categoryFor maps a content type to the preference category recipients
// toggle in their profile.
func categoryFor(t entity.ContentType) string {
	switch t {
	case entity.ContentTypeArticle, entity.ContentTypeBlogPost, entity.ContentTypeNews:
		return "articles"
	case entity.ContentTypeVideo:
		return "videos"
	case entity.ContentTypePaper:
		return "papers"
	case entity.ContentTypeDiscussion:
		return "discussions"
	case entity.ContentTypeRepository:
		return "github"
	}
	return ""
}

// filter drops items that do not match the profile's preference categories or
// fail the minimal quality bar: a meaningful title, a valid http(s) URL, a
// popularity floor for repositories, and a maximum age.
func (e *Engine) filter(items []*entity.ContentItem, profile *entity.UserProfile, interests []string) []*entity.ContentItem {
	maxAge := e.Config.MaxContentAgeHours
	if maxAge <= 0 {
		maxAge = 168
	}

	kept := make([]*entity.ContentItem, 0, len(items))
	for _, item := range items {
		category := categoryFor(item.Type)
		if category == "" || !profile.WantsContentType(category) {
			metrics.RecordContentFiltered("content_type", 1)
			continue
		}
		if len(item.Title) < 10 {
			metrics.RecordContentFiltered("short_title", 1)
			continue
		}
		if !entity.ValidURL(item.URL) {
			metrics.RecordContentFiltered("invalid_url", 1)
			continue
		}
		// The recipient's own repositories are exempt from the popularity
		// floor; personal projects rarely carry stars.
		if item.Type == entity.ContentTypeRepository && !item.IsUserOwned() && item.Stars() < e.Config.MinRepoStars {
			metrics.RecordContentFiltered("low_stars", 1)
			continue
		}
		if item.AgeHours() > maxAge {
			metrics.RecordContentFiltered("stale", 1)
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// relevanceScore is the heuristic ranking signal used before curation.
// Interest keywords in the title count double those in the summary, scaled
// by the recipient's interest weights; the recipient's own activity and
// popular repositories get a boost, as does anything recent.
func relevanceScore(item *entity.ContentItem, profile *entity.UserProfile, interests []string) float64 {
	score := 0.0
	title := strings.ToLower(item.Title)
	summary := strings.ToLower(item.Summary)

	for _, interest := range interests {
		needle := strings.ToLower(interest)
		weight := profile.InterestWeight(interest)
		if strings.Contains(title, needle) {
			score += 2.0 * weight
		} else if strings.Contains(summary, needle) {
			score += 1.0 * weight
		}
	}

	if item.IsUserOwned() {
		score += 3.0
	}

	if item.Type == entity.ContentTypeRepository {
		boost := float64(item.Stars()) / 100
		if boost > 2.0 {
			boost = 2.0
		}
		score += boost
	}

	age := item.AgeHours()
	switch {
	case age < 24:
		score += 1.0
	case age < 72:
		score += 0.5
	}

	return score
}

// rank sorts items by heuristic relevance, breaking ties by recency.
func rank(items []*entity.ContentItem, profile *entity.UserProfile, interests []string) []*entity.ContentItem {
	type scored struct {
		item  *entity.ContentItem
		score float64
		age   float64
	}
	scoredItems := make([]scored, len(items))
	for i, item := range items {
		scoredItems[i] = scored{item: item, score: relevanceScore(item, profile, interests), age: item.AgeHours()}
	}
	sort.SliceStable(scoredItems, func(i, j int) bool {
		if scoredItems[i].score != scoredItems[j].score {
			return scoredItems[i].score > scoredItems[j].score
		}
		return scoredItems[i].age < scoredItems[j].age
	})
	ranked := make([]*entity.ContentItem, len(scoredItems))
	for i, s := range scoredItems {
		ranked[i] = s.item
	}
	return ranked
}
