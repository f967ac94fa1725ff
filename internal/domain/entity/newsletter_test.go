package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func newAnalyzed(relevance float64) *AnalyzedContent {
	return &AnalyzedContent{
		Item:           NewContentItem("Some analyzed article", "https://example.com/a", SourceHackerNews, ContentTypeArticle),
		RelevanceScore: relevance,
	}
}

func TestCompositeScore_DefaultsWhenUnscored(t *testing.T) {
	a := newAnalyzed(1.0)

	// 0.5*1.0 + 0.3*0.5 + 0.2*0.5 with default quality and novelty
	assert.InDelta(t, 0.75, a.CompositeScore(), 1e-9)
}

func TestCompositeScore_AllScoresPresent(t *testing.T) {
	a := newAnalyzed(0.8)
	a.QualityScore = floatPtr(0.6)
	a.NoveltyScore = floatPtr(0.4)

	assert.InDelta(t, 0.8*0.5+0.6*0.3+0.4*0.2, a.CompositeScore(), 1e-9)
}

func TestCompositeScore_Bounds(t *testing.T) {
	for _, rel := range []float64{0, 0.25, 0.5, 0.75, 1.0} {
		for _, q := range []*float64{nil, floatPtr(0), floatPtr(1)} {
			for _, n := range []*float64{nil, floatPtr(0), floatPtr(1)} {
				a := newAnalyzed(rel)
				a.QualityScore = q
				a.NoveltyScore = n
				score := a.CompositeScore()
				assert.GreaterOrEqual(t, score, 0.0)
				assert.LessOrEqual(t, score, 1.0)
			}
		}
	}
}

func TestIsHighQuality(t *testing.T) {
	a := newAnalyzed(0.9)
	a.QualityScore = floatPtr(0.8)

	assert.True(t, a.IsHighQuality(0.5, 0.5))
	assert.False(t, a.IsHighQuality(0.99, 0.5))
	assert.False(t, a.IsHighQuality(0.5, 0.9))
}

func TestCuratedNewsletter_TotalArticles(t *testing.T) {
	n := &CuratedNewsletter{
		Sections: []*ContentSection{
			{Articles: []*AnalyzedContent{newAnalyzed(0.5), newAnalyzed(0.6)}},
			{Articles: []*AnalyzedContent{newAnalyzed(0.7)}},
		},
	}

	assert.Equal(t, 3, n.TotalArticles())
}

func TestContentSection_TotalReadingTime(t *testing.T) {
	withTime := newAnalyzed(0.5)
	withTime.Item.ReadingTimeMinutes = 7
	withoutTime := newAnalyzed(0.5)

	s := &ContentSection{Articles: []*AnalyzedContent{withTime, withoutTime}}

	assert.Equal(t, 10, s.TotalReadingTime())
}
