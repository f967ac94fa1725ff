package entity

import "time"

// Composite score weights. Relevance is weighted most heavily; quality and
// novelty default to neutral values when a scorer did not produce them.
const (
	weightRelevance = 0.5
	weightQuality   = 0.3
	weightNovelty   = 0.2

	// DefaultQualityScore substitutes for an absent quality score.
	DefaultQualityScore = 0.5

	// DefaultNoveltyScore substitutes for an absent novelty score.
	DefaultNoveltyScore = 0.5
)

// AnalyzedContent wraps a ContentItem with scoring results.
// QualityScore and NoveltyScore are optional; nil means the scorer did not
// produce a value and the configured default applies.
type AnalyzedContent struct {
	Item            *ContentItem
	RelevanceScore  float64
	QualityScore    *float64
	NoveltyScore    *float64
	InterestMatches []string
	AISummary       string
	AIInsights      []string
	AnalyzedAt      time.Time
}

// CompositeScore blends relevance, quality, and novelty into a single
// ranking score in [0, 1].
func (a *AnalyzedContent) CompositeScore() float64 {
	quality := DefaultQualityScore
	if a.QualityScore != nil {
		quality = *a.QualityScore
	}
	novelty := DefaultNoveltyScore
	if a.NoveltyScore != nil {
		novelty = *a.NoveltyScore
	}
	return a.RelevanceScore*weightRelevance + quality*weightQuality + novelty*weightNovelty
}

// IsHighQuality reports whether the content clears both the composite
// threshold and the quality threshold.
func (a *AnalyzedContent) IsHighQuality(compositeThreshold, qualityThreshold float64) bool {
	quality := DefaultQualityScore
	if a.QualityScore != nil {
		quality = *a.QualityScore
	}
	return a.CompositeScore() >= compositeThreshold && quality >= qualityThreshold
}

// ContentSection is a themed group of curated articles.
type ContentSection struct {
	Title       string
	Description string
	Emoji       string
	Articles    []*AnalyzedContent
	Insights    []string
	Order       int
}

// TotalReadingTime sums the reading time of every article in the section,
// assuming 3 minutes per article when no estimate is available.
func (s *ContentSection) TotalReadingTime() int {
	total := 0
	for _, a := range s.Articles {
		if a.Item.ReadingTimeMinutes > 0 {
			total += a.Item.ReadingTimeMinutes
		} else {
			total += 3
		}
	}
	return total
}

// PersonalizedInsight is an AI-generated observation connecting the
// recipient's interests to the collected content.
type PersonalizedInsight struct {
	Title           string
	Content         string
	RelatedArticles []string
	Confidence      float64
	Type            string
}

// CuratedNewsletter is the complete curated newsletter ready for rendering.
type CuratedNewsletter struct {
	SubjectLine        string
	Greeting           string
	Sections           []*ContentSection
	Insights           []*PersonalizedInsight
	QuickReads         []*AnalyzedContent
	Footer             string
	GenerationMetadata map[string]any
	CreatedAt          time.Time
}

// TotalArticles returns the number of articles across all sections.
func (n *CuratedNewsletter) TotalArticles() int {
	total := 0
	for _, s := range n.Sections {
		total += len(s.Articles)
	}
	return total
}

// EstimatedReadingTime returns the estimated total reading time in minutes.
func (n *CuratedNewsletter) EstimatedReadingTime() int {
	total := 2 // insights and metadata
	for _, s := range n.Sections {
		total += s.TotalReadingTime()
	}
	for _, a := range n.QuickReads {
		if a.Item.ReadingTimeMinutes > 0 {
			total += a.Item.ReadingTimeMinutes
		} else {
			total += 2
		}
	}
	return total
}
