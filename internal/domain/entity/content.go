// Package entity defines the core domain entities for newsletter generation.
// It contains content items, analyzed/curated content structures, user profiles,
// and their validation rules and domain-specific errors.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"digestly/internal/utils/text"
)

// ContentType classifies a piece of collected content.
type ContentType string

const (
	ContentTypeArticle    ContentType = "article"
	ContentTypeVideo      ContentType = "video"
	ContentTypePaper      ContentType = "paper"
	ContentTypeDiscussion ContentType = "discussion"
	ContentTypeRepository ContentType = "repository"
	ContentTypeBlogPost   ContentType = "blog_post"
	ContentTypeNews       ContentType = "news"
)

// ContentSource identifies where a content item was collected from.
type ContentSource string

const (
	SourceHackerNews ContentSource = "hacker_news"
	SourceReddit     ContentSource = "reddit"
	SourceGitHub     ContentSource = "github"
	SourceRSSFeed    ContentSource = "rss_feed"
	SourceWebScrape  ContentSource = "web_scrape"
	SourceFallback   ContentSource = "fallback"
)

// ContentItem represents a piece of content collected from an external source.
// Items are immutable after creation except for metadata enrichment performed
// during scraping. Identity for deduplication is the URL first, then ContentHash.
type ContentItem struct {
	Title              string
	URL                string
	Source             ContentSource
	Type               ContentType
	Summary            string
	Author             string
	PublishedAt        time.Time
	ContentHash        string
	Metadata           map[string]any
	Tags               []string
	WordCount          int
	ReadingTimeMinutes int
	CollectedAt        time.Time
}

// NewContentItem creates a ContentItem with the content hash derived from
// title, URL, and author, and CollectedAt set to the current time.
func NewContentItem(title, url string, source ContentSource, contentType ContentType) *ContentItem {
	item := &ContentItem{
		Title:       title,
		URL:         url,
		Source:      source,
		Type:        contentType,
		Metadata:    make(map[string]any),
		CollectedAt: time.Now().UTC(),
	}
	item.ContentHash = item.deriveHash()
	return item
}

// RefreshHash recomputes the content hash. Call after setting Author on a
// freshly constructed item, since the author participates in identity.
func (c *ContentItem) RefreshHash() {
	c.ContentHash = c.deriveHash()
}

func (c *ContentItem) deriveHash() string {
	sum := sha256.Sum256([]byte(c.Title + c.URL + c.Author))
	return hex.EncodeToString(sum[:])[:16]
}

// AgeHours returns the age of the content in hours, measured from PublishedAt
// or from CollectedAt when the publication time is unknown.
func (c *ContentItem) AgeHours() float64 {
	ref := c.PublishedAt
	if ref.IsZero() {
		ref = c.CollectedAt
	}
	return time.Since(ref).Hours()
}

// IsFallback reports whether this item was synthesized as fallback content
// when a live source was unavailable.
func (c *ContentItem) IsFallback() bool {
	v, ok := c.Metadata["fallback"].(bool)
	return ok && v
}

// IsUserOwned reports whether this item belongs to the recipient's own
// activity feed (e.g. their repositories).
func (c *ContentItem) IsUserOwned() bool {
	v, ok := c.Metadata["user_owned"].(bool)
	return ok && v
}

// Stars returns the popularity signal for repository items; zero when absent.
func (c *ContentItem) Stars() int {
	switch v := c.Metadata["stars"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

const (
	// readingWordsPerMinute is the assumed reading speed for estimates.
	readingWordsPerMinute = 200

	// maxReadingTimeMinutes caps reading-time estimates for very long texts.
	maxReadingTimeMinutes = 15
)

// EstimateReadingTime returns the estimated reading time in minutes for the
// given text, at least 1 and at most maxReadingTimeMinutes.
func EstimateReadingTime(s string) int {
	if s == "" {
		return 1
	}
	words := text.CountWords(s)
	minutes := (words + readingWordsPerMinute - 1) / readingWordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	if minutes > maxReadingTimeMinutes {
		minutes = maxReadingTimeMinutes
	}
	return minutes
}
