package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewContentItem_HashIsStable(t *testing.T) {
	a := NewContentItem("Understanding Go Schedulers", "https://example.com/sched", SourceHackerNews, ContentTypeArticle)
	b := NewContentItem("Understanding Go Schedulers", "https://example.com/sched", SourceHackerNews, ContentTypeArticle)

	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.Len(t, a.ContentHash, 16)
}

func TestNewContentItem_HashChangesWithAuthor(t *testing.T) {
	a := NewContentItem("Title here", "https://example.com/x", SourceReddit, ContentTypeDiscussion)
	b := NewContentItem("Title here", "https://example.com/x", SourceReddit, ContentTypeDiscussion)
	b.Author = "someone"
	b.RefreshHash()

	assert.NotEqual(t, a.ContentHash, b.ContentHash)
}

func TestContentItem_AgeHours(t *testing.T) {
	item := NewContentItem("A title long enough", "https://example.com/a", SourceGitHub, ContentTypeRepository)
	item.PublishedAt = time.Now().Add(-48 * time.Hour)

	age := item.AgeHours()
	assert.InDelta(t, 48, age, 0.1)
}

func TestContentItem_AgeHours_FallsBackToCollectedAt(t *testing.T) {
	item := NewContentItem("A title long enough", "https://example.com/a", SourceGitHub, ContentTypeRepository)
	item.CollectedAt = time.Now().Add(-2 * time.Hour)

	assert.InDelta(t, 2, item.AgeHours(), 0.1)
}

func TestContentItem_MetadataAccessors(t *testing.T) {
	item := NewContentItem("A starred repository", "https://github.com/x/y", SourceGitHub, ContentTypeRepository)
	item.Metadata["stars"] = 1200
	item.Metadata["fallback"] = true
	item.Metadata["user_owned"] = true

	assert.Equal(t, 1200, item.Stars())
	assert.True(t, item.IsFallback())
	assert.True(t, item.IsUserOwned())
}

func TestContentItem_StarsHandlesJSONNumbers(t *testing.T) {
	item := NewContentItem("A starred repository", "https://github.com/x/y", SourceGitHub, ContentTypeRepository)
	item.Metadata["stars"] = float64(300) // decoded JSON numbers arrive as float64

	assert.Equal(t, 300, item.Stars())
}

func TestEstimateReadingTime(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 1},
		{"short", "a few words only", 1},
		{"four hundred words", strings.Repeat("word ", 400), 2},
		{"capped", strings.Repeat("word ", 10000), maxReadingTimeMinutes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateReadingTime(tt.text))
		})
	}
}
