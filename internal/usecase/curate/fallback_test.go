package curate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digestly/internal/domain/entity"
)

func fallbackEngine() *Engine {
	engine := NewEngine(nil, nil, testConfig(), nil)
	engine.Now = fixedClock(9)
	return engine
}

func freshItem(title string) *entity.ContentItem {
	item := entity.NewContentItem(title, "https://example.com/"+title, entity.SourceHackerNews, entity.ContentTypeArticle)
	item.PublishedAt = time.Now().UTC().Add(-2 * time.Hour)
	return item
}

func TestComposeFallbackSingleSection(t *testing.T) {
	items := []*entity.ContentItem{
		freshItem("A fine golang article to read"),
		freshItem("Something else entirely today"),
	}

	newsletter := fallbackEngine().ComposeFallback(testProfile(), items)

	require.Len(t, newsletter.Sections, 1)
	assert.Equal(t, "Today's Highlights", newsletter.Sections[0].Title)
	assert.Equal(t, 2, newsletter.TotalArticles())
	assert.Equal(t, true, newsletter.GenerationMetadata["fallback_mode"])
	assert.Equal(t, "Good morning, Dana!", newsletter.Greeting)
	assert.Equal(t, "Your Daily Digest - August 31", newsletter.SubjectLine)
}

func TestComposeFallbackPrefersInterestMatches(t *testing.T) {
	matched := freshItem("A fine golang article to read")
	other := freshItem("Something else entirely today")

	newsletter := fallbackEngine().ComposeFallback(testProfile(), []*entity.ContentItem{other, matched})

	require.Len(t, newsletter.Sections, 1)
	assert.Same(t, matched, newsletter.Sections[0].Articles[0].Item)
	assert.Equal(t, []string{"golang"}, newsletter.Sections[0].Articles[0].InterestMatches)
}

func TestComposeFallbackRespectsMaxArticles(t *testing.T) {
	profile := testProfile()
	profile.MaxArticles = 2

	items := []*entity.ContentItem{
		freshItem("First of several articles here"),
		freshItem("Second of several articles here"),
		freshItem("Third of several articles here"),
	}

	newsletter := fallbackEngine().ComposeFallback(profile, items)

	assert.Equal(t, 2, newsletter.TotalArticles())
}

func TestComposeFallbackEmptyInput(t *testing.T) {
	newsletter := fallbackEngine().ComposeFallback(testProfile(), nil)

	assert.NotNil(t, newsletter)
	assert.Empty(t, newsletter.Sections)
	assert.NotEmpty(t, newsletter.SubjectLine)
}

func TestComposeFallbackSkipsNilItems(t *testing.T) {
	newsletter := fallbackEngine().ComposeFallback(testProfile(), []*entity.ContentItem{nil, freshItem("A fine golang article to read")})

	assert.Equal(t, 1, newsletter.TotalArticles())
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Machine Learning", titleCase("machine learning"))
	assert.Equal(t, "Golang", titleCase("golang"))
	assert.Equal(t, "", titleCase(""))
}

func TestEmojiFor(t *testing.T) {
	assert.Equal(t, "🐹", emojiFor("Golang"))
	assert.Equal(t, "🤖", emojiFor("applied artificial intelligence"))
	assert.Equal(t, "", emojiFor("beekeeping"))
}
