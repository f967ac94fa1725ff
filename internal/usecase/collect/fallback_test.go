package collect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digestly/internal/domain/entity"
)

func TestSyntheticFallbackGitHub(t *testing.T) {
	items := SyntheticFallback("github", "machine learning", 10)

	require.NotEmpty(t, items)
	for _, item := range items {
		assert.True(t, item.IsFallback())
		assert.Equal(t, entity.SourceFallback, item.Source)
		assert.Equal(t, entity.ContentTypeRepository, item.Type)
		assert.Greater(t, item.Stars(), 0)
		assert.True(t, entity.ValidURL(item.URL))
	}
}

func TestSyntheticFallbackArticles(t *testing.T) {
	items := SyntheticFallback("hacker_news", "golang", 10)

	require.NotEmpty(t, items)
	for _, item := range items {
		assert.True(t, item.IsFallback())
		assert.Equal(t, entity.ContentTypeArticle, item.Type)
		assert.NotEmpty(t, item.Author)
		assert.GreaterOrEqual(t, len(item.Title), 10)
	}
}

func TestSyntheticFallbackRespectsLimit(t *testing.T) {
	items := SyntheticFallback("github", "programming", 1)
	assert.Len(t, items, 1)
}

func TestSyntheticFallbackDeterministic(t *testing.T) {
	first := SyntheticFallback("hacker_news", "golang", 10)
	second := SyntheticFallback("hacker_news", "golang", 10)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].URL, second[i].URL)
		assert.Equal(t, first[i].Title, second[i].Title)
	}
}

func TestSyntheticFallbackPythonInterest(t *testing.T) {
	mentions := func(items []*entity.ContentItem) int {
		n := 0
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Title+" "+item.Summary+" "+item.URL), "python") {
				n++
			}
		}
		return n
	}

	repos := SyntheticFallback("github", "python", 10)
	require.NotEmpty(t, repos)
	assert.Contains(t, repos[0].URL, "python/cpython")
	assert.Greater(t, mentions(repos), 0)

	articles := SyntheticFallback("hacker_news", "python", 10)
	require.NotEmpty(t, articles)
	assert.Greater(t, mentions(articles), 0)
}

func TestSyntheticFallbackPartialInterestMatch(t *testing.T) {
	// "learning rust" shares a word with "machine learning".
	items := SyntheticFallback("github", "learning rust", 10)

	require.NotEmpty(t, items)
	assert.Contains(t, items[0].URL, "scikit-learn")
}

func TestSyntheticFallbackUnknownInterestDefaults(t *testing.T) {
	items := SyntheticFallback("hacker_news", "beekeeping", 10)

	require.NotEmpty(t, items)
	general := pickFallback(fallbackArticles, "programming")
	assert.Equal(t, general[0].title, items[0].Title)
}

func TestFallbackUserActivity(t *testing.T) {
	items := FallbackUserActivity("octocat")

	require.NotEmpty(t, items)
	for _, item := range items {
		assert.True(t, item.IsFallback())
		assert.True(t, item.IsUserOwned())
		assert.Equal(t, "octocat", item.Author)
		assert.Contains(t, item.URL, "github.com/octocat/")
	}
}
