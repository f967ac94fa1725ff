package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"digestly/internal/domain/entity"
)

// maxArticleBytes bounds how much of a page is read during enrichment.
const maxArticleBytes = 2 * 1024 * 1024

// ReadabilityEnricher fills in summary, word count, and reading time for
// items whose source only provided a title and URL, by fetching the page
// and extracting the article text with the Mozilla Readability algorithm.
//
// Enrichment is best effort: a failed fetch leaves the item unchanged.
type ReadabilityEnricher struct {
	client *http.Client
	logger *slog.Logger
}

// NewReadabilityEnricher creates an enricher with the given HTTP client.
func NewReadabilityEnricher(client *http.Client, logger *slog.Logger) *ReadabilityEnricher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadabilityEnricher{client: client, logger: logger}
}

// Enrich fetches the item's page and fills Summary, WordCount, and
// ReadingTimeMinutes when they are missing. Items that already carry a
// summary are left alone.
func (e *ReadabilityEnricher) Enrich(ctx context.Context, item *entity.ContentItem) error {
	if item.Summary != "" && item.WordCount > 0 {
		return nil
	}

	article, err := e.extract(ctx, item.URL)
	if err != nil {
		return fmt.Errorf("enrich %s: %w", item.URL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil
	}

	if item.Summary == "" {
		item.Summary = firstSentences(article.Excerpt, text)
	}
	if item.Author == "" && article.Byline != "" {
		item.Author = article.Byline
		item.RefreshHash()
	}
	item.WordCount = len(strings.Fields(text))
	item.ReadingTimeMinutes = entity.EstimateReadingTime(text)

	return nil
}

// EnrichAll enriches every item, logging and skipping individual failures.
func (e *ReadabilityEnricher) EnrichAll(ctx context.Context, items []*entity.ContentItem) {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := e.Enrich(ctx, item); err != nil {
			e.logger.Debug("content enrichment failed",
				slog.String("url", item.URL),
				slog.Any("error", err))
		}
	}
}

func (e *ReadabilityEnricher) extract(ctx context.Context, pageURL string) (readability.Article, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return readability.Article{}, fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return readability.Article{}, err
	}
	req.Header.Set("User-Agent", "DigestlyBot")

	resp, err := e.client.Do(req)
	if err != nil {
		return readability.Article{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readability.Article{}, fmt.Errorf("page returned %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxArticleBytes)
	return readability.FromReader(limited, parsed)
}

// firstSentences returns the readability excerpt when present, otherwise a
// short prefix of the article text.
func firstSentences(excerpt, text string) string {
	if excerpt != "" {
		return excerpt
	}
	const maxLen = 280
	if len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
