package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"digestly/internal/domain/entity"
	"digestly/internal/resilience/circuitbreaker"
	"digestly/internal/resilience/retry"
)

const defaultHackerNewsBaseURL = "https://news.ycombinator.com"

// hackerNewsPages is how many front pages are scanned per fetch.
const hackerNewsPages = 2

// HackerNewsSource scrapes the Hacker News front pages and keeps stories
// matching the interest. Scraping the HTML instead of the API keeps the
// ranking signal: front page position already encodes community interest.
type HackerNewsSource struct {
	baseURL        string
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	logger         *slog.Logger
}

// NewHackerNewsSource creates a Hacker News source.
func NewHackerNewsSource(client *http.Client, logger *slog.Logger) *HackerNewsSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HackerNewsSource{
		baseURL:        defaultHackerNewsBaseURL,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ScraperAPIConfig()),
		retryConfig:    retry.ScraperAPIConfig(),
		logger:         logger,
	}
}

// Name implements Source.
func (s *HackerNewsSource) Name() string { return "hacker_news" }

// Fetch scans the front pages and returns stories mentioning the interest.
func (s *HackerNewsSource) Fetch(ctx context.Context, interest string, limit int) ([]*entity.ContentItem, error) {
	needle := strings.ToLower(interest)
	var items []*entity.ContentItem

	for page := 1; page <= hackerNewsPages; page++ {
		stories, err := s.fetchPage(ctx, page)
		if err != nil {
			if len(items) > 0 {
				// Later pages failing should not discard what we have.
				s.logger.Warn("hacker news page fetch failed, keeping partial results",
					slog.Int("page", page),
					slog.Any("error", err))
				break
			}
			return nil, err
		}

		for _, story := range stories {
			if needle != "" && !strings.Contains(strings.ToLower(story.Title), needle) {
				continue
			}
			story.Tags = append(story.Tags, interest)
			items = append(items, story)
			if len(items) >= limit {
				return items, nil
			}
		}
	}

	return items, nil
}

func (s *HackerNewsSource) fetchPage(ctx context.Context, page int) ([]*entity.ContentItem, error) {
	var items []*entity.ContentItem

	retryErr := retry.WithBackoff(ctx, s.retryConfig, func() error {
		cbResult, err := s.circuitBreaker.Execute(func() (interface{}, error) {
			return s.doFetchPage(ctx, page)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				s.logger.Warn("hacker news circuit breaker open, request rejected",
					slog.String("state", s.circuitBreaker.State().String()))
			}
			return err
		}
		items = cbResult.([]*entity.ContentItem)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	return items, nil
}

func (s *HackerNewsSource) doFetchPage(ctx context.Context, page int) ([]*entity.ContentItem, error) {
	url := fmt.Sprintf("%s/news?p=%d", s.baseURL, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "DigestlyBot")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("hacker news returned %d", resp.StatusCode),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse hacker news page: %w", err)
	}

	var items []*entity.ContentItem
	doc.Find("tr.athing").Each(func(_ int, row *goquery.Selection) {
		titleLink := row.Find("span.titleline > a").First()
		title := strings.TrimSpace(titleLink.Text())
		href, _ := titleLink.Attr("href")
		if title == "" || href == "" {
			return
		}
		if strings.HasPrefix(href, "item?id=") {
			href = s.baseURL + "/" + href
		}

		item := entity.NewContentItem(title, href, entity.SourceHackerNews, entity.ContentTypeDiscussion)

		subtext := row.Next().Find("td.subtext")
		if author := strings.TrimSpace(subtext.Find("a.hnuser").Text()); author != "" {
			item.Author = author
			item.RefreshHash()
		}
		if points := parsePoints(subtext.Find("span.score").Text()); points > 0 {
			item.Metadata["points"] = points
		}
		if ts, ok := subtext.Find("span.age").Attr("title"); ok {
			if published, err := parseHackerNewsAge(ts); err == nil {
				item.PublishedAt = published
			}
		}
		if id, ok := row.Attr("id"); ok {
			item.Metadata["comments_url"] = fmt.Sprintf("%s/item?id=%s", s.baseURL, id)
		}

		items = append(items, item)
	})

	return items, nil
}

// parsePoints extracts the number from text like "123 points".
func parsePoints(text string) int {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return n
}

// parseHackerNewsAge parses the span.age title attribute, which is either a
// bare timestamp or "timestamp unixtime".
func parseHackerNewsAge(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, ' '); i > 0 {
		value = value[:i]
	}
	return time.Parse("2006-01-02T15:04:05", value)
}
