package source

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"digestly/internal/domain/entity"
	"digestly/internal/resilience/circuitbreaker"
	"digestly/internal/resilience/retry"
)

// RSSSource collects articles from a fixed set of feeds. Items are matched
// against the interest by keyword before being returned, since feeds are
// shared across all interests.
type RSSSource struct {
	feeds          []string
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	logger         *slog.Logger
}

// NewRSSSource creates an RSS source over the given feed URLs.
func NewRSSSource(feeds []string, client *http.Client, logger *slog.Logger) *RSSSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSSource{
		feeds:          feeds,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ScraperAPIConfig()),
		retryConfig:    retry.ScraperAPIConfig(),
		logger:         logger,
	}
}

// Name implements Source.
func (s *RSSSource) Name() string { return "rss" }

// Fetch parses every configured feed and keeps items mentioning the interest.
// A feed that fails after retries is skipped, not fatal; the source only
// errors when every feed failed.
func (s *RSSSource) Fetch(ctx context.Context, interest string, limit int) ([]*entity.ContentItem, error) {
	var (
		items    []*entity.ContentItem
		failures int
		lastErr  error
	)

	for _, feedURL := range s.feeds {
		feedItems, err := s.fetchFeed(ctx, feedURL)
		if err != nil {
			failures++
			lastErr = err
			s.logger.Warn("feed fetch failed, skipping",
				slog.String("feed", feedURL),
				slog.Any("error", err))
			continue
		}

		for _, item := range feedItems {
			if !matchesInterest(item, interest) {
				continue
			}
			item.Tags = append(item.Tags, interest)
			items = append(items, item)
			if len(items) >= limit {
				return items, nil
			}
		}
	}

	if failures == len(s.feeds) && len(s.feeds) > 0 {
		return nil, lastErr
	}
	return items, nil
}

// fetchFeed retrieves and parses one feed with retry and circuit breaking,
// following the same layering as all outbound fetches: retry wraps the
// breaker, the breaker wraps the call.
func (s *RSSSource) fetchFeed(ctx context.Context, feedURL string) ([]*entity.ContentItem, error) {
	var items []*entity.ContentItem

	retryErr := retry.WithBackoff(ctx, s.retryConfig, func() error {
		cbResult, err := s.circuitBreaker.Execute(func() (interface{}, error) {
			return s.doFetch(ctx, feedURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				s.logger.Warn("rss circuit breaker open, request rejected",
					slog.String("feed", feedURL),
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

func (s *RSSSource) doFetch(ctx context.Context, feedURL string) ([]*entity.ContentItem, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "DigestlyBot"
	fp.Client = s.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*entity.ContentItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := entity.NewContentItem(it.Title, it.Link, entity.SourceRSSFeed, entity.ContentTypeBlogPost)
		if it.PublishedParsed != nil {
			item.PublishedAt = *it.PublishedParsed
		}
		if len(it.Authors) > 0 && it.Authors[0] != nil {
			item.Author = it.Authors[0].Name
			item.RefreshHash()
		}

		// Content preferred, description as fallback
		summary := it.Content
		if summary == "" {
			summary = it.Description
		}
		item.Summary = summary
		item.WordCount = len(strings.Fields(summary))
		item.ReadingTimeMinutes = entity.EstimateReadingTime(summary)

		items = append(items, item)
	}

	return items, nil
}

func matchesInterest(item *entity.ContentItem, interest string) bool {
	needle := strings.ToLower(interest)
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(item.Title), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(item.Summary), needle)
}
