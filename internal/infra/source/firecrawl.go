package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"digestly/internal/domain/entity"
	"digestly/internal/resilience/circuitbreaker"
	"digestly/internal/resilience/retry"
)

const defaultFirecrawlBaseURL = "https://api.firecrawl.dev"

// FirecrawlSource discovers recent web articles through the Firecrawl
// search API. It covers the long tail of blogs that have no feed.
type FirecrawlSource struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	logger         *slog.Logger
}

// NewFirecrawlSource creates a Firecrawl search source. The API key is
// required; construct the source only when one is configured.
func NewFirecrawlSource(apiKey string, client *http.Client, logger *slog.Logger) *FirecrawlSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FirecrawlSource{
		baseURL:        defaultFirecrawlBaseURL,
		apiKey:         apiKey,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ScraperAPIConfig()),
		retryConfig:    retry.ScraperAPIConfig(),
		logger:         logger,
	}
}

// Name implements Source.
func (s *FirecrawlSource) Name() string { return "web_scrape" }

type firecrawlSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type firecrawlSearchResponse struct {
	Success bool              `json:"success"`
	Data    []firecrawlResult `json:"data"`
	Error   string            `json:"error,omitempty"`
}

type firecrawlResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Markdown    string `json:"markdown,omitempty"`
	Metadata    struct {
		Author        string `json:"author,omitempty"`
		PublishedTime string `json:"publishedTime,omitempty"`
	} `json:"metadata"`
}

// Fetch searches the web for recent articles about the interest.
func (s *FirecrawlSource) Fetch(ctx context.Context, interest string, limit int) ([]*entity.ContentItem, error) {
	var results []firecrawlResult

	retryErr := retry.WithBackoff(ctx, s.retryConfig, func() error {
		cbResult, err := s.circuitBreaker.Execute(func() (interface{}, error) {
			return s.doSearch(ctx, interest, limit)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				s.logger.Warn("firecrawl circuit breaker open, request rejected",
					slog.String("state", s.circuitBreaker.State().String()))
			}
			return err
		}
		results = cbResult.([]firecrawlResult)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	items := make([]*entity.ContentItem, 0, len(results))
	for _, r := range results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		item := entity.NewContentItem(r.Title, r.URL, entity.SourceWebScrape, entity.ContentTypeArticle)
		item.Summary = r.Description
		if r.Metadata.Author != "" {
			item.Author = r.Metadata.Author
			item.RefreshHash()
		}
		if r.Metadata.PublishedTime != "" {
			if published, err := time.Parse(time.RFC3339, r.Metadata.PublishedTime); err == nil {
				item.PublishedAt = published
			}
		}
		if r.Markdown != "" {
			item.WordCount = len(strings.Fields(r.Markdown))
			item.ReadingTimeMinutes = entity.EstimateReadingTime(r.Markdown)
		}
		item.Tags = []string{interest}
		items = append(items, item)
	}

	return items, nil
}

func (s *FirecrawlSource) doSearch(ctx context.Context, query string, limit int) ([]firecrawlResult, error) {
	body, err := json.Marshal(firecrawlSearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("firecrawl search failed: %s", strings.TrimSpace(string(payload))),
		}
	}

	var searchResp firecrawlSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode firecrawl response: %w", err)
	}
	if !searchResp.Success {
		return nil, fmt.Errorf("firecrawl search rejected: %s", searchResp.Error)
	}

	return searchResp.Data, nil
}
