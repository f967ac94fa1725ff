package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/metrics"
	"digestly/internal/resilience/circuitbreaker"
	"digestly/internal/resilience/retry"
	"digestly/internal/utils/text"
)

// ClaudeConfig holds configuration for the Claude insights generator.
type ClaudeConfig struct {
	// Model is the Claude model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single API call.
	Timeout time.Duration

	// MaxInsights caps the number of insights per newsletter.
	MaxInsights int
}

// LoadClaudeConfig loads configuration from environment variables with
// fallback to defaults.
//
// Environment variables:
//   - INSIGHTS_MAX_COUNT: maximum insights per newsletter (default: 3, range: 1-10)
func LoadClaudeConfig() ClaudeConfig {
	const (
		defaultMaxInsights = 3
		minMaxInsights     = 1
		maxMaxInsights     = 10
	)

	maxInsights := defaultMaxInsights

	if envMax := os.Getenv("INSIGHTS_MAX_COUNT"); envMax != "" {
		parsed, err := strconv.Atoi(envMax)
		if err != nil {
			slog.Warn("Invalid INSIGHTS_MAX_COUNT format, using default",
				slog.String("value", envMax),
				slog.Int("default", defaultMaxInsights),
				slog.String("error", err.Error()))
		} else if parsed < minMaxInsights || parsed > maxMaxInsights {
			slog.Warn("INSIGHTS_MAX_COUNT out of valid range, using default",
				slog.Int("value", parsed),
				slog.Int("min", minMaxInsights),
				slog.Int("max", maxMaxInsights),
				slog.Int("default", defaultMaxInsights))
		} else {
			maxInsights = parsed
		}
	}

	return ClaudeConfig{
		Model:       string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
		MaxInsights: maxInsights,
	}
}

// ClaudeInsights generates personalized cross-article insights with
// Anthropic's Claude API. It includes circuit breaker and retry logic.
type ClaudeInsights struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         ClaudeConfig
}

// NewClaudeInsights creates an insights generator with the given API key.
func NewClaudeInsights(apiKey string) *ClaudeInsights {
	config := LoadClaudeConfig()

	slog.Info("Initialized Claude insights generator",
		slog.String("model", config.Model),
		slog.Int("max_insights", config.MaxInsights))

	return &ClaudeInsights{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.AIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
	}
}

// GenerateInsights produces observations connecting the recipient's interests
// to the top analyzed content.
func (c *ClaudeInsights) GenerateInsights(ctx context.Context, profile *entity.UserProfile, top []*entity.AnalyzedContent) ([]*entity.PersonalizedInsight, error) {
	if len(top) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var insights []*entity.PersonalizedInsight

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doGenerate(ctx, profile, top)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("service", "claude-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}
		insights = cbResult.([]*entity.PersonalizedInsight)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("claude insights failed after retries: %w", retryErr)
	}

	if len(insights) > c.config.MaxInsights {
		insights = insights[:c.config.MaxInsights]
	}
	return insights, nil
}

// doGenerate performs the actual API call without retry or circuit breaker.
func (c *ClaudeInsights) doGenerate(ctx context.Context, profile *entity.UserProfile, top []*entity.AnalyzedContent) ([]*entity.PersonalizedInsight, error) {
	requestID := uuid.New().String()
	prompt := buildInsightsPrompt(profile, top, c.config.MaxInsights)

	slog.InfoContext(ctx, "Generating insights",
		slog.String("request_id", requestID),
		slog.Int("articles", len(top)))

	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})

	duration := time.Since(start)

	if err != nil {
		metrics.RecordScoring("claude", false, duration)
		slog.ErrorContext(ctx, "Insight generation failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		metrics.RecordScoring("claude", false, duration)
		return nil, fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		metrics.RecordScoring("claude", false, duration)
		return nil, fmt.Errorf("claude api returned unexpected response type")
	}

	insights, err := parseInsightsResponse(textBlock.Text)
	if err != nil {
		metrics.RecordScoring("claude", false, duration)
		return nil, err
	}

	metrics.RecordScoring("claude", true, duration)
	slog.InfoContext(ctx, "Insight generation completed",
		slog.String("request_id", requestID),
		slog.Int("insights", len(insights)),
		slog.Duration("duration", duration))

	return insights, nil
}

// maxInsightArticles bounds how many articles are described in the prompt.
const maxInsightArticles = 10

func buildInsightsPrompt(profile *entity.UserProfile, top []*entity.AnalyzedContent, maxInsights int) string {
	if len(top) > maxInsightArticles {
		top = top[:maxInsightArticles]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You write short personalized insights for a tech newsletter reader.\n")
	fmt.Fprintf(&b, "Reader: %s. Interests: %s.\n\nToday's top articles:\n",
		recipientName(profile), strings.Join(profile.Interests, ", "))
	for i, a := range top {
		summary := a.AISummary
		if summary == "" {
			summary = a.Item.Summary
		}
		summary = text.Truncate(summary, maxSummaryChars)
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, a.Item.Title, a.Item.URL, summary)
	}
	fmt.Fprintf(&b, "\nWrite up to %d insights that connect these articles to the reader's interests. ", maxInsights)
	b.WriteString(`Respond with JSON only: {"insights": [{"title": "...", "content": "...", "related_articles": ["<url>"], "confidence": <0..1>, "type": "trend|connection|recommendation"}]}`)
	return b.String()
}

func parseInsightsResponse(content string) ([]*entity.PersonalizedInsight, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var wrapper struct {
		Insights []struct {
			Title           string   `json:"title"`
			Content         string   `json:"content"`
			RelatedArticles []string `json:"related_articles"`
			Confidence      float64  `json:"confidence"`
			Type            string   `json:"type"`
		} `json:"insights"`
	}
	if err := json.Unmarshal([]byte(content), &wrapper); err != nil {
		return nil, fmt.Errorf("unparseable insights response: %w", err)
	}

	insights := make([]*entity.PersonalizedInsight, 0, len(wrapper.Insights))
	for _, in := range wrapper.Insights {
		if in.Title == "" || in.Content == "" {
			continue
		}
		insights = append(insights, &entity.PersonalizedInsight{
			Title:           in.Title,
			Content:         in.Content,
			RelatedArticles: in.RelatedArticles,
			Confidence:      clamp(in.Confidence),
			Type:            in.Type,
		})
	}
	return insights, nil
}
