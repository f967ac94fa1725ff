package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/metrics"
	"digestly/internal/resilience/circuitbreaker"
	"digestly/internal/resilience/retry"
	"digestly/internal/utils/text"
)

// OpenAIScorerConfig holds configuration for the OpenAI scorer.
type OpenAIScorerConfig struct {
	// Model is the chat completion model used for scoring.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single scoring API call.
	Timeout time.Duration

	// BatchSize is the number of items scored per API call.
	BatchSize int
}

// DefaultOpenAIScorerConfig returns the standard scorer configuration.
func DefaultOpenAIScorerConfig() OpenAIScorerConfig {
	return OpenAIScorerConfig{
		Model:     "gpt-4o-mini",
		MaxTokens: 2048,
		Timeout:   60 * time.Second,
		BatchSize: 8,
	}
}

// chatCompleter is the subset of the OpenAI client used by the scorer.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIScorer scores content relevance and quality with OpenAI chat
// completions. It includes circuit breaker and retry logic, and also
// implements subject line generation for curated newsletters.
type OpenAIScorer struct {
	client         chatCompleter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         OpenAIScorerConfig
}

// NewOpenAIScorer creates a scorer backed by the OpenAI API.
func NewOpenAIScorer(apiKey string, config OpenAIScorerConfig) *OpenAIScorer {
	slog.Info("Initialized OpenAI scorer",
		slog.String("model", config.Model),
		slog.Int("batch_size", config.BatchSize))

	return &OpenAIScorer{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.AIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
	}
}

func (s *OpenAIScorer) Name() string { return "openai" }

// scoredItem is the per-item result expected from the model.
type scoredItem struct {
	Index     int      `json:"index"`
	Relevance float64  `json:"relevance"`
	Quality   float64  `json:"quality"`
	Matches   []string `json:"matches"`
	Summary   string   `json:"summary"`
}

// ScoreBatch analyzes items in fixed-size batches. Every input item gets a
// result; items the model omitted fall back to neutral relevance with
// keyword-derived interest matches.
func (s *OpenAIScorer) ScoreBatch(ctx context.Context, profile *entity.UserProfile, items []*entity.ContentItem) ([]*entity.AnalyzedContent, error) {
	analyzed := make([]*entity.AnalyzedContent, 0, len(items))

	for start := 0; start < len(items); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		results, err := s.scoreOne(ctx, profile, batch)
		if err != nil {
			return nil, fmt.Errorf("openai scoring failed at item %d: %w", start, err)
		}
		analyzed = append(analyzed, results...)
	}

	return analyzed, nil
}

func (s *OpenAIScorer) scoreOne(ctx context.Context, profile *entity.UserProfile, batch []*entity.ContentItem) ([]*entity.AnalyzedContent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var scored []scoredItem

	retryErr := retry.WithBackoff(ctx, s.retryConfig, func() error {
		cbResult, err := s.circuitBreaker.Execute(func() (interface{}, error) {
			return s.doScore(ctx, profile, batch)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai api circuit breaker open, request rejected",
					slog.String("service", "openai-api"),
					slog.String("state", s.circuitBreaker.State().String()))
				return fmt.Errorf("openai api unavailable: circuit breaker open")
			}
			return err
		}
		scored = cbResult.([]scoredItem)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("openai score failed after retries: %w", retryErr)
	}

	return applyScores(profile, batch, scored), nil
}

// doScore performs the actual API call without retry or circuit breaker.
func (s *OpenAIScorer) doScore(ctx context.Context, profile *entity.UserProfile, batch []*entity.ContentItem) ([]scoredItem, error) {
	prompt := buildScoringPrompt(profile, batch)

	start := time.Now()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.config.Model,
		MaxTokens: s.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scoringSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	duration := time.Since(start)

	if err != nil {
		metrics.RecordScoring("openai", false, duration)
		slog.ErrorContext(ctx, "Scoring request failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		metrics.RecordScoring("openai", false, duration)
		return nil, fmt.Errorf("openai api returned empty response")
	}

	scored, err := parseScoringResponse(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.RecordScoring("openai", false, duration)
		return nil, err
	}

	metrics.RecordScoring("openai", true, duration)
	slog.InfoContext(ctx, "Scoring completed",
		slog.Int("items", len(batch)),
		slog.Int("scored", len(scored)),
		slog.Duration("duration", duration))

	return scored, nil
}

// GenerateSubjectLine produces an email subject from the top article titles.
func (s *OpenAIScorer) GenerateSubjectLine(ctx context.Context, profile *entity.UserProfile, topTitles []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Write a short, engaging email subject line (under 60 characters, no quotes) for a personalized tech newsletter for %s. Their interests: %s. Top stories today:\n%s",
		recipientName(profile),
		strings.Join(profile.Interests, ", "),
		"- "+strings.Join(topTitles, "\n- "))

	var subject string

	retryErr := retry.WithBackoff(ctx, s.retryConfig, func() error {
		cbResult, err := s.circuitBreaker.Execute(func() (interface{}, error) {
			start := time.Now()
			resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:     s.config.Model,
				MaxTokens: 64,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
			})
			metrics.RecordScoring("openai", err == nil, time.Since(start))
			if err != nil {
				return nil, fmt.Errorf("openai api error: %w", err)
			}
			if len(resp.Choices) == 0 {
				return nil, fmt.Errorf("openai api returned empty response")
			}
			return strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`), nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return fmt.Errorf("openai api unavailable: circuit breaker open")
			}
			return err
		}
		subject = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("openai subject line failed after retries: %w", retryErr)
	}
	return subject, nil
}

const scoringSystemPrompt = `You score tech content for a personalized newsletter. ` +
	`For each numbered item, rate relevance to the reader's interests and intrinsic quality, both in [0, 1]. ` +
	`Respond with a JSON object: {"items": [{"index": <n>, "relevance": <f>, "quality": <f>, "matches": [<interest>...], "summary": "<one sentence>"}]}. ` +
	`Include every item exactly once.`

// maxSummaryChars bounds per-item text sent to the model.
const maxSummaryChars = 500

func buildScoringPrompt(profile *entity.UserProfile, batch []*entity.ContentItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reader interests: %s\n\n", strings.Join(profile.Interests, ", "))
	for i, item := range batch {
		summary := text.Truncate(item.Summary, maxSummaryChars)
		fmt.Fprintf(&b, "Item %d [%s]: %s\n%s\n\n", i, item.Source, item.Title, summary)
	}
	return b.String()
}

// parseScoringResponse accepts either the documented object form or a bare
// JSON array, which some models return despite instructions.
func parseScoringResponse(content string) ([]scoredItem, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var wrapper struct {
		Items []scoredItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(content), &wrapper); err == nil && wrapper.Items != nil {
		return wrapper.Items, nil
	}

	var items []scoredItem
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, fmt.Errorf("unparseable scoring response: %w", err)
	}
	return items, nil
}

// applyScores maps model output onto the batch. Indexes out of range are
// dropped; items without a score get neutral relevance.
func applyScores(profile *entity.UserProfile, batch []*entity.ContentItem, scored []scoredItem) []*entity.AnalyzedContent {
	results := make([]*entity.AnalyzedContent, len(batch))
	for _, sc := range scored {
		if sc.Index < 0 || sc.Index >= len(batch) {
			slog.Warn("scorer returned out-of-range index", slog.Int("index", sc.Index))
			continue
		}
		a := newAnalyzed(batch[sc.Index])
		a.RelevanceScore = clamp(sc.Relevance)
		a.QualityScore = floatPtr(clamp(sc.Quality))
		a.InterestMatches = sc.Matches
		a.AISummary = sc.Summary
		results[sc.Index] = a
	}
	for i, r := range results {
		if r == nil {
			a := newAnalyzed(batch[i])
			a.RelevanceScore = 0.5
			a.InterestMatches = matchedInterests(profile, batch[i])
			results[i] = a
		}
	}
	return results
}

func recipientName(profile *entity.UserProfile) string {
	if profile.Name != "" {
		return profile.Name
	}
	return profile.Email
}
