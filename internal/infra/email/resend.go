package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/metrics"
	"digestly/internal/resilience/circuitbreaker"
)

const defaultResendBaseURL = "https://api.resend.com"

// maxResponseBodySize caps error response bodies read from the provider.
const maxResponseBodySize = 64 * 1024

// ResendConfig contains configuration for the Resend email provider.
type ResendConfig struct {
	// APIKey authenticates against the Resend API.
	APIKey string

	// FromEmail is the sender address for all newsletters.
	FromEmail string

	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string

	// Timeout is the HTTP request timeout per API call.
	Timeout time.Duration

	// RequestsPerSecond is the sustained send rate.
	RequestsPerSecond float64

	// MaxRetries is the number of attempts per send.
	MaxRetries int

	// RetryBaseDelay is the backoff applied after a retryable failure; it
	// doubles each attempt.
	RetryBaseDelay time.Duration
}

// DefaultResendConfig returns production defaults for the given credentials.
func DefaultResendConfig(apiKey, fromEmail string) ResendConfig {
	return ResendConfig{
		APIKey:            apiKey,
		FromEmail:         fromEmail,
		BaseURL:           defaultResendBaseURL,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2.0,
		MaxRetries:        3,
		RetryBaseDelay:    5 * time.Second,
	}
}

// ResendSender delivers newsletters through the Resend transactional email
// API with rate limiting, retry logic, and a circuit breaker.
type ResendSender struct {
	config         ResendConfig
	httpClient     *http.Client
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewResendSender creates a sender for the given configuration.
func NewResendSender(config ResendConfig) *ResendSender {
	if config.BaseURL == "" {
		config.BaseURL = defaultResendBaseURL
	}
	return &ResendSender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter:    NewRateLimiter(config.RequestsPerSecond, 1),
		circuitBreaker: circuitbreaker.New(circuitbreaker.EmailAPIConfig()),
	}
}

// resendPayload is the JSON body for POST /emails.
type resendPayload struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Text    string            `json:"text,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// resendResponse is the success response from POST /emails.
type resendResponse struct {
	ID string `json:"id"`
}

// Send delivers the email, retrying transient failures. A failed delivery
// after all retries returns both a failure result and the error, so the
// caller can record the outcome without re-deriving it.
func (r *ResendSender) Send(ctx context.Context, to string, content *entity.EmailContent) (*entity.DeliveryResult, error) {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	slog.Info("Starting email delivery",
		slog.String("request_id", requestID),
		slog.String("to", to),
		slog.String("subject", content.Subject))

	start := time.Now()

	if err := r.rateLimiter.Allow(ctx); err != nil {
		return failedResult(err), fmt.Errorf("rate limiter error: %w", err)
	}

	deliveryID, err := r.sendWithRetry(ctx, to, content)
	duration := time.Since(start)

	if err != nil {
		metrics.RecordEmailDelivered("failed", duration)
		slog.Error("Email delivery failed",
			slog.String("request_id", requestID),
			slog.String("to", to),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return failedResult(err), err
	}

	metrics.RecordEmailDelivered("sent", duration)
	slog.Info("Email delivered",
		slog.String("request_id", requestID),
		slog.String("to", to),
		slog.String("delivery_id", deliveryID),
		slog.Duration("duration", duration))

	return &entity.DeliveryResult{
		Success:    true,
		DeliveryID: deliveryID,
		Status:     entity.DeliverySent,
		SentAt:     time.Now().UTC(),
		Metadata:   map[string]any{"provider": "resend"},
	}, nil
}

// sendWithRetry attempts the send up to MaxRetries times. Backoff policy:
// 429 sleeps for the provider's retry_after hint, server and network errors
// use exponential backoff, other client errors fail immediately.
func (r *ResendSender) sendWithRetry(ctx context.Context, to string, content *entity.EmailContent) (string, error) {
	var lastErr error
	backoff := r.config.RetryBaseDelay

	for attempt := 1; attempt <= r.config.MaxRetries; attempt++ {
		cbResult, err := r.circuitBreaker.Execute(func() (interface{}, error) {
			return r.doSend(ctx, to, content)
		})
		if err == nil {
			return cbResult.(string), nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) {
			return "", fmt.Errorf("email api unavailable: circuit breaker open")
		}

		if rateLimitErr, ok := is429Error(err); ok {
			slog.Warn("Email API rate limited, waiting",
				slog.Int("attempt", attempt),
				slog.Duration("retry_after", rateLimitErr.RetryAfter))
			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return "", fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		if !isRetryableError(err) {
			return "", err
		}

		if attempt < r.config.MaxRetries {
			slog.Warn("Email API request failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", r.config.MaxRetries),
				slog.Duration("backoff", backoff),
				slog.Any("error", err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
			backoff *= 2
		}
	}

	return "", fmt.Errorf("email delivery failed after %d attempts: %w", r.config.MaxRetries, lastErr)
}

// doSend performs one API call without retry or circuit breaker.
func (r *ResendSender) doSend(ctx context.Context, to string, content *entity.EmailContent) (string, error) {
	payload := resendPayload{
		From:    r.config.FromEmail,
		To:      []string{to},
		Subject: content.Subject,
		HTML:    content.HTMLBody,
		Text:    content.TextBody,
		Headers: content.Headers,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &ClientError{Message: fmt.Sprintf("marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("email api request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var parsed resendResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.ID == "" {
			return "", &ServerError{
				StatusCode: resp.StatusCode,
				Message:    "email api returned unparseable success response",
			}
		}
		return parsed.ID, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &RateLimitError{
			RetryAfter: extractRetryAfter(resp, respBody),
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("email api client error %d: %s", resp.StatusCode, string(respBody)),
		}

	default:
		return "", &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("email api server error %d", resp.StatusCode),
		}
	}
}

func failedResult(err error) *entity.DeliveryResult {
	return &entity.DeliveryResult{
		Success:      false,
		Status:       entity.DeliveryFailed,
		ErrorMessage: err.Error(),
		SentAt:       time.Now().UTC(),
	}
}
