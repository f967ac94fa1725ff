package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digestly/internal/domain/entity"
)

func testContent() *entity.EmailContent {
	return &entity.EmailContent{
		Subject:  "Your Tuesday briefing",
		HTMLBody: "<h1>Hi</h1>",
		TextBody: "Hi",
		Headers:  map[string]string{"X-Entity-Ref-ID": "gen-1"},
	}
}

func newTestSender(baseURL string) *ResendSender {
	return NewResendSender(ResendConfig{
		APIKey:            "re_test_key",
		FromEmail:         "newsletter@example.com",
		BaseURL:           baseURL,
		Timeout:           time.Second,
		RequestsPerSecond: 1000,
		MaxRetries:        3,
		RetryBaseDelay:    time.Millisecond,
	})
}

func TestSendSuccess(t *testing.T) {
	var got resendPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email_abc123"})
	}))
	defer server.Close()

	result, err := newTestSender(server.URL).Send(context.Background(), "dev@example.com", testContent())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "email_abc123", result.DeliveryID)
	assert.Equal(t, entity.DeliverySent, result.Status)

	assert.Equal(t, "newsletter@example.com", got.From)
	assert.Equal(t, []string{"dev@example.com"}, got.To)
	assert.Equal(t, "Your Tuesday briefing", got.Subject)
	assert.Equal(t, "<h1>Hi</h1>", got.HTML)
	assert.Equal(t, "gen-1", got.Headers["X-Entity-Ref-ID"])
}

func TestSendClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "invalid to address"}`))
	}))
	defer server.Close()

	result, err := newTestSender(server.URL).Send(context.Background(), "bad@", testContent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid to address")
	assert.False(t, result.Success)
	assert.Equal(t, entity.DeliveryFailed, result.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email_after_retry"})
	}))
	defer server.Close()

	result, err := newTestSender(server.URL).Send(context.Background(), "dev@example.com", testContent())
	require.NoError(t, err)
	assert.Equal(t, "email_after_retry", result.DeliveryID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendHonorsRateLimitRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"retry_after": 0.01}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email_rl"})
	}))
	defer server.Close()

	result, err := newTestSender(server.URL).Send(context.Background(), "dev@example.com", testContent())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result, err := newTestSender(server.URL).Send(context.Background(), "dev@example.com", testContent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestSendCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSender(server.URL).Send(ctx, "dev@example.com", testContent())
	require.Error(t, err)
}

func TestExtractRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header string
		want   time.Duration
	}{
		{"json hint", `{"retry_after": 2.5}`, "", 2500 * time.Millisecond},
		{"header hint", `{}`, "3", 3 * time.Second},
		{"no hint", `{}`, "", defaultRetryAfter},
		{"json wins", `{"retry_after": 1}`, "9", time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, extractRetryAfter(resp, []byte(tt.body)))
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&ServerError{StatusCode: 502}))
	assert.False(t, isRetryableError(&ClientError{StatusCode: 422}))
	assert.False(t, isRetryableError(&RateLimitError{RetryAfter: time.Second}))
	assert.True(t, isRetryableError(context.DeadlineExceeded))
}
