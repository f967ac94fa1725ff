package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"digestly/internal/resilience/circuitbreaker"
)

// Prometheus metrics for the bridge client
var (
	bridgeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_client_requests_total",
			Help: "Total number of bridge client requests",
		},
		[]string{"method", "status"},
	)

	// Buckets cover both quick lookups and slow analysis calls.
	bridgeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_client_request_duration_seconds",
			Help:    "Bridge client request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method"},
	)

	// 0 = closed, 1 = open, 2 = half-open
	bridgeCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_client_circuit_breaker_state",
			Help: "Bridge circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)
)

// ClientConfig controls retry behavior of the bridge client.
type ClientConfig struct {
	// MaxAttempts is the total number of tries per call, including the first.
	MaxAttempts int

	// BaseBackoff is the delay before the second attempt; it doubles with
	// each further attempt.
	BaseBackoff time.Duration
}

// DefaultClientConfig returns the standard bridge client settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Second,
	}
}

// Client is the resilient interface to the analysis bridge. It wraps a
// Connection with a circuit breaker, transport-level retries with
// exponential backoff, and forced reconnection after transport failures.
//
// Application-level errors (a response envelope carrying an error) are
// returned as *ClientError without retrying and do not count against the
// circuit breaker.
type Client struct {
	conn    Connection
	breaker *circuitbreaker.CircuitBreaker
	cfg     ClientConfig
	logger  *slog.Logger

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// NewClient creates a bridge client over the given connection.
func NewClient(conn Connection, cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}

	return &Client{
		conn:    conn,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("bridge")),
		cfg:     cfg,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Call invokes a bridge method and unmarshals the result into out.
// Pass a nil out to discard the result.
func (c *Client) Call(ctx context.Context, method string, params, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(c.cfg.BaseBackoff) * math.Pow(2, float64(attempt-1)))
			c.logger.Warn("bridge call retrying",
				slog.String("method", method),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.Any("error", lastErr))
			c.sleep(backoff)

			// Transport failed last time; start from a fresh session.
			if err := c.conn.Close(); err != nil {
				c.logger.Warn("bridge close before reconnect failed", slog.Any("error", err))
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := c.invokeOnce(ctx, method, params)
		if err == nil {
			bridgeRequestsTotal.WithLabelValues(method, "success").Inc()
			return unmarshalResult(raw, out)
		}

		if IsClientError(err) {
			bridgeRequestsTotal.WithLabelValues(method, "client_error").Inc()
			return err
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			bridgeRequestsTotal.WithLabelValues(method, "circuit_open").Inc()
			return fmt.Errorf("%w: %s", ErrCircuitOpen, method)
		}

		bridgeRequestsTotal.WithLabelValues(method, "error").Inc()
		lastErr = err
	}

	return fmt.Errorf("%w: %s after %d attempts: %v",
		ErrBridgeUnavailable, method, c.cfg.MaxAttempts, lastErr)
}

// invokeOnce runs a single connect-and-invoke through the circuit breaker.
// Application-level errors come back as *ClientError and count as breaker
// successes: the bridge answered, the transport is healthy.
func (c *Client) invokeOnce(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	var clientErr *ClientError

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		if err := c.conn.Connect(ctx); err != nil {
			return nil, err
		}
		raw, err := c.conn.Invoke(ctx, method, params)
		if err != nil {
			if errors.As(err, &clientErr) {
				return nil, nil
			}
			return nil, err
		}
		return raw, nil
	})
	bridgeRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	bridgeCircuitState.Set(float64(c.breaker.State()))

	if err != nil {
		return nil, err
	}
	if clientErr != nil {
		return nil, clientErr
	}

	raw, _ := result.(json.RawMessage)
	return raw, nil
}

// HealthCheck reports whether the bridge answers a ping. It never returns
// an error; failures simply report an unhealthy bridge.
func (c *Client) HealthCheck(ctx context.Context) bool {
	err := c.Call(ctx, "ping", nil, nil)
	if err != nil {
		c.logger.Debug("bridge health check failed", slog.Any("error", err))
		return false
	}
	return true
}

// Close shuts down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func unmarshalResult(raw json.RawMessage, out interface{}) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode bridge result: %w", err)
	}
	return nil
}
