// Package circuitbreaker provides circuit breaker implementations for external service calls.
// It uses the github.com/sony/gobreaker library to prevent cascading failures.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from closed to open.
	FailureThreshold uint32

	// Timeout is how long to wait in open state before allowing a half-open probe.
	Timeout time.Duration

	// HalfOpenMaxCalls is the maximum number of trial calls allowed while
	// half-open. Any failure reopens the breaker; success closes it.
	HalfOpenMaxCalls uint32
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// RepositoryAPIConfig returns configuration for the repository search API.
func RepositoryAPIConfig() Config {
	return Config{
		Name:             "repository-api",
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// ScraperAPIConfig returns configuration for the web scraping API.
// More tolerant threshold: upstream sites fail sporadically without the
// scraping service itself being down.
func ScraperAPIConfig() Config {
	return Config{
		Name:             "scraper-api",
		FailureThreshold: 8,
		Timeout:          120 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// EmailAPIConfig returns configuration for the email delivery API.
func EmailAPIConfig() Config {
	return Config{
		Name:             "email-api",
		FailureThreshold: 3,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// AIAPIConfig returns configuration for LLM scoring calls.
func AIAPIConfig() Config {
	return Config{
		Name:             "ai-api",
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with additional functionality.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a new circuit breaker with the given configuration.
// The breaker trips when consecutive failures reach the configured threshold.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Execute runs the given function through the circuit breaker.
// If the circuit is open, it returns gobreaker.ErrOpenState immediately and
// the function is never invoked.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// CanExecute reports whether a call would currently be admitted.
// It does not reserve a half-open slot; use Execute for the actual call.
func (cb *CircuitBreaker) CanExecute() bool {
	return cb.breaker.State() != gobreaker.StateOpen
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
