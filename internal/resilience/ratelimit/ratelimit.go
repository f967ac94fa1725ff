// Package ratelimit provides a sliding-window rate limiter with a bounded
// concurrency slot pool and a retry wrapper that understands rate-limit
// responses. One Limiter is owned per remote client; sharing a Limiter across
// clients of different services would make its window meaningless.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	windowSize = time.Minute

	// windowGuard is added to the wait when the window is full so the
	// oldest entry has definitely aged out before the re-check.
	windowGuard = 100 * time.Millisecond

	jitterFraction = 0.1
)

// Config holds limiter tuning knobs.
type Config struct {
	// RequestsPerMinute caps operation starts in any trailing 60s window.
	RequestsPerMinute int

	// MaxConcurrent bounds in-flight operations.
	MaxConcurrent int

	// MaxRetries is the attempt budget for ExecuteWithRetry.
	MaxRetries int

	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
}

// DefaultConfig returns conservative defaults suitable for third-party APIs.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		MaxConcurrent:     5,
		MaxRetries:        3,
		BaseBackoff:       1 * time.Second,
	}
}

// Limiter enforces a requests-per-minute sliding window, a concurrency
// bound, and a minimum inter-request delay that spreads calls evenly instead
// of allowing bursts.
type Limiter struct {
	cfg   Config
	clock Clock
	sem   *semaphore.Weighted

	mu     sync.Mutex
	window []time.Time
}

// New creates a Limiter using the wall clock. Zero or negative config fields
// are replaced with defaults.
func New(cfg Config) *Limiter {
	return NewWithClock(cfg, realClock{})
}

// NewWithClock creates a Limiter with an injected clock for tests.
func NewWithClock(cfg Config, clock Clock) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	return &Limiter{
		cfg:   cfg,
		clock: clock,
		sem:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Acquire blocks until a concurrency slot is free and the sliding window
// admits another operation start. Every successful Acquire must be paired
// with a Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := l.waitForWindow(ctx); err != nil {
		l.sem.Release(1)
		return err
	}
	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// waitForWindow sleeps until the trailing window has room, then records the
// operation start. When the window has room but a previous request was
// recorded, a minimum delay of windowSize/RequestsPerMinute is still imposed
// so requests are distributed instead of bursting.
func (l *Limiter) waitForWindow(ctx context.Context) error {
	minDelay := windowSize / time.Duration(l.cfg.RequestsPerMinute)
	for {
		l.mu.Lock()
		now := l.clock.Now()
		l.prune(now)

		if len(l.window) >= l.cfg.RequestsPerMinute {
			oldest := l.window[0]
			l.mu.Unlock()
			wait := oldest.Add(windowSize).Sub(now) + windowGuard
			if err := l.clock.Sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if len(l.window) > 0 {
			if since := now.Sub(l.window[len(l.window)-1]); since < minDelay {
				l.mu.Unlock()
				if err := l.clock.Sleep(ctx, minDelay-since); err != nil {
					return err
				}
				continue
			}
		}

		l.window = append(l.window, now)
		l.mu.Unlock()
		return nil
	}
}

// prune drops window entries older than 60s. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-windowSize)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}

// WindowCount returns the number of operation starts currently recorded in
// the trailing window.
func (l *Limiter) WindowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.clock.Now())
	return len(l.window)
}

// ExecuteWithRetry runs op under the limiter with up to MaxRetries attempts.
// Rate-limited failures sleep for the upstream's retry-after hint when one
// can be parsed from the error, otherwise exponential backoff with up to 10%
// jitter. Context errors end the attempts immediately.
func (l *Limiter) ExecuteWithRetry(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay, ok := retryAfterHint(lastErr)
			if !ok {
				delay = l.cfg.BaseBackoff * (1 << (attempt - 1))
				delay = addJitter(delay)
			}
			if err := l.clock.Sleep(ctx, delay); err != nil {
				return err
			}
		}

		if err := l.Acquire(ctx); err != nil {
			return err
		}
		err := op(ctx)
		l.Release()

		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("operation failed after %d attempts: %w", l.cfg.MaxRetries, lastErr)
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry[-_ ]?after[:=]?\s*(\d+)`)

// retryAfterHint extracts a retry-after duration in seconds from the error
// text, as rate-limited upstreams commonly embed one.
func retryAfterHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	m := retryAfterPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	secs, convErr := strconv.Atoi(m[1])
	if convErr != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func addJitter(d time.Duration) time.Duration {
	// #nosec G404 -- jitter does not need cryptographic randomness.
	return d + time.Duration(rand.Float64()*float64(d)*jitterFraction)
}
