package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock advances instantly on Sleep so window behavior can be verified
// without real waiting.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

func TestSlidingWindowNeverExceedsRate(t *testing.T) {
	const rpm = 5
	clock := newFakeClock()
	l := NewWithClock(Config{RequestsPerMinute: rpm, MaxConcurrent: 1}, clock)

	var starts []time.Time
	for i := 0; i < 20; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		starts = append(starts, clock.Now())
		l.Release()
	}

	for i := range starts {
		count := 0
		for j := 0; j <= i; j++ {
			if starts[i].Sub(starts[j]) < windowSize {
				count++
			}
		}
		if count > rpm {
			t.Fatalf("window ending at start %d holds %d starts, cap is %d", i, count, rpm)
		}
	}
}

func TestMinimumInterRequestDelay(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{RequestsPerMinute: 60, MaxConcurrent: 1}, clock)

	for i := 0; i < 2; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		l.Release()
	}

	slept := clock.sleeps()
	if len(slept) != 1 {
		t.Fatalf("expected one pacing sleep, got %v", slept)
	}
	if slept[0] != time.Second {
		t.Errorf("pacing delay = %v, want 1s for 60 rpm", slept[0])
	}
}

func TestFullWindowWaitsForOldestEntry(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{RequestsPerMinute: 2, MaxConcurrent: 1}, clock)

	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		l.Release()
	}

	// Third acquire found the window full and had to wait for the first
	// entry to age out plus the guard interval.
	var waited bool
	for _, d := range clock.sleeps() {
		if d >= 30*time.Second && d <= 30*time.Second+2*windowGuard {
			waited = true
		}
	}
	if !waited {
		t.Errorf("expected an age-out wait near 30s, sleeps: %v", clock.sleeps())
	}
	if got := l.WindowCount(); got > 2 {
		t.Errorf("window holds %d entries, cap is 2", got)
	}
}

func TestAcquireCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewWithClock(Config{RequestsPerMinute: 10, MaxConcurrent: 1}, newFakeClock())
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire = %v, want context.Canceled", err)
	}
}

func TestExecuteWithRetrySucceedsAfterFailures(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{
		RequestsPerMinute: 1000,
		MaxConcurrent:     1,
		MaxRetries:        3,
		BaseBackoff:       time.Second,
	}, clock)

	calls := 0
	err := l.ExecuteWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient failure %d", calls)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	// Backoff doubles: first retry near 1s, second near 2s (up to 10% jitter).
	var backoffs []time.Duration
	for _, d := range clock.sleeps() {
		if d >= time.Second {
			backoffs = append(backoffs, d)
		}
	}
	if len(backoffs) != 2 {
		t.Fatalf("expected two backoff sleeps, got %v", clock.sleeps())
	}
	if backoffs[0] < time.Second || backoffs[0] > 1100*time.Millisecond {
		t.Errorf("first backoff = %v, want 1s..1.1s", backoffs[0])
	}
	if backoffs[1] < 2*time.Second || backoffs[1] > 2200*time.Millisecond {
		t.Errorf("second backoff = %v, want 2s..2.2s", backoffs[1])
	}
}

func TestExecuteWithRetryHonorsRetryAfterHint(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{
		RequestsPerMinute: 1000,
		MaxConcurrent:     1,
		MaxRetries:        2,
		BaseBackoff:       time.Second,
	}, clock)

	calls := 0
	err := l.ExecuteWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("429 too many requests, retry-after: 7")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var hinted bool
	for _, d := range clock.sleeps() {
		if d == 7*time.Second {
			hinted = true
		}
	}
	if !hinted {
		t.Errorf("expected a 7s retry-after sleep, got %v", clock.sleeps())
	}
}

func TestExecuteWithRetryExhaustsBudget(t *testing.T) {
	l := NewWithClock(Config{
		RequestsPerMinute: 1000,
		MaxConcurrent:     1,
		MaxRetries:        2,
		BaseBackoff:       time.Millisecond,
	}, newFakeClock())

	boom := errors.New("boom")
	calls := 0
	err := l.ExecuteWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error %v does not wrap the final failure", err)
	}
}

func TestConcurrencyBound(t *testing.T) {
	l := New(Config{RequestsPerMinute: 100000, MaxConcurrent: 2, MaxRetries: 1})

	var inflight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.ExecuteWithRetry(context.Background(), func(ctx context.Context) error {
				n := inflight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inflight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak in-flight = %d, want <= 2", got)
	}
}

func TestRetryAfterHintParsing(t *testing.T) {
	tests := []struct {
		text string
		want time.Duration
		ok   bool
	}{
		{"rate limited, retry-after: 30", 30 * time.Second, true},
		{"Retry-After=5", 5 * time.Second, true},
		{"retry after 12 seconds", 12 * time.Second, true},
		{"plain failure", 0, false},
		{"retry-after: 0", 0, false},
	}
	for _, tt := range tests {
		got, ok := retryAfterHint(errors.New(tt.text))
		if ok != tt.ok || got != tt.want {
			t.Errorf("retryAfterHint(%q) = %v, %v; want %v, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}
