package ratelimit

import (
	"context"
	"time"
)

// Clock abstracts time so the sliding-window behavior can be tested with a
// simulated clock.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until the context is cancelled, returning the
	// context error in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
