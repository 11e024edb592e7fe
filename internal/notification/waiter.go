package notification

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
)

// Waiter blocks between two polling attempts.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// JitterWaiter sleeps for d plus a normally distributed jitter so that
// concurrent pollers do not hit the queue in lockstep.
type JitterWaiter struct {
	Stdev time.Duration
}

func NewJitterWaiter() *JitterWaiter {
	return &JitterWaiter{Stdev: 250 * time.Millisecond}
}

func (w *JitterWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := jitterbug.New(d, &jitterbug.Norm{Stdev: w.Stdev, Mean: 0})
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
