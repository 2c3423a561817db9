package ledger

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds how often an Unavailable operation is attempted again.
type RetryPolicy struct {
	Attempts  int           // total attempts, including the first
	BaseDelay time.Duration // delay before the second attempt
	MaxDelay  time.Duration
}

// DefaultRetryPolicy tries three times starting at 20ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 20 * time.Millisecond, MaxDelay: time.Second}
}

// delay returns a full-jitter exponential backoff for the given retry
// (0 = first retry).
func (p RetryPolicy) delay(retry int) time.Duration {
	d := p.BaseDelay << retry
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// attempts are used up, or ctx ends.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if werr := sleepContext(ctx, p.delay(i-1)); werr != nil {
				return err
			}
		}
		err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
