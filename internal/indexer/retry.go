package indexer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryInterval is the wait between attempts after a transient embedding failure
const DefaultRetryInterval = 120 * time.Second

// RetryPolicy controls incremental retries of transient failures.
// The interval is constant; waits do not grow between attempts.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int // attempts per entity including the first; 0 retries forever
}

// DefaultRetryPolicy waits DefaultRetryInterval between attempts and never gives up
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: DefaultRetryInterval}
}

// newBackOff returns a fresh schedule for one entity
func (p RetryPolicy) newBackOff() backoff.BackOff {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(interval)
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	b.Reset()
	return b
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
