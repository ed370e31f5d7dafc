package pipeline

import (
	"context"
	"time"
)

// RetryPolicy bounds retries of a single operation with a fixed backoff
// schedule. The last backoff entry repeats if attempts outnumber entries.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// UploadRetryPolicy is the default policy for asset uploads: three
// attempts with exponential backoff.
func UploadRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// Do runs op until it succeeds, attempts are exhausted, or the context is
// cancelled. The backoff sleep between attempts honors cancellation.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		wait := time.Duration(0)
		if len(p.Backoff) > 0 {
			idx := attempt - 1
			if idx >= len(p.Backoff) {
				idx = len(p.Backoff) - 1
			}
			wait = p.Backoff[idx]
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
