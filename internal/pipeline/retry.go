package pipeline

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a failed pipeline is restarted and how long to
// pause between attempts. The same policy object covers both knobs so callers
// cannot configure one without the other.
type RetryPolicy struct {
	// MaxAttempts is the number of restart attempts before the pipeline gives
	// up and stops with a fatal status.
	MaxAttempts int

	// Backoff returns the pause before restart attempt n (1-based). When nil,
	// ConstantBackoff(2 * time.Second) is used.
	Backoff func(attempt int) time.Duration
}

// DefaultRetryPolicy returns the standard policy: 3 attempts, 2 s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ConstantBackoff(2 * time.Second),
	}
}

// ConstantBackoff returns a backoff function yielding d for every attempt.
func ConstantBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// withDefaults fills zero fields with the default policy's values.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Backoff == nil {
		p.Backoff = ConstantBackoff(2 * time.Second)
	}
	return p
}

// Wait sleeps for the attempt's backoff or until ctx is done, returning
// ctx.Err() in the latter case.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	d := p.Backoff(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
