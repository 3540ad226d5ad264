// Package retry provides a small bounded retry policy with pluggable delays.
package retry

import (
	"context"
	"time"
)

// Policy describes how an operation is retried: how many retries are
// allowed after the first attempt, and how long to wait before each one.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// Delay returns the wait before retry k (0-indexed).
	Delay func(k int) time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Exponential returns a policy that waits base<<k before retry k,
// so Exponential(5, time.Second) sleeps 1s, 2s, 4s, 8s and 16s.
func Exponential(maxRetries int, base time.Duration) Policy {
	return Policy{
		MaxRetries: maxRetries,
		Delay: func(k int) time.Duration {
			return base << k
		},
	}
}

// Do runs fn until it succeeds or the policy is exhausted. The last error
// is returned as-is; no wrapping happens here so callers can classify it.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = defaultSleep
	}

	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == p.MaxRetries {
			break
		}
		if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
			return serr
		}
	}
	return err
}

// Attempts reports the total number of attempts the policy permits.
func (p Policy) Attempts() int {
	return p.MaxRetries + 1
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
