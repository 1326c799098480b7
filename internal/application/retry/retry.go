// Package retry provides a generic retry-with-backoff executor, adapted from
// the workflow engine's node-execution retry policy.
package retry

import (
	"context"
	"time"
)

// Policy configures retry behavior.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// LLMPolicy returns the fixed 5-retries/3s-backoff policy spec.md mandates for
// LLMAgent prompt dispatch: a flat delay, no exponential growth, no jitter.
func LLMPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 3 * time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   1.0,
		Jitter:       false,
	}
}

// Do runs fn up to policy.MaxAttempts times, sleeping calculateDelay(attempt)
// between attempts, stopping early on ctx cancellation. It returns the last
// error if every attempt fails.
func Do(ctx context.Context, policy Policy, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateDelay(policy, attempt)):
			}
		}
		if err := fn(attempt); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func calculateDelay(policy Policy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay)
	for i := 1; i < attempt-1; i++ {
		delay *= policy.Multiplier
	}
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	if policy.Jitter {
		jitterAmount := delay * 0.1
		jitter := (2*float64(time.Now().UnixNano()%1000)/1000 - 1) * jitterAmount
		delay += jitter
	}
	return time.Duration(delay)
}
