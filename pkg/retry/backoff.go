package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt
	NextDelay(attempt int) time.Duration
}

// LinearBackoff grows the delay by a fixed step per attempt.
//
// With Step = 30s the delays are 30s, 60s, 90s, ... which is the fetch retry
// policy used by the gallery walker and the metadata harvester.
type LinearBackoff struct {
	// Step is the amount the delay grows by each attempt
	Step time.Duration
	// MaxDelay caps the delay (0 means uncapped)
	MaxDelay time.Duration
}

// NextDelay calculates the next delay with linear backoff
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := lb.Step * time.Duration(attempt)
	if lb.MaxDelay > 0 && delay > lb.MaxDelay {
		delay = lb.MaxDelay
	}
	return delay
}

// ConstantBackoff returns the same delay for every attempt.
// A zero Delay gives the download workers' immediate-retry policy.
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// JitteredBackoff wraps another strategy and adds random jitter
type JitteredBackoff struct {
	Inner BackoffStrategy
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
}

// NextDelay calculates the wrapped delay with jitter applied
func (jb *JitteredBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(jb.Inner.NextDelay(attempt))
	if jb.JitterFactor > 0 {
		jitter := delay * jb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
