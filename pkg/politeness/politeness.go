// Package politeness provides the randomized inter-item delays inserted
// between remote requests so the archiver does not hammer the site.
package politeness

import (
	"context"
	"math/rand"
	"time"
)

// Waiter blocks between remote operations
type Waiter interface {
	// Wait blocks for one delay or until the context is cancelled
	Wait(ctx context.Context) error
}

// Jitter waits a uniformly random duration within [Min, Max]
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

// NewJitter creates a jittered waiter for the given range
func NewJitter(min, max time.Duration) *Jitter {
	if max < min {
		max = min
	}
	return &Jitter{Min: min, Max: max}
}

// Wait blocks for a random delay within the range or until the context is cancelled
func (j *Jitter) Wait(ctx context.Context) error {
	delay := j.Min
	if span := j.Max - j.Min; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span) + 1))
	}
	if delay <= 0 {
		return ctx.Err()
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

// None is a waiter that never delays. Used in tests.
type None struct{}

func (None) Wait(ctx context.Context) error { return ctx.Err() }
