// Package retry contains the bounded-backoff policy used by the sink's
// flush path when a write fails (spec.md §9, "Retry policy for failed
// flushes"). It generalizes the teacher's retry package
// (github.com/grailbio/base/retry).
package retry

import (
	"context"
	"time"

	"github.com/TMac-wei/mylogger/internal/errors"
)

// Policy decides whether a retry number should proceed, and how long to
// wait beforehand.
type Policy interface {
	Retry(try int) (bool, time.Duration)
}

type backoff struct {
	initial, max time.Duration
	factor       float64
	maxTries     int
}

// Backoff returns a Policy that waits initial on the first retry,
// multiplying by factor on each subsequent try up to max, and gives up
// after maxTries attempts (maxTries <= 0 means unlimited).
func Backoff(initial, max time.Duration, factor float64, maxTries int) Policy {
	return &backoff{initial: initial, max: max, factor: factor, maxTries: maxTries}
}

func (b *backoff) Retry(try int) (bool, time.Duration) {
	if b.maxTries > 0 && try >= b.maxTries {
		return false, 0
	}
	wait := b.initial
	for i := 0; i < try; i++ {
		wait = time.Duration(float64(wait) * b.factor)
		if wait > b.max {
			wait = b.max
			break
		}
	}
	return true, wait
}

// Wait sleeps according to policy for the given try number, or returns an
// error if the policy gives up or ctx is canceled first.
func Wait(ctx context.Context, policy Policy, try int) error {
	keepGoing, wait := policy.Retry(try)
	if !keepGoing {
		return errors.E(errors.IO, "retry budget exhausted")
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
