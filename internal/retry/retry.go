// Package retry runs provider calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// PermanentError wraps an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Do will not retry it.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// AfterError asks Do to wait at least Wait before the next attempt, as
// signalled by an upstream Retry-After header.
type AfterError struct {
	Err  error
	Wait time.Duration
}

func (e *AfterError) Error() string { return e.Err.Error() }
func (e *AfterError) Unwrap() error { return e.Err }

// After wraps err with a minimum wait.
func After(err error, wait time.Duration) error {
	return &AfterError{Err: err, Wait: wait}
}

// Policy bounds the retry loop.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy suits short-lived provider calls that share a deadline.
var DefaultPolicy = Policy{Attempts: 2, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}

// Do calls fn until it succeeds, returns a *PermanentError, attempts run
// out, or ctx ends. Delay doubles per attempt with +-25% jitter. A wait
// that would outlast the context deadline ends the loop early with the
// last error instead of sleeping into a certain timeout.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	var err error
	delay := p.BaseDelay

	for attempt := 0; attempt < p.Attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}

		if attempt == p.Attempts-1 {
			break
		}

		sleep := jitter(delay)
		var ae *AfterError
		if errors.As(err, &ae) && ae.Wait > sleep {
			sleep = ae.Wait
		}
		if p.MaxDelay > 0 && sleep > p.MaxDelay {
			sleep = p.MaxDelay
		}
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < sleep {
			return unwrapAfter(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay *= 2
	}

	return unwrapAfter(err)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	j := int64(d / 4)
	return d - time.Duration(j) + time.Duration(rand.Int64N(2*j+1))
}

func unwrapAfter(err error) error {
	var ae *AfterError
	if errors.As(err, &ae) {
		return ae.Err
	}
	return err
}
