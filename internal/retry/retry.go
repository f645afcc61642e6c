package retry

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrTooManyAttempts = errors.New("too many retry attempts")

type Callable func(attempt int) error

type retryError struct {
	error
	attempt int
}

func (e *retryError) Unwrap() error {
	return e.error
}

// Error marks err as recoverable, the callable gets called again.
func Error(err error, attempt int) error {
	if err == nil {
		return nil
	}
	return &retryError{error: err, attempt: attempt}
}

type Attempts interface {
	Next() (time.Duration, bool)
	Current() int
}

func Start(ctx context.Context, a Attempts, cb Callable) error {
	for {
		err := cb(a.Current())
		if err == nil {
			return nil
		}

		// callable encountered an unrecoverable error
		var re *retryError
		if !errors.As(err, &re) {
			return errors.Wrapf(err, "retry %d failed", a.Current())
		}

		next, stop := a.Next()
		if stop {
			return errors.Wrapf(ErrTooManyAttempts, "last error: %v", re.error)
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "gave up after attempt %d: %v", re.attempt, re.error)
		case <-time.After(next):
			continue
		}
	}
}

// Incremental calls cb until it succeeds, returns an error not marked with
// Error, or has been called maxAttempts times. The pause before each new
// attempt grows by step. It backs the reconnects of the database connector,
// the Postgres advisory lock polling and the CLI reruns of operations that
// failed on a deadlock or a lock wait timeout.
func Incremental(ctx context.Context, step time.Duration, maxAttempts int, cb Callable) error {
	return Start(ctx, IncrementalAttempts(step, maxAttempts), cb)
}

type incrementalAttempts struct {
	sync.RWMutex
	prev time.Duration
	step time.Duration
	max  int
	curr int
}

func (a *incrementalAttempts) Next() (time.Duration, bool) {
	a.Lock()
	defer a.Unlock()

	a.curr++
	if a.curr > a.max {
		return 0, true
	}

	next := a.prev + a.step
	a.prev = next

	return next, false
}

func (a *incrementalAttempts) Current() int {
	a.RLock()
	defer a.RUnlock()
	return a.curr
}

func IncrementalAttempts(step time.Duration, max int) Attempts {
	return &incrementalAttempts{
		prev: 0,
		step: step,
		max:  max,
		curr: 1,
	}
}
