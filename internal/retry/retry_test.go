package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	t.Run("single successful try", func(t *testing.T) {
		runs := 0

		err := Incremental(context.Background(), 2*time.Millisecond, 5, func(attempt int) error {
			runs++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, runs)
	})

	t.Run("success from the third time", func(t *testing.T) {
		runs := 0

		err := Incremental(context.Background(), 2*time.Millisecond, 4, func(attempt int) error {
			runs++
			if attempt < 3 {
				return Error(errors.New("attempt failed"), attempt)
			}

			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, runs)
	})

	t.Run("fails when attempt limit is exhausted", func(t *testing.T) {
		runs := 0

		err := Incremental(context.Background(), 2*time.Millisecond, 4, func(attempt int) error {
			runs++
			if attempt < 5 {
				return Error(errors.New("attempt failed"), attempt)
			}

			return nil
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTooManyAttempts))
		assert.Contains(t, err.Error(), "attempt failed")
		assert.Equal(t, 4, runs)
	})

	t.Run("fails if not an instance of retry error is returned from callback", func(t *testing.T) {
		runs := 0

		err := Incremental(context.Background(), 2*time.Millisecond, 4, func(attempt int) error {
			runs++
			return errors.New("some error")
		})

		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrTooManyAttempts))
		assert.Equal(t, 1, runs)
	})

	t.Run("a single attempt is never retried", func(t *testing.T) {
		runs := 0

		err := Incremental(context.Background(), time.Millisecond, 1, func(attempt int) error {
			runs++
			return Error(errors.New("deadlock detected"), attempt)
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTooManyAttempts))
		assert.Equal(t, 1, runs)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		runs := 0

		err := Incremental(ctx, 50*time.Millisecond, 10, func(attempt int) error {
			runs++
			cancel()
			return Error(errors.New("attempt failed"), attempt)
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, runs)
	})
}
