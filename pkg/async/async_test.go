package async_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/novellium/realtime/pkg/async"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("resolves with result", func(t *testing.T) {
		t.Parallel()

		f := async.Run(context.Background(), func(ctx context.Context) (int, error) {
			return 42, nil
		})

		result, err := f.Await()
		require.NoError(t, err)
		assert.Equal(t, 42, result)
	})

	t.Run("resolves with error", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("boom")
		f := async.Run(context.Background(), func(ctx context.Context) (int, error) {
			return 0, wantErr
		})

		_, err := f.Await()
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("pre-cancelled context resolves immediately", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		f := async.Run(ctx, func(ctx context.Context) (int, error) {
			t.Error("function must not run with a pre-cancelled context")
			return 1, nil
		})

		_, err := f.Await()
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFutureResolveOnce(t *testing.T) {
	t.Parallel()

	f := async.NewFuture[string]()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Resolve("first", nil)
		}()
	}
	wg.Wait()

	f.Resolve("second", errors.New("ignored"))

	result, err := f.Await()
	require.NoError(t, err)
	assert.Equal(t, "first", result)
}

func TestFutureSharedOutcome(t *testing.T) {
	t.Parallel()

	f := async.NewFuture[int]()

	const waiters = 8
	results := make(chan int, waiters)
	for range waiters {
		go func() {
			v, err := f.Await()
			require.NoError(t, err)
			results <- v
		}()
	}

	f.Resolve(7, nil)

	for range waiters {
		assert.Equal(t, 7, <-results)
	}
}

func TestAwaitWithTimeout(t *testing.T) {
	t.Parallel()

	f := async.NewFuture[int]()

	_, err := f.AwaitWithTimeout(20 * time.Millisecond)
	assert.ErrorIs(t, err, async.ErrTimeout)

	f.Resolve(5, nil)
	result, err := f.AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, result)
}

func TestAwaitContext(t *testing.T) {
	t.Parallel()

	f := async.NewFuture[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.AwaitContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// An abandoned caller does not stop the operation: the future still
	// resolves normally for remaining waiters.
	f.Resolve(3, nil)
	result, err := f.AwaitContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result)
}

func TestIsComplete(t *testing.T) {
	t.Parallel()

	f := async.NewFuture[int]()
	assert.False(t, f.IsComplete())

	f.Resolve(1, nil)
	assert.True(t, f.IsComplete())
}
