package async

import (
	"context"
	"sync"
	"time"
)

// Future represents the eventual result of an asynchronous operation.
// It is resolved exactly once; every Await observes the same outcome.
type Future[T any] struct {
	result T
	err    error
	once   sync.Once
	done   chan struct{}
}

// NewFuture creates an unresolved Future. The caller is responsible for
// resolving it exactly once via Resolve.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve completes the future with the given result and error.
// Subsequent calls are no-ops.
func (f *Future[T]) Resolve(result T, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Await blocks until the future is resolved and returns its outcome.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext blocks until the future is resolved or the context is done.
// The underlying operation is not stopped by an abandoned caller; it runs to
// completion and resolves the future for any remaining waiters.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout blocks until the future is resolved or the timeout elapses.
func (f *Future[T]) AwaitWithTimeout(timeout time.Duration) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-time.After(timeout):
		var zero T
		return zero, ErrTimeout
	}
}

// IsComplete reports whether the future has been resolved, without blocking.
func (f *Future[T]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Run executes fn in its own goroutine and returns a Future resolved with
// its outcome. If the context is already cancelled the future resolves
// immediately with the context error.
func Run[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := NewFuture[T]()

	go func() {
		select {
		case <-ctx.Done():
			var zero T
			f.Resolve(zero, ctx.Err())
			return
		default:
		}

		result, err := fn(ctx)
		f.Resolve(result, err)
	}()

	return f
}
