package admission

import (
	"context"
	"log/slog"
	"time"

	"github.com/novellium/realtime/pkg/async"
)

// Operation is a unit of work submitted through the queue.
type Operation func(ctx context.Context) (any, error)

// Config holds the admission policy. Defaults reproduce the server's ceiling
// of 5 requests per 5 second window.
type Config struct {
	Limit      int           `env:"ADMISSION_LIMIT" envDefault:"5"`
	Window     time.Duration `env:"ADMISSION_WINDOW" envDefault:"5s"`
	BufferSize int           `env:"ADMISSION_BUFFER_SIZE" envDefault:"256"`
}

// DefaultConfig returns the queue defaults.
func DefaultConfig() Config {
	return Config{
		Limit:      5,
		Window:     5 * time.Second,
		BufferSize: 256,
	}
}

type pending struct {
	ctx    context.Context
	op     Operation
	result *async.Future[any]
}

// Queue is a standalone sliding-window rate limiter wrapping arbitrary
// asynchronous operations. It knows nothing about tokens or connections.
//
// Operations are admitted in FIFO submission order by a single drain
// goroutine; once admitted they run concurrently, so completion order is
// unconstrained. An admission timestamp is recorded before the operation
// starts, which keeps the count conservative with respect to the limit.
type Queue struct {
	cfg  Config
	log  *slog.Logger
	ops  chan *pending
	done chan struct{}

	// timestamps is owned exclusively by the drain goroutine.
	timestamps []time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithConfig overrides the default admission policy.
func WithConfig(cfg Config) Option {
	return func(q *Queue) {
		if cfg.Limit > 0 {
			q.cfg.Limit = cfg.Limit
		}
		if cfg.Window > 0 {
			q.cfg.Window = cfg.Window
		}
		if cfg.BufferSize > 0 {
			q.cfg.BufferSize = cfg.BufferSize
		}
	}
}

// WithLogger sets the queue's logger.
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) {
		if log != nil {
			q.log = log
		}
	}
}

// New creates a queue and starts its drain goroutine.
func New(opts ...Option) *Queue {
	q := &Queue{
		cfg:  DefaultConfig(),
		log:  slog.Default(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.ops = make(chan *pending, q.cfg.BufferSize)
	q.timestamps = make([]time.Time, 0, q.cfg.Limit)

	go q.drain()

	return q
}

// Close stops the drain goroutine. Operations not yet admitted fail with
// ErrQueueClosed; already-admitted operations run to completion.
func (q *Queue) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// Enqueue submits op and blocks until it completes or ctx is done. A caller
// abandoning the wait does not stop the operation: it still runs and its
// result is discarded.
func (q *Queue) Enqueue(ctx context.Context, op Operation, opts ...EnqueueOption) (any, error) {
	var eo enqueueOptions
	for _, opt := range opts {
		opt(&eo)
	}

	// Bypassed operations execute immediately, uncounted.
	if eo.bypass {
		return op(ctx)
	}

	p := &pending{
		// Detach execution from the submitting caller; abandonment must not
		// cancel an operation that may already have gone out on the wire.
		ctx:    context.WithoutCancel(ctx),
		op:     op,
		result: async.NewFuture[any](),
	}

	select {
	case q.ops <- p:
		// The buffered send also succeeds against a closed queue whose drain
		// goroutine is gone; re-check so the caller is not left awaiting a
		// future nothing will resolve.
		select {
		case <-q.done:
			return nil, ErrQueueClosed
		default:
		}
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return p.result.AwaitContext(ctx)
}

// Do submits a typed operation through the queue. It exists because methods
// cannot introduce type parameters.
func Do[T any](ctx context.Context, q *Queue, op func(context.Context) (T, error), opts ...EnqueueOption) (T, error) {
	res, err := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return op(ctx)
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := res.(T)
	return out, nil
}

// drain is the single queue-draining goroutine. Being the only reader of the
// pending channel and the only writer of the timestamp list, it needs no
// reentrancy guard.
func (q *Queue) drain() {
	for {
		select {
		case <-q.done:
			q.failRemaining()
			return
		case p := <-q.ops:
			if !q.admit(p) {
				q.failRemaining()
				return
			}
		}
	}
}

// admit blocks until window capacity allows p, then records the admission
// timestamp and starts the operation without waiting for it to finish.
// Returns false when the queue closed while waiting.
func (q *Queue) admit(p *pending) bool {
	for {
		now := time.Now()
		q.prune(now)

		if len(q.timestamps) < q.cfg.Limit {
			q.timestamps = append(q.timestamps, now)
			go q.run(p)
			return true
		}

		// At capacity: sleep exactly until the oldest timestamp ages out.
		wait := q.cfg.Window - now.Sub(q.timestamps[0])
		if wait < 0 {
			wait = 0
		}

		select {
		case <-q.done:
			p.result.Resolve(nil, ErrQueueClosed)
			return false
		case <-time.After(wait):
		}
	}
}

// prune discards admission timestamps that have aged out of the window.
func (q *Queue) prune(now time.Time) {
	cutoff := now.Add(-q.cfg.Window)
	i := 0
	for i < len(q.timestamps) && !q.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		q.timestamps = append(q.timestamps[:0], q.timestamps[i:]...)
	}
}

func (q *Queue) run(p *pending) {
	res, err := p.op(p.ctx)
	p.result.Resolve(res, err)
}

// failRemaining resolves every queued-but-unadmitted operation with
// ErrQueueClosed.
func (q *Queue) failRemaining() {
	for {
		select {
		case p := <-q.ops:
			p.result.Resolve(nil, ErrQueueClosed)
		default:
			return
		}
	}
}
