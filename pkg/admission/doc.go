// Package admission implements a sliding-window request rate limiter wrapping
// arbitrary asynchronous operations. The remote service enforces a hard
// ceiling (by default 5 requests per 5 seconds); this queue guarantees the
// client never exceeds it, even under bursty submission.
//
// Operations are admitted in FIFO order by a single drain goroutine. The
// admission timestamp is recorded before an operation starts executing, so
// the window count is conservative. When the window is at capacity the drain
// goroutine sleeps exactly until the oldest timestamp ages out, then
// reevaluates. Admitted operations run concurrently; completion order is
// unconstrained.
//
// WithBypass skips the window entirely for exempt traffic.
//
// # Usage
//
//	q := admission.New()
//	defer q.Close()
//
//	reply, err := admission.Do(ctx, q, func(ctx context.Context) (json.RawMessage, error) {
//	    return conn.Invoke(ctx, "GetShelf", nil)
//	})
package admission
