package admission

// EnqueueOption configures a single submission.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	bypass bool
}

// WithBypass executes the operation immediately, without counting it against
// the sliding window. Reserved for traffic the server exempts from its
// ceiling, such as connection handshakes.
func WithBypass() EnqueueOption {
	return func(o *enqueueOptions) { o.bypass = true }
}
