package credentials

import "time"

// WithClock overrides the manager's clock in tests.
func WithClock(now func() time.Time) Option {
	return withNow(now)
}
