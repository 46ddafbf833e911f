package admission

import "errors"

var (
	// ErrQueueClosed indicates the queue was closed before the operation was admitted.
	ErrQueueClosed = errors.New("admission: queue closed")
)
