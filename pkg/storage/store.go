package storage

import (
	"context"
	"time"
)

// Store is the durable key-value collaborator used by the credential manager
// to persist the long-lived refresh secret and the cached session token.
//
// Get returns ErrNotFound when the key is absent. A zero TTL means the value
// does not expire.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
