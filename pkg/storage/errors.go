package storage

import "errors"

var (
	// ErrNotFound indicates the requested key is absent from the store.
	ErrNotFound = errors.New("storage: key not found")

	// ErrInvalidConnectionURL indicates the Redis connection string could not be parsed.
	ErrInvalidConnectionURL = errors.New("storage: invalid redis connection url")

	// ErrRedisNotReady indicates all connection attempts to Redis failed.
	ErrRedisNotReady = errors.New("storage: redis is not ready")
)
