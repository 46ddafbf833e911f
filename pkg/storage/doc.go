// Package storage provides the durable key-value store backing the credential
// manager: the long-lived refresh secret and the cached session token are the
// only two keys this module persists.
//
// The Store interface is deliberately tiny (Get/Set/Delete). Two
// implementations ship with the module:
//
//   - RedisStore wraps a go-redis client; Connect establishes the connection
//     with retry, and Healthcheck integrates it into liveness probes.
//   - MemoryStore keeps values in process memory, for tests and for hosts
//     that manage credential durability elsewhere.
//
// Both values are opaque strings at this layer; interpretation (expiry-claim
// parsing, renewal) lives entirely in the credentials package.
package storage
