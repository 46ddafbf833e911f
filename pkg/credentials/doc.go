// Package credentials implements the token lifecycle for the realtime client:
// a short-lived session token cached in memory and a long-lived refresh
// secret persisted in durable storage, renewed via a single-flight exchange
// against the renewal endpoint.
//
// # Failure semantics
//
// Renewal failures never surface as errors from the token accessors. GetValid,
// EnsureFresh, ForceRefresh and HandshakeToken return an empty string instead,
// and callers branch on emptiness to distinguish "not logged in" from
// "transient failure". Save is the one exception: when it is handed only a
// refresh secret, it performs one renewal immediately and fails loudly so the
// credential-acquisition flow learns about a bad secret right away.
//
// # Two validity windows
//
// The same cached token is read through two staleness tolerances: the
// application window (default 30s) for business callers, and the handshake
// window (default 3s) used by the hub when priming a connection. The
// asymmetry is deliberate; see Config.
//
// # Single flight
//
// At most one network renewal is in flight per process. Concurrent callers
// await the in-flight renewal and observe its outcome, whatever it is.
package credentials
