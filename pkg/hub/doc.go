// Package hub owns the persistent full-duplex connection to the remote
// service's named-procedure RPC surface and the state machine around it.
//
// # Lifecycle
//
//	Disconnected --Init--> Connecting --success--> Connected
//	Connecting --failure--> Disconnected (error surfaced to the initiator)
//	Connected --unexpected close--> Reconnecting --success--> Connected
//	any state --Stop--> Disconnected
//
// Init is idempotent under concurrency: callers arriving while an attempt is
// underway await that same attempt. Every handshake, initial or reconnect,
// presents a token computed freshly by the TokenSource at that moment. An
// unexpected close triggers the backoff schedule (0s, 5s, 10s, 20s, 30s by
// default); exhausting it leaves the connection closed and subscribers
// notified with ErrReconnectExhausted.
//
// The default transport speaks JSON invocation/completion frames over a
// websocket, with client pings and a liveness read deadline of roughly twice
// the server keep-alive interval so silently dead connections are detected
// rather than hung.
//
// Lifecycle transitions are observable via Subscribe; events are dropped for
// slow consumers rather than blocking the connection machinery.
package hub
