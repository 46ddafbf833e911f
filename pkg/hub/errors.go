package hub

import "errors"

var (
	// ErrTransportRequired indicates no transport was provided.
	ErrTransportRequired = errors.New("hub: transport is required")

	// ErrTokenSourceRequired indicates no token source was provided.
	ErrTokenSourceRequired = errors.New("hub: token source is required")

	// ErrNoToken indicates the token source produced no credential, so no
	// handshake was attempted.
	ErrNoToken = errors.New("hub: no session token available")

	// ErrDialFailed indicates the websocket handshake failed.
	ErrDialFailed = errors.New("hub: dial failed")

	// ErrNotConnected indicates an invocation was attempted without a live connection.
	ErrNotConnected = errors.New("hub: not connected")

	// ErrConnectionClosed indicates the connection died while an invocation
	// was in flight.
	ErrConnectionClosed = errors.New("hub: connection closed")

	// ErrSendFailed indicates an invocation frame could not be written.
	ErrSendFailed = errors.New("hub: send failed")

	// ErrInvocationFailed indicates the hub reported an invocation-level error.
	ErrInvocationFailed = errors.New("hub: invocation failed")

	// ErrStopped indicates Stop pre-empted an in-flight connection attempt.
	ErrStopped = errors.New("hub: stopped")

	// ErrReconnectExhausted indicates the backoff schedule completed without
	// reestablishing the connection.
	ErrReconnectExhausted = errors.New("hub: reconnect schedule exhausted")
)
