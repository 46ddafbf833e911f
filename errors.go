package realtime

import "fmt"

// NetworkError indicates a transport failure or timeout during connect or
// invoke. Wraps the underlying cause.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError indicates a syntactically valid envelope whose success flag is
// false. Msg and Status carry the server's fields verbatim.
type ServerError struct {
	Msg    string
	Status int
}

func (e *ServerError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("server error (status %d): %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("server error: %s", e.Msg)
}

// ProtocolError indicates a reply that cannot be interpreted as a valid
// envelope: malformed shape, missing success flag, or an undecodable
// compressed payload.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// AuthError indicates no usable credential: no refresh secret present, or a
// renewal definitively rejected.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "auth error: " + e.Reason
}
