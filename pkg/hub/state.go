package hub

// State is the connection lifecycle state. Exactly one Manager instance holds
// this state process-wide.
type State int32

const (
	// Disconnected means no transport is live and no attempt is underway.
	Disconnected State = iota
	// Connecting means an explicit Init attempt is underway.
	Connecting
	// Connected means the hub connection is live.
	Connected
	// Reconnecting means a previously live connection closed unexpectedly and
	// the backoff schedule is being walked.
	Reconnecting
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// StateChange is the event emitted on every lifecycle transition. Err is set
// when the transition was caused by a failure (an unexpected close, or a
// reconnect schedule exhausting without success).
type StateChange struct {
	From State
	To   State
	Err  error
}
