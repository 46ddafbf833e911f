package hub

import (
	"context"
	"encoding/json"
)

// Conn is one live full-duplex connection to the hub.
type Conn interface {
	// Invoke sends a named call with positional arguments and returns the raw
	// reply payload.
	Invoke(ctx context.Context, target string, args []any) (json.RawMessage, error)

	// Close tears the connection down. Idempotent.
	Close() error

	// Done is closed when the connection dies, expectedly or not.
	Done() <-chan struct{}

	// Err returns the close reason after Done is closed; nil for a clean,
	// locally initiated close.
	Err() error
}

// Transport establishes hub connections. The token is obtained freshly by the
// Manager immediately before each Dial; implementations present it during the
// handshake.
type Transport interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// TokenSource supplies a freshly computed session token at handshake time.
// An empty token means no credential is available (not logged in, or renewal
// failed); Dial is not attempted in that case.
type TokenSource interface {
	HandshakeToken(ctx context.Context) string
}
