// Package realtime is a client for an authenticated, persistent, full-duplex
// RPC session against a remote hub, built for two constraints: credentials
// expire and must be silently renewed without duplicating network work or
// racing concurrent callers, and the remote service imposes a strict
// request-rate ceiling that must never be exceeded.
//
// The client composes four parts, each usable on its own:
//
//   - credentials.Manager owns the session token and the persisted refresh
//     secret, renewing with single-flight semantics.
//   - hub.Manager owns the persistent connection and its lifecycle state
//     machine, reconnecting with backoff after unexpected closes.
//   - admission.Queue is a sliding-window rate limiter admitting operations
//     in FIFO order.
//   - Invoke submits a named call through the queue, secures the connection,
//     and decodes the uniform {Success, Msg, Status, Response} envelope into
//     a typed result.
//
// # Usage
//
//	store := storage.NewMemoryStore()
//	client, err := realtime.New(realtime.Config{
//	    HubURL:     "wss://api.example.com/hub",
//	    RenewalURL: "https://api.example.com/auth/renew",
//	}, store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// A login flow hands over the credential pair once:
//	if err := client.Credentials().Save(ctx, token, refreshSecret); err != nil {
//	    log.Fatal(err)
//	}
//
//	shelf, err := realtime.Invoke[map[string]any](ctx, client, "GetShelf", shelfID)
//
// This package deliberately does not interpret business payloads, implement
// authorization policy, or provide offline operation; it is a thin,
// correctness-critical transport and credential layer. Errors from Invoke are
// meant to be caught and rendered by the calling layer.
package realtime
