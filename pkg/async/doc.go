// Package async provides a small generic Future used to share the outcome of
// a single in-flight operation between concurrent callers.
//
// The realtime client relies on it in two places: credential renewal and
// connection establishment, where the first caller installs a Future and every
// concurrent caller awaits the same one instead of duplicating network work.
// The admission queue also uses an unresolved Future as the deferred result
// handle for each queued operation.
//
// A Future is resolved exactly once. Await blocks indefinitely, AwaitContext
// respects caller cancellation without stopping the shared operation, and
// AwaitWithTimeout gives up after a fixed duration with ErrTimeout.
//
// # Usage
//
//	f := async.Run(ctx, func(ctx context.Context) (string, error) {
//	    return renewToken(ctx)
//	})
//	token, err := f.Await()
package async
