package realtime

import (
	"context"

	"github.com/novellium/realtime/pkg/admission"
)

// Invoke performs a named hub call with positional arguments and decodes the
// enveloped reply into T. The type parameter is the return-shape witness that
// directs null handling (see Envelope): map- and slice-shaped expectations
// receive empty collections for absent payloads.
//
// The call is counted against the sliding-window admission policy and may
// therefore wait for window capacity before going out on the wire. Failures
// surface as *NetworkError, *ServerError, *ProtocolError or *AuthError.
func Invoke[T any](ctx context.Context, c *Client, target string, args ...any) (T, error) {
	raw, err := c.rawInvoke(ctx, target, args)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeReply[T](raw)
}

// InvokeBypass performs a named hub call without counting it against the
// admission window. Reserved for traffic the server exempts from its rate
// ceiling.
func InvokeBypass[T any](ctx context.Context, c *Client, target string, args ...any) (T, error) {
	raw, err := c.rawInvoke(ctx, target, args, admission.WithBypass())
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeReply[T](raw)
}
