package server

import (
	"context"

	"github.com/unruly-software/api/client"
)

// LocalResolver returns a client.Resolver dispatching straight into d, so a
// Caller can drive a Dispatcher without a transport. newContext builds the
// initial context of each call.
func LocalResolver[M, C any](d *Dispatcher[M, C], newContext func(ctx context.Context) (C, error)) client.Resolver[M] {
	return func(ctx context.Context, req client.Request[M]) (any, error) {
		initial, err := newContext(ctx)
		if err != nil {
			return nil, err
		}
		return d.Dispatch(ctx, req.Operation, initial, req.Input)
	}
}
