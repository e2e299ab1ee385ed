package server

import (
	"context"

	"github.com/unruly-software/api/schema"
)

// Typed adapts a handler working on concrete request and response types.
// The validated request data is decoded into Req before fn runs.
func Typed[Req, Resp, M, C any](fn func(ctx context.Context, req Req, in Input[M, C]) (Resp, error)) Handler[M, C] {
	return func(ctx context.Context, in Input[M, C]) (any, error) {
		req, err := schema.Decode[Req](in.Data)
		if err != nil {
			return nil, err
		}
		return fn(ctx, req, in)
	}
}
