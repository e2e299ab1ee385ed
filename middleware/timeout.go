package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/unruly-software/api/client"
)

var ErrTimeout = errors.New("request timed out")

// Timeout bounds each resolve. The resolver sees a context with the
// deadline; if it ignores it, the call still returns ErrTimeout on time.
func Timeout[M any](d time.Duration) Middleware[M] {
	return func(next client.Resolver[M]) client.Resolver[M] {
		return func(ctx context.Context, req client.Request[M]) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct {
				out any
				err error
			}
			done := make(chan result, 1)
			go func() {
				out, err := next(ctx, req)
				done <- result{out, err}
			}()

			select {
			case r := <-done:
				return r.out, r.err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, ErrTimeout
				}
				return nil, ctx.Err()
			}
		}
	}
}
