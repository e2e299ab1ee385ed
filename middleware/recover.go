package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unruly-software/api/client"
)

// Recover turns a panicking resolver into an error.
func Recover[M any](logger *slog.Logger) Middleware[M] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next client.Resolver[M]) client.Resolver[M] {
		return func(ctx context.Context, req client.Request[M]) (out any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "resolver panicked", "operation", req.Operation, "panic", r)
					out, err = nil, fmt.Errorf("resolver panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}
