package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/unruly-software/api/client"
)

func Logging[M any](logger *slog.Logger) Middleware[M] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next client.Resolver[M]) client.Resolver[M] {
		return func(ctx context.Context, req client.Request[M]) (any, error) {
			start := time.Now()
			out, err := next(ctx, req)
			attrs := []any{
				"operation", req.Operation,
				"call_id", req.CallID,
				"duration", time.Since(start),
			}
			if err != nil {
				logger.WarnContext(ctx, "resolve failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "resolved", attrs...)
			}
			return out, err
		}
	}
}
