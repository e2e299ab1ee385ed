package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/unruly-software/api/client"
)

// Retryable reports whether an error is worth another attempt: timeouts
// and refused connections.
func Retryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

type RetryOption func(*retryOptions)

type retryOptions struct {
	retryable func(error) bool
	logger    *slog.Logger
}

// RetryIf replaces Retryable as the retry predicate.
func RetryIf(fn func(error) bool) RetryOption {
	return func(o *retryOptions) { o.retryable = fn }
}

func RetryLogger(l *slog.Logger) RetryOption {
	return func(o *retryOptions) { o.logger = l }
}

// Retry re-runs a failed resolve up to maxRetries times with exponential
// backoff starting at baseDelay. Backoff stops early when ctx is done.
func Retry[M any](maxRetries int, baseDelay time.Duration, opts ...RetryOption) Middleware[M] {
	o := retryOptions{retryable: Retryable, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return func(next client.Resolver[M]) client.Resolver[M] {
		return func(ctx context.Context, req client.Request[M]) (any, error) {
			out, err := next(ctx, req)
			for i := 0; i < maxRetries && err != nil && o.retryable(err); i++ {
				o.logger.InfoContext(ctx, "retrying",
					"operation", req.Operation,
					"attempt", i+1,
					"error", err,
				)
				timer := time.NewTimer(baseDelay << i)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
				}
				out, err = next(ctx, req)
			}
			return out, err
		}
	}
}
