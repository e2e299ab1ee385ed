package middleware

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/unruly-software/api/client"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimit rejects calls beyond r per second with the given burst.
func RateLimit[M any](r float64, burst int) Middleware[M] {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next client.Resolver[M]) client.Resolver[M] {
		return func(ctx context.Context, req client.Request[M]) (any, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}

// KeyedLimiter applies a token bucket per key and periodically evicts idle
// keys. A nil *KeyedLimiter allows everything.
type KeyedLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const evictEvery = 512

// NewKeyedLimiter returns nil when rps or burst is not positive.
func NewKeyedLimiter(rps float64, burst int, idleTTL time.Duration) *KeyedLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byKey:   make(map[string]*limiterEntry),
	}
}

// Allow consumes one token for key at now. Blank keys are not limited.
func (l *KeyedLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%evictEvery == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

// Len is the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

// ByOperation keys a limiter on the operation name.
func ByOperation[M any](req client.Request[M]) string { return req.Operation }

// KeyedRateLimit rejects calls whose key has run out of tokens.
func KeyedRateLimit[M any](l *KeyedLimiter, key func(client.Request[M]) string) Middleware[M] {
	return func(next client.Resolver[M]) client.Resolver[M] {
		return func(ctx context.Context, req client.Request[M]) (any, error) {
			if !l.Allow(key(req), time.Now()) {
				return nil, ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}
