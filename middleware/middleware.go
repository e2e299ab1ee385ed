// Package middleware wraps client resolvers with cross-cutting behavior.
// Middleware runs inside the Caller, so errors it returns are formatted
// with the resolver stage and published as failures like any other
// resolver error.
package middleware

import (
	"github.com/unruly-software/api/client"
)

type Middleware[M any] func(next client.Resolver[M]) client.Resolver[M]

// Chain composes middlewares so the first one is outermost.
func Chain[M any](middlewares ...Middleware[M]) Middleware[M] {
	return func(next client.Resolver[M]) client.Resolver[M] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Wrap applies middlewares to resolve in Chain order.
func Wrap[M any](resolve client.Resolver[M], middlewares ...Middleware[M]) client.Resolver[M] {
	return Chain(middlewares...)(resolve)
}
