package querycache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/client"
)

// Update is a value to store under Key after a successful call.
type Update struct {
	Key   Key
	Value any
}

// Rule configures caching for one operation. Every field is optional.
// Requests and responses are the validated values the Caller publishes.
type Rule struct {
	// QueryKey overrides the default [operation, request] key.
	QueryKey func(req any) Key
	// Invalidates lists key prefixes to drop after a successful call.
	Invalidates func(req, resp any) []Key
	// ErrorInvalidates lists key prefixes to drop after a failed call.
	ErrorInvalidates func(req any, err error) []Key
	// UpdateOnSuccess lists entries to write after a successful call.
	UpdateOnSuccess func(req, resp any) []Update
}

// Rules maps operation names to their rules.
type Rules map[string]Rule

// Client reads through a Cache and applies Rules to every call made with
// its Caller, whether or not the call went through the Client.
type Client[M any] struct {
	cache  *Cache
	caller *client.Caller[M]
	rules  Rules
	group  singleflight.Group
	stop   func()
}

// Bind subscribes to caller's notification topics. Close unsubscribes.
func Bind[M any](cache *Cache, caller *client.Caller[M], rules Rules) *Client[M] {
	c := &Client[M]{cache: cache, caller: caller, rules: rules}
	unsubSucceeded := caller.Succeeded().Subscribe(c.onSuccess)
	unsubFailed := caller.Failed().Subscribe(c.onFailure)
	c.stop = func() {
		unsubSucceeded()
		unsubFailed()
	}
	return c
}

func (c *Client[M]) Close() { c.stop() }

func (c *Client[M]) Cache() *Cache { return c.cache }

// KeyFor returns the cache key of a call. QueryKey sees the validated
// request, the same value the rules receive; a request that does not
// validate is keyed as given.
func (c *Client[M]) KeyFor(name string, req any) Key {
	if v, err := c.parse(name, req); err == nil {
		req = v
	}
	return c.key(name, req)
}

func (c *Client[M]) key(name string, req any) Key {
	if r, ok := c.rules[name]; ok && r.QueryKey != nil {
		return r.QueryKey(req)
	}
	return Key{name, req}
}

func (c *Client[M]) parse(name string, req any) (any, error) {
	def, err := c.caller.Catalog().Lookup(name)
	if err != nil {
		return nil, err
	}
	return def.ParseRequest(name, req)
}

// Query returns the cached result for (name, req) or calls and caches it.
// Concurrent queries for the same key share one call. Errors are not
// cached.
func (c *Client[M]) Query(ctx context.Context, name string, req any) (any, error) {
	parsed, err := c.parse(name, req)
	if err != nil {
		// the Caller reports it with its stage and formatter
		return c.caller.Call(ctx, name, req)
	}
	key := c.key(name, parsed)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	id, _ := encode(key)
	epoch := c.cache.epoch.Load()
	v, err, _ := c.group.Do(id, func() (any, error) {
		resp, err := c.caller.Call(ctx, name, req)
		if err != nil {
			return nil, err
		}
		c.cache.setIfCurrent(epoch, key, resp)
		return resp, nil
	})
	return v, err
}

// Mutate calls through without reading the cache; the bound rules still
// apply to the outcome.
func (c *Client[M]) Mutate(ctx context.Context, name string, req any) (any, error) {
	return c.caller.Call(ctx, name, req)
}

func (c *Client[M]) onSuccess(s api.Success) {
	r, ok := c.rules[s.Operation]
	if !ok {
		return
	}
	if r.Invalidates != nil {
		for _, k := range r.Invalidates(s.Request, s.Response) {
			c.cache.Invalidate(k)
		}
	}
	if r.UpdateOnSuccess != nil {
		for _, u := range r.UpdateOnSuccess(s.Request, s.Response) {
			c.cache.Set(u.Key, u.Value)
		}
	}
}

func (c *Client[M]) onFailure(f api.Failure) {
	r, ok := c.rules[f.Operation]
	if !ok || r.ErrorInvalidates == nil {
		return
	}
	for _, k := range r.ErrorInvalidates(f.Request, f.Err) {
		c.cache.Invalidate(k)
	}
}
