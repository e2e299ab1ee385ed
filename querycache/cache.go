// Package querycache caches call results under segment keys and keeps them
// in step with mutations observed on a Caller's notification topics.
//
// A key is a list of segments, by default [operation, request]. Invalidating
// a key removes every entry whose key starts with it, so invalidating
// ["getUser"] drops every cached getUser result.
package querycache

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/unruly-software/api/schema"
)

// Key is an ordered list of segments. Segments compare by their JSON form,
// with object keys sorted.
type Key []any

const DefaultMaxEntries = 1024

type entry struct {
	segments []string
	value    any
	stored   time.Time
}

type Cache struct {
	entries *lru.Cache[string, *entry]
	ttl     time.Duration
	now     func() time.Time
	// epoch changes on every invalidation so fetches that started before
	// it do not store stale results.
	epoch atomic.Uint64
}

type Option func(*config)

type config struct {
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// WithMaxEntries bounds the cache; least recently used entries are evicted.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// WithTTL expires entries d after they were stored. Zero keeps them until
// invalidated or evicted.
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

func withClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func New(opts ...Option) (*Cache, error) {
	cfg := config{maxEntries: DefaultMaxEntries, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	entries, err := lru.New[string, *entry](cfg.maxEntries)
	if err != nil {
		return nil, fmt.Errorf("querycache: %w", err)
	}
	return &Cache{entries: entries, ttl: cfg.ttl, now: cfg.now}, nil
}

// Get returns the value stored under exactly key.
func (c *Cache) Get(key Key) (any, bool) {
	id, _ := encode(key)
	e, ok := c.entries.Get(id)
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.stored) > c.ttl {
		c.entries.Remove(id)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous value.
func (c *Cache) Set(key Key, value any) {
	id, segments := encode(key)
	c.entries.Add(id, &entry{segments: segments, value: value, stored: c.now()})
}

func (c *Cache) setIfCurrent(epoch uint64, key Key, value any) {
	if c.epoch.Load() == epoch {
		c.Set(key, value)
	}
}

// Invalidate removes every entry whose key starts with prefix and returns
// how many were removed. An empty prefix clears the cache.
func (c *Cache) Invalidate(prefix Key) int {
	c.epoch.Add(1)
	_, want := encode(prefix)
	removed := 0
	for _, id := range c.entries.Keys() {
		e, ok := c.entries.Peek(id)
		if !ok || !hasPrefix(e.segments, want) {
			continue
		}
		if c.entries.Remove(id) {
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int { return c.entries.Len() }

func encode(key Key) (string, []string) {
	segments := make([]string, len(key))
	for i, seg := range key {
		segments[i] = canonical(seg)
	}
	return "[" + strings.Join(segments, ",") + "]", segments
}

// canonical encodes seg through its decoded JSON form, so a struct and the
// equivalent map produce the same segment.
func canonical(seg any) string {
	if v, err := schema.Normalize(seg); err == nil {
		seg = v
	}
	b, err := json.Marshal(seg)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(seg))
	}
	return string(b)
}

func hasPrefix(segments, prefix []string) bool {
	if len(prefix) > len(segments) {
		return false
	}
	for i := range prefix {
		if segments[i] != prefix[i] {
			return false
		}
	}
	return true
}
