// Package cache provides a TTL-memoized lookup primitive.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value      V
	computedAt time.Time
	ttl        time.Duration
}

func (e entry[V]) freshAt(now time.Time) bool {
	return !now.After(e.computedAt.Add(e.ttl))
}

// Observer is notified of every lookup with the cache name and whether it hit.
type Observer func(name string, hit bool)

type options struct {
	now      func() time.Time
	observer Observer
}

// Option configures a TTL cache.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithObserver registers a hit/miss observer.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// TTL memoizes computed values per key for a caller-chosen time-to-live.
//
// A value is never returned after computedAt+ttl has passed. Failed
// computations are not cached. Concurrent misses on the same key are
// coalesced, so compute runs once per key per window even under load.
// Entries are replaced wholesale and never edited in place. A TTL lives as
// long as the component that owns it; there is no background eviction.
type TTL[K comparable, V any] struct {
	name    string
	opts    options
	group   singleflight.Group
	mu      sync.Mutex
	entries map[K]entry[V]
}

// New creates an empty cache. The name is reported to the observer.
func New[K comparable, V any](name string, opts ...Option) *TTL[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[K, V]{
		name:    name,
		opts:    o,
		entries: make(map[K]entry[V]),
	}
}

// GetOrCompute returns the cached value for key while it is fresh and
// otherwise calls compute, caching its result for ttl. Errors from compute
// are returned unchanged.
//
// compute is shared by every concurrent caller of key, so it receives ctx
// without its cancellation; deadlines belong in the transport. A caller
// whose ctx ends stops waiting and gets ctx.Err() while the computation
// finishes for the others.
func (c *TTL[K, V]) GetOrCompute(ctx context.Context, key K, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	var zero V
	if v, ok := c.lookup(key); ok {
		c.observe(true)
		return v, nil
	}
	c.observe(false)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%#v", key), func() (any, error) {
		// A concurrent caller may have stored the value while we queued.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := compute(detached)
		if err != nil {
			return nil, err
		}
		c.store(key, entry[V]{value: v, computedAt: c.opts.now(), ttl: ttl})
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// Invalidate drops the entry for key.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, fresh or not.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL[K, V]) lookup(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.freshAt(c.opts.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTL[K, V]) store(key K, e entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, old := range c.entries {
		if !old.freshAt(e.computedAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = e
}

func (c *TTL[K, V]) observe(hit bool) {
	if c.opts.observer != nil {
		c.opts.observer(c.name, hit)
	}
}
