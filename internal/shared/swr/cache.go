package swr

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads the authoritative value for a key.
type Fetcher[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value   V
	present bool
	// version increases on every store and invalidation; a fetch started at
	// an older version must not overwrite a newer value.
	version uint64
	writeMu sync.Mutex
}

// Cache is a keyed revalidating cache. Reads are served from memory when a
// value is present and coalesced into one fetch when it is not. Writes go
// through Mutate, which serializes per key and replaces the cached value
// with whatever the write operation returned.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	group   singleflight.Group
}

// New returns an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[string]*entry[V])}
}

func (c *Cache[V]) entry(key string) *entry[V] {
	e, ok := c.entries[key]
	if !ok {
		e = &entry[V]{}
		c.entries[key] = e
	}
	return e
}

// Peek returns the cached value without fetching.
func (c *Cache[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.present {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Get returns the cached value for key, fetching it when absent.
func (c *Cache[V]) Get(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}
	return c.Revalidate(ctx, key, fetch)
}

// Revalidate fetches key unconditionally. Concurrent revalidations of the
// same key share one fetch. The fetched value is stored only if no write
// or invalidation happened while it was in flight; otherwise the newer
// cached value, if any, is returned and the fetched one is discarded.
func (c *Cache[V]) Revalidate(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	c.mu.Lock()
	started := c.entry(key).version
	c.mu.Unlock()

	ch := c.group.DoChan(key, func() (any, error) {
		// Shared by every waiter; one caller giving up must not fail the rest.
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		e := c.entry(key)
		if e.version != started {
			if e.present {
				return e.value, nil
			}
			return v, nil
		}
		e.value = v
		e.present = true
		e.version++
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Mutate runs op while holding the write lock for key and, on success,
// replaces the cached value with op's result. On failure the cached value
// is left as it was.
func (c *Cache[V]) Mutate(ctx context.Context, key string, op Fetcher[V]) (V, error) {
	c.mu.Lock()
	e := c.entry(key)
	c.mu.Unlock()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		var zero V
		return zero, err
	}

	v, err := op(ctx)
	if err != nil {
		return v, err
	}

	c.Set(key, v)
	return v, nil
}

// Set stores v as the current value for key.
func (c *Cache[V]) Set(key string, v V) {
	c.group.Forget(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	e.value = v
	e.present = true
	e.version++
}

// Invalidate drops the cached value so that the next Get fetches.
func (c *Cache[V]) Invalidate(key string) {
	c.group.Forget(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	var zero V
	e.value = zero
	e.present = false
	e.version++
}

// Clear invalidates every key.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.Invalidate(k)
	}
}
