// Package cache implements the process-local TTL caches used by the catalog
// service: freshness-checked reads, per-key request coalescing, and stale
// fallback when a refresh fails.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/davbaghdasaryann/ehvm2/internal/app/metrics"
)

// entry wraps a cached value with its expiry timestamp. An expired entry is
// invisible to fresh reads but retained as a stale fallback.
type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// flight represents one in-flight load shared by every concurrent caller of
// the same key.
type flight[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Cache is a keyed TTL cache. The zero value is not usable; construct with
// New. All methods are safe for concurrent use; every read-check-populate
// sequence runs under the cache mutex.
type Cache[T any] struct {
	name    string
	ttl     time.Duration
	noStale bool

	mu      sync.Mutex
	entries map[string]entry[T]
	flights map[string]*flight[T]

	now func() time.Time
}

// New constructs a cache with the given tier name (used for metrics) and
// default time-to-live.
func New[T any](name string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		name:    name,
		ttl:     ttl,
		entries: make(map[string]entry[T]),
		flights: make(map[string]*flight[T]),
		now:     time.Now,
	}
}

// WithoutStaleFallback makes a failed refresh surface its error even when an
// expired entry exists. The schema tier uses this: metadata must never be
// served stale, callers substitute an explicit empty default instead.
func (c *Cache[T]) WithoutStaleFallback() *Cache[T] {
	c.noStale = true
	return c
}

// Get returns the value for key if a fresh entry exists.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.fresh(e) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's default TTL, replacing any
// previous entry atomically.
func (c *Cache[T]) Set(key string, value T) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL.
func (c *Cache[T]) SetTTL(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: value, expiresAt: c.now().Add(ttl)}
}

// Load returns a fresh value for key, loading it at most once across
// concurrent callers. When the load fails and an expired entry exists, the
// stale value is returned instead of the error.
func (c *Cache[T]) Load(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok && c.fresh(e) {
		c.mu.Unlock()
		metrics.RecordCacheRead(c.name, "hit")
		return e.value, nil
	}

	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		return c.await(ctx, key, f)
	}

	f := &flight[T]{done: make(chan struct{})}
	c.flights[key] = f
	c.mu.Unlock()

	metrics.RecordCacheRead(c.name, "miss")
	c.run(ctx, key, f, load)
	return c.settle(key, f)
}

// LoadStalePreferred behaves like Load, except that when an expired entry
// exists the caller gets the stale value immediately and the load runs in the
// background, silently replacing the entry on success. This matches the
// parsed-content tier semantics.
func (c *Cache[T]) LoadStalePreferred(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok && c.fresh(e) {
		c.mu.Unlock()
		metrics.RecordCacheRead(c.name, "hit")
		return e.value, nil
	}

	stale, hasStale := c.entries[key]

	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		if hasStale {
			metrics.RecordCacheRead(c.name, "stale")
			return stale.value, nil
		}
		return c.await(ctx, key, f)
	}

	f := &flight[T]{done: make(chan struct{})}
	c.flights[key] = f
	c.mu.Unlock()

	if hasStale {
		metrics.RecordCacheRead(c.name, "stale")
		go func() {
			// Detach from the caller's deadline; the refresh outlives the request.
			c.run(context.WithoutCancel(ctx), key, f, load)
			_, _ = c.settle(key, f)
		}()
		return stale.value, nil
	}

	metrics.RecordCacheRead(c.name, "miss")
	c.run(ctx, key, f, load)
	return c.settle(key, f)
}

// run executes the load and publishes the result on the flight. The entry is
// only replaced on success, so a failed refresh never clobbers a stale value.
func (c *Cache[T]) run(ctx context.Context, key string, f *flight[T], load func(ctx context.Context) (T, error)) {
	value, err := load(ctx)

	c.mu.Lock()
	if err == nil {
		c.entries[key] = entry[T]{value: value, expiresAt: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()

	f.value = value
	f.err = err
	close(f.done)
}

// settle resolves a finished flight for its initiating caller, applying the
// stale fallback on error.
func (c *Cache[T]) settle(key string, f *flight[T]) (T, error) {
	<-f.done

	c.mu.Lock()
	delete(c.flights, key)
	stale, hasStale := c.entries[key]
	c.mu.Unlock()

	if f.err != nil && hasStale && !c.noStale {
		metrics.RecordCacheRead(c.name, "stale")
		return stale.value, nil
	}
	return f.value, f.err
}

// await joins an existing flight from a second concurrent caller.
func (c *Cache[T]) await(ctx context.Context, key string, f *flight[T]) (T, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}

	if f.err != nil && !c.noStale {
		c.mu.Lock()
		stale, hasStale := c.entries[key]
		c.mu.Unlock()
		if hasStale {
			metrics.RecordCacheRead(c.name, "stale")
			return stale.value, nil
		}
	}
	return f.value, f.err
}

func (c *Cache[T]) fresh(e entry[T]) bool {
	return e.expiresAt.After(c.now())
}
