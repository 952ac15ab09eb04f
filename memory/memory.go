// Package memory implements the in-process cache backend. Values live in a
// store collaborator (memstore.Store by default); the backend keeps a key
// index and a tag index converged with the store through synchronous
// updates on writes and the store's eviction notifications on passive
// drops.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wudi/tagcache"
	"github.com/wudi/tagcache/memstore"
)

// Store is the storage engine collaborator the backend drives.
// memstore.Store is the default implementation; any engine with these
// semantics works: Get resets a sliding window, Contains must not, and
// dropped entries are reported with the reason for the drop.
type Store interface {
	Get(key string) (any, bool)
	Put(key string, value any, expireAt time.Time, sliding time.Duration)
	Remove(key string) bool
	Contains(key string) bool
	OnEviction(func(key string, reason tagcache.EvictionReason)) (unregister func())
	Close() error
}

// Options configures the in-process backend.
type Options struct {
	// Store is the storage engine. Leaving it nil creates an owned
	// memstore.Store that Close tears down.
	Store Store

	// MaxEntries and CleanupInterval size the owned store. Ignored when
	// Store is set.
	MaxEntries      int
	CleanupInterval time.Duration
}

// Cache is the in-process backend. Beyond the baseline contract it fully
// supersedes a key's tag associations on overwrite and supports sliding
// expiration.
type Cache[V tagcache.Value] struct {
	ks        tagcache.Keyspace
	store     Store
	ownsStore bool
	stopEvict func()
	keys      *keyIndex
	tags      *tagIndex

	hits             atomic.Int64
	misses           atomic.Int64
	sets             atomic.Int64
	removals         atomic.Int64
	evictions        atomic.Int64
	tagInvalidations atomic.Int64
}

// New builds an in-process cache under the given namespace. The namespace
// is mandatory. Two instances may share one Store: their namespaces keep
// them isolated.
func New[V tagcache.Value](namespace string, opts Options) (*Cache[V], error) {
	ks, err := tagcache.NewKeyspace(namespace)
	if err != nil {
		return nil, err
	}
	c := &Cache[V]{
		ks:    ks,
		store: opts.Store,
		keys:  newKeyIndex(),
		tags:  newTagIndex(),
	}
	if c.store == nil {
		c.store = memstore.New(memstore.Options{
			MaxEntries:      opts.MaxEntries,
			CleanupInterval: opts.CleanupInterval,
		})
		c.ownsStore = true
	}
	c.stopEvict = c.store.OnEviction(c.onEvict)
	return c, nil
}

// onEvict keeps the indexes converged with store-driven drops. A replaced
// entry keeps its indexes: the overwriting Set has already installed the
// new associations, and detaching here would erase them.
func (c *Cache[V]) onEvict(key string, reason tagcache.EvictionReason) {
	if reason == tagcache.ReasonReplaced || !c.ks.Owns(key) {
		return
	}
	c.keys.remove(key)
	c.tags.detach(key)
	// Counted last: once the counter moves, the indexes have converged.
	if reason != tagcache.ReasonRemoved {
		c.evictions.Add(1)
	}
}

// Set stores value under key, replacing any previous value and tag
// associations.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, opts tagcache.SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// The store derives the sliding window itself; expireAt only carries
	// the fixed deadline, which also caps any sliding resets.
	now := time.Now()
	var expireAt time.Time
	if ttl, ok := opts.Expiration.TTL(now); ok {
		expireAt = now.Add(ttl)
	}

	sk := c.ks.Key(key)
	c.store.Put(sk, value, expireAt, opts.Expiration.Sliding)
	c.keys.add(sk)
	c.tags.record(sk, opts.Tags)
	c.sets.Add(1)
	return nil
}

// Get returns the value under key, or ErrNotFound when absent or expired.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	raw, ok := c.store.Get(c.ks.Key(key))
	if !ok {
		c.misses.Add(1)
		return zero, tagcache.ErrNotFound
	}
	v, ok := raw.(V)
	if !ok {
		return zero, fmt.Errorf("get %q: %w", key, tagcache.ErrValueType)
	}
	c.hits.Add(1)
	return v, nil
}

// Exists reports whether a live entry is present without resetting its
// sliding window.
func (c *Cache[V]) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.store.Contains(c.ks.Key(key)), nil
}

// Remove deletes the entry under key and detaches it from all its tags.
// Removing an absent key is a no-op.
func (c *Cache[V]) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sk := c.ks.Key(key)
	c.keys.remove(sk)
	c.tags.detach(sk)
	if c.store.Remove(sk) {
		c.removals.Add(1)
	}
	return nil
}

// RemoveByTags deletes the union of all keys associated with any of the
// given tags. The requested tag sets are drained atomically so concurrent
// writers cannot repopulate them mid-removal.
func (c *Cache[V]) RemoveByTags(ctx context.Context, tags ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, sk := range c.tags.take(tags) {
		c.keys.remove(sk)
		// Count only entries the store actually released: a drained index
		// member may already be gone from the store.
		if c.store.Remove(sk) {
			c.tagInvalidations.Add(1)
		}
	}
	return nil
}

// RemoveByPrefix deletes every live entry whose logical key starts with
// prefix. Degenerate prefixes are a no-op.
func (c *Cache[V]) RemoveByPrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := tagcache.NormalizePrefix(prefix)
	if !ok {
		return nil
	}
	target := c.ks.Key(p)
	for _, sk := range c.keys.snapshot() {
		if strings.HasPrefix(sk, target) {
			c.keys.remove(sk)
			c.tags.detach(sk)
			if c.store.Remove(sk) {
				c.removals.Add(1)
			}
		}
	}
	return nil
}

// Clear drops every entry of this cache's namespace. Removal walks the
// backend's own key inventory rather than purging the store, so a store
// shared with other namespaces keeps their entries.
func (c *Cache[V]) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, sk := range c.keys.snapshot() {
		c.store.Remove(sk)
	}
	c.keys.reset()
	c.tags.reset()
	return nil
}

// Keys lists live logical keys, optionally filtered by prefix; a blank or
// all-wildcard pattern lists the whole namespace. Ordering is unspecified.
func (c *Cache[V]) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := c.ks.Key(strings.TrimRight(pattern, "*"))
	var out []string
	for _, sk := range c.keys.snapshot() {
		if strings.HasPrefix(sk, target) && c.store.Contains(sk) {
			out = append(out, c.ks.Logical(sk))
		}
	}
	return out, nil
}

// Close detaches the cache from the store's eviction notifications and
// tears down an owned store. A store supplied by the caller is left open.
func (c *Cache[V]) Close() error {
	c.stopEvict()
	if c.ownsStore {
		return c.store.Close()
	}
	return nil
}

// Stats returns a snapshot of the backend's counters. Size is taken from
// the key index so a shared store reports only this namespace's entries.
func (c *Cache[V]) Stats() tagcache.Stats {
	return tagcache.Stats{
		Size:             c.keys.len(),
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Sets:             c.sets.Load(),
		Removals:         c.removals.Load(),
		Evictions:        c.evictions.Load(),
		TagInvalidations: c.tagInvalidations.Load(),
	}
}
