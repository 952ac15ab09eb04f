// Package redis implements the distributed cache backend on a Redis
// deployment: single server, ring, or cluster. Tags are server-side sets
// keyed under the namespace's hash tag; clear, prefix removal and key
// listing run a cluster-aware scan against every reachable primary.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wudi/tagcache"
)

// Default bounds for the scan-and-delete protocol.
const (
	defaultDeleteBatch = 1000
	defaultTagBatch    = 100
	defaultScanCount   = 100
)

// Options tunes the distributed backend.
type Options struct {
	// DeleteBatch bounds the keys per bulk DEL issued by scans (Clear,
	// RemoveByPrefix). Defaults to 1000.
	DeleteBatch int

	// TagBatch bounds the member keys per bulk DEL during tag
	// invalidation. Defaults to 100.
	TagBatch int

	// ScanCount is the COUNT hint passed to SCAN. Defaults to 100.
	ScanCount int64
}

// Cache is the distributed backend. It offers the baseline contract
// guarantees: tag memberships left behind by overwrites dangle until the
// tag is invalidated, and every read path tolerates such dangling members.
type Cache[V tagcache.Value] struct {
	client redis.UniversalClient
	ks     tagcache.Keyspace
	opts   Options

	hits             atomic.Int64
	misses           atomic.Int64
	sets             atomic.Int64
	removals         atomic.Int64
	tagInvalidations atomic.Int64
}

// New builds a distributed cache under namespace on client. The namespace
// is mandatory. The client's lifecycle belongs to the caller; Close leaves
// it open.
func New[V tagcache.Value](client redis.UniversalClient, namespace string, opts Options) (*Cache[V], error) {
	ks, err := tagcache.NewKeyspace(namespace)
	if err != nil {
		return nil, err
	}
	if opts.DeleteBatch <= 0 {
		opts.DeleteBatch = defaultDeleteBatch
	}
	if opts.TagBatch <= 0 {
		opts.TagBatch = defaultTagBatch
	}
	if opts.ScanCount <= 0 {
		opts.ScanCount = defaultScanCount
	}
	return &Cache[V]{client: client, ks: ks, opts: opts}, nil
}

// Set writes the value and its tag memberships in one pipeline. The steps
// are not transactional: a failure in between can leave a key valued
// without full tag coverage, or tagged without a value; both states are
// tolerated by every read path. Sliding expiration has no server-side
// equivalent and is rejected with ErrSlidingUnsupported.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, opts tagcache.SetOptions) error {
	if opts.Expiration.Sliding > 0 {
		return fmt.Errorf("set %q: %w", key, tagcache.ErrSlidingUnsupported)
	}
	var ttl time.Duration
	if d, ok := opts.Expiration.TTL(time.Now()); ok {
		ttl = d
		if ttl <= 0 {
			// The server rejects a non-positive lifetime; one millisecond
			// is the closest expressible form of "already expired".
			ttl = time.Millisecond
		}
	}

	sk := c.ks.Key(key)
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sk, tagcache.AsBytes(value), ttl)
		for _, tag := range opts.Tags {
			p.SAdd(ctx, c.ks.TagKey(tag), sk)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	c.sets.Add(1)
	return nil
}

// Get returns the value under key, or ErrNotFound when absent or expired.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	b, err := c.client.Get(ctx, c.ks.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return zero, tagcache.ErrNotFound
		}
		return zero, fmt.Errorf("get %q: %w", key, err)
	}
	c.hits.Add(1)
	return tagcache.FromBytes[V](b), nil
}

// Exists reports whether a live entry is present under key.
func (c *Cache[V]) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.ks.Key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Remove deletes the value under key. With no reverse index, memberships
// the key holds in tag sets stay behind as dangling references; they are
// skipped by reads and swept out when their tag is invalidated. Removing
// an absent key is a no-op.
func (c *Cache[V]) Remove(ctx context.Context, key string) error {
	n, err := c.client.Del(ctx, c.ks.Key(key)).Result()
	if err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	c.removals.Add(n)
	return nil
}

// RemoveByTags deletes every member key of each requested tag's set in
// batches of at most TagBatch, then the tag set itself. Tags are
// de-duplicated and unknown tags are a no-op. Dangling members delete as
// no-ops.
func (c *Cache[V]) RemoveByTags(ctx context.Context, tags ...string) error {
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		tk := c.ks.TagKey(tag)
		members, err := c.client.SMembers(ctx, tk).Result()
		if err != nil {
			return fmt.Errorf("tag %q members: %w", tag, err)
		}
		for start := 0; start < len(members); start += c.opts.TagBatch {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := min(start+c.opts.TagBatch, len(members))
			n, err := c.client.Del(ctx, members[start:end]...).Result()
			if err != nil {
				return fmt.Errorf("tag %q delete batch: %w", tag, err)
			}
			c.tagInvalidations.Add(n)
		}
		if err := c.client.Del(ctx, tk).Err(); err != nil {
			return fmt.Errorf("tag %q delete set: %w", tag, err)
		}
	}
	return nil
}

// RemoveByPrefix deletes every key whose logical key starts with prefix,
// scanning each reachable primary. Degenerate prefixes are a no-op.
func (c *Cache[V]) RemoveByPrefix(ctx context.Context, prefix string) error {
	p, ok := tagcache.NormalizePrefix(prefix)
	if !ok {
		return nil
	}
	n, err := c.scanDelete(ctx, c.ks.PrefixPattern(p), true)
	c.removals.Add(n)
	return err
}

// Clear deletes every key of the namespace, tag sets included. Keys of
// other namespaces sharing the deployment are untouched.
func (c *Cache[V]) Clear(ctx context.Context) error {
	_, err := c.scanDelete(ctx, c.ks.Pattern(), false)
	return err
}

// Close is a no-op: the client's lifecycle is managed by the caller.
func (c *Cache[V]) Close() error { return nil }

// Stats returns a snapshot of the backend's counters. Size and evictions
// are not tracked for Redis.
func (c *Cache[V]) Stats() tagcache.Stats {
	return tagcache.Stats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Sets:             c.sets.Load(),
		Removals:         c.removals.Load(),
		TagInvalidations: c.tagInvalidations.Load(),
	}
}
