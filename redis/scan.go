package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wudi/tagcache/internal/logging"
)

// forEachPrimary runs fn against every reachable primary of the
// deployment. Replicas are never touched; writes must only land on
// primaries. A transport failure on one endpoint does not abort the
// others: it is logged, collected, and joined into the returned error once
// every reachable endpoint has been processed. Cancellation aborts
// immediately and propagates.
func (c *Cache[V]) forEachPrimary(ctx context.Context, fn func(ctx context.Context, conn redis.Cmdable) error) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	perShard := func(sctx context.Context, shard *redis.Client) error {
		err := fn(sctx, shard)
		if err == nil {
			return nil
		}
		// Only caller cancellation aborts the walk. An endpoint's own dial
		// timeout also unwraps to context.DeadlineExceeded, so the error
		// itself cannot distinguish the two cases.
		if sctx.Err() != nil {
			return err
		}
		logging.Warn("cache scan failed on primary, continuing with the rest",
			zap.String("addr", shard.Options().Addr),
			zap.Error(err))
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", shard.Options().Addr, err))
		mu.Unlock()
		return nil
	}

	var err error
	switch cl := c.client.(type) {
	case *redis.ClusterClient:
		err = cl.ForEachMaster(ctx, perShard)
	case *redis.Ring:
		err = cl.ForEachShard(ctx, perShard)
	default:
		err = fn(ctx, c.client)
	}
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

// scanDelete walks every key matching pattern on every reachable primary
// and deletes them in batches of at most DeleteBatch, bounding single
// command size regardless of namespace cardinality. keepTags leaves
// tag-set keys alone even when the pattern matches them. It returns the
// number of keys the server actually deleted.
func (c *Cache[V]) scanDelete(ctx context.Context, pattern string, keepTags bool) (int64, error) {
	var deleted atomic.Int64
	err := c.forEachPrimary(ctx, func(ctx context.Context, conn redis.Cmdable) error {
		batch := make([]string, 0, c.opts.DeleteBatch)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := conn.Del(ctx, batch...).Result()
			if err != nil {
				return fmt.Errorf("delete batch: %w", err)
			}
			deleted.Add(n)
			batch = batch[:0]
			return nil
		}

		var cursor uint64
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys, next, err := conn.Scan(ctx, cursor, pattern, c.opts.ScanCount).Result()
			if err != nil {
				return fmt.Errorf("scan %q: %w", pattern, err)
			}
			for _, k := range keys {
				if keepTags && c.ks.IsTagKey(k) {
					continue
				}
				batch = append(batch, k)
				if len(batch) >= c.opts.DeleteBatch {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		return flush()
	})
	return deleted.Load(), err
}

// Keys lists live logical keys across every reachable primary, optionally
// filtered by prefix; a blank or all-wildcard pattern lists the whole
// namespace. Tag-set keys are excluded. Ordering is unspecified.
func (c *Cache[V]) Keys(ctx context.Context, pattern string) ([]string, error) {
	pat := c.ks.Pattern()
	if p := strings.TrimRight(pattern, "*"); p != "" {
		pat = c.ks.PrefixPattern(p)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		out  []string
	)
	err := c.forEachPrimary(ctx, func(ctx context.Context, conn redis.Cmdable) error {
		var cursor uint64
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys, next, err := conn.Scan(ctx, cursor, pat, c.opts.ScanCount).Result()
			if err != nil {
				return fmt.Errorf("scan %q: %w", pat, err)
			}
			mu.Lock()
			for _, k := range keys {
				if c.ks.IsTagKey(k) {
					continue
				}
				// SCAN may return a key more than once under concurrent
				// rehashing.
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				out = append(out, c.ks.Logical(k))
			}
			mu.Unlock()
			cursor = next
			if cursor == 0 {
				break
			}
		}
		return nil
	})
	return out, err
}
