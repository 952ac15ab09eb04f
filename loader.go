package tagcache

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wudi/tagcache/internal/logging"
)

// Loader adds a read-through fill path on top of a Cache. Concurrent misses
// on the same key are deduplicated with singleflight, so a cold or freshly
// invalidated key triggers one upstream fetch instead of a stampede.
type Loader[V Value] struct {
	cache Cache[V]
	group singleflight.Group
}

// NewLoader wraps c with a read-through fill path.
func NewLoader[V Value](c Cache[V]) *Loader[V] {
	return &Loader[V]{cache: c}
}

// GetOrSet returns the value under key, fetching and storing it on a miss.
// Concurrent callers missing on the same key share a single fetch. A failed
// cache write is not surfaced: the fetched value is still returned and the
// next call simply misses again.
func (l *Loader[V]) GetOrSet(ctx context.Context, key string, opts SetOptions, fetch func(context.Context) (V, error)) (V, error) {
	var zero V

	v, err := l.cache.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return zero, err
	}

	ch := l.group.DoChan(key, func() (interface{}, error) {
		// Use a context detached from the original caller so one caller
		// canceling doesn't poison the result shared with the others.
		fctx := context.WithoutCancel(ctx)
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		// A failed write just degrades to a miss on the next call.
		if err := l.cache.Set(fctx, key, v, opts); err != nil {
			logging.Warn("cache fill not stored", zap.String("key", key), zap.Error(err))
		}
		return v, nil
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			return zero, result.Err
		}
		return result.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
