package config

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wudi/tagcache"
	"github.com/wudi/tagcache/internal/logging"
	"github.com/wudi/tagcache/memory"
	"github.com/wudi/tagcache/redis"
)

// NewClient builds a Redis client for the configured deployment. A single
// address yields a single-server client, several a cluster client.
func NewClient(cfg RedisConfig) goredis.UniversalClient {
	return goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
}

// Open builds the backend the configuration selects. The returned cache's
// Close also releases what Open itself created: the owned store in local
// mode, the Redis client in distributed mode.
func Open[V tagcache.Value](cfg *Config) (tagcache.Cache[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case "", ModeLocal:
		c, err := memory.New[V](cfg.Namespace, memory.Options{
			MaxEntries:      cfg.Memory.MaxEntries,
			CleanupInterval: cfg.Memory.CleanupInterval,
		})
		if err != nil {
			return nil, err
		}
		logging.Debug("opened local cache", zap.String("namespace", cfg.Namespace))
		return c, nil

	case ModeDistributed:
		client := NewClient(cfg.Redis)
		c, err := redis.New[V](client, cfg.Namespace, redis.Options{
			DeleteBatch: cfg.Redis.DeleteBatch,
			TagBatch:    cfg.Redis.TagBatch,
			ScanCount:   cfg.Redis.ScanCount,
		})
		if err != nil {
			client.Close()
			return nil, err
		}
		logging.Debug("opened distributed cache",
			zap.String("namespace", cfg.Namespace),
			zap.Strings("addresses", cfg.Redis.Addresses))
		return &managed[V]{Cache: c, closer: client.Close}, nil
	}
	return nil, fmt.Errorf("cache config: unknown mode %q", cfg.Mode)
}

// managed decorates a backend so Close also tears down what Open created.
type managed[V tagcache.Value] struct {
	tagcache.Cache[V]
	closer func() error
}

func (m *managed[V]) Close() error {
	err := m.Cache.Close()
	if cerr := m.closer(); err == nil {
		err = cerr
	}
	return err
}

// Stats passes through the wrapped backend's counters.
func (m *managed[V]) Stats() tagcache.Stats {
	if s, ok := m.Cache.(tagcache.StatsSource); ok {
		return s.Stats()
	}
	return tagcache.Stats{}
}
