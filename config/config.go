// Package config loads and validates cache configuration from YAML and
// builds backends from it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/wudi/tagcache"
)

// Cache modes selecting which backend Open builds.
const (
	ModeLocal       = "local"
	ModeDistributed = "distributed"
)

// Config is the root cache configuration.
type Config struct {
	// Namespace scopes every key and tag of the instance. Mandatory.
	Namespace string `yaml:"namespace"`

	// Mode selects the backend: "local" (default) or "distributed".
	Mode string `yaml:"mode"`

	Memory MemoryConfig `yaml:"memory"`
	Redis  RedisConfig  `yaml:"redis"`
}

// MemoryConfig sizes the local backend's owned store.
type MemoryConfig struct {
	MaxEntries      int           `yaml:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RedisConfig describes the distributed deployment and tunes the scan
// protocol.
type RedisConfig struct {
	// Addresses lists the deployment endpoints. A single address dials one
	// server; several dial a cluster.
	Addresses    []string      `yaml:"addresses"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`

	// DeleteBatch and TagBatch bound bulk DEL sizes; ScanCount is the
	// COUNT hint passed to SCAN.
	DeleteBatch int   `yaml:"delete_batch"`
	TagBatch    int   `yaml:"tag_batch"`
	ScanCount   int64 `yaml:"scan_count"`
}

// DefaultConfig returns the configuration used where fields are not set.
func DefaultConfig() *Config {
	return &Config{
		Mode: ModeLocal,
		Memory: MemoryConfig{
			MaxEntries:      10000,
			CleanupInterval: time.Minute,
		},
		Redis: RedisConfig{
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			DeleteBatch:  1000,
			TagBatch:     100,
			ScanCount:    100,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Namespace) == "" {
		return fmt.Errorf("cache config: %w", tagcache.ErrNamespaceRequired)
	}
	switch c.Mode {
	case "", ModeLocal, ModeDistributed:
	default:
		return fmt.Errorf("cache config: mode must be %q or %q, got %q", ModeLocal, ModeDistributed, c.Mode)
	}
	if c.Mode == ModeDistributed && len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("cache config: distributed mode requires at least one redis address")
	}
	if c.Memory.MaxEntries < 0 {
		return fmt.Errorf("cache config: memory max_entries must not be negative")
	}
	if c.Redis.DeleteBatch < 0 {
		return fmt.Errorf("cache config: redis delete_batch must not be negative")
	}
	if c.Redis.TagBatch < 0 {
		return fmt.Errorf("cache config: redis tag_batch must not be negative")
	}
	return nil
}
