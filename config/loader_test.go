package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wudi/tagcache"
)

func TestLoader_Parse(t *testing.T) {
	yaml := `
namespace: app
mode: distributed
memory:
  max_entries: 500
  cleanup_interval: 30s
redis:
  addresses:
    - localhost:6379
    - localhost:6380
  password: hunter2
  read_timeout: 10s
  delete_batch: 250
`

	cfg, err := NewLoader().Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Namespace != "app" {
		t.Errorf("namespace = %q, want app", cfg.Namespace)
	}
	if cfg.Mode != ModeDistributed {
		t.Errorf("mode = %q, want distributed", cfg.Mode)
	}
	if cfg.Memory.MaxEntries != 500 {
		t.Errorf("max_entries = %d, want 500", cfg.Memory.MaxEntries)
	}
	if cfg.Memory.CleanupInterval != 30*time.Second {
		t.Errorf("cleanup_interval = %v, want 30s", cfg.Memory.CleanupInterval)
	}
	if len(cfg.Redis.Addresses) != 2 {
		t.Errorf("addresses = %v, want 2 entries", cfg.Redis.Addresses)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Errorf("password = %q", cfg.Redis.Password)
	}
	if cfg.Redis.ReadTimeout != 10*time.Second {
		t.Errorf("read_timeout = %v, want 10s", cfg.Redis.ReadTimeout)
	}
	if cfg.Redis.DeleteBatch != 250 {
		t.Errorf("delete_batch = %d, want 250", cfg.Redis.DeleteBatch)
	}

	// Unset fields keep their defaults.
	if cfg.Redis.TagBatch != 100 {
		t.Errorf("tag_batch = %d, want default 100", cfg.Redis.TagBatch)
	}
	if cfg.Redis.DialTimeout != 5*time.Second {
		t.Errorf("dial_timeout = %v, want default 5s", cfg.Redis.DialTimeout)
	}
}

func TestLoader_Parse_Defaults(t *testing.T) {
	cfg, err := NewLoader().Parse([]byte("namespace: app\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Mode != ModeLocal {
		t.Errorf("mode = %q, want local", cfg.Mode)
	}
	if cfg.Memory.MaxEntries != 10000 {
		t.Errorf("max_entries = %d, want 10000", cfg.Memory.MaxEntries)
	}
	if cfg.Memory.CleanupInterval != time.Minute {
		t.Errorf("cleanup_interval = %v, want 1m", cfg.Memory.CleanupInterval)
	}
	if cfg.Redis.DeleteBatch != 1000 || cfg.Redis.TagBatch != 100 || cfg.Redis.ScanCount != 100 {
		t.Errorf("scan defaults = %d/%d/%d, want 1000/100/100",
			cfg.Redis.DeleteBatch, cfg.Redis.TagBatch, cfg.Redis.ScanCount)
	}
}

func TestLoader_Parse_EnvExpansion(t *testing.T) {
	t.Setenv("CACHE_TEST_NS", "orders")
	t.Setenv("CACHE_TEST_PASSWORD", "s3cret")

	yaml := `
namespace: ${CACHE_TEST_NS}
redis:
  password: ${CACHE_TEST_PASSWORD}
`

	cfg, err := NewLoader().Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Namespace != "orders" {
		t.Errorf("namespace = %q, want orders", cfg.Namespace)
	}
	if cfg.Redis.Password != "s3cret" {
		t.Errorf("password = %q, want s3cret", cfg.Redis.Password)
	}
}

func TestLoader_Parse_UnsetEnvLeftAsIs(t *testing.T) {
	cfg, err := NewLoader().Parse([]byte("namespace: ${DEFINITELY_NOT_SET_XYZ_42}\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Namespace != "${DEFINITELY_NOT_SET_XYZ_42}" {
		t.Errorf("namespace = %q, want the unexpanded reference", cfg.Namespace)
	}
}

func TestLoader_Parse_InvalidYAML(t *testing.T) {
	if _, err := NewLoader().Parse([]byte("namespace: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	os.WriteFile(path, []byte("namespace: app\n"), 0o600)

	cfg, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Namespace != "app" {
		t.Errorf("namespace = %q, want app", cfg.Namespace)
	}

	if _, err := NewLoader().Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Namespace = "app"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := valid()
	cfg.Namespace = "   "
	if err := cfg.Validate(); !errors.Is(err, tagcache.ErrNamespaceRequired) {
		t.Errorf("blank namespace: %v, want ErrNamespaceRequired", err)
	}

	cfg = valid()
	cfg.Mode = "hybrid"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown mode should be rejected")
	}

	cfg = valid()
	cfg.Mode = ModeDistributed
	cfg.Redis.Addresses = nil
	if err := cfg.Validate(); err == nil {
		t.Error("distributed mode without addresses should be rejected")
	}

	cfg = valid()
	cfg.Memory.MaxEntries = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative max_entries should be rejected")
	}

	cfg = valid()
	cfg.Redis.TagBatch = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative tag_batch should be rejected")
	}
}
