package identity

import (
	"fmt"
	"os"
	"time"

	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"

	"github.com/IshaanNene/fetgoat/internal/config"
)

// Cache persists handle lookups across runs.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// NewCache opens the on-disk cache described by cfg, or a cache that
// never hits when caching is disabled.
func NewCache(cfg config.CacheConfig) (*Cache, error) {
	if !cfg.Enabled {
		return NewNullCache(), nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("fetgoat-identity", cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(cfg.TTL))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache{TieredCache: tc, ttl: cfg.TTL}, nil
}

// NewNullCache returns a cache with no persistence.
func NewNullCache() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc}
}

// TTL returns the lifetime of cached entries.
func (c *Cache) TTL() time.Duration { return c.ttl }
