package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
)

const defaultMaxElements = 10_000

// LocalCacheRistretto is an implementation of Cache that uses Ristretto.
// Every entry has cost 1, so MaxElements bounds the number of entries.
type LocalCacheRistretto struct {
	cache *ristretto.Cache
	name  string
	ttl   time.Duration
}

func NewLocalCacheRistretto(cacheCfg *CacheConfig) (*LocalCacheRistretto, error) {
	maxElements := cacheCfg.MaxElements
	if maxElements == 0 {
		maxElements = defaultMaxElements
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxElements) * 10, // Number of keys to track frequency of.
		MaxCost:     int64(maxElements),
		BufferItems: 64, // Number of keys per Get buffer.
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create local cache %q", cacheCfg.CacheName)
	}
	return &LocalCacheRistretto{cache: cache, name: cacheCfg.CacheName, ttl: cacheCfg.DefaultTTL}, nil
}

func (c *LocalCacheRistretto) Get(key uint64) (any, bool) {
	return c.cache.Get(key)
}

func (c *LocalCacheRistretto) Set(key uint64, value any) error {
	return c.SetWithTTL(key, value, c.ttl)
}

func (c *LocalCacheRistretto) SetWithTTL(key uint64, value any, ttl time.Duration) error {
	if !c.cache.SetWithTTL(key, value, 1, ttl) {
		return errors.Errorf("cache %q dropped key %d", c.name, key)
	}
	return nil
}

func (c *LocalCacheRistretto) Delete(key uint64) {
	c.cache.Del(key)
}

func (c *LocalCacheRistretto) Wait() {
	c.cache.Wait()
}
