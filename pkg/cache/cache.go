package cache

import (
	"time"
)

// Cache is the interface that defines the caching operations.
type Cache interface {
	Get(key uint64) (any, bool)
	Set(key uint64, value any) error
	SetWithTTL(key uint64, value any, ttl time.Duration) error
	Delete(key uint64)
	// Wait blocks until pending writes are visible to Get.
	Wait()
}

type CacheConfig struct {
	CacheName string
	// Default time to live for the key, zero keeps entries until evicted.
	DefaultTTL  time.Duration
	MaxElements uint64
}

func NewCache(cacheCfg *CacheConfig) (Cache, error) {
	return NewLocalCacheRistretto(cacheCfg)
}
