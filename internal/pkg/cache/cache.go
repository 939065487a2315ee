package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// TTLs outside this range are clamped; a zero TTL means "use default".
	MinTTL = 60 * time.Second
	MaxTTL = 3600 * time.Second

	defaultCleanupInterval = 5 * time.Minute
)

// TTLCache is a process-local key/value cache with bounded TTLs. Both
// pipeline caches (question plans and rendered steps) are instances of it.
type TTLCache struct {
	store      *gocache.Cache
	defaultTTL time.Duration
}

func New(defaultTTL time.Duration) *TTLCache {
	return &TTLCache{
		store:      gocache.New(ClampTTL(defaultTTL), defaultCleanupInterval),
		defaultTTL: ClampTTL(defaultTTL),
	}
}

// ClampTTL bounds a TTL into [MinTTL, MaxTTL].
func ClampTTL(ttl time.Duration) time.Duration {
	if ttl < MinTTL {
		return MinTTL
	}
	if ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}

func (c *TTLCache) Get(key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	return c.store.Get(key)
}

// Set stores a value under the key. ttl<=0 uses the cache default; any other
// value is clamped into the allowed range.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	if key == "" {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.store.Set(key, value, ClampTTL(ttl))
}

func (c *TTLCache) Delete(key string) {
	c.store.Delete(key)
}

// Len reports the number of live entries, for debug surfaces.
func (c *TTLCache) Len() int {
	return c.store.ItemCount()
}
