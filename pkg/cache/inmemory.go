package cache

import (
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// NoExpiration keeps an item until it is deleted.
const NoExpiration = cache.NoExpiration

type Cache interface {
	Set(key string, value interface{}, duration time.Duration)
	// Add stores the value only when the key is absent or expired. It reports whether the value was stored.
	Add(key string, value interface{}, duration time.Duration) bool
	Get(key string) (interface{}, bool)
	Delete(key string)
	// Load returns the cached value or runs load once for all concurrent callers of the same key.
	// Errors are not cached.
	Load(key string, duration time.Duration, load func() (interface{}, error)) (interface{}, error)
}

type goCache struct {
	internal *cache.Cache
	loads    singleflight.Group
}

func NewCache(defaultExpiration, cleanupInterval time.Duration) Cache {
	return &goCache{
		internal: cache.New(defaultExpiration, cleanupInterval),
	}
}

func (c *goCache) Set(key string, value interface{}, duration time.Duration) {
	c.internal.Set(key, value, duration)
}

func (c *goCache) Add(key string, value interface{}, duration time.Duration) bool {
	return c.internal.Add(key, value, duration) == nil
}

func (c *goCache) Get(key string) (interface{}, bool) {
	return c.internal.Get(key)
}

func (c *goCache) Delete(key string) {
	c.internal.Delete(key)
}

func (c *goCache) Load(key string, duration time.Duration, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.internal.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.loads.Do(key, func() (interface{}, error) {
		if v, ok := c.internal.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.internal.Set(key, v, duration)
		return v, nil
	})
	return v, err
}

func GetFromCache[T any](c Cache, key string) (T, bool) {
	val, found := c.Get(key)
	if !found {
		var zero T
		return zero, false
	}
	typedVal, ok := val.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typedVal, true
}

// Remember is the typed form of Cache.Load. A cached value of another type is treated as a miss.
func Remember[T any](c Cache, key string, duration time.Duration, load func() (T, error)) (T, error) {
	if v, ok := GetFromCache[T](c, key); ok {
		return v, nil
	}
	v, err := c.Load(key, duration, func() (interface{}, error) {
		return load()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return load()
	}
	return typed, nil
}
