package resolve

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/wippyai/clrmeta/typesys"
)

// DefaultCacheCapacity bounds the shared cache when no capacity is given.
const DefaultCacheCapacity = 256

var (
	shared     *Cache
	sharedOnce sync.Once
)

// Shared returns the process-wide strong-name cache.
func Shared() *Cache {
	sharedOnce.Do(func() {
		shared = NewCache(DefaultCacheCapacity)
	})
	return shared
}

// Cache maps strong names to loaded modules across resolvers. It is safe
// for concurrent use. Modules evicted by capacity are dropped without
// being closed since other sessions may still hold them.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

// NewCache creates a cache holding at most capacity modules.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	c, err := lru.NewWithEvict(capacity, func(key, _ interface{}) {
		Logger().Debug("evicted from strong-name cache", zap.String("assembly", key.(string)))
	})
	if err != nil {
		// capacity is positive
		panic(err)
	}
	return &Cache{lru: c}
}

// Get returns the module cached under a strong name.
func (c *Cache) Get(strongName string) (*typesys.Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(strings.ToLower(strongName))
	if !ok {
		return nil, false
	}
	return v.(*typesys.Module), true
}

// Add inserts mod under strongName unless another module got there first.
// It returns the cached module; when that is not mod, mod is closed.
func (c *Cache) Add(strongName string, mod *typesys.Module) *typesys.Module {
	key := strings.ToLower(strongName)
	c.mu.Lock()
	if v, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		winner := v.(*typesys.Module)
		if winner != mod {
			Logger().Debug("lost strong-name race", zap.String("assembly", key))
			_ = mod.Close()
		}
		return winner
	}
	c.lru.Add(key, mod)
	c.mu.Unlock()
	return mod
}

// Evict removes one strong name. The module is not closed.
func (c *Cache) Evict(strongName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(strings.ToLower(strongName))
}

// Purge removes every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
