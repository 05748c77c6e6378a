package identity

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache memoizes resolved identities per principal for the lifetime of a
// session. Entries survive ordinary request traffic but must be invalidated
// on sign-out so the next sign-in re-resolves.
type Cache interface {
	Get(ctx context.Context, userID int64) (*ResolvedIdentity, bool)
	Put(ctx context.Context, userID int64, id *ResolvedIdentity)
	Invalidate(ctx context.Context, userID int64)
}

// MemoryCache is a process-local identity cache backed by an expirable LRU
type MemoryCache struct {
	cache *lru.LRU[int64, *ResolvedIdentity]
}

// NewMemoryCache creates a memory cache holding up to size entries with the
// given TTL. A TTL of zero disables expiry.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size < 16 {
		size = 16
	}

	return &MemoryCache{
		cache: lru.NewLRU[int64, *ResolvedIdentity](size, nil, ttl),
	}
}

// Get retrieves a cached identity
func (c *MemoryCache) Get(_ context.Context, userID int64) (*ResolvedIdentity, bool) {
	return c.cache.Get(userID)
}

// Put stores a resolved identity
func (c *MemoryCache) Put(_ context.Context, userID int64, id *ResolvedIdentity) {
	c.cache.Add(userID, id)
}

// Invalidate removes a principal's cached identity
func (c *MemoryCache) Invalidate(_ context.Context, userID int64) {
	c.cache.Remove(userID)
}

// Len returns the number of cached identities
func (c *MemoryCache) Len() int {
	return c.cache.Len()
}
