package identity

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "atelier:identity:"

// RedisCache is a session-scoped identity cache shared across server
// replicas. Cache errors are treated as misses; the resolver re-queries
// rather than failing the request.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed identity cache
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

// Get retrieves a cached identity; any Redis or decode error is a miss
func (c *RedisCache) Get(ctx context.Context, userID int64) (*ResolvedIdentity, bool) {
	data, err := c.client.Get(ctx, redisKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var id ResolvedIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		// Stale or corrupt entry; drop it so the next Put rewrites it
		c.client.Del(ctx, redisKey(userID))
		return nil, false
	}

	return &id, true
}

// Put stores a resolved identity with the session TTL
func (c *RedisCache) Put(ctx context.Context, userID int64, id *ResolvedIdentity) {
	data, err := json.Marshal(id)
	if err != nil {
		return
	}

	c.client.Set(ctx, redisKey(userID), data, c.ttl)
}

// Invalidate removes a principal's cached identity
func (c *RedisCache) Invalidate(ctx context.Context, userID int64) {
	c.client.Del(ctx, redisKey(userID))
}
