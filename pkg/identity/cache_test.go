package identity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedIdentity(userID int64) *ResolvedIdentity {
	studioID := int64(7)
	return &ResolvedIdentity{
		UserID:         userID,
		Role:           RoleStudioAdmin,
		Permissions:    DerivePermissions(RoleStudioAdmin, false, true),
		IsStudioMember: true,
		StudioID:       &studioID,
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache(64, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)

	want := cachedIdentity(1)
	cache.Put(ctx, 1, want)

	got, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCacheInvalidate(t *testing.T) {
	cache := NewMemoryCache(64, time.Minute)
	ctx := context.Background()

	cache.Put(ctx, 1, cachedIdentity(1))
	cache.Invalidate(ctx, 1)

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCacheInvalidateUnknownUser(t *testing.T) {
	cache := NewMemoryCache(64, time.Minute)

	// Must not panic or disturb other entries.
	cache.Put(context.Background(), 1, cachedIdentity(1))
	cache.Invalidate(context.Background(), 42)

	_, ok := cache.Get(context.Background(), 1)
	assert.True(t, ok)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	cache := NewMemoryCache(64, 20*time.Millisecond)
	ctx := context.Background()

	cache.Put(ctx, 1, cachedIdentity(1))
	time.Sleep(50 * time.Millisecond)

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
}

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, ttl), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, _ := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)

	want := cachedIdentity(1)
	cache.Put(ctx, 1, want)

	got, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestRedisCacheInvalidate(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	cache.Put(ctx, 1, cachedIdentity(1))
	cache.Invalidate(ctx, 1)

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
	assert.False(t, mr.Exists("atelier:identity:1"))
}

func TestRedisCacheTTL(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	cache.Put(ctx, 1, cachedIdentity(1))
	assert.Equal(t, time.Minute, mr.TTL("atelier:identity:1"))

	mr.FastForward(2 * time.Minute)
	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
}

func TestRedisCacheDropsCorruptEntry(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("atelier:identity:1", "not json"))

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
	assert.False(t, mr.Exists("atelier:identity:1"), "corrupt entry should be deleted on read")
}

func TestRedisCacheUnavailableIsMiss(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	cache.Put(ctx, 1, cachedIdentity(1))
	mr.Close()

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
}
