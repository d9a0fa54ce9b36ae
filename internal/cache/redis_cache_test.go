package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb), mr
}

func TestRedisCache_RoundTripAndTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got entry
	hit, err := c.GetJSON(ctx, CVKey("a"), &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, CVKey("a"), entry{Name: "x", N: 3}, time.Minute))
	assert.True(t, mr.Exists("cache:cv:a"))

	hit, err = c.GetJSON(ctx, CVKey("a"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, entry{Name: "x", N: 3}, got)

	mr.FastForward(2 * time.Minute)
	hit, err = c.GetJSON(ctx, CVKey("a"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_CorruptEntryIsDropped(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("cache:cv:b", "{not json"))

	var got entry
	hit, err := c.GetJSON(context.Background(), CVKey("b"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("cache:cv:b"))
}

func TestRedisCache_Del(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetJSON(ctx, "k1", 1, 0))
	require.NoError(t, c.SetJSON(ctx, "k2", 2, 0))

	require.NoError(t, c.Del(ctx))
	require.NoError(t, c.Del(ctx, "k1", "k2"))
	assert.False(t, mr.Exists("cache:k1"))
	assert.False(t, mr.Exists("cache:k2"))
}
