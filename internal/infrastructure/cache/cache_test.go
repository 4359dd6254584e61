package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/ports"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), "redis://"+srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, srv
}

func exerciseCache(t *testing.T, c ports.Cache) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "article:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	keys := []string{
		"article:1",
		"article:2",
		"article:https://planet.example/news/final",
		"articles:latest:page:1",
		"trending:day",
		"category:sports",
	}
	for _, k := range keys {
		require.NoError(t, c.Set(ctx, k, []byte("v-"+k), 0))
	}

	got, ok, err := c.Get(ctx, "article:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v-article:1"), got)

	n, err := c.Invalidate(ctx, "article:*")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.Invalidate(ctx, "articles:*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Invalidate(ctx, "trending:*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = c.Get(ctx, "category:sports")
	require.NoError(t, err)
	assert.True(t, ok, "unrelated keys survive invalidation")

	n, err = c.Invalidate(ctx, "article:*")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemory())
}

func TestRedisCache(t *testing.T) {
	r, _ := newTestRedis(t)
	exerciseCache(t, r)
}

func TestRedisInvalidateManyKeys(t *testing.T) {
	r, srv := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 450; i++ {
		require.NoError(t, srv.Set(fmt.Sprintf("articles:page:%d", i), "x"))
	}
	require.NoError(t, srv.Set("trending:week", "x"))

	n, err := r.Invalidate(ctx, "articles:*")
	require.NoError(t, err)
	assert.Equal(t, 450, n)
	assert.True(t, srv.Exists("trending:week"))
}

func TestRedisTTL(t *testing.T) {
	r, srv := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "article:ttl", []byte("x"), time.Minute))
	srv.FastForward(2 * time.Minute)

	_, ok, err := r.Get(ctx, "article:ttl")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestNewRedisFromClient(t *testing.T) {
	srv := miniredis.RunT(t)
	r := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	defer r.Close()
	require.NoError(t, r.Ping(context.Background()))
}

func TestMemoryTTL(t *testing.T) {
	m := NewMemory()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	at = at.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryGlobCrossesSlashes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "article:https://planet.example/a/b", []byte("x"), 0))
	require.NoError(t, m.Set(ctx, "article:https://planet.example/a/c", []byte("x"), 0))

	n, err := m.Invalidate(ctx, "article:https://*/a/b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.Invalidate(ctx, "article:*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryBadPattern(t *testing.T) {
	_, err := NewMemory().Invalidate(context.Background(), "[")
	assert.Error(t, err)
}
