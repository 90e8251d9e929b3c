package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-map/internal/logger"
)

func init() { logger.Discard() }

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return New(rc, ttl), mr
}

func TestGetSet(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	ctx := context.Background()
	key := Key("tok", "projects")

	var got []item
	assert.False(t, c.Get(ctx, key, &got))

	c.Set(ctx, key, []item{{ID: 1, Name: "Survey"}})
	require.True(t, c.Get(ctx, key, &got))
	assert.Equal(t, []item{{ID: 1, Name: "Survey"}}, got)

	mr.FastForward(2 * time.Minute)
	assert.False(t, c.Get(ctx, key, &got))
}

func TestKeyHidesToken(t *testing.T) {
	k := Key("secret-token", "projects")
	assert.NotContains(t, k, "secret-token")
	assert.NotEqual(t, k, Key("other-token", "projects"))
	assert.Equal(t, k, Key("secret-token", "projects"))
}

func TestDrop(t *testing.T) {
	c, _ := newCache(t, time.Minute)
	ctx := context.Background()
	c.Set(ctx, Key("a", "projects"), 1)
	c.Set(ctx, Key("a", "projects/1/datasets"), 2)
	c.Set(ctx, Key("b", "projects"), 3)

	c.Drop(ctx, "a")
	var n int
	assert.False(t, c.Get(ctx, Key("a", "projects"), &n))
	assert.False(t, c.Get(ctx, Key("a", "projects/1/datasets"), &n))
	require.True(t, c.Get(ctx, Key("b", "projects"), &n))
	assert.Equal(t, 3, n)
}

func TestNilCache(t *testing.T) {
	c := New(nil, time.Minute)
	assert.Nil(t, c)
	var v int
	assert.False(t, c.Get(context.Background(), "k", &v))
	c.Set(context.Background(), "k", 1)
	c.Drop(context.Background(), "tok")
}

func TestUnavailableRedis(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	mr.Close()
	var v int
	assert.False(t, c.Get(context.Background(), "k", &v))
	c.Set(context.Background(), "k", 1)
}
