package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackend(client, "licenses")
	t.Cleanup(func() { _ = backend.Close() })
	return backend, mr
}

func TestRedisBackend_SetGetDelete(t *testing.T) {
	backend, mr := newRedisBackend(t)
	ctx := context.Background()

	_, ok, err := backend.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Set(ctx, "k", []byte(`{"id":"1"}`), time.Minute))
	assert.True(t, mr.Exists("licenses:k"))

	val, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"1"}`, string(val))

	require.NoError(t, backend.Delete(ctx, "k"))
	_, ok, err = backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackend_Expiry(t *testing.T) {
	backend, mr := newRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackend_ServerDownIsACacheMiss(t *testing.T) {
	backend, mr := newRedisBackend(t)
	c := New[item]("redis", backend, zerolog.Nop(), nil)
	mr.Close()

	var calls int
	got, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(ctx context.Context) (item, error) {
		calls++
		return item{ID: "computed"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "computed", got.ID)
	assert.Equal(t, 1, calls)
}

func TestRedisBackend_WithCache(t *testing.T) {
	backend, _ := newRedisBackend(t)
	c := New[[]item]("redis", backend, zerolog.Nop(), nil)
	ctx := context.Background()

	var calls int
	fn := func(ctx context.Context) ([]item, error) {
		calls++
		return []item{{ID: "a"}, {ID: "b"}}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := c.GetOrCompute(ctx, Key("ns", "licenses"), time.Hour, fn)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	assert.Equal(t, 1, calls)
}

func TestNewRedisBackendFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	backend, err := NewRedisBackendFromURL(context.Background(), "redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	require.NoError(t, backend.Set(context.Background(), "plain", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("plain"))

	_, err = NewRedisBackendFromURL(context.Background(), "not-a-url://", "")
	assert.Error(t, err)
}
