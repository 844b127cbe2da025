package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "transfer:user-1:key-001"
	value := []byte(`{"id":7,"status":"COMPLETED"}`)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte(`{}`), time.Second))
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestIdempotencyCache_ReserveRelease(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	ok, err := cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation must fail while in flight")

	require.NoError(t, cache.Release(ctx, "k"))
	ok, err = cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(2 * time.Minute)
	ok, err = cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "stale reservations expire")

	assert.False(t, s.Exists("idempotency:k"), "reservation does not touch the result key")
}

func TestIdempotencyCache_Unavailable(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	s.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.Error(t, err)
	_, err = cache.Reserve(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
