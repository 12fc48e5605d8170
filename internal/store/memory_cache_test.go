package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestInMemoryCache_SetGet(t *testing.T) {
	cache := NewInMemoryCache(10, zap.NewNop())
	ctx := context.Background()

	err := cache.Set(ctx, "key-1", []byte("value-1"), 0)
	assert.NoError(t, err)

	value, err := cache.Get(ctx, "key-1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value-1"), value)
}

func TestInMemoryCache_GetMissing(t *testing.T) {
	cache := NewInMemoryCache(10, zap.NewNop())

	_, err := cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryCache_TTLExpiry(t *testing.T) {
	cache := NewInMemoryCache(10, zap.NewNop())
	ctx := context.Background()

	err := cache.Set(ctx, "key-1", []byte("value-1"), 20*time.Millisecond)
	assert.NoError(t, err)

	value, err := cache.Get(ctx, "key-1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value-1"), value)

	time.Sleep(30 * time.Millisecond)
	_, err = cache.Get(ctx, "key-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryCache_Delete(t *testing.T) {
	cache := NewInMemoryCache(10, zap.NewNop())
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, "key-1", []byte("value-1"), 0))
	assert.NoError(t, cache.Delete(ctx, "key-1"))

	_, err := cache.Get(ctx, "key-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryCache_EvictionKeepsSizeBounded(t *testing.T) {
	cache := NewInMemoryCache(2, zap.NewNop())
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, "a", []byte("1"), 0))
	assert.NoError(t, cache.Set(ctx, "b", []byte("2"), 0))
	assert.NoError(t, cache.Set(ctx, "c", []byte("3"), 0))

	found := 0
	for _, key := range []string{"a", "b", "c"} {
		if _, err := cache.Get(ctx, key); err == nil {
			found++
		}
	}
	assert.Equal(t, 2, found)
}
