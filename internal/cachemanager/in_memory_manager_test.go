package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordKey string

type exampleRecord struct {
	ID    string
	Label string
}

func newTestCache[V any]() *InMemoryCacheManager[recordKey, V] {
	return NewInMemoryCacheManager[recordKey, V]("records", DefaultExpiration, DefaultCleanupInterval)
}

func TestInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := newTestCache[exampleRecord]()
	rec := exampleRecord{ID: "tag-1", Label: "Smoke"}
	cache.Set(context.Background(), "tag-1", rec, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "tag-1")
	require.True(t, ok)
	require.Equal(t, rec, got)
}

func TestInMemoryCacheManager_GetWithNoExistingValue(t *testing.T) {
	cache := newTestCache[string]()

	got, ok := cache.Get(context.Background(), "missing")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := newTestCache[string]()
	cache.cache.Set("tag-1", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "tag-1")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetMultiple(t *testing.T) {
	cache := newTestCache[string]()

	got, ok := cache.GetMultiple(context.Background(), nil)
	require.False(t, ok)
	require.Nil(t, got)

	got, ok = cache.GetMultiple(context.Background(), []recordKey{"a", "b"})
	require.False(t, ok)
	require.Nil(t, got)

	cache.Set(context.Background(), "a", "Smoke", DefaultExpiration)
	cache.Set(context.Background(), "b", "Regression", DefaultExpiration)
	got, ok = cache.GetMultiple(context.Background(), []recordKey{"a", "b", "c"})
	require.True(t, ok)
	require.Equal(t, map[recordKey]string{"a": "Smoke", "b": "Regression"}, got)
}

func TestInMemoryCacheManager_Expiry(t *testing.T) {
	cache := newTestCache[string]()
	cache.Set(context.Background(), "a", "Smoke", 20*time.Millisecond)

	time.Sleep(40 * time.Millisecond)

	_, ok := cache.Get(context.Background(), "a")
	require.False(t, ok)
}

func TestInMemoryCacheManager_GetWithRefreshExtendsTTL(t *testing.T) {
	cache := newTestCache[string]()
	cache.Set(context.Background(), "a", "Smoke", 50*time.Millisecond)

	got, ok := cache.GetWithRefresh(context.Background(), "a", time.Minute)
	require.True(t, ok)
	require.Equal(t, "Smoke", got)

	time.Sleep(80 * time.Millisecond)
	_, ok = cache.Get(context.Background(), "a")
	require.True(t, ok)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	cache := newTestCache[string]()
	ctx := context.Background()
	cache.Set(ctx, "a", "1", DefaultExpiration)
	cache.Set(ctx, "b", "2", DefaultExpiration)
	cache.Set(ctx, "c", "3", DefaultExpiration)

	require.NoError(t, cache.Delete(ctx, "a"))
	require.Equal(t, 2, cache.Len())

	require.NoError(t, cache.Flush(ctx))
	require.Zero(t, cache.Len())
}
