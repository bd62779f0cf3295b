package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheManager_GetMiss(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("names", DefaultExpiration, DefaultCleanupInterval)

	_, ok := cache.Get(context.Background(), "absent")
	require.False(t, ok)
}

func TestInMemoryCacheManager_SetGet(t *testing.T) {
	cache := NewInMemoryCacheManager[string, []string]("workspace-list", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	cache.Set(ctx, "all", []string{"default", "staging"}, time.Minute)

	got, ok := cache.Get(ctx, "all")
	require.True(t, ok)
	require.Equal(t, []string{"default", "staging"}, got)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	cache := NewInMemoryCacheManager[string, int]("counters", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	cache.Set(ctx, "a", 1, time.Minute)
	cache.Set(ctx, "b", 2, time.Minute)

	require.NoError(t, cache.Delete(ctx, "a"))
	_, ok := cache.Get(ctx, "a")
	require.False(t, ok)
	_, ok = cache.Get(ctx, "b")
	require.True(t, ok)

	require.NoError(t, cache.Flush(ctx))
	_, ok = cache.Get(ctx, "b")
	require.False(t, ok)
}

func TestInMemoryCacheManager_TypedKey(t *testing.T) {
	type workspaceName string
	cache := NewInMemoryCacheManager[workspaceName, string]("typed", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	cache.Set(ctx, workspaceName("default"), "root-uuid", time.Minute)

	got, ok := cache.Get(ctx, workspaceName("default"))
	require.True(t, ok)
	require.Equal(t, "root-uuid", got)
}

func TestReadThroughCache_LoadsOnMissAndMemoizes(t *testing.T) {
	cache := NewInMemoryCacheManager[string, []string]("lists", DefaultExpiration, DefaultCleanupInterval)
	calls := 0
	rtc := NewReadThroughCache[string, []string, struct{}](
		cache,
		func(ctx context.Context, _ struct{}) ([]string, error) {
			calls++
			return []string{"default"}, nil
		},
		false,
	)
	ctx := context.Background()

	got, err := rtc.Get(ctx, "all", struct{}{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []string{"default"}, got)

	got, err = rtc.Get(ctx, "all", struct{}{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []string{"default"}, got)
	require.Equal(t, 1, calls)
}

func TestReadThroughCache_SkipCacheAlwaysLoads(t *testing.T) {
	cache := NewInMemoryCacheManager[string, int]("skipped", DefaultExpiration, DefaultCleanupInterval)
	calls := 0
	rtc := NewReadThroughCache[string, int, struct{}](
		cache,
		func(ctx context.Context, _ struct{}) (int, error) {
			calls++
			return calls, nil
		},
		true,
	)
	ctx := context.Background()

	first, err := rtc.Get(ctx, "k", struct{}{}, time.Minute)
	require.NoError(t, err)
	second, err := rtc.Get(ctx, "k", struct{}{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, first)
	require.Equal(t, 2, second)
}

func TestReadThroughCache_LoaderErrorNotCached(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("errs", DefaultExpiration, DefaultCleanupInterval)
	fail := true
	rtc := NewReadThroughCache[string, string, struct{}](
		cache,
		func(ctx context.Context, _ struct{}) (string, error) {
			if fail {
				return "", errors.New("source unavailable")
			}
			return "ok", nil
		},
		false,
	)
	ctx := context.Background()

	_, err := rtc.Get(ctx, "k", struct{}{}, time.Minute)
	require.Error(t, err)

	fail = false
	got, err := rtc.Get(ctx, "k", struct{}{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "ok", got)
}

func TestReadThroughCache_Invalidate(t *testing.T) {
	cache := NewInMemoryCacheManager[string, int]("inv", DefaultExpiration, DefaultCleanupInterval)
	calls := 0
	rtc := NewReadThroughCache[string, int, struct{}](
		cache,
		func(ctx context.Context, _ struct{}) (int, error) {
			calls++
			return calls, nil
		},
		false,
	)
	ctx := context.Background()

	_, err := rtc.Get(ctx, "k", struct{}{}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, rtc.Invalidate(ctx, "k"))

	got, err := rtc.Get(ctx, "k", struct{}{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, got)
}
