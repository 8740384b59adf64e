package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCacheRepo struct{ err error }

func (b brokenCacheRepo) Get(context.Context, string, interface{}) error { return b.err }

func (b brokenCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return b.err
}

func (b brokenCacheRepo) DeleteByPattern(context.Context, string) error { return b.err }

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := &memoryCacheRepo{items: map[string][]byte{}}
	cache := NewCacheService(repo, nil, 0, nil, false)

	require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
	hit, err := cache.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.items)
}

func TestCacheServiceRecordsHitsAndMisses(t *testing.T) {
	metrics := NewMetricsService()
	cache := NewCacheService(&memoryCacheRepo{items: map[string][]byte{}}, metrics, time.Minute, nil, true)

	var value int
	hit, err := cache.Get(context.Background(), "k", &value)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(context.Background(), "k", 7, 0))
	hit, err = cache.Get(context.Background(), "k", &value)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, value)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestRememberFallsThroughBrokenCache(t *testing.T) {
	boom := errors.New("redis down")
	cache := NewCacheService(brokenCacheRepo{err: boom}, nil, time.Minute, nil, true)
	loads := 0

	got, err := remember(context.Background(), cache, "k", 0, func(context.Context) ([]string, error) {
		loads++
		return []string{"fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, got)
	assert.Equal(t, 1, loads)

	assert.ErrorIs(t, cache.Invalidate(context.Background(), "k*"), boom)
}

func TestRememberDoesNotCacheLoadErrors(t *testing.T) {
	repo := &memoryCacheRepo{items: map[string][]byte{}}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	_, err := remember(context.Background(), cache, "k", 0, func(context.Context) (int, error) {
		return 0, errors.New("db down")
	})
	require.Error(t, err)
	assert.Empty(t, repo.items)
}
