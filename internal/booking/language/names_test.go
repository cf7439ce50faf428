package language

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

type countingSource struct {
	names map[int64]string
	calls int
}

func (s *countingSource) LanguageName(_ context.Context, id int64) (string, error) {
	s.calls++
	name, ok := s.names[id]
	if !ok {
		return "", domain.NotFoundf("language %d", id)
	}
	return name, nil
}

type mapCache struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	if c.failGet {
		return "", false, errors.New("connection refused")
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNames_CachesAfterFirstLookup(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{names: map[int64]string{7: "Somaliska"}}
	cache := newMapCache()
	n := NewNames(src, cache, time.Hour, discard())

	for i := 0; i < 3; i++ {
		name, err := n.Name(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "Somaliska", name)
	}
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, time.Hour, cache.ttls["tolkbooking:language:7"])
}

func TestNames_UnknownLanguageNotCached(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{names: map[int64]string{}}
	cache := newMapCache()
	n := NewNames(src, cache, time.Hour, discard())

	_, err := n.Name(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, cache.data)
}

func TestNames_CacheFailureFallsBackToSource(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{names: map[int64]string{3: "Tigrinja"}}
	cache := newMapCache()
	cache.failGet = true
	n := NewNames(src, cache, time.Minute, discard())

	name, err := n.Name(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Tigrinja", name)
	assert.Equal(t, 1, src.calls)
}

func TestNames_NilCache(t *testing.T) {
	src := &countingSource{names: map[int64]string{1: "Persiska"}}
	n := NewNames(src, nil, 0, discard())

	name, err := n.Name(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Persiska", name)
}
