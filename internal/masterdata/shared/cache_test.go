package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type cachedItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) *Cache {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestFetchJSONPopulatesAndHits(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "masterdata", "product", "1")
	require.NoError(t, err)

	loads := 0
	loader := func(ctx context.Context) (interface{}, error) {
		loads++
		return cachedItem{ID: 1, Name: "Widget"}, nil
	}

	var first cachedItem
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, "Widget", first.Name)

	var second cachedItem
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, first, second)
	require.Equal(t, 1, loads)
}

func TestBumpChangesKeys(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "masterdata", "product", "1")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "masterdata", "product", "1")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "masterdata", "product", "1")
	require.NoError(t, err)
	require.Equal(t, "masterdata:product:1", key)

	var item cachedItem
	require.NoError(t, cache.FetchJSON(ctx, key, &item, func(ctx context.Context) (interface{}, error) {
		return cachedItem{ID: 1, Name: "Widget"}, nil
	}))
	require.Equal(t, int64(1), item.ID)
	require.NoError(t, cache.Bump(ctx))
}
