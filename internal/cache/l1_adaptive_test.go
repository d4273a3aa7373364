package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codegraph-dev/codegraph/internal/cache"
	"github.com/codegraph-dev/codegraph/internal/model"
)

func TestAdaptiveCacheEvictsByEntryCount(t *testing.T) {
	t.Parallel()

	l1 := cache.NewAdaptiveCache[blob](2, 0, 0)

	l1.Set(model.CacheKey{FileID: "a"}, blob{Data: "1"}, 0)
	l1.Set(model.CacheKey{FileID: "b"}, blob{Data: "2"}, 0)
	l1.Set(model.CacheKey{FileID: "c"}, blob{Data: "3"}, 0)

	assert.LessOrEqual(t, l1.Stats().Entries, 2)
}

func TestAdaptiveCacheRespectsByteBudget(t *testing.T) {
	t.Parallel()

	l1 := cache.NewAdaptiveCache[blob](100, 10, 0)

	l1.Set(model.CacheKey{FileID: "a"}, blob{Data: "0123456789"}, 0)
	l1.Set(model.CacheKey{FileID: "b"}, blob{Data: "0123456789"}, 0)

	_, aStillThere := l1.Get(model.CacheKey{FileID: "a"})
	_, bStillThere := l1.Get(model.CacheKey{FileID: "b"})
	assert.False(t, aStillThere && bStillThere, "byte budget of 10 cannot hold two 10-byte entries")
}

func TestAdaptiveCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	l1 := cache.NewAdaptiveCache[blob](10, 0, time.Millisecond)

	key := model.CacheKey{FileID: "a"}
	l1.Set(key, blob{Data: "v"}, 0)

	time.Sleep(5 * time.Millisecond)

	_, ok := l1.Get(key)
	assert.False(t, ok)
}

func TestAdaptiveCacheHitPromotesAcrossGets(t *testing.T) {
	t.Parallel()

	l1 := cache.NewAdaptiveCache[blob](10, 0, 0)
	key := model.CacheKey{FileID: "a"}

	l1.Set(key, blob{Data: "v"}, 0)

	v, ok := l1.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "v", v.Data)
	assert.Equal(t, int64(1), l1.Stats().Hits)
}

func TestAdaptiveCacheInvalidate(t *testing.T) {
	t.Parallel()

	l1 := cache.NewAdaptiveCache[blob](10, 0, 0)
	key := model.CacheKey{FileID: "a"}

	l1.Set(key, blob{Data: "v"}, 0)
	l1.Invalidate(key)

	_, ok := l1.Get(key)
	assert.False(t, ok)
}
