package cache_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/cache"
	"github.com/codegraph-dev/codegraph/internal/model"
)

// blob is a minimal Sizer implementation used as the cached artifact
// type across cache package tests.
type blob struct {
	Data string
}

func (b blob) EstimateSize() int64 { return int64(len(b.Data)) }

func newDiskCache(t *testing.T) *cache.DiskCache[blob] {
	t.Helper()

	dc, err := cache.OpenDiskCache[blob](cache.DiskCacheOptions{Dir: t.TempDir()}, cache.JSONCodec[blob]{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = dc.Close() })

	return dc
}

// Scenario 5: tiered cache promotion.
func TestTieredCachePromotion(t *testing.T) {
	t.Parallel()

	l2 := newDiskCache(t)
	tiered := cache.NewTiered[blob](cache.Options{L0MaxEntries: 100, L1MaxEntries: 100, L1MaxBytes: 1 << 20}, l2, nil)

	key := model.CacheKey{FileID: "f1", AnalysisTag: "lexical"}
	require.NoError(t, l2.Set(key, blob{Data: "v1"}))

	v, ok := tiered.Get(key, model.FileMetadata{})
	require.True(t, ok)
	assert.Equal(t, "v1", v.Data)
	assert.Equal(t, int64(1), tiered.Stats().L2.Hits)

	v, ok = tiered.Get(key, model.FileMetadata{})
	require.True(t, ok)
	assert.Equal(t, "v1", v.Data)
	assert.Equal(t, int64(1), tiered.Stats().L0.Hits)
}

func TestTieredCacheInvalidate(t *testing.T) {
	t.Parallel()

	tiered := cache.NewTiered[blob](cache.Options{L0MaxEntries: 100, L1MaxEntries: 100, L1MaxBytes: 1 << 20}, nil, nil)

	key := model.CacheKey{FileID: "f1"}
	meta := model.FileMetadata{MtimeNS: 1, SizeBytes: 2}

	require.NoError(t, tiered.Set(key, blob{Data: "v1"}, meta))

	v, ok := tiered.Get(key, meta)
	require.True(t, ok)
	assert.Equal(t, "v1", v.Data)

	require.NoError(t, tiered.Invalidate(key))

	_, ok = tiered.Get(key, meta)
	assert.False(t, ok)
}

func TestDiskCachePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := cache.JSONCodec[blob]{}

	dc1, err := cache.OpenDiskCache[blob](cache.DiskCacheOptions{Dir: dir, Compress: true}, codec)
	require.NoError(t, err)

	key := model.CacheKey{FileID: "f1"}
	require.NoError(t, dc1.Set(key, blob{Data: "hello world"}))
	require.NoError(t, dc1.Close())

	dc2, err := cache.OpenDiskCache[blob](cache.DiskCacheOptions{Dir: dir, Compress: true}, codec)
	require.NoError(t, err)

	t.Cleanup(func() { _ = dc2.Close() })

	v, ok := dc2.Get(key)
	require.True(t, ok)
	assert.Equal(t, "hello world", v.Data)
}

func TestDiskCacheTombstoneSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := cache.JSONCodec[blob]{}

	dc1, err := cache.OpenDiskCache[blob](cache.DiskCacheOptions{Dir: dir}, codec)
	require.NoError(t, err)

	key := model.CacheKey{FileID: "f1"}
	require.NoError(t, dc1.Set(key, blob{Data: "v1"}))
	require.NoError(t, dc1.Invalidate(key))
	require.NoError(t, dc1.Close())

	dc2, err := cache.OpenDiskCache[blob](cache.DiskCacheOptions{Dir: dir}, codec)
	require.NoError(t, err)

	t.Cleanup(func() { _ = dc2.Close() })

	_, ok := dc2.Get(key)
	assert.False(t, ok)
}

func TestSessionCacheFastPathAndEviction(t *testing.T) {
	t.Parallel()

	l0 := cache.NewSessionCache[blob](2)
	meta := model.FileMetadata{MtimeNS: 10, SizeBytes: 20}
	key := model.CacheKey{FileID: "f1"}

	l0.Set(key, blob{Data: "v1"}, meta)

	v, ok := l0.FastGet(key, meta)
	require.True(t, ok)
	assert.Equal(t, "v1", v.Data)

	_, ok = l0.FastGet(key, model.FileMetadata{MtimeNS: 99})
	assert.True(t, ok) // metadata mismatch falls through to full lookup, which still hits.

	l0.Set(model.CacheKey{FileID: "f2"}, blob{Data: "v2"}, meta)
	l0.Set(model.CacheKey{FileID: "f3"}, blob{Data: "v3"}, meta)
	assert.LessOrEqual(t, l0.Stats().Entries, 2)
}

func TestSessionCachePurgeOrphans(t *testing.T) {
	t.Parallel()

	l0 := cache.NewSessionCache[blob](10)
	meta := model.FileMetadata{}

	l0.Set(model.CacheKey{FileID: "live"}, blob{Data: "a"}, meta)
	l0.Set(model.CacheKey{FileID: "dead"}, blob{Data: "b"}, meta)

	removed := l0.PurgeOrphans(map[string]bool{"live": true})
	assert.Equal(t, 1, removed)

	_, ok := l0.Get(model.CacheKey{FileID: "dead"})
	assert.False(t, ok)

	_, ok = l0.Get(model.CacheKey{FileID: "live"})
	assert.True(t, ok)
}

func TestDiskCachePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := cache.OpenDiskCache[blob](cache.DiskCacheOptions{Dir: filepath.Join(dir, "nested")}, cache.JSONCodec[blob]{})
	require.NoError(t, err)
}
