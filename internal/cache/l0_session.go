package cache

import (
	"sync"
	"sync/atomic"

	"github.com/codegraph-dev/codegraph/internal/model"
)

// SessionCache is the L0 tier: a bounded-by-count, in-process cache
// whose entries live in a sync.Map. Reads are not lock-free: every
// lookup first consults the membership filter, which takes a mutex.
// It exposes a fast path that trusts (mtime_ns,
// size_bytes) as a cheap discriminator before falling back to a full
// key lookup, and an optional approximate-membership filter (a
// bloom-style gate) to skip expensive downstream probes on definite
// misses.
type SessionCache[T Sizer] struct {
	entries sync.Map // model.CacheKey -> *Entry[T]
	membership *membershipFilter
	maxEntries int64
	count atomic.Int64
	fastHits atomic.Int64
	fullHits atomic.Int64
	misses atomic.Int64
}

// NewSessionCache creates an L0 cache bounded to maxEntries. A zero or
// negative maxEntries disables the bound (grows unchecked; callers
// running untrusted-size workloads should always set one).
func NewSessionCache[T Sizer](maxEntries int64) *SessionCache[T] {
	return &SessionCache[T]{
		maxEntries: maxEntries,
		membership: newMembershipFilter(),
	}
}

// FastGet returns a value if key is present and its stored FileMetadata
// matches meta exactly on (mtime_ns, size_bytes), the cheap path that
// avoids hashing the full fingerprint on every lookup.
func (c *SessionCache[T]) FastGet(key model.CacheKey, meta model.FileMetadata) (T, bool) {
	var zero T

	if c.membership != nil && !c.membership.MayContain(key) {
		c.misses.Add(1)

		return zero, false
	}

	raw, ok := c.entries.Load(key)
	if !ok {
		c.misses.Add(1)

		return zero, false
	}

	entry, _ := raw.(*Entry[T])
	if entry.Metadata.MtimeNS == meta.MtimeNS && entry.Metadata.SizeBytes == meta.SizeBytes {
		c.fastHits.Add(1)

		return entry.Value, true
	}

	return c.fullGet(key)
}

// Get performs the full key lookup, ignoring file metadata.
func (c *SessionCache[T]) Get(key model.CacheKey) (T, bool) {
	return c.fullGet(key)
}

func (c *SessionCache[T]) fullGet(key model.CacheKey) (T, bool) {
	var zero T

	if c.membership != nil && !c.membership.MayContain(key) {
		c.misses.Add(1)

		return zero, false
	}

	raw, ok := c.entries.Load(key)
	if !ok {
		c.misses.Add(1)

		return zero, false
	}

	c.fullHits.Add(1)

	entry, _ := raw.(*Entry[T])

	return entry.Value, true
}

// Set inserts value under key with the given FileMetadata, evicting an
// arbitrary entry if the cache is at its entry-count bound. Eviction is
// best-effort and unordered: L0 favours O(1) inserts over precise LRU,
// relying on L1/L2 to hold the entries that matter across evictions.
func (c *SessionCache[T]) Set(key model.CacheKey, value T, meta model.FileMetadata) {
	_, existed := c.entries.Load(key)

	c.entries.Store(key, &Entry[T]{Value: value, Metadata: meta})

	if c.membership != nil {
		c.membership.Add(key)
	}

	if !existed {
		newCount := c.count.Add(1)
		if c.maxEntries > 0 && newCount > c.maxEntries {
			c.evictOne(key)
		}
	}
}

// evictOne removes a single arbitrary entry other than justInserted,
// keeping L0 within its entry-count bound.
func (c *SessionCache[T]) evictOne(justInserted model.CacheKey) {
	var victim model.CacheKey

	found := false

	c.entries.Range(func(k, _ any) bool {
		key, _ := k.(model.CacheKey)
		if key != justInserted {
			victim = key
			found = true

			return false
		}

		return true
	})

	if found {
		c.entries.Delete(victim)
		c.count.Add(-1)
	}
}

// Invalidate removes key from L0.
func (c *SessionCache[T]) Invalidate(key model.CacheKey) {
	if _, existed := c.entries.LoadAndDelete(key); existed {
		c.count.Add(-1)
	}
}

// PurgeOrphans removes every L0 entry whose CacheKey.FileID is not in
// liveFileIDs.
func (c *SessionCache[T]) PurgeOrphans(liveFileIDs map[string]bool) int {
	removed := 0

	c.entries.Range(func(k, _ any) bool {
		key, _ := k.(model.CacheKey)
		if !liveFileIDs[key.FileID] {
			c.entries.Delete(key)
			c.count.Add(-1)

			removed++
		}

		return true
	})

	return removed
}

// Stats reports L0 hit/miss counters.
func (c *SessionCache[T]) Stats() TierStats {
	return TierStats{
		Hits: c.fastHits.Load() + c.fullHits.Load(),
		Misses: c.misses.Load(),
		Entries: int(c.count.Load()),
	}
}

// TierStats holds per-tier hit/miss metrics for the "Metrics" line.
type TierStats struct {
	Hits int64
	Misses int64
	Entries int
}

// HitRate returns Hits / (Hits + Misses), or 0 when there have been no
// lookups.
func (s TierStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}
