package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/codegraph-dev/codegraph/internal/model"
)

// AdaptiveCache is the L1 tier: an ARC (Adaptive Replacement Cache)
// implementation bounded by both entry count and a byte budget, with a
// per-entry TTL. ARC tracks two LRU lists of resident entries (T1:
// recently used once, T2: used more than once) and two ghost lists of
// recently evicted keys (B1, B2), adapting the target size of T1 based
// on which ghost list records a hit. This balances recency against
// frequency without a fixed, hand-tuned split.
type AdaptiveCache[T Sizer] struct {
	mu sync.Mutex

	items map[model.CacheKey]*list.Element
	t1 *list.List
	t2 *list.List
	b1 *list.List
	b2 *list.List

	maxEntries int
	maxBytes int64
	ttl time.Duration
	targetT1 int // the adaptive parameter p.
	bytes int64

	hits int64
	misses int64
}

type arcNode[T Sizer] struct {
	key model.CacheKey
	value T
	size int64
	expiresAt time.Time
	ghost bool
}

// NewAdaptiveCache creates an L1 cache bounded by maxEntries resident
// items, maxBytes of estimated size, and ttl per entry (zero disables
// expiry).
func NewAdaptiveCache[T Sizer](maxEntries int, maxBytes int64, ttl time.Duration) *AdaptiveCache[T] {
	if maxEntries <= 0 {
		maxEntries = 1
	}

	return &AdaptiveCache[T]{
		items: make(map[model.CacheKey]*list.Element),
		t1: list.New(),
		t2: list.New(),
		b1: list.New(),
		b2: list.New(),
		maxEntries: maxEntries,
		maxBytes: maxBytes,
		ttl: ttl,
	}
}

// Get returns a resident value for key, promoting it within the ARC
// lists on a hit. Expired entries are treated as misses and evicted.
func (c *AdaptiveCache[T]) Get(key model.CacheKey) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T

	elem, ok := c.items[key]
	if !ok {
		c.misses++

		return zero, false
	}

	node, _ := elem.Value.(*arcNode[T])

	if node.ghost {
		c.misses++

		return zero, false
	}

	if c.expired(node) {
		c.removeResident(elem, node)
		c.misses++

		return zero, false
	}

	c.hits++
	c.promote(elem, node)

	return node.value, true
}

func (c *AdaptiveCache[T]) expired(node *arcNode[T]) bool {
	return c.ttl > 0 && !node.expiresAt.IsZero() && time.Now().After(node.expiresAt)
}

// promote moves a hit entry to the MRU end of T2 (entries seen more
// than once live in T2; a T1 hit graduates the entry to T2).
func (c *AdaptiveCache[T]) promote(elem *list.Element, node *arcNode[T]) {
	switch {
	case isIn(c.t1, elem):
		c.t1.Remove(elem)
	case isIn(c.t2, elem):
		c.t2.Remove(elem)
	default:
		return
	}

	c.items[node.key] = c.t2.PushFront(node)
}

func isIn(l *list.List, elem *list.Element) bool {
	for e := l.Front(); e != nil; e = e.Next() {
		if e == elem {
			return true
		}
	}

	return false
}

// Set inserts or updates key, following the ARC adaptation rules: a
// fetch for a key remembered in a ghost list (B1/B2) adjusts the target
// T1 size before the entry is installed in T2; a genuinely new key is
// installed in T1 subject to the REPLACE eviction rule.
func (c *AdaptiveCache[T]) Set(key model.CacheKey, value T, ttlOverride time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := value.EstimateSize()

	if elem, ok := c.items[key]; ok {
		node, _ := elem.Value.(*arcNode[T])
		if !node.ghost {
			c.bytes += size - node.size
			node.value = value
			node.size = size
			node.expiresAt = c.expiryFor(ttlOverride)
			c.promote(elem, node)
			c.enforceBudget()

			return
		}

		c.adaptOnGhostHit(elem, node)
		c.removeGhost(elem, node)

		node.ghost = false
		node.value = value
		node.size = size
		node.expiresAt = c.expiryFor(ttlOverride)
		c.bytes += size
		c.items[key] = c.t2.PushFront(node)
		c.replace(key)
		c.enforceBudget()

		return
	}

	c.insertNew(key, value, size, ttlOverride)
}

func (c *AdaptiveCache[T]) expiryFor(override time.Duration) time.Time {
	ttl := c.ttl
	if override > 0 {
		ttl = override
	}

	if ttl <= 0 {
		return time.Time{}
	}

	return time.Now().Add(ttl)
}

func (c *AdaptiveCache[T]) adaptOnGhostHit(elem *list.Element, node *arcNode[T]) {
	switch {
	case isIn(c.b1, elem):
		delta := 1
		if c.b1.Len() > 0 && c.b2.Len() > 0 {
			delta = max(1, c.b2.Len()/c.b1.Len())
		}

		c.targetT1 = min(c.maxEntries, c.targetT1+delta)
	case isIn(c.b2, elem):
		delta := 1
		if c.b1.Len() > 0 && c.b2.Len() > 0 {
			delta = max(1, c.b1.Len()/c.b2.Len())
		}

		c.targetT1 = max(0, c.targetT1-delta)
	}
}

func (c *AdaptiveCache[T]) removeGhost(elem *list.Element, node *arcNode[T]) {
	switch {
	case isIn(c.b1, elem):
		c.b1.Remove(elem)
	case isIn(c.b2, elem):
		c.b2.Remove(elem)
	}

	delete(c.items, node.key)
}

func (c *AdaptiveCache[T]) insertNew(key model.CacheKey, value T, size int64, ttlOverride time.Duration) {
	residentCount := c.t1.Len() + c.t2.Len()
	if residentCount >= c.maxEntries {
		c.replace(key)
		c.trimGhostLists()
	}

	node := &arcNode[T]{key: key, value: value, size: size, expiresAt: c.expiryFor(ttlOverride)}
	c.items[key] = c.t1.PushFront(node)
	c.bytes += size
	c.enforceBudget()
}

// trimGhostLists keeps |B1|+|B2| bounded relative to maxEntries so the
// ghost lists don't grow unbounded in a workload with a large key space.
func (c *AdaptiveCache[T]) trimGhostLists() {
	for c.b1.Len()+c.b2.Len() > c.maxEntries {
		if c.b1.Len() > c.b2.Len() {
			c.dropGhostLRU(c.b1)
		} else {
			c.dropGhostLRU(c.b2)
		}
	}
}

func (c *AdaptiveCache[T]) dropGhostLRU(l *list.List) {
	back := l.Back()
	if back == nil {
		return
	}

	node, _ := back.Value.(*arcNode[T])
	l.Remove(back)
	delete(c.items, node.key)
}

// replace implements ARC's REPLACE(x): evict the LRU of T1 into B1, or
// the LRU of T2 into B2, chosen by comparing |T1| against the adaptive
// target p.
func (c *AdaptiveCache[T]) replace(key model.CacheKey) {
	t1Len := c.t1.Len()

	evictFromT1 := t1Len > 0 && (t1Len > c.targetT1 || (t1Len == c.targetT1 && c.inB2(key)))

	if evictFromT1 {
		c.moveLRUToGhost(c.t1, c.b1)
	} else if c.t2.Len() > 0 {
		c.moveLRUToGhost(c.t2, c.b2)
	} else if t1Len > 0 {
		c.moveLRUToGhost(c.t1, c.b1)
	}
}

func (c *AdaptiveCache[T]) inB2(key model.CacheKey) bool {
	elem, ok := c.items[key]
	if !ok {
		return false
	}

	return isIn(c.b2, elem)
}

func (c *AdaptiveCache[T]) moveLRUToGhost(resident, ghost *list.List) {
	back := resident.Back()
	if back == nil {
		return
	}

	node, _ := back.Value.(*arcNode[T])
	resident.Remove(back)
	c.bytes -= node.size

	node.value = *new(T) //nolint:gocritic // zero the payload; only the key survives in a ghost entry.
	node.size = 0
	node.ghost = true
	c.items[node.key] = ghost.PushFront(node)
}

// enforceBudget evicts resident LRU entries (preferring T1 over T2, as
// REPLACE does) until the cache is back within its byte budget.
func (c *AdaptiveCache[T]) enforceBudget() {
	if c.maxBytes <= 0 {
		return
	}

	for c.bytes > c.maxBytes {
		if c.t1.Len() > 0 {
			c.moveLRUToGhost(c.t1, c.b1)

			continue
		}

		if c.t2.Len() > 0 {
			c.moveLRUToGhost(c.t2, c.b2)

			continue
		}

		break
	}
}

func (c *AdaptiveCache[T]) removeResident(elem *list.Element, node *arcNode[T]) {
	switch {
	case isIn(c.t1, elem):
		c.t1.Remove(elem)
	case isIn(c.t2, elem):
		c.t2.Remove(elem)
	default:
		return
	}

	c.bytes -= node.size
	delete(c.items, node.key)
}

// Invalidate removes key from L1 entirely (including its ghost record,
// if any).
func (c *AdaptiveCache[T]) Invalidate(key model.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return
	}

	node, _ := elem.Value.(*arcNode[T])

	switch {
	case isIn(c.t1, elem):
		c.t1.Remove(elem)
		c.bytes -= node.size
	case isIn(c.t2, elem):
		c.t2.Remove(elem)
		c.bytes -= node.size
	case isIn(c.b1, elem):
		c.b1.Remove(elem)
	case isIn(c.b2, elem):
		c.b2.Remove(elem)
	}

	delete(c.items, key)
}

// Stats reports L1 hit/miss counters and current resident entry count.
func (c *AdaptiveCache[T]) Stats() TierStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return TierStats{Hits: c.hits, Misses: c.misses, Entries: c.t1.Len() + c.t2.Len()}
}
