package cache

import (
	"log/slog"
	"time"

	"github.com/codegraph-dev/codegraph/internal/model"
)

// l2Writer is the subset of DiskCache's write surface the background
// writer goroutine needs; parameterising over it lets Tiered stay
// generic without exposing DiskCache's internals.
type l2Writer[T Sizer] interface {
	Get(model.CacheKey) (T, bool)
	Set(model.CacheKey, T) error
	Invalidate(model.CacheKey) error
	Stats() TierStats
}

// writeJob is one pending L2 write, queued to the background writer
// over a single-producer channel so L2 I/O never blocks a caller's Set.
type writeJob[T Sizer] struct {
	key model.CacheKey
	value T
}

// Tiered is the single read/write facade over L0, L1, and L2: callers
// never talk to an individual tier directly.
type Tiered[T Sizer] struct {
	l0 *SessionCache[T]
	l1 *AdaptiveCache[T]
	l2 l2Writer[T]
	logger *slog.Logger

	writeQueue chan writeJob[T]
	done chan struct{}
	async bool
}

// Options configures a Tiered cache's tier bounds, matching the
// `cache: {...}` configuration block.
type Options struct {
	L0MaxEntries int64
	L1MaxEntries int
	L1MaxBytes int64
	L1TTL time.Duration
	EnableBackgroundL2 bool
	L2QueueDepth int
}

// NewTiered assembles the three tiers behind one facade. l2 may be nil
// to run without a persistent tier (e.g. in tests); in that case reads
// simply miss past L1 and writes skip the L2 step.
func NewTiered[T Sizer](opts Options, l2 l2Writer[T], logger *slog.Logger) *Tiered[T] {
	if logger == nil {
		logger = slog.Default()
	}

	depth := opts.L2QueueDepth
	if depth <= 0 {
		depth = 1024
	}

	t := &Tiered[T]{
		l0: NewSessionCache[T](opts.L0MaxEntries),
		l1: NewAdaptiveCache[T](opts.L1MaxEntries, opts.L1MaxBytes, opts.L1TTL),
		l2: l2,
		logger: logger,
		async: opts.EnableBackgroundL2 && l2 != nil,
	}

	if t.async {
		t.writeQueue = make(chan writeJob[T], depth)
		t.done = make(chan struct{})

		go t.runBackgroundWriter()
	}

	return t
}

// Get implements the tiered read path: L0 fast check implicitly via
// FastGet, L0 full check, L1, L2, miss. On an L1 hit the value is
// promoted to L0; on an L2 hit it is promoted to both L1 and L0.
func (t *Tiered[T]) Get(key model.CacheKey, meta model.FileMetadata) (T, bool) {
	if v, ok := t.l0.FastGet(key, meta); ok {
		return v, true
	}

	if v, ok := t.l1.Get(key); ok {
		t.l0.Set(key, v, meta)

		return v, true
	}

	if t.l2 != nil {
		if v, ok := t.l2.Get(key); ok {
			t.l1.Set(key, v, 0)
			t.l0.Set(key, v, meta)

			return v, true
		}
	}

	var zero T

	return zero, false
}

// Set implements the tiered write path: synchronous insert into L0
// and L1, with L2 either written synchronously or dispatched to the
// background writer depending on configuration.
func (t *Tiered[T]) Set(key model.CacheKey, value T, meta model.FileMetadata) error {
	t.l0.Set(key, value, meta)
	t.l1.Set(key, value, 0)

	if t.l2 == nil {
		return nil
	}

	if !t.async {
		return t.l2.Set(key, value)
	}

	select {
	case t.writeQueue <- writeJob[T]{key: key, value: value}:
		return nil
	default:
		// Queue overflow: fall back to a synchronous write for this key
		// rather than dropping it.
		t.logger.Warn("l2 write queue full, writing synchronously", "file_id", key.FileID)

		return t.l2.Set(key, value)
	}
}

// runBackgroundWriter drains writeQueue in arrival order, preserving
// per-key ordering as required by the concurrency model. A write
// failure is logged as a cache-internal error and does not fail the
// caller's original Set, which has already returned.
func (t *Tiered[T]) runBackgroundWriter() {
	for job := range t.writeQueue {
		if err := t.l2.Set(job.key, job.value); err != nil {
			t.logger.Error("background l2 write failed", "file_id", job.key.FileID, "error", err)
		}
	}

	close(t.done)
}

// Invalidate removes key from L0 and L1 synchronously; L2 removal
// follows the configured write mode (synchronous here, since
// invalidation must observably take effect before returning).
func (t *Tiered[T]) Invalidate(key model.CacheKey) error {
	t.l0.Invalidate(key)
	t.l1.Invalidate(key)

	if t.l2 == nil {
		return nil
	}

	return t.l2.Invalidate(key)
}

// PurgeOrphans removes L0 entries whose file_id is not in liveFileIDs:
// orphaned entries are purged when the owning file_id is no longer
// reachable from the current commit.
func (t *Tiered[T]) PurgeOrphans(liveFileIDs map[string]bool) int {
	return t.l0.PurgeOrphans(liveFileIDs)
}

// Close drains the background writer (if running) and stops accepting
// further writes, matching the shutdown requirement that the L2
// writer queue is drained before exit.
func (t *Tiered[T]) Close() error {
	if t.async {
		close(t.writeQueue)
		<-t.done
	}

	return nil
}

// Stats reports per-tier hit/miss counters for the "Metrics" line.
type Stats struct {
	L0 TierStats
	L1 TierStats
	L2 TierStats
}

// Stats aggregates per-tier statistics.
func (t *Tiered[T]) Stats() Stats {
	s := Stats{L0: t.l0.Stats(), L1: t.l1.Stats()}
	if t.l2 != nil {
		s.L2 = t.l2.Stats()
	}

	return s
}

// OverallHitRate returns the combined hit rate across all three tiers.
func (s Stats) OverallHitRate() float64 {
	hits := s.L0.Hits + s.L1.Hits + s.L2.Hits
	total := hits + s.L0.Misses + s.L1.Misses + s.L2.Misses

	if total == 0 {
		return 0
	}

	return float64(hits) / float64(total)
}
