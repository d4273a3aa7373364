// Package cache implements the tiered L0/L1/L2 cache described in :
// an in-process session cache, an ARC-adaptive in-memory cache, and a
// persistent on-disk cache, coordinated behind one read/write contract.
package cache

import "github.com/codegraph-dev/codegraph/internal/model"

// Sizer is implemented by cached values that can estimate their own
// memory footprint, used by L1's byte budget.
type Sizer interface {
	EstimateSize() int64
}

// Entry pairs a cached value with the FileMetadata it was computed
// against, so the L0 fast path can validate a hit without a full key
// lookup.
type Entry[T Sizer] struct {
	Value T
	Metadata model.FileMetadata
}
