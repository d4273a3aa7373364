package cache

import (
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/codegraph-dev/codegraph/internal/model"
)

// membershipFilter is L0's optional approximate-membership gate: a
// fixed-size Bloom filter using the Kirsch-Mitzenmacher double-hashing
// technique (two base hashes derive k bit positions via
// h(i) = h1 + i*h2 mod m), so a FastGet/Get miss never has to touch the
// sync.Map at all when the key was never inserted.
type membershipFilter struct {
	mu   sync.Mutex
	bits []uint64
	m    uint64
	k    uint64
}

const (
	membershipDefaultN  = 100_000
	membershipDefaultFP = 0.01
	bitsPerWord         = 64
)

func newMembershipFilter() *membershipFilter {
	return newMembershipFilterSized(membershipDefaultN, membershipDefaultFP)
}

func newMembershipFilterSized(n uint64, fp float64) *membershipFilter {
	m := optimalBits(n, fp)
	k := optimalHashes(m, n)
	words := (m + bitsPerWord - 1) / bitsPerWord

	return &membershipFilter{bits: make([]uint64, words), m: m, k: k}
}

func optimalBits(n uint64, fp float64) uint64 {
	if n == 0 {
		n = 1
	}

	m := math.Ceil(-float64(n) * math.Log(fp) / (math.Ln2 * math.Ln2))

	return uint64(m)
}

func optimalHashes(m, n uint64) uint64 {
	if n == 0 {
		n = 1
	}

	k := math.Round(float64(m) / float64(n) * math.Ln2)
	if k < 1 {
		k = 1
	}

	return uint64(k)
}

func (f *membershipFilter) positions(key model.CacheKey) (h1, h2 uint64) {
	sum := xxhash.Sum64String(key.FileID + "\x00" + key.AnalysisTag)
	h1 = sum
	h2 = xxhash.Sum64String(key.AnalysisTag + "\x00" + key.FileID + "\x01")

	if h2 == 0 {
		h2 = 1
	}

	return h1, h2
}

// Add records key in the filter.
func (f *membershipFilter) Add(key model.CacheKey) {
	h1, h2 := f.positions(key)

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := uint64(0); i < f.k; i++ {
		pos := (h1 + i*h2) % f.m
		f.bits[pos/bitsPerWord] |= 1 << (pos % bitsPerWord)
	}
}

// MayContain reports whether key might be present. False means
// definitely absent; true means possibly present (subject to the
// filter's false-positive rate).
func (f *membershipFilter) MayContain(key model.CacheKey) bool {
	h1, h2 := f.positions(key)

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := uint64(0); i < f.k; i++ {
		pos := (h1 + i*h2) % f.m
		if f.bits[pos/bitsPerWord]&(1<<(pos%bitsPerWord)) == 0 {
			return false
		}
	}

	return true
}
