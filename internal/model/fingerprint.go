package model

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// ContentHash computes the deterministic content hash used for Chunk
// content addressing. Two chunks sharing a ContentHash must share
// Content byte-for-byte (the store's ChunkContentInconsistent
// invariant); sha256 gives us that collision resistance cheaply enough
// since content hashing happens once per chunk, not on every cache hit.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))

	return hex.EncodeToString(sum[:])
}

// FileID derives the CacheKey.file_id from a language and a normalised,
// repo-relative path. xxhash is used here instead of sha256 because
// FileID is recomputed on every cache lookup (the hot path), where a
// non-cryptographic hash is the right tradeoff.
func FileID(language, normalisedPath string) string {
	h := xxhash.New()
	_, _ = h.WriteString(language)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(normalisedPath)

	return hex.EncodeToString(h.Sum(nil))
}
