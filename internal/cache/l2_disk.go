package cache

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/model"
)

// diskEntryTag identifies the payload shape at the front of every disk
// cache record, so unknown future versions can be skipped on read
// rather than corrupting the stream.
const diskEntryTag uint32 = 0xC0DE6A60

// diskEntryVersion is the current on-disk record format version.
const diskEntryVersion uint16 = 1

// Codec serializes a cached value to and from bytes. The Tiered Cache
// is generic over the artifact type; Codec is the one place that type
// has to leave Go's type system to hit a file.
type Codec[T Sizer] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// DiskCache is the L2 tier: a persistent, append-only data file plus a
// tombstone log. The offset index lives only in memory and is rebuilt
// by scanning the data file at open; no index file is written. Entries are self-describing (tag +
// version + payload) and optionally lz4-compressed.
type DiskCache[T Sizer] struct {
	mu sync.Mutex
	codec Codec[T]
	data *os.File
	index map[model.CacheKey]diskOffset
	dir string
	compress bool

	hits int64
	misses int64
}

type diskOffset struct {
	offset int64
	length int64
}

// DiskCacheOptions configures a DiskCache.
type DiskCacheOptions struct {
	Dir string
	Compress bool
}

// OpenDiskCache opens (creating if necessary) a DiskCache rooted at
// opts.Dir, replaying its tombstone log and data file to rebuild the
// in-memory offset index.
func OpenDiskCache[T Sizer](opts DiskCacheOptions, codec Codec[T]) (*DiskCache[T], error) {
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, errs.New(errs.CategoryTransient, "cache.l2.open", err)
	}

	dataPath := filepath.Join(opts.Dir, "data.bin")

	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errs.New(errs.CategoryTransient, "cache.l2.open", err)
	}

	dc := &DiskCache[T]{
		codec: codec,
		data: f,
		index: make(map[model.CacheKey]diskOffset),
		dir: opts.Dir,
		compress: opts.Compress,
	}

	if err := dc.rebuildIndex(); err != nil {
		_ = f.Close()

		return nil, err
	}

	if err := dc.replayTombstones(); err != nil {
		_ = f.Close()

		return nil, err
	}

	return dc, nil
}

// rebuildIndex scans the data file from the start, recording the
// offset and length of the most recent record for each key (a later
// write for the same key shadows an earlier one without reclaiming the
// earlier record's space; compaction is out of scope here).
func (c *DiskCache[T]) rebuildIndex() error {
	if _, err := c.data.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek data file: %w", err)
	}

	r := bufio.NewReader(c.data)

	var offset int64

	for {
		header := make([]byte, headerSize)

		n, err := io.ReadFull(r, header)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("read record header: %w", err)
		}

		tag := binary.LittleEndian.Uint32(header[0:4])
		version := binary.LittleEndian.Uint16(header[4:6])
		keyLen := binary.LittleEndian.Uint32(header[6:10])
		payloadLen := binary.LittleEndian.Uint32(header[10:14])

		keyBuf := make([]byte, keyLen)
		if _, err := io.ReadFull(r, keyBuf); err != nil {
			return fmt.Errorf("read record key: %w", err)
		}

		if _, err := r.Discard(int(payloadLen)); err != nil {
			return fmt.Errorf("skip record payload: %w", err)
		}

		recordLen := int64(headerSize) + int64(keyLen) + int64(payloadLen)

		if tag == diskEntryTag && version == diskEntryVersion {
			key := decodeKey(keyBuf)
			c.index[key] = diskOffset{offset: offset + int64(headerSize) + int64(keyLen), length: int64(payloadLen)}
		}
		// Unknown tag/version: the record was already skipped above, so
		// it is silently ignored here.

		offset += recordLen
		_ = n
	}

	return nil
}

const headerSize = 4 + 2 + 4 + 4 // tag + version + keyLen + payloadLen

func encodeKey(key model.CacheKey) []byte {
	return []byte(key.FileID + "\x00" + key.AnalysisTag)
}

func decodeKey(buf []byte) model.CacheKey {
	s := string(buf)

	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return model.CacheKey{FileID: s[:i], AnalysisTag: s[i+1:]}
		}
	}

	return model.CacheKey{FileID: s}
}

// tombstonePath is the invalidation log referenced by the disk cache
// layout.
func (c *DiskCache[T]) tombstonePath() string {
	return filepath.Join(c.dir, "tombstones.log")
}

func (c *DiskCache[T]) replayTombstones() error {
	f, err := os.Open(c.tombstonePath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("open tombstone log: %w", err)
	}

	defer f.Close()

	scan := bufio.NewScanner(f)
	for scan.Scan() {
		key := decodeKey([]byte(scan.Text()))
		delete(c.index, key)
	}

	return scan.Err()
}

// Get reads key's value from the data file, decompressing and decoding
// it through the configured Codec. An L2 error (missing file, read
// failure, bad decode) is treated as a miss, matching the cache-tier
// degradation rule; it is never surfaced as a fatal error to the caller.
func (c *DiskCache[T]) Get(key model.CacheKey) (T, bool) {
	c.mu.Lock()
	off, ok := c.index[key]
	c.mu.Unlock()

	var zero T

	if !ok {
		c.bumpMiss()

		return zero, false
	}

	buf := make([]byte, off.length)
	if _, err := c.data.ReadAt(buf, off.offset); err != nil {
		c.bumpMiss()

		return zero, false
	}

	if c.compress {
		decompressed, err := decompressLZ4(buf)
		if err != nil {
			c.bumpMiss()

			return zero, false
		}

		buf = decompressed
	}

	value, err := c.codec.Decode(buf)
	if err != nil {
		c.bumpMiss()

		return zero, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()

	return value, true
}

func (c *DiskCache[T]) bumpMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Set appends value's encoded, optionally compressed representation to
// the data file and updates the in-memory offset index.
func (c *DiskCache[T]) Set(key model.CacheKey, value T) error {
	payload, err := c.codec.Encode(value)
	if err != nil {
		return errs.New(errs.CategoryPermanent, "cache.l2.set", err)
	}

	if c.compress {
		payload = compressLZ4(payload)
	}

	keyBuf := encodeKey(key)

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], diskEntryTag)
	binary.LittleEndian.PutUint16(header[4:6], diskEntryVersion)
	binary.LittleEndian.PutUint32(header[6:10], uint32(len(keyBuf)))
	binary.LittleEndian.PutUint32(header[10:14], uint32(len(payload)))

	c.mu.Lock()
	defer c.mu.Unlock()

	offset, err := c.data.Seek(0, io.SeekEnd)
	if err != nil {
		return errs.New(errs.CategoryTransient, "cache.l2.set", err)
	}

	if _, err := c.data.Write(header); err != nil {
		return errs.New(errs.CategoryTransient, "cache.l2.set", err)
	}

	if _, err := c.data.Write(keyBuf); err != nil {
		return errs.New(errs.CategoryTransient, "cache.l2.set", err)
	}

	if _, err := c.data.Write(payload); err != nil {
		return errs.New(errs.CategoryTransient, "cache.l2.set", err)
	}

	c.index[key] = diskOffset{offset: offset + int64(headerSize) + int64(len(keyBuf)), length: int64(len(payload))}

	return nil
}

// Invalidate removes key from the index and appends it to the
// tombstone log so a subsequent process restart replays the deletion.
func (c *DiskCache[T]) Invalidate(key model.CacheKey) error {
	c.mu.Lock()
	delete(c.index, key)
	c.mu.Unlock()

	f, err := os.OpenFile(c.tombstonePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errs.New(errs.CategoryTransient, "cache.l2.invalidate", err)
	}

	defer f.Close()

	if _, err := f.Write(append(encodeKey(key), '\n')); err != nil {
		return errs.New(errs.CategoryTransient, "cache.l2.invalidate", err)
	}

	return nil
}

// Close releases the underlying data file handle.
func (c *DiskCache[T]) Close() error {
	return c.data.Close()
}

// Stats reports L2 hit/miss counters.
func (c *DiskCache[T]) Stats() TierStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return TierStats{Hits: c.hits, Misses: c.misses, Entries: len(c.index)}
}

// compressLZ4 prefixes the block with a flag byte and the original
// length (varint) so decompressLZ4 can size its destination buffer
// exactly; lz4's block API requires the caller to supply that buffer.
func compressLZ4(src []byte) []byte {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))

	var compressor lz4.Compressor

	n, err := compressor.CompressBlock(src, dst)
	if err != nil || n == 0 {
		// Incompressible or tiny payload: lz4 requires the destination
		// buffer to be large enough and n==0 signals "store raw instead".
		return append([]byte{0}, src...)
	}

	lenPrefix := binary.AppendUvarint([]byte{1}, uint64(len(src)))

	return append(lenPrefix, dst[:n]...)
}

func decompressLZ4(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("empty compressed payload")
	}

	flag, rest := src[0], src[1:]
	if flag == 0 {
		return rest, nil
	}

	originalLen, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, errors.New("corrupt lz4 length prefix")
	}

	dst := make([]byte, originalLen)

	written, err := lz4.UncompressBlock(rest[n:], dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}

	return dst[:written], nil
}
