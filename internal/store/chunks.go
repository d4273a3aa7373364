package store

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/model"
)

// fileRecord is the per-(snapshot, file_path) index: the chunk IDs the
// snapshot explicitly owns for that file (including tombstoned ones)
// and a cumulative fingerprint used by CreateIncrementalSnapshot to
// decide whether a file needs re-analysis.
type fileRecord struct {
	Fingerprint string `json:"fingerprint"`
	ChunkIDs []string `json:"chunk_ids"`
}

func fileRecordKey(snapshotID, filePath string) []byte {
	return []byte(snapshotID + "\x00" + filePath)
}

func chunkKey(snapshotID, chunkID string) []byte {
	return []byte(snapshotID + "\x00" + chunkID)
}

// ReplaceFile is the core atomic primitive: within one transaction it
// removes the new snapshot's current chunks for file_path (if any) and
// inserts new_chunks, marking tombstones as deleted. For files not
// mentioned in any ReplaceFile call, a snapshot may either inherit
// chunks logically or copy them forward explicitly; this Store chooses
// logical inheritance here (GetFileChunks walks the parent_snapshot_id
// chain until it finds an owning record), and explicit copy in
// CreateIncrementalSnapshot's unchanged-file path. See DESIGN.md for
// why both are exercised.
func (s *Store) ReplaceFile(
	repoID, baseSnapshot, newSnapshot, filePath string,
	newChunks []model.Chunk,
	tombstones []model.Chunk,
) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.replaceFileTx(tx, repoID, baseSnapshot, newSnapshot, filePath, newChunks, tombstones, "")
	})
}

// replaceFileWithFingerprint is like ReplaceFile but also records
// a caller-supplied cumulative fingerprint for the file, used by the
// incremental snapshot path.
func (s *Store) replaceFileWithFingerprint(
	repoID, baseSnapshot, newSnapshot, filePath string,
	newChunks []model.Chunk,
	fingerprint string,
) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.replaceFileTx(tx, repoID, baseSnapshot, newSnapshot, filePath, newChunks, nil, fingerprint)
	})
}

func (s *Store) replaceFileTx(
	tx *bbolt.Tx,
	repoID, baseSnapshot, newSnapshot, filePath string,
	newChunks []model.Chunk,
	tombstones []model.Chunk,
	fingerprint string,
) error {
	repoBucket := tx.Bucket(bucketRepositories)
	if repoBucket.Get([]byte(repoID)) == nil {
		return errs.New(errs.CategoryIntegrity, "store.replace_file", errs.ErrForeignKeyViolation)
	}

	snapBucket := tx.Bucket(bucketSnapshots)
	if snapBucket.Get([]byte(newSnapshot)) == nil {
		return errs.New(errs.CategoryIntegrity, "store.replace_file", errs.ErrForeignKeyViolation)
	}

	chunksBucket := tx.Bucket(bucketChunks)
	recordsBucket := tx.Bucket(bucketFileRecords)
	repoFilesBucket := tx.Bucket(bucketRepoFiles)

	// Remove the prior owned chunk set for this (snapshot, file), making
	// the call idempotent: re-applying the same arguments yields the
	// same end state rather than accumulating duplicates.
	var prior fileRecord
	if getErr := getJSON(recordsBucket, fileRecordKey(newSnapshot, filePath), &prior); getErr == nil {
		for _, id := range prior.ChunkIDs {
			if delErr := chunksBucket.Delete(chunkKey(newSnapshot, id)); delErr != nil {
				return delErr
			}
		}
	}

	ids := make([]string, 0, len(newChunks)+len(tombstones))

	for _, c := range newChunks {
		if checkErr := checkContentConsistency(chunksBucket, newSnapshot, c); checkErr != nil {
			return checkErr
		}

		stored := c
		stored.SnapshotID = newSnapshot
		stored.IsDeleted = false

		if putErr := putJSON(chunksBucket, chunkKey(newSnapshot, c.ChunkID), stored); putErr != nil {
			return putErr
		}

		ids = append(ids, c.ChunkID)
	}

	for _, c := range tombstones {
		stored := c
		stored.SnapshotID = newSnapshot
		stored.IsDeleted = true

		if putErr := putJSON(chunksBucket, chunkKey(newSnapshot, c.ChunkID), stored); putErr != nil {
			return putErr
		}

		ids = append(ids, c.ChunkID)
	}

	rec := fileRecord{ChunkIDs: ids, Fingerprint: fingerprint}
	if putErr := putJSON(recordsBucket, fileRecordKey(newSnapshot, filePath), rec); putErr != nil {
		return putErr
	}

	return addRepoFile(repoFilesBucket, repoID, filePath)
}

// checkContentConsistency rejects c when the snapshot already holds a
// chunk under the same ChunkID with the same content_hash but different
// content. Chunks stored under different ChunkIDs are not compared, so
// two of them may share a content_hash with differing content.
func checkContentConsistency(chunksBucket *bbolt.Bucket, snapshotID string, c model.Chunk) error {
	var existing model.Chunk
	if getErr := getJSON(chunksBucket, chunkKey(snapshotID, c.ChunkID), &existing); getErr == nil {
		if existing.ContentHash == c.ContentHash && existing.Content != c.Content {
			return errs.New(errs.CategoryPermanent, "store.replace_file", errs.ErrChunkContentInconsistent)
		}
	}

	return nil
}

// addRepoFile records that filePath has been seen for repoID, so
// CompareCommits and full-repo scans know which paths to enumerate.
func addRepoFile(bucket *bbolt.Bucket, repoID, filePath string) error {
	key := []byte(repoID)

	var files map[string]bool

	if getErr := getJSON(bucket, key, &files); getErr != nil {
		files = make(map[string]bool)
	}

	files[filePath] = true

	return putJSON(bucket, key, files)
}

// repoFiles returns the set of file paths ever recorded for repoID.
func repoFiles(bucket *bbolt.Bucket, repoID string) []string {
	var files map[string]bool
	if getErr := getJSON(bucket, []byte(repoID), &files); getErr != nil {
		return nil
	}

	out := make([]string, 0, len(files))
	for f := range files {
		out = append(out, f)
	}

	return out
}

// GetFileChunks returns the chunks a snapshot exposes for filePath,
// walking the parent_snapshot_id chain for logical inheritance when the
// snapshot itself has no owning record for that file.
func (s *Store) GetFileChunks(snapshotID, filePath string) ([]model.Chunk, error) {
	var chunks []model.Chunk

	err := s.db.View(func(tx *bbolt.Tx) error {
		rec, _, findErr := s.findOwningRecord(tx, snapshotID, filePath)
		if findErr != nil {
			return findErr
		}

		if rec == nil {
			return nil
		}

		chunksBucket := tx.Bucket(bucketChunks)

		for _, id := range rec.ChunkIDs {
			var c model.Chunk
			if getErr := getJSON(chunksBucket, chunkKey(rec.ownerSnapshot, id), &c); getErr == nil {
				chunks = append(chunks, c)
			}
		}

		return nil
	})

	return chunks, err
}

// viewFileRecord looks up the file record owned directly by
// snapshotID (no ancestor walking) into out.
func (s *Store) viewFileRecord(snapshotID, filePath string, out *fileRecord) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketFileRecords), fileRecordKey(snapshotID, filePath), out)
	})
}

// ownedFileRecord pairs a fileRecord with the snapshot that actually
// owns it, which may be an ancestor of the snapshot originally queried.
type ownedFileRecord struct {
	fileRecord
	ownerSnapshot string
}

// findOwningRecord walks the parent chain starting at snapshotID looking
// for the nearest ancestor (inclusive) that explicitly owns filePath.
func (s *Store) findOwningRecord(tx *bbolt.Tx, snapshotID, filePath string) (*ownedFileRecord, string, error) {
	recordsBucket := tx.Bucket(bucketFileRecords)
	snapBucket := tx.Bucket(bucketSnapshots)

	cur := snapshotID
	visited := make(map[string]bool)

	for cur != "" {
		if visited[cur] {
			break
		}

		visited[cur] = true

		var rec fileRecord
		if getErr := getJSON(recordsBucket, fileRecordKey(cur, filePath), &rec); getErr == nil {
			return &ownedFileRecord{fileRecord: rec, ownerSnapshot: cur}, cur, nil
		}

		var snap model.Snapshot
		if getErr := getJSON(snapBucket, []byte(cur), &snap); getErr != nil {
			return nil, "", fmt.Errorf("walk snapshot chain: %w", errs.ErrSnapshotNotFound)
		}

		cur = snap.ParentSnapshotID
	}

	return nil, "", nil
}
