package store

import (
	"go.etcd.io/bbolt"

	"github.com/codegraph-dev/codegraph/internal/model"
)

// DiffResult is the semantic diff between two snapshots of the same
// repository, classified by (file_path, kind, fqn).
type DiffResult struct {
	Added []model.Chunk
	Modified []model.Chunk
	Deleted []model.Chunk
}

// identityKey is the (file_path, kind, fqn) identity compare_commits
// diffs on.
type identityKey struct {
	filePath string
	kind model.ChunkKind
	fqn string
}

// CompareCommits produces the semantic diff between fromSnapshot and
// toSnapshot: chunks with differing content_hash are modified, chunks
// present only in toSnapshot are added, chunks present only in
// fromSnapshot are deleted. No chunk appears in more than one category.
func (s *Store) CompareCommits(repoID, fromSnapshot, toSnapshot string) (DiffResult, error) {
	var result DiffResult

	err := s.db.View(func(tx *bbolt.Tx) error {
		files := repoFiles(tx.Bucket(bucketRepoFiles), repoID)

		fromByIdentity := make(map[identityKey]model.Chunk)
		toByIdentity := make(map[identityKey]model.Chunk)

		for _, f := range files {
			collectIdentities(tx, s, fromSnapshot, f, fromByIdentity)
			collectIdentities(tx, s, toSnapshot, f, toByIdentity)
		}

		for key, toChunk := range toByIdentity {
			fromChunk, existed := fromByIdentity[key]

			switch {
			case !existed:
				result.Added = append(result.Added, toChunk)
			case toChunk.IsDeleted && !fromChunk.IsDeleted:
				result.Deleted = append(result.Deleted, toChunk)
			case fromChunk.ContentHash != toChunk.ContentHash:
				result.Modified = append(result.Modified, toChunk)
			}
		}

		for key, fromChunk := range fromByIdentity {
			if _, stillPresent := toByIdentity[key]; !stillPresent {
				result.Deleted = append(result.Deleted, fromChunk)
			}
		}

		return nil
	})

	return result, err
}

// collectIdentities reads filePath's chunks for snapshotID (with
// inheritance) directly via the already-open transaction, avoiding a
// nested bbolt.View call, and indexes them by identity key.
func collectIdentities(tx *bbolt.Tx, s *Store, snapshotID, filePath string, into map[identityKey]model.Chunk) {
	rec, _, findErr := s.findOwningRecord(tx, snapshotID, filePath)
	if findErr != nil || rec == nil {
		return
	}

	chunksBucket := tx.Bucket(bucketChunks)

	for _, id := range rec.ChunkIDs {
		var c model.Chunk
		if getErr := getJSON(chunksBucket, chunkKey(rec.ownerSnapshot, id), &c); getErr == nil {
			key := identityKey{filePath: filePath, kind: c.Kind, fqn: c.FQN}
			into[key] = c
		}
	}
}
