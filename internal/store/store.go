// Package store implements the Chunk Store and Snapshot Store: persistent,
// transactional storage of repositories, commit snapshots, and the
// content-addressed chunks they own, backed by an embedded bbolt
// database. bbolt gives us a single writer per repository, many
// concurrent readers, and ACID transactions around the replace_file
// primitive, without standing up an external database for a
// single-host deployment.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/model"
)

// Bucket names. Kept as package-level byte slices so every accessor
// shares the same allocation.
var (
	bucketRepositories = []byte("repositories")
	bucketSnapshots = []byte("snapshots")
	bucketChunks = []byte("chunks")
	bucketFileRecords = []byte("file_records")
	bucketRepoFiles = []byte("repo_files")
)

// Store is the Chunk Store + Snapshot Store facade over one bbolt
// database file. One Store serves one or more repositories; bbolt's
// single-writer-transaction model gives us the "one writer per
// repository, many readers" policy for free at the process
// level, and callers are expected to run one Store per repository in
// stricter single-writer deployments.
type Store struct {
	db *bbolt.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) a bbolt-backed Store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errs.New(errs.CategoryTransient, "store.open", err)
	}

	initErr := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketRepositories, bucketSnapshots, bucketChunks, bucketFileRecords, bucketRepoFiles} {
			if _, createErr := tx.CreateBucketIfNotExists(b); createErr != nil {
				return createErr
			}
		}

		return nil
	})
	if initErr != nil {
		_ = db.Close()

		return nil, errs.New(errs.CategoryTransient, "store.open", initErr)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRepository upserts repository metadata.
func (s *Store) SaveRepository(repo model.Repository) error {
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now().UTC()
	}

	repo.UpdatedAt = time.Now().UTC()

	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketRepositories), []byte(repo.RepoID), repo)
	})
}

// GetRepository fetches repository metadata by ID.
func (s *Store) GetRepository(repoID string) (model.Repository, error) {
	var repo model.Repository

	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketRepositories), []byte(repoID), &repo)
	})
	if err != nil {
		return model.Repository{}, errs.New(errs.CategoryIntegrity, "store.get_repository",
			fmt.Errorf("%w: %s", errs.ErrRepositoryNotFound, repoID))
	}

	return repo, nil
}

// CreateSnapshot creates a new immutable Snapshot. Fails with
// DuplicateSnapshot if the ID exists, or ForeignKeyViolation if the
// repository is unknown.
func (s *Store) CreateSnapshot(repoID, snapshotID, commitHash, branch string) error {
	return s.createSnapshotWithParent(repoID, snapshotID, commitHash, branch, "")
}

func (s *Store) createSnapshotWithParent(repoID, snapshotID, commitHash, branch, parent string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		repoBucket := tx.Bucket(bucketRepositories)
		if repoBucket.Get([]byte(repoID)) == nil {
			return errs.New(errs.CategoryIntegrity, "store.create_snapshot", errs.ErrForeignKeyViolation)
		}

		snapBucket := tx.Bucket(bucketSnapshots)
		if snapBucket.Get([]byte(snapshotID)) != nil {
			return errs.New(errs.CategoryIntegrity, "store.create_snapshot", errs.ErrDuplicateSnapshot)
		}

		if parent != "" && snapBucket.Get([]byte(parent)) == nil {
			return errs.New(errs.CategoryIntegrity, "store.create_snapshot", errs.ErrForeignKeyViolation)
		}

		snap := model.Snapshot{
			SnapshotID: snapshotID,
			RepoID: repoID,
			CommitHash: commitHash,
			BranchName: branch,
			ParentSnapshotID: parent,
			CreatedAt: time.Now().UTC(),
		}

		return putJSON(snapBucket, []byte(snapshotID), snap)
	})
}

// GetSnapshot fetches snapshot metadata by ID.
func (s *Store) GetSnapshot(snapshotID string) (model.Snapshot, error) {
	var snap model.Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketSnapshots), []byte(snapshotID), &snap)
	})
	if err != nil {
		return model.Snapshot{}, errs.New(errs.CategoryIntegrity, "store.get_snapshot",
			fmt.Errorf("%w: %s", errs.ErrSnapshotNotFound, snapshotID))
	}

	return snap, nil
}

// putJSON encodes v as JSON and stores it under key in bucket.
func putJSON(bucket *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	return bucket.Put(key, data)
}

// getJSON decodes the JSON value stored at key in bucket into out.
func getJSON(bucket *bbolt.Bucket, key []byte, out any) error {
	data := bucket.Get(key)
	if data == nil {
		return errors.New("not found")
	}

	return json.Unmarshal(data, out)
}
