package store

import "github.com/codegraph-dev/codegraph/internal/model"

// Candidate is one file offered to CreateIncrementalSnapshot: its path
// and a caller-computed cumulative fingerprint (e.g. a hash over the
// file's content plus its extraction config) used to decide whether the
// file needs re-analysis.
type Candidate struct {
	FilePath    string
	Fingerprint string
}

// AnalyzeFunc produces fresh chunks for a changed file.
type AnalyzeFunc func(filePath string) ([]model.Chunk, error)

// IncrementalStats summarises a CreateIncrementalSnapshot run.
type IncrementalStats struct {
	FilesChecked  int
	FilesSkipped  int
	FilesAnalyzed int
	ChunksCreated int
}

// CreateIncrementalSnapshot creates newSnapshot as a child of
// baseSnapshot and, for each candidate, either carries its chunks
// forward unchanged (fingerprint matches the base snapshot's recorded
// fingerprint, the unchanged-file path described in ReplaceFile's doc
// comment) or invokes analyze to produce new chunks and applies them
// via ReplaceFile.
func (s *Store) CreateIncrementalSnapshot(
	repoID, baseSnapshot, newSnapshot string,
	candidates []Candidate,
	analyze AnalyzeFunc,
) (IncrementalStats, error) {
	var stats IncrementalStats

	if err := s.createSnapshotWithParent(repoID, newSnapshot, "", "", baseSnapshot); err != nil {
		return stats, err
	}

	for _, cand := range candidates {
		stats.FilesChecked++

		baseChunks, getErr := s.GetFileChunks(baseSnapshot, cand.FilePath)
		if getErr != nil {
			return stats, getErr
		}

		baseFingerprint, hasBase := s.fileFingerprint(baseSnapshot, cand.FilePath)

		if hasBase && baseFingerprint == cand.Fingerprint {
			// Unchanged: copy the base snapshot's chunks forward by value
			// into the new snapshot explicitly, rather than relying on
			// on-read inheritance, so CreateIncrementalSnapshot's carried
			// files are self-contained under the new snapshot.
			if copyErr := s.replaceFileWithFingerprint(repoID, baseSnapshot, newSnapshot, cand.FilePath, baseChunks, cand.Fingerprint); copyErr != nil {
				return stats, copyErr
			}

			stats.FilesSkipped++

			continue
		}

		newChunks, analyzeErr := analyze(cand.FilePath)
		if analyzeErr != nil {
			return stats, analyzeErr
		}

		if replaceErr := s.replaceFileWithFingerprint(repoID, baseSnapshot, newSnapshot, cand.FilePath, newChunks, cand.Fingerprint); replaceErr != nil {
			return stats, replaceErr
		}

		stats.FilesAnalyzed++
		stats.ChunksCreated += len(newChunks)
	}

	return stats, nil
}

// fileFingerprint returns the fingerprint recorded against snapshotID's
// own file record (not walking ancestors; a fingerprint only applies
// to the exact snapshot it was stamped at).
func (s *Store) fileFingerprint(snapshotID, filePath string) (string, bool) {
	var rec fileRecord

	err := s.viewFileRecord(snapshotID, filePath, &rec)

	return rec.Fingerprint, err == nil
}
