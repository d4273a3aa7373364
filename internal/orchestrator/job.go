// Package orchestrator executes the stage DAG (internal/stagedag) over a
// repository or an incremental changeset: it schedules stage work onto a
// bounded worker pool, memoizes per-stage results by content fingerprint,
// and tracks each unit of work through a Job state machine (Queued,
// Running, Completed, Failed, Cancelled).
package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/stagedag"
)

// State names a Job's position in its lifecycle.
type State int

// Job states. A Job's state is accompanied by state-specific fields
// (CurrentStage while Running, Err/RetryCount/NextRetryAt while
// Failed) rather than a tagged union, since Go has no sum types. The
// zero value of fields not relevant to the current state is simply
// left unset.
const (
	StateQueued State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

// String renders the state name used in logs and the CLI.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is Completed, Failed, or Cancelled, the
// states in which a job's run has ended. A Failed job with a scheduled
// retry can still be moved back to Queued by Retry.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// maxRetries bounds the exponential-backoff retry schedule: a job is
// retried at most this many times, and the transient failure after the
// last retry leaves it Failed with no further retry scheduled.
const maxRetries = 3

// Job is one unit of indexing work: a full rebuild or an incremental
// update of a single repository snapshot, tracked through its state
// machine. WorkerID, CheckpointID, and Priority are the fields the
// original job model adds beyond a bare state enum: which worker
// picked the job up, which mid-run checkpoint it can resume from, and
// its scheduling priority (bumped on every retry so flaky jobs do not
// starve behind a backlog of fresh ones).
type Job struct {
	ID uuid.UUID
	RepoID string
	SnapshotID string
	PreviousSnapshotID string
	ChangedFiles []string // empty means a full rebuild, non-empty an incremental update.

	State State

	Priority int
	WorkerID string
	CheckpointID *uuid.UUID
	CurrentStage stagedag.ID

	CreatedAt time.Time
	UpdatedAt time.Time
	StartedAt time.Time
	FinishedAt time.Time

	FilesProcessed int

	Err error
	ErrCategory errs.Category
	FailedStage stagedag.ID
	RetryCount int
	NextRetryAt time.Time
}

// NewJob creates a Queued full-rebuild job.
func NewJob(repoID, snapshotID string, priority int) *Job {
	now := time.Now()

	return &Job{
		ID: uuid.New(),
		RepoID: repoID,
		SnapshotID: snapshotID,
		Priority: priority,
		State: StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewIncrementalJob creates a Queued job restricted to changedFiles
// against previousSnapshotID, the incremental execution mode.
func NewIncrementalJob(repoID, snapshotID, previousSnapshotID string, changedFiles []string, priority int) *Job {
	j := NewJob(repoID, snapshotID, priority)
	j.PreviousSnapshotID = previousSnapshotID
	j.ChangedFiles = changedFiles

	return j
}

// IsIncremental reports whether this job is restricted to a changeset
// rather than indexing the whole repository.
func (j *Job) IsIncremental() bool {
	return j.PreviousSnapshotID != "" && len(j.ChangedFiles) > 0
}

func invalidTransition(from State, to string) error {
	return errs.New(errs.CategoryConfiguration, "orchestrator.job",
		fmt.Errorf("invalid job state transition: %s -> %s", from, to))
}

// Start transitions Queued -> Running, recording which worker claimed
// the job and the first stage it will execute.
func (j *Job) Start(workerID string, firstStage stagedag.ID) error {
	if j.State != StateQueued {
		return invalidTransition(j.State, "running")
	}

	now := time.Now()
	j.State = StateRunning
	j.WorkerID = workerID
	j.CurrentStage = firstStage
	j.StartedAt = now
	j.UpdatedAt = now
	j.CheckpointID = nil

	return nil
}

// UpdateStage advances the CurrentStage of a Running job, and records a
// checkpoint identifier a resumed retry can pick back up from.
func (j *Job) UpdateStage(stage stagedag.ID, checkpoint *uuid.UUID) error {
	if j.State != StateRunning {
		return invalidTransition(j.State, "update_stage")
	}

	j.CurrentStage = stage
	j.CheckpointID = checkpoint
	j.UpdatedAt = time.Now()

	return nil
}

// Complete transitions Running -> Completed.
func (j *Job) Complete(filesProcessed int) error {
	if j.State != StateRunning {
		return invalidTransition(j.State, "completed")
	}

	now := time.Now()
	j.State = StateCompleted
	j.FinishedAt = now
	j.UpdatedAt = now
	j.FilesProcessed = filesProcessed

	return nil
}

// Fail transitions Running -> Failed, scheduling a retry with
// exponential backoff (2^(RetryCount+1) seconds: 2s, 4s, 8s; at most
// maxRetries retries) when
// cause classifies as transient; permanent, integrity, configuration,
// cancelled, and budget failures never retry.
func (j *Job) Fail(cause error, failedStage stagedag.ID) error {
	if j.State != StateRunning {
		return invalidTransition(j.State, "failed")
	}

	now := time.Now()
	category := errs.Classify(cause)

	j.State = StateFailed
	j.Err = cause
	j.ErrCategory = category
	j.FailedStage = failedStage
	j.FinishedAt = now
	j.UpdatedAt = now

	if category == errs.CategoryTransient && j.RetryCount < maxRetries {
		backoff := time.Duration(1<<uint(j.RetryCount)) * 2 * time.Second
		j.NextRetryAt = now.Add(backoff)
	} else {
		j.NextRetryAt = time.Time{}
	}

	return nil
}

// Retry transitions Failed -> Queued, raising Priority to RetryCount+1
// so repeatedly-retried jobs climb ahead of fresh arrivals, matching
// the "higher priority for retries" rule of the original scheduler.
func (j *Job) Retry() error {
	if j.State != StateFailed {
		return invalidTransition(j.State, "queued (retry)")
	}

	if j.NextRetryAt.IsZero() {
		return errs.New(errs.CategoryConfiguration, "orchestrator.job",
			fmt.Errorf("no retry scheduled for job %s: retry budget exhausted", j.ID))
	}

	j.RetryCount++
	j.Priority = j.RetryCount
	j.State = StateQueued
	j.UpdatedAt = time.Now()

	return nil
}

// Cancel transitions any non-terminal state to Cancelled.
func (j *Job) Cancel(reason string) error {
	if j.State.IsTerminal() {
		return invalidTransition(j.State, "cancelled")
	}

	j.State = StateCancelled
	j.Err = fmt.Errorf("%w: %s", errs.ErrCancelled, reason)
	j.ErrCategory = errs.CategoryCancelled
	j.FinishedAt = time.Now()
	j.UpdatedAt = j.FinishedAt

	return nil
}
