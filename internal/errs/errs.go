// Package errs defines the error taxonomy shared by every subsystem:
// configuration, integrity, transient, permanent, cancelled, and budget
// failures, each carrying enough context for a caller to classify and
// react without parsing strings.
package errs

import (
	"errors"
	"fmt"
)

// Category classifies an error for retry and reporting decisions.
type Category int

// Error categories. Zero value is CategoryUnknown so a missed assignment
// is never mistaken for a legitimate classification.
const (
	CategoryUnknown Category = iota
	CategoryConfiguration
	CategoryIntegrity
	CategoryTransient
	CategoryPermanent
	CategoryCancelled
	CategoryBudget
)

// String renders the category name for logs and diagnostics.
func (c Category) String() string {
	switch c {
	case CategoryConfiguration:
		return "configuration"
	case CategoryIntegrity:
		return "integrity"
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryCancelled:
		return "cancelled"
	case CategoryBudget:
		return "budget"
	default:
		return "unknown"
	}
}

// Sentinel integrity errors surfaced by the Chunk Store and Snapshot Store.
var (
	ErrForeignKeyViolation     = errors.New("foreign key violation")
	ErrDuplicateSnapshot       = errors.New("duplicate snapshot")
	ErrChunkContentInconsistent = errors.New("chunk content inconsistent for shared content hash")
	ErrSnapshotNotFound        = errors.New("snapshot not found")
	ErrRepositoryNotFound      = errors.New("repository not found")
)

// Sentinel configuration errors.
var (
	ErrUnknownStage       = errors.New("unknown stage id")
	ErrInvalidPresetClosure = errors.New("preset closure is inconsistent")
	ErrUnparsableProtocol = errors.New("protocol definition could not be parsed")
)

// Sentinel cancellation/budget errors.
var (
	ErrCancelled      = errors.New("operation cancelled")
	ErrBudgetExceeded = errors.New("stage exceeded declared cost budget")
)

// Error wraps an underlying cause with a Category, and optionally the
// stage/plugin that produced it. It carries no file path or source
// span; the message is the wrapped cause's text.
type Error struct {
	Cause    error
	Stage    string
	Category Category
}

// Error implements error.
func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: stage %s: %v", e.Category, e.Stage, e.Cause)
	}

	return fmt.Sprintf("%s: %v", e.Category, e.Cause)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error for the given stage.
func New(category Category, stage string, cause error) *Error {
	return &Error{Cause: cause, Stage: stage, Category: category}
}

// Classify returns the Category of err, walking wrapped errors, or
// CategoryUnknown if none of the chain carries a classification.
func Classify(err error) Category {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Category
	}

	switch {
	case errors.Is(err, ErrCancelled):
		return CategoryCancelled
	case errors.Is(err, ErrBudgetExceeded):
		return CategoryBudget
	case errors.Is(err, ErrForeignKeyViolation), errors.Is(err, ErrDuplicateSnapshot),
		errors.Is(err, ErrChunkContentInconsistent), errors.Is(err, ErrSnapshotNotFound),
		errors.Is(err, ErrRepositoryNotFound):
		return CategoryIntegrity
	case errors.Is(err, ErrUnknownStage), errors.Is(err, ErrInvalidPresetClosure),
		errors.Is(err, ErrUnparsableProtocol):
		return CategoryConfiguration
	default:
		return CategoryUnknown
	}
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	return Classify(err) == CategoryTransient
}

// IsRetryable is an alias kept for call sites that read more naturally
// asking about the job retry policy rather than the raw category.
func IsRetryable(err error) bool {
	return IsTransient(err)
}

// ExitCode maps a Category to the process exit codes from the spec's
// external interfaces section.
func ExitCode(c Category) int {
	switch c {
	case CategoryConfiguration:
		return 2
	case CategoryCancelled:
		return 3
	case CategoryBudget:
		return 4
	case CategoryPermanent, CategoryIntegrity, CategoryTransient, CategoryUnknown:
		return 1
	default:
		return 1
	}
}
