package domain

import (
	"errors"
	"fmt"
)

// ErrorClass splits stage failures into the two classes the retry policy
// cares about.
type ErrorClass int

const (
	// ClassTransient covers timeouts, rate limits and 5xx-equivalents.
	ClassTransient ErrorClass = iota
	// ClassPermanent covers bad auth, malformed output and missing matches.
	ClassPermanent
)

func (c ErrorClass) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "permanent"
}

// StageError is a classified failure raised by a stage client adapter.
type StageError struct {
	Stage string
	Class ErrorClass
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", e.Stage, e.Class, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// TransientStage wraps err as a retryable failure of the named stage.
func TransientStage(stage string, err error) error {
	return &StageError{Stage: stage, Class: ClassTransient, Err: err}
}

// PermanentStage wraps err as a non-retryable failure of the named stage.
func PermanentStage(stage string, err error) error {
	return &StageError{Stage: stage, Class: ClassPermanent, Err: err}
}

// IsTransient reports whether err carries a transient stage classification.
// Unclassified errors count as permanent so that adapter bugs are surfaced
// instead of hammered with retries.
func IsTransient(err error) bool {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Class == ClassTransient
	}
	return false
}

// TimingMismatchError reports that clip allocations could not be aligned with
// the narration duration within tolerance. A data-quality failure, never retried.
type TimingMismatchError struct {
	WantSeconds float64
	GotSeconds  float64
	Tolerance   float64
}

func (e *TimingMismatchError) Error() string {
	return fmt.Sprintf("timeline mismatch: clips cover %.2fs, narration is %.2fs (tolerance %.2fs)",
		e.GotSeconds, e.WantSeconds, e.Tolerance)
}

// StorageError reports that the ledger's backing store is unreachable or
// corrupt. Without the ledger there is no dedup guarantee, so this aborts
// the whole run.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err originates in the ledger's backing store.
func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}
