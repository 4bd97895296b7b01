package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a write violated a uniqueness constraint.
	ErrConflict = errors.New("repository: conflict")
	// ErrBatchTooLarge indicates a batch exceeded the maximum number of writes.
	ErrBatchTooLarge = errors.New("repository: batch too large")
	// ErrBatchCommitted indicates a batch was reused after Commit.
	ErrBatchCommitted = errors.New("repository: batch already committed")
)
