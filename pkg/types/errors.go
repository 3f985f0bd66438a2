package types

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Entity validation errors
	ErrInvalidEntityID = errors.New("entity ID cannot be empty")
	ErrEmptyContent    = errors.New("content cannot be empty")

	// Similarity errors
	ErrDimensionMismatch = errors.New("vector dimensions do not match")
	ErrDegenerateVector  = errors.New("vector has zero norm")

	// Embedding computation errors
	ErrRemoteCompute  = errors.New("remote embedding computation failed")
	ErrContentTooLong = errors.New("content too long to embed")

	// Storage errors
	ErrNotFound = errors.New("not found")
)

// DimensionMismatchError reports two vectors of different lengths
type DimensionMismatchError struct {
	Left  int
	Right int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%v: %d != %d", ErrDimensionMismatch, e.Left, e.Right)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// RemoteComputeError is a transient failure of the embedding API.
// Callers may retry.
type RemoteComputeError struct {
	EntityID string
	Err      error
}

func (e *RemoteComputeError) Error() string {
	return fmt.Sprintf("%v for entity %s: %v", ErrRemoteCompute, e.EntityID, e.Err)
}

func (e *RemoteComputeError) Is(target error) bool {
	return target == ErrRemoteCompute
}

func (e *RemoteComputeError) Unwrap() error {
	return e.Err
}

// ContentTooLongError is returned when an embedding failed for content above
// the length limit. Retrying the same content will not help.
type ContentTooLongError struct {
	EntityID string
	Length   int
	Limit    int
	Err      error
}

func (e *ContentTooLongError) Error() string {
	return fmt.Sprintf("%v: entity %s has %d characters (limit %d)", ErrContentTooLong, e.EntityID, e.Length, e.Limit)
}

func (e *ContentTooLongError) Is(target error) bool {
	return target == ErrContentTooLong
}

func (e *ContentTooLongError) Unwrap() error {
	return e.Err
}
