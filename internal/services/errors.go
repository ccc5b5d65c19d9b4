package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyMaterialized is a benign outcome: the period already has a movement.
	ErrAlreadyMaterialized = errors.New("occurrence already materialized")
	// ErrAlreadyRejected is returned when accepting a period the user rejected.
	ErrAlreadyRejected = errors.New("occurrence already rejected")
	// ErrPersistenceFailure is the class of retryable storage failures.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrNotAnOccurrence is returned when a date is not a scheduled, elapsed
	// occurrence of the obligation.
	ErrNotAnOccurrence = errors.New("date is not an elapsed occurrence of the obligation")
	// ErrNoFirstOccurrence is returned when no first-occurrence prompt applies.
	ErrNoFirstOccurrence = errors.New("no first occurrence in the past to resolve")
	ErrUnknownDecision   = errors.New("unknown decision")
)

// PersistenceError wraps a storage or ledger failure. The occurrence stays
// pending and the operation can be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrPersistenceFailure, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceFailure, e.Err}
}
