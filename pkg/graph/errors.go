package graph

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError indicates a malformed ingestion payload (missing user,
// node or session id, or an empty name after normalization). Not retried;
// the caller must fix the payload and resubmit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// ConnectionError indicates a backing store is unreachable. Ingestion
// batches fail wholesale and are safe to retry with the same idempotency
// keys; retrieval degrades to the surviving path.
type ConnectionError struct {
	Store string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s store unreachable: %v", e.Store, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RaceRetryError indicates an atomic increment or relink detected a
// conflicting concurrent write. It is retried internally with bounded
// backoff before surfacing wrapped in a ConnectionError.
type RaceRetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RaceRetryError) Error() string {
	return fmt.Sprintf("%s lost race after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RaceRetryError) Unwrap() error { return e.Err }

// TimeoutError indicates a store query exceeded its budget. Retrieval
// treats it as a path failure; ingestion treats it as retryable.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded %s budget", e.Op, e.Budget)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConnection reports whether err is a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// ErrNotFound is returned when a referenced vertex does not exist.
var ErrNotFound = errors.New("vertex not found")
