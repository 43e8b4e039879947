// Package apperr holds the error taxonomy shared by the services.
// Handlers map these onto HTTP status codes; nothing here is retried.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrBusy is returned when a conflicting gallery operation is already in flight
	ErrBusy = errors.New("another operation is in progress")
)

// ValidationError rejects input before any storage or database call is made
type ValidationError struct {
	Reason string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Reason
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	if e.Reason == "" {
		return "validation failed: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Reason, strings.Join(parts, "; "))
}

// Invalid builds a ValidationError with a single reason
func Invalid(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// UploadError means the object store rejected a write
type UploadError struct {
	Bucket string
	Path   string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s/%s failed: %v", e.Bucket, e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistenceError means the blob was stored but the database write that
// should reference it failed. The blob at URL is orphaned until cleaned up.
type PersistenceError struct {
	Bucket string
	Path   string
	URL    string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("stored %s but failed to persist record: %v", e.URL, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PartialUpdateError reports a bulk update that was only partly applied
type PartialUpdateError struct {
	FailedIDs []string
	Applied   int
	Err       error
}

func (e *PartialUpdateError) Error() string {
	return fmt.Sprintf("%d updates applied, %d failed (%s)", e.Applied, len(e.FailedIDs), strings.Join(e.FailedIDs, ", "))
}

func (e *PartialUpdateError) Unwrap() error { return e.Err }
