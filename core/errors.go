package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by repositories and registries when the requested object does not exist.
var ErrNotFound = errors.New("not found")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// TaskFailure reports one upload task that did not succeed. Sibling tasks are not affected.
type TaskFailure struct {
	TaskIndex int    `json:"index"`
	TaskName  string `json:"name"`
	Reason    string `json:"reason"`
}

func (f TaskFailure) Error() string {
	return fmt.Sprintf("failed to upload %s: %s", f.TaskName, f.Reason)
}

// FetchFailure reports one collection whose listing could not be fetched.
type FetchFailure struct {
	CollectionID string
	Err          error
}

func (f FetchFailure) Error() string {
	return fmt.Sprintf("fetching collection %s: %v", f.CollectionID, f.Err)
}

func (f FetchFailure) Unwrap() error { return f.Err }

// SourceUnavailable is a non-fatal warning: the analytics source could not be reached.
// Fallback is set when synthetic data was loaded instead, Retained when the last good data was kept.
type SourceUnavailable struct {
	Err      error
	Fallback bool
	Retained bool
}

func (s SourceUnavailable) Error() string {
	switch {
	case s.Fallback:
		return fmt.Sprintf("analytics source unavailable, showing placeholder data: %v", s.Err)
	case s.Retained:
		return fmt.Sprintf("analytics source unavailable, showing last known data: %v", s.Err)
	default:
		return fmt.Sprintf("analytics source unavailable: %v", s.Err)
	}
}

func (s SourceUnavailable) Unwrap() error { return s.Err }

// IsWarning reports whether err only needs to be surfaced to the caller, not treated as a failure.
func IsWarning(err error) bool {
	var su *SourceUnavailable
	return errors.As(err, &su) && (su.Fallback || su.Retained)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
