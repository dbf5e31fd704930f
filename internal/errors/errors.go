// Package errors defines the run-level error taxonomy for the tick collector.
// Errors are classified by kind so the entry point can decide what is fatal
// for the whole run (configuration, authentication) and what stays local to a
// single instrument (transport hiccups, source-side rejections).
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for handling decisions.
type Kind string

const (
	KindConfiguration  Kind = "configuration"  // bad run parameters, fatal before any I/O
	KindAuthentication Kind = "authentication" // credential rejected, fatal for the run
	KindTransport      Kind = "transport"      // connection or read/write failure
	KindAPI            Kind = "api"            // source returned an application-level error
	KindStorage        Kind = "storage"        // store open/read/write failure
	KindUnknown        Kind = "unknown"
)

// RunError is an error annotated with its kind and the operation that failed.
type RunError struct {
	Kind      Kind
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RunError) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and operation. Returns nil if err is nil.
func New(kind Kind, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{Kind: kind, Operation: operation, Err: err}
}

// Newf wraps a formatted message with a kind and operation.
func Newf(kind Kind, operation, format string, args ...any) error {
	return &RunError{Kind: kind, Operation: operation, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or KindUnknown if err carries no classification.
func KindOf(err error) Kind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// IsFatal reports whether the error must abort the whole run rather than
// just the current instrument.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindConfiguration, KindAuthentication:
		return true
	}
	return false
}
