// Package qcerrors defines the error taxonomy surfaced across the
// scheduling engine and its request surface.
package qcerrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories in the taxonomy. Every
// error that crosses the scheduler boundary carries exactly one Kind.
type Kind int

const (
	// Internal marks an invariant violation — a bug, never retried.
	Internal Kind = iota
	// InvalidLocator marks a malformed "source:tail" locator.
	InvalidLocator
	// UnknownSource marks a locator prefix absent from the switch registry.
	UnknownSource
	// UnknownTest marks a requested test name absent from the catalog.
	UnknownTest
	// DataError marks a connector failure or timeout.
	DataError
	// TestFailure marks a harness invocation that raised or returned an error.
	TestFailure
	// Cancelled marks a request torn down by caller cancellation or deadline.
	Cancelled
	// InvalidArgument marks a malformed request (bad polygon, bad time range).
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case Internal:
		return "Internal"
	case InvalidLocator:
		return "InvalidLocator"
	case UnknownSource:
		return "UnknownSource"
	case UnknownTest:
		return "UnknownTest"
	case DataError:
		return "DataError"
	case TestFailure:
		return "TestFailure"
	case Cancelled:
		return "Cancelled"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every component in the
// engine. TestID is set only for TestFailure and is empty otherwise.
type Error struct {
	Kind   Kind
	TestID string
	Msg    string
	Cause  error
}

func (e *Error) Error() string {
	if e.TestID != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.TestID, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a *Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// ForTest builds a TestFailure error naming the failing test.
func ForTest(testID string, cause error) *Error {
	return &Error{Kind: TestFailure, TestID: testID, Msg: cause.Error(), Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to Internal for any
// error not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
