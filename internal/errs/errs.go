// Package errs defines the typed error taxonomy shared by every core
// component of the migration engine.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a migration error into one of the taxonomy entries.
type Kind int

const (
	// KindUnknown is the zero value. It marks failures outside the taxonomy
	// (e.g. opening the database or querying sqlite_master), and KindOf
	// returns it for errors that are not an *Error.
	KindUnknown Kind = iota
	KindLex
	KindParse
	KindDuplicateObject
	KindUnknownReference
	KindCyclicDependency
	KindDataLoss
	KindBusy
	KindStepFailed
	KindIntegrityViolation
)

func (k Kind) String() string {
	switch k {
	case KindLex:
		return "Lex"
	case KindParse:
		return "Parse"
	case KindDuplicateObject:
		return "DuplicateObject"
	case KindUnknownReference:
		return "UnknownReference"
	case KindCyclicDependency:
		return "CyclicDependency"
	case KindDataLoss:
		return "DataLoss"
	case KindBusy:
		return "Busy"
	case KindStepFailed:
		return "StepFailed"
	case KindIntegrityViolation:
		return "IntegrityViolation"
	default:
		return "Unknown"
	}
}

// Error is the concrete type returned by every core package. Op names the
// operation that failed (e.g. "lexer.Split", "planner.Plan"); Context
// carries kind-specific detail (the offending statement, the step that
// failed, the rows returned by foreign_key_check, ...).
type Error struct {
	Kind    Kind
	Op      string
	Context map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, &errs.Error{Kind: errs.KindBusy}).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, op string, context map[string]any) *Error {
	return &Error{Kind: kind, Op: op, Context: context}
}

// Wrap builds an *Error around an underlying cause.
func Wrap(kind Kind, op string, cause error, context map[string]any) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause, Context: context}
}

// Is reports whether err is, or wraps, an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning KindUnknown if err is not
// (and does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
