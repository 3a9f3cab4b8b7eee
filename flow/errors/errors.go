// Package errors implements the error taxonomy board execution failures
// are classified under: the scheduler's propagation policy
// (branch/sequence propagate, parallel collects, pull-evaluation
// failures are synchronous) can distinguish "this node's own logic
// failed" from "a resource it depends on is unavailable" without string-
// matching messages. Wrapping follows the consistent
// fmt.Errorf("...: %w", err) style used throughout this codebase —
// each sentinel here is meant to be wrapped with %w, not returned bare.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel classes, tested for with errors.Is after a concrete error has
// been wrapped around one of them via Wrap.
var (
	// ErrValidation marks a board/pin/type-graph shape that never
	// should have been constructible (broken structural invariants, bad pin types).
	ErrValidation = errors.New("validation error")
	// ErrRuntime marks a node's own Run logic failing on otherwise
	// valid inputs (a CEL condition that didn't type-check at runtime,
	// an arithmetic node given out-of-range input).
	ErrRuntime = errors.New("runtime error")
	// ErrResource marks an external collaborator being unavailable or
	// erroring (object store, vector DB, model provider, HTTP target).
	ErrResource = errors.New("resource error")
	// ErrControl marks a scheduling/control-flow failure (spawn target
	// not found, pull cycle detected, cancellation mid-dispatch).
	ErrControl = errors.New("control error")
	// ErrInternal marks a defect in the engine itself, not board
	// authoring or external state (a registry lookup miss for a name
	// the board validator should have caught earlier).
	ErrInternal = errors.New("internal error")
)

// Wrap joins a sentinel class with cause and a human-readable message,
// via errors.Join so both errors.Is(err, class) and errors.Is(err, cause)
// succeed without a bespoke wrapper type.
func Wrap(class error, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%s: %w", msg, class)
	}
	return errors.Join(fmt.Errorf("%s: %w", msg, class), cause)
}

// Validation, Runtime, Resource, Control, Internal are the common-case
// constructors: Wrap(ErrX, cause, format, args...) with the class fixed.
func Validation(cause error, format string, args ...any) error {
	return Wrap(ErrValidation, cause, format, args...)
}

func Runtime(cause error, format string, args ...any) error {
	return Wrap(ErrRuntime, cause, format, args...)
}

func Resource(cause error, format string, args ...any) error {
	return Wrap(ErrResource, cause, format, args...)
}

func Control(cause error, format string, args ...any) error {
	return Wrap(ErrControl, cause, format, args...)
}

func Internal(cause error, format string, args ...any) error {
	return Wrap(ErrInternal, cause, format, args...)
}

// Is reports whether err is (or wraps) one of this package's sentinel
// classes — a thin alias kept here so callers don't need a second import
// of the standard errors package just to call errors.Is(err, ErrX).
func Is(err, target error) bool { return errors.Is(err, target) }
