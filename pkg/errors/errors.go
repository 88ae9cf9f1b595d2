// Package errors provides structured error types for machine learning operations.
//
// The package defines a small taxonomy used across the metalearners library:
//
//   - ValueError: malformed or contradictory configuration and arguments
//   - ValidationError: runtime data that fails an explicit validation hook
//   - DimensionError: shape mismatches between matrices and vectors
//   - NotFittedError: use of an estimator before it has been trained
//   - NotImplementedError: a capability a given meta-learner does not support
//   - ModelError: a failure inside a model operation, wrapping its cause
//
// All types implement the error interface and participate in Go 1.13+ error
// chains: errors.Is works against the exported sentinels and errors.As
// extracts the concrete types. Construction helpers capture a stack trace via
// github.com/cockroachdb/errors so that %+v formatting yields the full trace.
//
// Example:
//
//	err := errors.NewValueError("TLearner", "n_variants must be at least 2")
//	var valErr *errors.ValueError
//	if errors.As(err, &valErr) {
//		fmt.Println(valErr.Op, valErr.Message)
//	}
package errors

import (
	"fmt"

	cerrors "github.com/cockroachdb/errors"
)

// Sentinel errors for common failure conditions. Use errors.Is to test for
// them anywhere in a wrapped chain.
var (
	// ErrEmptyData indicates an operation received a matrix or vector with
	// no rows or no columns.
	ErrEmptyData = cerrors.New("empty data")

	// ErrNotFitted indicates an estimator was used before Fit succeeded.
	ErrNotFitted = cerrors.New("estimator is not fitted")

	// ErrDimensionMismatch indicates two inputs disagree on shape.
	ErrDimensionMismatch = cerrors.New("dimension mismatch")

	// ErrSingularMatrix indicates a linear system could not be solved.
	ErrSingularMatrix = cerrors.New("singular matrix")

	// ErrNotImplemented indicates a requested capability is not supported
	// by the chosen meta-learner variant.
	ErrNotImplemented = cerrors.New("not implemented")
)

// ValueError reports malformed configuration or arguments. It corresponds to
// errors raised synchronously at construction time: a constructor that
// returns a ValueError has left no usable instance behind.
type ValueError struct {
	// Op is the operation or component that rejected the value.
	Op string

	// Message describes what was wrong with the value.
	Message string
}

// NewValueError creates a ValueError for the given operation.
func NewValueError(op, message string) *ValueError {
	return &ValueError{Op: op, Message: message}
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ValidationError reports runtime data that failed an explicit validation
// check, such as a treatment vector with a hole in its encoding. Value holds
// the offending value for diagnostics.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// DimensionError reports a shape mismatch between expected and observed
// dimensions along a given axis.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

// NewDimensionError creates a DimensionError for the given operation.
func NewDimensionError(op string, expected, got, axis int) *DimensionError {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch on axis %d: expected %d, got %d",
		e.Op, e.Axis, e.Expected, e.Got)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// NotFittedError reports a call to a prediction or export method on an
// estimator whose Fit has not completed.
type NotFittedError struct {
	ModelName string
	Method    string
}

// NewNotFittedError creates a NotFittedError for the given model and method.
func NewNotFittedError(modelName, method string) *NotFittedError {
	return &NotFittedError{ModelName: modelName, Method: method}
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s.%s: estimator is not fitted; call Fit first", e.ModelName, e.Method)
}

// Is reports whether target is ErrNotFitted.
func (e *NotFittedError) Is(target error) bool {
	return target == ErrNotFitted
}

// NotImplementedError reports that the chosen variant does not support a
// requested configuration, for example more than two treatment variants.
type NotImplementedError struct {
	Op      string
	Message string
}

// NewNotImplementedError creates a NotImplementedError for the given operation.
func NewNotImplementedError(op, message string) *NotImplementedError {
	return &NotImplementedError{Op: op, Message: message}
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is reports whether target is ErrNotImplemented.
func (e *NotImplementedError) Is(target error) bool {
	return target == ErrNotImplemented
}

// ModelError wraps a failure that occurred inside a model operation with the
// operation name and a short description. The wrapped cause remains reachable
// through Unwrap.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

// NewModelError creates a ModelError wrapping err.
func NewModelError(op, message string, err error) *ModelError {
	return &ModelError{Op: op, Message: message, Err: err}
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *ModelError) Unwrap() error {
	return e.Err
}

// New creates a new error with a captured stack trace.
func New(msg string) error {
	return cerrors.New(msg)
}

// Wrap annotates err with msg, preserving the original chain.
func Wrap(err error, msg string) error {
	return cerrors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message, preserving the original chain.
func Wrapf(err error, format string, args ...interface{}) error {
	return cerrors.Wrapf(err, format, args...)
}
