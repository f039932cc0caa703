// Package errors defines the error kinds surfaced by the planning core.
//
// Callers wrap these sentinels with context (source path, column name,
// shape description) and match them with [errors.Is].
package errors

import "errors"

var (
	// ErrNoData is returned when an operation requiring at least one input
	// receives none.
	ErrNoData = errors.New("no data")
	// ErrShapeMismatch is returned when schemas or shapes are inconsistent.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidOperation is returned when a transform is not defined for a
	// data type.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrFieldNotFound is returned when a schema lookup fails.
	ErrFieldNotFound = errors.New("field not found")
	// ErrNotImplemented is returned for inputs the planner does not support yet.
	ErrNotImplemented = errors.New("not implemented")
)
