package formula

import (
	"errors"
	"fmt"
)

// ErrUnresolvedTree is returned when the generator is invoked on a tree that
// has not been resolved or that still contains an invalid node. That is a
// caller precondition violation, not a user-facing validation failure.
var ErrUnresolvedTree = errors.New("formula tree must be resolved and valid before generation")

// SyntaxError reports malformed formula text with its byte offset.
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid syntax at position %d: %s", e.Offset, e.Message)
}

func newSyntaxError(offset int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Offset: offset, Message: fmt.Sprintf(format, args...)}
}

// MaximumFormulaSizeError is returned before any parse work when the source
// exceeds the configured maximum length.
type MaximumFormulaSizeError struct {
	Size int
	Max  int
}

func (e *MaximumFormulaSizeError) Error() string {
	return fmt.Sprintf("formula is %d characters long but the maximum is %d", e.Size, e.Max)
}

// FieldDoesNotExistError reports a reference to a field name absent from the
// schema snapshot.
type FieldDoesNotExistError struct {
	Name string
	At   Span
}

func (e *FieldDoesNotExistError) Error() string {
	return fmt.Sprintf("references the deleted or unknown field %q", e.Name)
}

// SelfReferenceError reports a formula that references its own field.
type SelfReferenceError struct {
	Name string
}

func (e *SelfReferenceError) Error() string {
	return fmt.Sprintf("formula field %q cannot reference itself", e.Name)
}

// CircularReferenceError reports a transitive dependency cycle between
// formula fields, detected before type resolution.
type CircularReferenceError struct {
	Cycle []string
}

func (e *CircularReferenceError) Error() string {
	if len(e.Cycle) == 0 {
		return "formula fields form a circular reference"
	}
	path := e.Cycle[0]
	for _, name := range e.Cycle[1:] {
		path += " -> " + name
	}
	return fmt.Sprintf("formula fields form a circular reference: %s", path)
}

// UnknownFunctionError reports a call to a function name missing from the
// registry.
type UnknownFunctionError struct {
	Name string
	At   Span
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("%s is not a valid formula function", e.Name)
}

// InvalidTypeError carries the terminal invalid type out of resolution as a
// typed error. Callers that must persist a broken formula store the reason
// and span instead of failing the save.
type InvalidTypeError struct {
	Reason string
	At     Span
}

func (e *InvalidTypeError) Error() string {
	return e.Reason
}

// invalidTypeFrom wraps a resolved invalid type in its error form.
func invalidTypeFrom(t Type) *InvalidTypeError {
	return &InvalidTypeError{Reason: t.Reason, At: t.At}
}
