package types

import (
	"fmt"
	"strings"
)

// Error tag constants.
const (
	TagArityMismatch              = "ArityMismatch"
	TagInvalidCalleeExpression    = "InvalidCalleeExpression"
	TagUnsupportedExpressionShape = "UnsupportedExpressionShape"
	TagRecursionError             = "RecursionError"
	TagResourceLimitError         = "ResourceLimitError"
	TagTypeError                  = "TypeError"
	TagValueError                 = "ValueError"
	TagKeyError                   = "KeyError"
	TagIndexError                 = "IndexError"
	TagZeroDivisionError          = "ZeroDivisionError"
	TagCancelledError             = "CancelledError"
)

// ExprError is an error raised while rewriting or evaluating an expression
// tree. Its tags classify it; Cause, if set, is the error it wraps.
type ExprError struct {
	Message string
	Code    int64
	Tags    []string
	Cause   error
}

// Error implements the error interface.
func (e *ExprError) Error() string {
	msg := fmt.Sprintf("%s (tags=[%s])", e.Message, strings.Join(e.Tags, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *ExprError) Unwrap() error {
	return e.Cause
}

// Is matches a target ExprError that carries no message when e has every tag
// of the target. That makes bare tag sentinels usable with errors.Is.
func (e *ExprError) Is(target error) bool {
	t, ok := target.(*ExprError)
	if !ok || t.Message != "" || len(t.Tags) == 0 {
		return false
	}
	for _, tag := range t.Tags {
		if !e.HasTag(tag) {
			return false
		}
	}
	return true
}

// HasTag returns true if the error has the specified tag.
func (e *ExprError) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ToValue converts the error to a map value with message, code and tags.
func (e *ExprError) ToValue() Value {
	m := NewOrderedMap()
	m.Set("message", NewString(e.Message))
	m.Set("code", NewInt(e.Code))

	tags := make([]Value, len(e.Tags))
	for i, tag := range e.Tags {
		tags[i] = NewString(tag)
	}
	m.Set("tags", NewList(tags))
	if e.Cause != nil {
		m.Set("cause", NewString(e.Cause.Error()))
	}
	return NewMap(m)
}

// Sentinel returns a tag-only error for use as an errors.Is target.
func Sentinel(tags ...string) *ExprError {
	return &ExprError{Tags: tags}
}

// Common error constructors.

// NewArityMismatchError reports a splice point whose argument count differs
// from the callee's parameter count.
func NewArityMismatchError(want, got int) *ExprError {
	return &ExprError{
		Message: fmt.Sprintf("function declares %d parameter(s), splice point supplies %d argument(s)", want, got),
		Tags:    []string{TagArityMismatch},
	}
}

// NewInvalidCalleeError reports a splice callee that does not resolve to a
// function definition.
func NewInvalidCalleeError(msg string, cause error) *ExprError {
	return &ExprError{Message: msg, Tags: []string{TagInvalidCalleeExpression}, Cause: cause}
}

// NewUnsupportedShapeError reports a node kind that cannot appear in a
// constant path.
func NewUnsupportedShapeError(kind string) *ExprError {
	return &ExprError{
		Message: fmt.Sprintf("%s node cannot appear in a constant path (only constants and member accesses)", kind),
		Tags:    []string{TagUnsupportedExpressionShape},
	}
}

// NewMalformedTreeError reports a tree that cannot be rewritten or
// evaluated, such as one with a missing child expression.
func NewMalformedTreeError(msg string) *ExprError {
	return &ExprError{
		Message: "malformed expression tree: " + msg,
		Tags:    []string{TagUnsupportedExpressionShape},
	}
}

// NewRecursionError reports an expansion or call chain deeper than max.
func NewRecursionError(max int) *ExprError {
	return &ExprError{
		Message: fmt.Sprintf("depth limit exceeded (max %d)", max),
		Tags:    []string{TagRecursionError, TagResourceLimitError},
	}
}

// NewTypeError creates a TypeError.
func NewTypeError(msg string) *ExprError {
	return &ExprError{Message: msg, Tags: []string{TagTypeError}}
}

// NewValueError creates a ValueError.
func NewValueError(msg string) *ExprError {
	return &ExprError{Message: msg, Tags: []string{TagValueError}}
}

// NewKeyError creates a KeyError.
func NewKeyError(msg string) *ExprError {
	return &ExprError{Message: msg, Tags: []string{TagKeyError}}
}

// NewIndexError creates an IndexError.
func NewIndexError(msg string) *ExprError {
	return &ExprError{Message: msg, Tags: []string{TagIndexError}}
}

// NewZeroDivisionError creates a ZeroDivisionError.
func NewZeroDivisionError() *ExprError {
	return &ExprError{Message: "division by zero", Tags: []string{TagZeroDivisionError}}
}

// NewCancelledError wraps a context error.
func NewCancelledError(cause error) *ExprError {
	return &ExprError{Message: "run cancelled", Tags: []string{TagCancelledError}, Cause: cause}
}
