// Package errs augments the standard errors package with a Wrap() method,
// the same way pkg/errors does, and adds a Kind taxonomy so every error
// that crosses a package boundary in papermake carries exactly one stable
// kind token alongside its message.
package errs

import (
	stderr "errors"
	"fmt"
)

// Kind is a stable, user-visible error classification. Exactly one Kind is
// attached to every error that the core surfaces to a caller.
type Kind string

const (
	InvalidReference   Kind = "InvalidReference"
	TemplateNotFound   Kind = "TemplateNotFound"
	HashMismatch       Kind = "HashMismatch"
	ImmutableTagExists Kind = "ImmutableTagExists"
	TagUpdateConflict  Kind = "TagUpdateConflict"
	InvalidManifest    Kind = "InvalidManifest"
	InvalidData        Kind = "InvalidData"
	CompileFailed      Kind = "CompileFailed"
	StorageUnavailable Kind = "StorageUnavailable"
	Corrupt            Kind = "Corrupt"
	Timeout            Kind = "Timeout"
	Cancelled          Kind = "Cancelled"
)

var _ error = New(InvalidReference, "")

// SubKind further classifies a CompileFailed error, per §7.
type SubKind string

const (
	SyntaxError  SubKind = "SyntaxError"
	RuntimeError SubKind = "RuntimeError"
	MissingFile  SubKind = "MissingFile"
	EmptyOutput  SubKind = "EmptyOutput"
	InternalError SubKind = "InternalError"
)

// Diagnostic is a single compiler-reported problem, located relative to the
// bundle's logical paths, never to host paths.
type Diagnostic struct {
	Message string
	Path    *string
	Line    *int
	Col     *int
}

// Error is the concrete error type returned by every exported papermake
// operation. It augments a message and a Kind with a Wrap/Unwrap chain,
// matching pkg/errors' Wrap semantics.
type Error struct {
	kind        Kind
	subKind     SubKind
	msg         string
	err         error
	diagnostics []Diagnostic
}

// New creates an Error of the given Kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf creates an Error of the given Kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// NewCompileFailed creates a CompileFailed error carrying a sub-kind and
// the compiler's diagnostics.
func NewCompileFailed(sub SubKind, diags []Diagnostic) *Error {
	return &Error{kind: CompileFailed, subKind: sub, msg: string(sub), diagnostics: diags}
}

// SubKind returns the CompileFailed sub-classification, or "" for other
// kinds.
func (e *Error) SubKind() SubKind {
	if e == nil {
		return ""
	}
	return e.subKind
}

// Diagnostics returns the compiler diagnostics attached to a CompileFailed
// error, if any.
func (e *Error) Diagnostics() []Diagnostic {
	if e == nil {
		return nil
	}
	return e.diagnostics
}

// Error message: the kind and message, followed by the nested cause's
// message when one is wrapped. Use Unwrap to reach the cause itself.
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Kind returns the error's stable classification.
func (e *Error) Kind() Kind {
	if e == nil {
		return ""
	}
	return e.kind
}

// Unwrap returns the nested cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap attaches a nested cause and returns the receiver for chaining.
func (e *Error) Wrap(err error) *Error {
	e.err = err
	return e
}

// Is reports whether target is this error or its wrapped cause.
func (e *Error) Is(target error) bool {
	return e == target || (e.err != nil && stderr.Is(e.err, target))
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, and the
// zero Kind otherwise.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.kind
	}
	return ""
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderr.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}
