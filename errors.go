package cachito

import (
	"errors"
	"strings"
)

// Error is the cachito error domain type.
//
// Errors coming from cachito components should be able to be inspected as
// ([errors.As]) an *Error at some point in the error chain.
//
// Implementers should create an Error where a purl mapping or manifest
// invariant fails, and intermediate layers should not wrap in another Error
// except to add additional [ErrorKind] information. That is to say, use
// [fmt.Errorf] with a "%w" verb in preference to creating a containing Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

// Assert this implements all the cool features.
var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.Kind {
	case ErrInternal,
		ErrInvalid,
		ErrMalformed,
		ErrUnknownProtocol,
		ErrUnsupported:
		b.WriteString(string(e.Kind))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
//
// It compares the error kind. Callers should compare against a declared
// [ErrorKind] over a specific error.
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents classes of errors to be checked against.
//
// If an error is unsure which kind to use, ErrInternal should be used.
type ErrorKind string

// Defined error kinds.
var (
	// ErrUnsupported indicates a package type with no defined purl mapping,
	// or a type that cannot stand at the top level of a request.
	ErrUnsupported = ErrorKind("unsupported")
	// ErrUnknownProtocol indicates a version string whose embedded URL scheme
	// matches no known pattern.
	ErrUnknownProtocol = ErrorKind("unknown protocol")
	// ErrMalformed indicates a version string that cannot be parsed into a
	// VCS reference at all.
	ErrMalformed = ErrorKind("malformed")
	// ErrInvalid indicates an otherwise invalid input.
	ErrInvalid = ErrorKind("invalid")
	// ErrInternal indicates a state that should be structurally impossible
	// for a well-formed resolved dependency graph. It points at a bug in the
	// caller's resolver output, not at bad input syntax.
	ErrInternal = ErrorKind("internal")
)

// Error implements error.
func (e ErrorKind) Error() string {
	return string(e)
}
