// Package errors provides the coded error type used across the assembly
// pipeline. Every failure the engine surfaces carries one of the Codes below
// so callers can classify it without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a failure category.
type Code string

func (c Code) String() string {
	return string(c)
}

const (
	// NoFeaturesFound: a solid yielded no planar, cylindrical or circular feature.
	NoFeaturesFound Code = "NoFeaturesFound"
	// NoCompatibleFeatures: no feature pair between the two solids can mate.
	NoCompatibleFeatures Code = "NoCompatibleFeatures"
	// IllFormedFeature: anchor or axis data is numerically degenerate.
	IllFormedFeature Code = "IllFormedFeature"
	// NoValidAlignment: every ranked candidate interfered.
	NoValidAlignment Code = "NoValidAlignment"
	// GeometryKernelFailure: the geometry kernel failed or panicked.
	GeometryKernelFailure Code = "GeometryKernelFailure"
	// Cancelled: the caller's context ended between attempts.
	Cancelled Code = "Cancelled"
	// InvalidConfig: configuration failed validation.
	InvalidConfig Code = "InvalidConfig"
)

// Error is the structured error carried through the engine.
type Error struct {
	Code    Code
	Message string
	Detail  string
	Cause   error
}

// Error formats as "<Code>: <message>[: <detail>][: <cause>]".
func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the cause so errors.Is and errors.As traverse the chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy with Detail set.
func (e *Error) WithDetail(format string, args ...any) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = fmt.Sprintf(format, args...)
	return &clone
}

// New creates an error with the given code.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause. A nil cause yields nil.
func Wrap(cause error, code Code, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel returns a bare error for comparisons with errors.Is.
func Sentinel(code Code) error {
	return &Error{Code: code}
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an *Error with code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, Sentinel(code))
}
