// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with a Wrap() method to build chains of sentinel errors
// without resorting to fmt.Errorf("%w", err).
package errors

import (
	stderr "errors"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error augments the standard error interface with a Wrap method.
//
// The main difference with github.com/pkg/errors is that we are wrapping
// errors from errors, not from text.
type Error struct {
	msg    string
	err    error
	parent *Error
}

// Error message
func (e *Error) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error.
//
// The receiver is left untouched: a new error with the same message is returned,
// so package-level sentinels may be wrapped concurrently.
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err, parent: e}
}

// Extend builds a more specific sentinel error, which is also its parent.
func (e *Error) Extend(msg string) *Error {
	return &Error{msg: msg, parent: e}
}

// Is of some error type?
//
// An error obtained by wrapping a sentinel is still that sentinel.
func (e *Error) Is(target error) bool {
	for p := e; p != nil; p = p.parent {
		if p == target {
			return true
		}
		if p != e && p.err != nil && stderr.Is(p.err, target) {
			return true
		}
	}
	return false
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.Is)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
