// Package kerrors defines the error taxonomy used across causalkit:
// ConfigError, SchemaError, ParseError and InvariantError (spec §7). None of
// the pack's examples define a comparable typed-error kind for a small
// numeric library, so this stays on the standard library (errors/fmt) rather
// than reaching for github.com/pkg/errors, whose Wrap/Cause API buys nothing
// over errors.Is/As plus %w here.
package kerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for callers that want to branch on recoverability.
type Kind int

const (
	Config Kind = iota
	Schema
	Parse
	Invariant
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "ConfigError"
	case Schema:
		return "SchemaError"
	case Parse:
		return "ParseError"
	case Invariant:
		return "InvariantError"
	default:
		return "Error"
	}
}

// Error names the offending operation/column/file alongside its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err under op with the given Kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf formats a new error message under op with the given Kind.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
