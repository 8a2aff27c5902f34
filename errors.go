// Package seclua is the embedding API: a thin Go-native façade over
// vm.State plus the repository-root Error/Config types every other
// package's errors and settings funnel through.
//
// Grounded on the teacher's own root package shape (gosec.Error/
// gosec.Issue as the analyzer's single result/error type) adapted to
// this runtime's §7 error taxonomy instead of a go/ast position.
package seclua

import (
	"errors"
	"fmt"

	"github.com/taintscript/seclua/vm"
)

// ErrorKind mirrors vm.ErrorKind (spec §7's taxonomy), re-exported at the
// embedding boundary so callers outside this module don't need to import
// vm just to switch on a status code.
type ErrorKind = vm.ErrorKind

const (
	StatusOK                   = vm.StatusOK
	StatusYield                = vm.StatusYield
	StatusRuntimeError         = vm.StatusRuntimeError
	StatusSyntaxError          = vm.StatusSyntaxError
	StatusMemoryError          = vm.StatusMemoryError
	StatusErrorInErrorHandling = vm.StatusErrorInErrorHandling
	StatusFileError            = vm.StatusFileError
)

// Error is the single error type every embedding-API call returns,
// adapted from the teacher's gosec.Error/gosec.Issue pair: where that
// type tied a finding to a go/ast position ({Line, Column, Err}), this
// one ties a runtime failure to this project's own status taxonomy and
// script source position instead.
type Error struct {
	Kind    ErrorKind
	Message string
	Source  string
	Line    int

	cause error
}

func (e *Error) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s:%d: %s (%s)", e.Source, e.Line, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

// Unwrap lets errors.As/errors.Is see through to a wrapped cause — a
// *vm.Error from the runtime, or a compile error from the compiler
// package — without this type needing to know their concrete shape.
func (e *Error) Unwrap() error { return e.cause }

// fromVMError adapts a *vm.Error (the runtime's own error type) into the
// embedding API's Error, preserving the original as the wrapped cause so
// callers can still errors.As into *vm.Error if they need the raw Value.
func fromVMError(err *vm.Error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    err.Kind,
		Message: err.Message,
		Source:  err.Source,
		Line:    err.Line,
		cause:   err,
	}
}

// newCompileError wraps a syntax error from the compiler package (which
// returns a plain `error`, not a *vm.Error, since compilation happens
// before any vm.Thread exists to attribute it to).
func newCompileError(source string, err error) *Error {
	return &Error{Kind: StatusSyntaxError, Message: err.Error(), Source: source, cause: err}
}

// AsVMError is a convenience for errors.As(err, new(*vm.Error)) against
// an Error's wrapped cause.
func AsVMError(err error) (*vm.Error, bool) {
	var vmErr *vm.Error
	ok := errors.As(err, &vmErr)
	return vmErr, ok
}
