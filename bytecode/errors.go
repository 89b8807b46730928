// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"fmt"

	"github.com/gogpu/dxso/diag"
)

// Error is a decoding error at a word offset.
type Error struct {
	// Kind categorizes the error.
	Kind diag.Kind

	// Offset is the word offset of the instruction token involved.
	Offset int

	// Message provides details about the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("dxso %s at word %d: %s", e.Kind, e.Offset, e.Message)
}

// NewError creates a new decoding error.
func NewError(kind diag.Kind, offset int, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsMalformed returns true if the error is diag.MalformedStream.
func (e *Error) IsMalformed() bool {
	return e.Kind == diag.MalformedStream
}

// IsUnknownOpcode returns true if the error is diag.UnknownOpcode.
func (e *Error) IsUnknownOpcode() bool {
	return e.Kind == diag.UnknownOpcode
}

// Diagnostic converts the error into a fatal diagnostic.
func (e *Error) Diagnostic(backend string) diag.Diagnostic {
	return diag.Diagnostic{
		Kind:     e.Kind,
		Severity: diag.Fatal,
		Offset:   e.Offset,
		Backend:  backend,
		Message:  e.Message,
	}
}
