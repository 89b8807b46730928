// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package diag is the structured diagnostics channel shared by the decoder,
// the usage pre-pass and every backend.
package diag

import (
	"context"
	"fmt"
	"log/slog"
)

// Kind categorizes a diagnostic.
type Kind uint8

const (
	// MalformedStream indicates a truncated or inconsistent token stream.
	MalformedStream Kind = iota

	// UnknownOpcode indicates an opcode absent from the instruction table.
	UnknownOpcode

	// UnsupportedForBackend indicates an instruction the backend cannot express.
	UnsupportedForBackend

	// VersionMismatch indicates an instruction or resource outside the
	// profile it was used in.
	VersionMismatch

	// MacroSequence indicates a broken texm3x2/texm3x3 instruction sequence.
	MacroSequence

	// NotImplemented indicates an interpreter stub was reached.
	NotImplemented
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case MalformedStream:
		return "MalformedStream"
	case UnknownOpcode:
		return "UnknownOpcode"
	case UnsupportedForBackend:
		return "UnsupportedForBackend"
	case VersionMismatch:
		return "VersionMismatch"
	case MacroSequence:
		return "MacroSequence"
	case NotImplemented:
		return "NotImplemented"
	default:
		return "Unknown"
	}
}

// Severity orders diagnostics by their effect on the output.
type Severity uint8

const (
	// Warning leaves the output intact.
	Warning Severity = iota

	// Degraded means the output was produced but is incomplete.
	Degraded

	// Fatal means no output was produced.
	Fatal
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Degraded:
		return "degraded"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Diagnostic is one report from a pipeline stage.
type Diagnostic struct {
	Kind     Kind
	Severity Severity

	// Offset is the word offset of the instruction token, or -1.
	Offset int

	// Opcode is the raw opcode of the instruction, if any.
	Opcode uint16

	// Backend names the reporting stage ("decode", "arb", "glsl", ...).
	Backend string

	Message string
}

// String formats the diagnostic as "backend severity Kind @offset: message".
func (d Diagnostic) String() string {
	if d.Offset >= 0 {
		return fmt.Sprintf("%s %s %s @%d: %s", d.Backend, d.Severity, d.Kind, d.Offset, d.Message)
	}
	return fmt.Sprintf("%s %s %s: %s", d.Backend, d.Severity, d.Kind, d.Message)
}

// Sink receives diagnostics.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(d Diagnostic)

// Report calls f(d).
func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard is a Sink that drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})

// Or returns s, or Discard when s is nil.
func Or(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Tee fans a diagnostic out to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s.Report(d)
			}
		}
	})
}

// List is a Sink that accumulates diagnostics in order.
type List []Diagnostic

// Report appends d.
func (l *List) Report(d Diagnostic) {
	*l = append(*l, d)
}

// Count returns the number of diagnostics of kind k.
func (l List) Count(k Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Worst returns the highest severity in the list, or Warning when empty.
func (l List) Worst() Severity {
	worst := Warning
	for _, d := range l {
		if d.Severity > worst {
			worst = d.Severity
		}
	}
	return worst
}

// Degraded reports whether any diagnostic degraded the output.
func (l List) Degraded() bool {
	return l.Worst() >= Degraded
}

// SlogSink forwards diagnostics to a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink returns a sink logging to logger, or to slog.Default() when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{Logger: logger}
}

// Report logs d at Warn for warnings and Error otherwise.
func (s *SlogSink) Report(d Diagnostic) {
	level := slog.LevelWarn
	if d.Severity >= Degraded {
		level = slog.LevelError
	}
	s.Logger.Log(context.Background(), level, d.Message,
		"kind", d.Kind.String(),
		"severity", d.Severity.String(),
		"backend", d.Backend,
		"offset", d.Offset,
		"opcode", d.Opcode,
	)
}
