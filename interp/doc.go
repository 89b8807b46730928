// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package interp executes decoded shader programs on the CPU.
//
// A State holds the full register file of one vertex or pixel invocation.
// ExecInstruction runs a single arithmetic or texture instruction against
// it; Run walks a whole Program, including if/else, rep, loop and
// call/ret flow control. Texture lookups are delegated to a Sampler.
//
// Instructions the interpreter does not execute (dsx, dsy, texldd, setp,
// breakp and predicated instructions) fail with ErrNotImplemented. Run
// reports them to Options.Sink and continues unless Options.Strict is set.
package interp
