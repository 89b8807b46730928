// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package bytecode decodes Direct3D shader token streams.
//
// A stream is a sequence of 32-bit words: a version token, instructions,
// comments and a terminating end token. The Decoder walks it as a small
// state machine and yields one Instruction at a time with its destination,
// source and predicate operands decoded:
//
//	prog, err := bytecode.Decode(tokens, bytecode.Options{})
//	if err != nil {
//	    // *bytecode.Error with Kind diag.MalformedStream or diag.UnknownOpcode
//	}
//
// Builder assembles streams from parameter tokens and is handy in tests.
package bytecode
