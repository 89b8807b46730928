// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Command dxsoc inspects and translates Direct3D shader bytecode.
//
// Usage:
//
//	dxsoc <command> [flags] <shader>
//
// Examples:
//
//	dxsoc dis shader.pso                 # Disassemble
//	dxsoc arb -o shader.fp shader.pso    # Translate to ARB_fragment_program
//	dxsoc glsl --lang 130 shader.vso     # Translate to GLSL 1.30
//	dxsoc run --inputs regs.yaml s.pso   # Execute on the interpreter
//	dxsoc info --json shader.vso         # Program summary
//	dxsoc step shader.vso                # Interactive single stepping
//
// Shaders are read as little-endian token streams (.vso, .pso) unless
// --hex is given, in which case the file holds whitespace separated hex
// words as printed by most shader dumpers.
package main

import (
	"github.com/tebeka/atexit"
)

const dxsocVersion = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
