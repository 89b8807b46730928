// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package disasm formats decoded shader instructions as assembly text.
//
// Instruction is a pure function of the profile version and one decoded
// instruction, which makes it usable for execution traces as well as for
// whole-program listings:
//
//	prog, _ := bytecode.Decode(tokens, bytecode.Options{})
//	fmt.Print(disasm.Program(prog))
//	// ps_2_0
//	// mov r0, v0
//	// add r0, r0, c3
package disasm
