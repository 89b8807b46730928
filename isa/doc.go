// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package isa describes the Direct3D 8/9 shader instruction set.
//
// The package holds a single read-only table of instruction descriptors.
// Each entry covers one opcode for a set of pipeline stages and a range of
// profile versions, so version-dependent encodings such as tex/texld or
// sincos have one entry per range:
//
//	in, ok := isa.Lookup(isa.OpTex, isa.PS1_4)
//	// in.Name == "texld", in.Params == 2
//
// Entries also record which backends can handle the instruction and the
// mnemonic used by the ARB assembly generator.
package isa
