// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package glsl provides a GLSL backend for decoded shader programs.
//
// It covers what the assembly backend cannot express: structured flow
// control (if, rep, loop, call), integer and boolean constants,
// predication, derivatives and the shader model 3.0 profiles. Output
// targets GLSL 1.10 through 1.30 with the compatibility built-ins:
//
//   - float constants are uniform vec4 C[], integer constants ivec4 I[],
//     boolean constants bool B[]; def instructions become named constants
//   - samplers are uniforms S0..S15 typed by their dcl declaration
//   - registers are globals R#, T#, A0, aL and P0 so that subroutines
//     l# share them with main
//   - vertex inputs are attributes v#; outputs go to gl_Position,
//     gl_FrontColor and gl_TexCoord[]
//   - pixel outputs go to gl_FragColor (ps_1_x r0) or gl_FragData[]
//
// # Basic Usage
//
//	out, err := glsl.Compile(prog, usage.FromProgram(prog), glsl.DefaultOptions())
//
// The ps_1_x texture matrix and bump instructions have no GLSL expansion;
// they are skipped with an UnsupportedForBackend diagnostic.
package glsl
