// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package arb translates decoded shader programs of shader model 1.x and
// 2.x into ARB_vertex_program and ARB_fragment_program assembly text.
//
// Every source instruction becomes one or more target lines. Source
// modifiers the target cannot express directly are computed into MOD
// temporaries first, result shifts become a trailing MUL, and the ps_1_x
// texture matrix instructions expand into fixed sequences on the NRM and
// EYE temporaries. Instructions without an assembly equivalent are skipped
// with an UnsupportedForBackend diagnostic and the Output is marked
// Degraded.
//
// Float constants are read from program.env[] through the C[] array.
// Constants set by def instructions become named PARAMs instead. Bump
// matrices are program.local[0..7] and luminance parameters
// program.local[8..15].
package arb
