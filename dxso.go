// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package dxso loads Direct3D 8/9 shader bytecode and turns it into
// something a host can use.
//
// A shader is a stream of 32-bit tokens: a version token, instructions and
// declarations, and the end token. Load decodes the stream once, runs the
// resource-usage pre-pass and keeps a private copy of the tokens. The
// resulting Shader can then be:
//   - executed on the software interpreter (package interp)
//   - translated to ARB_vertex_program / ARB_fragment_program text (package arb)
//   - translated to compatibility GLSL (package glsl)
//   - disassembled (package disasm)
//
// Example usage:
//
//	tokens, err := bytecode.FromBytes(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	shader, err := dxso.Load(tokens, dxso.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := shader.CompileARB(arb.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(out.Text)
//
// Problems that do not stop translation (an opcode the target cannot
// express, a profile limit exceeded) are reported as diag.Diagnostic values
// rather than errors. Malformed streams are errors and produce no Shader.
package dxso

import (
	"errors"
	"fmt"

	"github.com/gogpu/dxso/arb"
	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/disasm"
	"github.com/gogpu/dxso/glsl"
	"github.com/gogpu/dxso/interp"
	"github.com/gogpu/dxso/isa"
	"github.com/gogpu/dxso/usage"
)

// Options configures Load.
type Options struct {
	// SkipUnknown tolerates unknown opcodes: they are skipped by the
	// continuation convention and reported as UnknownOpcode warnings.
	// Skipped instructions are absent from the decoded program.
	SkipUnknown bool

	// Sink receives every diagnostic raised while loading and compiling,
	// in addition to Shader.Diagnostics.
	Sink diag.Sink
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{}
}

// Shader is one decoded shader program.
//
// A Shader is read-only after Load except for Diagnostics, the compiled
// outputs and Handle, so the compile methods of one Shader must not be called concurrently.
// Distinct shaders are independent.
type Shader struct {
	tokens []uint32
	sink   diag.Sink

	Version isa.Version
	Program *bytecode.Program
	Bitmaps usage.Bitmaps

	// Diagnostics accumulates everything reported by Load and by the
	// compile methods.
	Diagnostics diag.List

	// ARB and GLSL hold the output of the last successful CompileARB and
	// CompileGLSL, including the declared temporary and sampler counts.
	ARB  *arb.Output
	GLSL *glsl.Output

	// Handle is free for the caller to attach the driver-side object
	// created from this shader. It is never read here.
	Handle any
}

// Load decodes tokens into a Shader. The tokens are copied; the caller may
// reuse the slice afterwards.
func Load(tokens []uint32, opts Options) (*Shader, error) {
	if len(tokens) == 0 {
		return nil, errors.New("dxso: empty token stream")
	}
	s := &Shader{
		tokens: append([]uint32(nil), tokens...),
	}
	s.sink = diag.Tee(&s.Diagnostics, diag.Or(opts.Sink))

	prog, err := bytecode.Decode(s.tokens, bytecode.Options{
		SkipUnknown: opts.SkipUnknown,
		Sink:        s.sink,
	})
	if err != nil {
		return nil, fmt.Errorf("dxso: decode: %w", err)
	}

	s.Version = prog.Version
	s.Program = prog
	s.Bitmaps = usage.FromProgramWith(prog, s.sink)
	return s, nil
}

// LoadBytes is Load for a little-endian byte stream, as stored in .vso and
// .pso files.
func LoadBytes(data []byte, opts Options) (*Shader, error) {
	tokens, err := bytecode.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("dxso: %w", err)
	}
	return Load(tokens, opts)
}

// Tokens returns a copy of the shader's token stream.
func (s *Shader) Tokens() []uint32 {
	return append([]uint32(nil), s.tokens...)
}

// CompileARB translates the shader to ARB assembly text and keeps the
// result in s.ARB. Diagnostics are appended to s.Diagnostics and forwarded
// to opts.Sink.
func (s *Shader) CompileARB(opts arb.Options) (*arb.Output, error) {
	opts.Sink = diag.Tee(s.sink, diag.Or(opts.Sink))
	out, err := arb.Generate(s.Program, s.Bitmaps, opts)
	if err != nil {
		return nil, fmt.Errorf("dxso: %w", err)
	}
	s.ARB = out
	return out, nil
}

// CompileGLSL translates the shader to GLSL source and keeps the result in
// s.GLSL.
func (s *Shader) CompileGLSL(opts glsl.Options) (*glsl.Output, error) {
	opts.Sink = diag.Tee(s.sink, diag.Or(opts.Sink))
	out, err := glsl.Compile(s.Program, s.Bitmaps, opts)
	if err != nil {
		return nil, fmt.Errorf("dxso: %w", err)
	}
	s.GLSL = out
	return out, nil
}

// Disassemble returns the assembly listing of the shader.
func (s *Shader) Disassemble() string {
	return disasm.Program(s.Program)
}

// Execute runs the shader on st. st.Version is set to the shader's profile
// when it is zero.
func (s *Shader) Execute(st *interp.State, opts interp.Options) error {
	if st == nil {
		return errors.New("dxso: nil state")
	}
	if st.Version == (isa.Version{}) {
		st.Version = s.Version
	}
	if st.Version != s.Version {
		return fmt.Errorf("dxso: state is %s, shader is %s", st.Version, s.Version)
	}
	opts.Sink = diag.Tee(s.sink, diag.Or(opts.Sink))
	if err := interp.Run(s.Program, st, opts); err != nil {
		return fmt.Errorf("dxso: %w", err)
	}
	return nil
}
