// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"errors"
	"fmt"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/usage"
)

// Version represents a GLSL version.
type Version struct {
	Major uint8
	Minor uint8
}

// Supported GLSL versions. All of them still carry the fixed-function
// built-ins (gl_TexCoord, gl_FrontColor, gl_FragData) the generated code
// relies on.
var (
	Version110 = Version{Major: 1, Minor: 10} // OpenGL 2.0
	Version120 = Version{Major: 1, Minor: 20} // OpenGL 2.1
	Version130 = Version{Major: 1, Minor: 30} // OpenGL 3.0
)

// String returns the version as a GLSL version directive value.
func (v Version) String() string {
	return fmt.Sprintf("%d%02d", v.Major, v.Minor)
}

func (v Version) number() int {
	return int(v.Major)*100 + int(v.Minor)
}

// ErrUnsupportedVersion is returned for language versions without the
// compatibility built-ins.
var ErrUnsupportedVersion = errors.New("glsl: unsupported language version")

// Options configures GLSL code generation.
type Options struct {
	// LangVersion is the target GLSL version.
	// Defaults to Version120 if zero.
	LangVersion Version

	// Sink receives every diagnostic in addition to Output.Diagnostics.
	Sink diag.Sink

	// Comments precedes each statement with the disassembled instruction.
	Comments bool

	// Targets overrides the sampler type of texture units the program does
	// not declare. TextureUnknown selects 2D.
	Targets [16]bytecode.TextureType
}

// DefaultOptions returns sensible default options for GLSL generation.
func DefaultOptions() Options {
	return Options{
		LangVersion: Version120,
	}
}

// Output is one generated GLSL shader.
type Output struct {
	// Text is the complete shader source.
	Text string

	// Extensions lists the #extension directives the shader requires.
	Extensions []string

	// Samplers is the number of sampler uniforms declared.
	Samplers int

	// Degraded is set when an instruction could not be translated.
	Degraded bool

	Diagnostics diag.List
}

// Compile generates GLSL source for prog. bm must be the usage bitmaps of
// prog.
func Compile(prog *bytecode.Program, bm usage.Bitmaps, options Options) (*Output, error) {
	if prog == nil {
		return nil, errors.New("glsl: nil program")
	}
	if options.LangVersion == (Version{}) {
		options.LangVersion = Version120
	}
	if n := options.LangVersion.number(); n < 110 || n > 130 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, options.LangVersion)
	}
	if err := prog.CheckTranslatable(); err != nil {
		return nil, fmt.Errorf("glsl: %w", err)
	}

	w := newWriter(prog, bm, &options)
	if err := w.writeProgram(); err != nil {
		return nil, fmt.Errorf("glsl: %w", err)
	}
	return w.output(), nil
}
