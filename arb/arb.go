// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package arb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/disasm"
	"github.com/gogpu/dxso/isa"
	"github.com/gogpu/dxso/usage"
)

// ErrUnsupportedProfile is returned for profiles the assembly dialect cannot
// express at all.
var ErrUnsupportedProfile = errors.New("arb: unsupported profile")

// Options configures assembly generation.
type Options struct {
	// Sink receives every diagnostic in addition to Output.Diagnostics.
	Sink diag.Sink

	// Comments precedes the lines of each instruction with a "#" comment
	// holding its disassembly.
	Comments bool

	// Targets overrides the texture target of stages the program does not
	// declare. TextureUnknown selects 2D.
	Targets [16]bytecode.TextureType
}

// DefaultOptions returns the default generation options.
func DefaultOptions() Options {
	return Options{}
}

// Output is one generated assembly program.
type Output struct {
	// Text is the complete program, header to END.
	Text string

	// Lines are the program lines between the declarations and END.
	Lines []string

	// Temps is the number of TEMP declarations.
	Temps int

	// Samplers is the number of distinct texture units sampled.
	Samplers int

	// Degraded is set when an instruction could not be translated.
	Degraded bool

	Diagnostics diag.List
}

// Generate translates prog to ARB_vertex_program or ARB_fragment_program
// text. bm must be the usage bitmaps of prog.
func Generate(prog *bytecode.Program, bm usage.Bitmaps, opts Options) (*Output, error) {
	if prog == nil {
		return nil, errors.New("arb: nil program")
	}
	v := prog.Version
	if v.AtLeast(3, 0) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProfile, v)
	}
	if err := prog.CheckTranslatable(); err != nil {
		return nil, err
	}

	g := newGenerator(prog, bm, opts)
	g.checkLimits()
	for i := range prog.Instructions {
		in := &prog.Instructions[i]
		if in.Info == nil {
			return nil, bytecode.NewError(diag.UnknownOpcode, in.Offset,
				"opcode %d cannot be translated", uint16(in.Opcode))
		}
		g.instruction(in)
	}
	if g.row != 0 {
		g.macroSequence(nil, "texture matrix sequence ends after %d rows", g.row)
	}
	if v.IsPixel() && v.Before(2, 0) {
		g.lines = append(g.lines, "MOV result.color, R0;")
	}

	out := g.out
	out.Lines = g.lines
	header := g.header()
	var sb strings.Builder
	for _, l := range header {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	for _, l := range g.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString("END\n")
	out.Text = sb.String()
	out.Samplers = len(g.units)
	out.Degraded = out.Diagnostics.Degraded()
	return out, nil
}

// generator holds the state of one Generate call.
type generator struct {
	prog *bytecode.Program
	v    isa.Version
	bm   usage.Bitmaps
	opts Options
	out  *Output

	lines   []string
	pending []string
	failed  string
	dropped bool // already reported, emit nothing

	defined  map[uint32]bool // c# set by def
	maxConst int
	relConst bool
	used     map[string]bool // helper params and scratch temps
	mods     int             // MOD temps used by the current instruction
	maxMods  int
	units    map[uint32]bool
	bump     map[uint32]bool

	// Texture matrix sequence state: rows computed and the t# of each row.
	row     int
	rowRegs [3]uint32
}

func newGenerator(prog *bytecode.Program, bm usage.Bitmaps, opts Options) *generator {
	g := &generator{
		prog:     prog,
		v:        prog.Version,
		bm:       bm,
		opts:     opts,
		out:      &Output{},
		defined:  make(map[uint32]bool),
		maxConst: -1,
		used:     make(map[string]bool),
		units:    make(map[uint32]bool),
		bump:     make(map[uint32]bool),
	}
	for _, d := range prog.Defines() {
		if d.Opcode == isa.OpDef && d.Dst != nil {
			g.defined[d.Dst.ConstIndex()] = true
		}
	}
	return g
}

func (g *generator) report(kind diag.Kind, sev diag.Severity, in *bytecode.Instruction, format string, args ...any) {
	d := diag.Diagnostic{
		Kind:     kind,
		Severity: sev,
		Backend:  "arb",
		Message:  fmt.Sprintf(format, args...),
	}
	if in != nil {
		d.Offset = in.Offset
		d.Opcode = uint16(in.Opcode)
	}
	g.out.Diagnostics.Report(d)
	if g.opts.Sink != nil {
		g.opts.Sink.Report(d)
	}
}

func (g *generator) macroSequence(in *bytecode.Instruction, format string, args ...any) {
	g.row = 0
	g.report(diag.MacroSequence, diag.Degraded, in, format, args...)
}

func (g *generator) checkLimits() {
	lim := isa.LimitsFor(g.v)
	if n := g.bm.TempCount(); n > lim.Temps {
		g.report(diag.VersionMismatch, diag.Warning, nil, "%d temporaries exceed the %s limit of %d", n, g.v, lim.Temps)
	}
	if g.bm.MaxConst >= lim.Constants {
		g.report(diag.VersionMismatch, diag.Warning, nil, "constant c%d exceeds the %s limit of %d", g.bm.MaxConst, g.v, lim.Constants)
	}
	if g.v.IsPixel() && g.bm.TextureCount() > lim.Textures {
		g.report(diag.VersionMismatch, diag.Warning, nil, "%d texture registers exceed the %s limit of %d", g.bm.TextureCount(), g.v, lim.Textures)
	}
}

// emit appends one line to the current instruction.
func (g *generator) emit(format string, args ...any) {
	g.pending = append(g.pending, fmt.Sprintf(format, args...))
}

// fail marks the current instruction as untranslatable.
func (g *generator) fail(format string, args ...any) {
	if g.failed == "" {
		g.failed = fmt.Sprintf(format, args...)
	}
}

// use marks a helper parameter or scratch temporary as referenced.
func (g *generator) use(name string) string {
	g.used[name] = true
	return name
}

func (g *generator) instruction(in *bytecode.Instruction) {
	info := in.Info
	if info.ARB == "" {
		return
	}
	if info.ARB == isa.HigherLevelOnly || !info.Supports(isa.BackendARB) || in.Predicated {
		g.report(diag.UnsupportedForBackend, diag.Degraded, in, "%s has no assembly equivalent", in.Name())
		return
	}
	if g.row != 0 && !isTexm(in.Opcode) {
		g.macroSequence(in, "%s interrupts a texture matrix sequence", in.Name())
	}

	g.pending = g.pending[:0]
	g.failed = ""
	g.dropped = false
	g.mods = 0
	g.translate(in)
	if g.dropped {
		return
	}
	if g.failed != "" {
		g.report(diag.UnsupportedForBackend, diag.Degraded, in, "%s: %s", in.Name(), g.failed)
		return
	}
	if g.opts.Comments {
		g.lines = append(g.lines, "# "+disasm.Instruction(g.v, in))
	}
	g.lines = append(g.lines, g.pending...)
}

func (g *generator) header() []string {
	var h []string
	if g.v.IsVertex() {
		h = append(h, "!!ARBvp1.0")
	} else {
		h = append(h, "!!ARBfp1.0")
	}

	temps := g.bm.Temps
	if g.v.IsPixel() && g.v.Before(2, 0) {
		temps |= 1
	}
	for i := 0; i < 32; i++ {
		if temps&(1<<i) != 0 {
			h = append(h, fmt.Sprintf("TEMP R%d;", i))
		}
	}
	if g.v.IsPixel() && g.v.Before(1, 4) {
		for i := 0; i < 32; i++ {
			if g.bm.Textures&(1<<i) != 0 {
				h = append(h, fmt.Sprintf("TEMP T%d;", i))
			}
		}
	}
	ntemps := len(h) - 1
	if g.v.IsVertex() && (g.bm.Address != 0 || g.relConst) {
		h = append(h, "ADDRESS A0;")
	}
	for i := 0; i < g.maxMods; i++ {
		h = append(h, fmt.Sprintf("TEMP MOD%d;", i))
		ntemps++
	}
	for _, s := range []string{"MODR", "NRM", "EYE"} {
		if g.used[s] {
			h = append(h, "TEMP "+s+";")
			ntemps++
		}
	}
	g.out.Temps = ntemps

	switch {
	case g.relConst:
		n := isa.LimitsFor(g.v).Constants
		h = append(h, fmt.Sprintf("PARAM C[%d] = { program.env[0..%d] };", n, n-1))
	case g.maxConst >= 0:
		n := g.maxConst + 1
		h = append(h, fmt.Sprintf("PARAM C[%d] = { program.env[0..%d] };", n, n-1))
	}
	if g.used["coefmul"] {
		h = append(h, "PARAM coefmul = { 2, 4, 8, 16 };")
	}
	if g.used["coefdiv"] {
		h = append(h, "PARAM coefdiv = { 0.5, 0.25, 0.125, 0.0625 };")
	}
	if g.used["coefmul2"] {
		h = append(h, "PARAM coefmul2 = { 32, 64, 128, 256 };")
	}
	if g.used["coefdiv2"] {
		h = append(h, "PARAM coefdiv2 = { 0.03125, 0.015625, 0.0078125, 0.00390625 };")
	}
	if g.used["one"] {
		h = append(h, "PARAM one = { 1, 1, 1, 1 };")
	}
	if g.used["zero"] {
		h = append(h, "PARAM zero = { 0, 0, 0, 0 };")
	}
	for i := uint32(0); i < 8; i++ {
		if g.bump[i] {
			h = append(h, fmt.Sprintf("PARAM bumpmat%d = program.local[%d];", i, i))
		}
		if g.used[fmt.Sprintf("lumenv%d", i)] {
			h = append(h, fmt.Sprintf("PARAM lumenv%d = program.local[%d];", i, i+8))
		}
	}

	seen := make(map[string]bool)
	for _, d := range g.prog.Defines() {
		var line, name string
		switch d.Opcode {
		case isa.OpDef:
			name = fmt.Sprintf("C%d", d.Dst.ConstIndex())
			f := d.Floats()
			line = fmt.Sprintf("PARAM %s = { %s, %s, %s, %s };", name,
				formatFloat(f[0]), formatFloat(f[1]), formatFloat(f[2]), formatFloat(f[3]))
		case isa.OpDefI:
			name = fmt.Sprintf("I%d", d.Dst.Index)
			line = fmt.Sprintf("PARAM %s = { %d, %d, %d, %d };", name, d.Int(0), d.Int(1), d.Int(2), d.Int(3))
		case isa.OpDefB:
			name = fmt.Sprintf("B%d", d.Dst.Index)
			b := 0
			if d.Bool() {
				b = 1
			}
			line = fmt.Sprintf("PARAM %s = { %d, 0, 0, 0 };", name, b)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		h = append(h, line)
	}
	return h
}

func formatFloat(f float32) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
