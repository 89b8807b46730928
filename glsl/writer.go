// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/disasm"
	"github.com/gogpu/dxso/isa"
	"github.com/gogpu/dxso/usage"
)

// blockKind is the kind of an open flow-control block.
type blockKind uint8

const (
	blockIf blockKind = iota
	blockElse
	blockRep
	blockLoop
)

type block struct {
	kind blockKind
	id   int // loop counter suffix
}

// Writer generates GLSL source code from a decoded program.
type Writer struct {
	prog    *bytecode.Program
	v       isa.Version
	bm      usage.Bitmaps
	options *Options
	result  *Output

	// Output buffer for function bodies. Declarations are assembled
	// afterwards, once every referenced register is known.
	out strings.Builder

	// Current indentation level
	indent int

	// Statements of the instruction being translated
	pending []string
	failed  string

	defined   map[string]bool // C#, I# and B# set by def instructions
	maxConst  int
	relConst  bool
	intConst  bool
	boolConst bool
	inputs    map[uint32]bool
	varyings  map[string]bool
	samplers  map[uint32]bytecode.TextureType
	helpers   map[string]bool
	exts      map[string]bool

	address   bool
	loopReg   bool
	predicate bool
	scratch   bool

	blocks     []block
	nextLoop   int
	inFunction bool
	labels     []uint32
}

func newWriter(prog *bytecode.Program, bm usage.Bitmaps, options *Options) *Writer {
	w := &Writer{
		prog:     prog,
		v:        prog.Version,
		bm:       bm,
		options:  options,
		result:   &Output{},
		defined:  make(map[string]bool),
		maxConst: -1,
		inputs:   make(map[uint32]bool),
		varyings: make(map[string]bool),
		samplers: make(map[uint32]bytecode.TextureType),
		helpers:  make(map[string]bool),
		exts:     make(map[string]bool),
	}
	for _, d := range prog.Defines() {
		if d.Dst == nil {
			continue
		}
		switch d.Opcode {
		case isa.OpDef:
			w.defined[fmt.Sprintf("C%d", d.Dst.ConstIndex())] = true
		case isa.OpDefI:
			w.defined[fmt.Sprintf("I%d", d.Dst.Index)] = true
		case isa.OpDefB:
			w.defined[fmt.Sprintf("B%d", d.Dst.Index)] = true
		}
	}
	return w
}

// writeProgram translates every instruction into the body buffer.
func (w *Writer) writeProgram() error {
	w.writeLine("void main()")
	w.writeLine("{")
	w.pushIndent()
	for i := range w.prog.Instructions {
		in := &w.prog.Instructions[i]
		if in.Info == nil {
			return bytecode.NewError(diag.UnknownOpcode, in.Offset,
				"opcode %d cannot be translated", uint16(in.Opcode))
		}
		if err := w.instruction(in); err != nil {
			return err
		}
	}
	if len(w.blocks) != 0 {
		return fmt.Errorf("%d flow-control blocks left open", len(w.blocks))
	}
	if !w.inFunction && w.v.IsPixel() && w.v.Before(2, 0) {
		w.writeLine("gl_FragColor = R0;")
	}
	w.popIndent()
	w.writeLine("}")
	return nil
}

func (w *Writer) report(kind diag.Kind, sev diag.Severity, in *bytecode.Instruction, format string, args ...any) {
	d := diag.Diagnostic{
		Kind:     kind,
		Severity: sev,
		Backend:  "glsl",
		Message:  fmt.Sprintf(format, args...),
	}
	if in != nil {
		d.Offset = in.Offset
		d.Opcode = uint16(in.Opcode)
	}
	w.result.Diagnostics.Report(d)
	if w.options.Sink != nil {
		w.options.Sink.Report(d)
	}
}

// instruction translates one instruction. Only broken flow-control
// structure is an error; anything else degrades the output.
func (w *Writer) instruction(in *bytecode.Instruction) error {
	info := in.Info
	if info.Is(isa.FlagDeclaration) || in.Opcode == isa.OpNop || in.Opcode == isa.OpPhase {
		return nil
	}
	if !info.Supports(isa.BackendGLSL) {
		w.report(diag.UnsupportedForBackend, diag.Degraded, in, "%s has no GLSL equivalent", in.Name())
		return nil
	}

	w.pending = w.pending[:0]
	w.failed = ""
	if in.Is(isa.FlagFlow) {
		if len(in.Src) < info.Sources() {
			return fmt.Errorf("word %d: %s has %d operands", in.Offset, in.Name(), len(in.Src))
		}
		if err := w.flow(in); err != nil {
			return fmt.Errorf("word %d: %w", in.Offset, err)
		}
		if w.failed != "" {
			return fmt.Errorf("word %d: %s: %s", in.Offset, in.Name(), w.failed)
		}
		return nil
	}

	w.statement(in)
	if w.failed != "" {
		w.report(diag.UnsupportedForBackend, diag.Degraded, in, "%s: %s", in.Name(), w.failed)
		return nil
	}
	if w.options.Comments {
		w.writeLine("// %s", disasm.Instruction(w.v, in))
	}
	for _, s := range w.pending {
		w.writeLine("%s", s)
	}
	return nil
}

// emit appends one statement to the current instruction.
func (w *Writer) emit(format string, args ...any) {
	w.pending = append(w.pending, fmt.Sprintf(format, args...))
}

// fail marks the current instruction as untranslatable.
func (w *Writer) fail(format string, args ...any) {
	if w.failed == "" {
		w.failed = fmt.Sprintf(format, args...)
	}
}

// writeLine writes an indented line with a newline.
func (w *Writer) writeLine(format string, args ...any) {
	w.writeIndent()
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

// pushIndent increases indentation.
func (w *Writer) pushIndent() {
	w.indent++
}

// popIndent decreases indentation.
func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}

// output assembles the declarations in front of the function bodies.
func (w *Writer) output() *Output {
	var h strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&h, format, args...)
		h.WriteByte('\n')
	}

	line("#version %s", w.options.LangVersion)
	exts := make([]string, 0, len(w.exts))
	for e := range w.exts {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	for _, e := range exts {
		line("#extension %s : require", e)
	}
	h.WriteByte('\n')

	switch {
	case w.relConst:
		line("uniform vec4 C[%d];", isa.LimitsFor(w.v).Constants)
	case w.maxConst >= 0:
		line("uniform vec4 C[%d];", w.maxConst+1)
	}
	if w.intConst {
		line("uniform ivec4 I[16];")
	}
	if w.boolConst {
		line("uniform bool B[16];")
	}
	units := make([]uint32, 0, len(w.samplers))
	for u := range w.samplers {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	for _, u := range units {
		line("uniform %s S%d;", samplerType(w.samplers[u]), u)
	}
	for i := uint32(0); i < 32; i++ {
		if w.inputs[i] {
			line("attribute vec4 v%d;", i)
		}
	}
	varyings := make([]string, 0, len(w.varyings))
	for name := range w.varyings {
		varyings = append(varyings, name)
	}
	sort.Strings(varyings)
	for _, name := range varyings {
		line("varying vec4 %s;", name)
	}

	w.writeDefines(line)

	temps := w.bm.Temps
	if w.v.IsPixel() && w.v.Before(2, 0) {
		temps |= 1
	}
	for i := 0; i < 32; i++ {
		if temps&(1<<i) != 0 {
			line("vec4 R%d;", i)
		}
	}
	if w.v.IsPixel() && w.v.Before(1, 4) {
		for i := 0; i < 32; i++ {
			if w.bm.Textures&(1<<i) != 0 {
				line("vec4 T%d;", i)
			}
		}
	}
	if w.address {
		line("ivec4 A0;")
	}
	if w.loopReg {
		line("int aL;")
	}
	if w.predicate {
		line("bvec4 P0;")
	}
	if w.scratch {
		line("vec4 TMP;")
	}
	h.WriteByte('\n')

	w.writeHelpers(&h)
	for _, l := range w.labels {
		line("void l%d();", l)
	}
	if len(w.labels) > 0 {
		h.WriteByte('\n')
	}

	out := w.result
	out.Text = h.String() + w.out.String()
	out.Extensions = exts
	out.Samplers = len(units)
	out.Degraded = out.Diagnostics.Degraded()
	return out
}

// writeDefines declares the constants set by def instructions.
func (w *Writer) writeDefines(line func(string, ...any)) {
	seen := make(map[string]bool)
	for _, d := range w.prog.Defines() {
		if d.Dst == nil {
			continue
		}
		var name string
		switch d.Opcode {
		case isa.OpDef:
			name = fmt.Sprintf("C%d", d.Dst.ConstIndex())
		case isa.OpDefI:
			name = fmt.Sprintf("I%d", d.Dst.Index)
		case isa.OpDefB:
			name = fmt.Sprintf("B%d", d.Dst.Index)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		switch d.Opcode {
		case isa.OpDef:
			f := d.Floats()
			line("const vec4 %s = vec4(%s, %s, %s, %s);", name,
				formatFloat(f[0]), formatFloat(f[1]), formatFloat(f[2]), formatFloat(f[3]))
		case isa.OpDefI:
			line("const ivec4 %s = ivec4(%d, %d, %d, %d);", name, d.Int(0), d.Int(1), d.Int(2), d.Int(3))
		case isa.OpDefB:
			line("const bool %s = %t;", name, d.Bool())
		}
	}
}

// Helper functions, emitted when referenced.
var helperSource = map[string]string{
	"dxso_lit": `vec4 dxso_lit(vec4 a)
{
    float s = (a.x > 0.0 && a.y > 0.0) ? pow(a.y, a.w) : 0.0;
    return vec4(1.0, max(a.x, 0.0), s, 1.0);
}`,
	"dxso_expp": `vec4 dxso_expp(float w)
{
    float i = floor(w);
    return vec4(exp2(i), w - i, exp2(w), 1.0);
}`,
	"dxso_logp": `vec4 dxso_logp(float w)
{
    float a = abs(w);
    float e = floor(log2(a));
    return vec4(e, a / exp2(e), log2(a), 1.0);
}`,
	"dxso_cmp": `vec4 dxso_cmp(vec4 a, vec4 b, vec4 c)
{
    return vec4(a.x >= 0.0 ? b.x : c.x, a.y >= 0.0 ? b.y : c.y,
                a.z >= 0.0 ? b.z : c.z, a.w >= 0.0 ? b.w : c.w);
}`,
	"dxso_cnd": `vec4 dxso_cnd(vec4 a, vec4 b, vec4 c)
{
    return vec4(a.x > 0.5 ? b.x : c.x, a.y > 0.5 ? b.y : c.y,
                a.z > 0.5 ? b.z : c.z, a.w > 0.5 ? b.w : c.w);
}`,
	"dxso_nrm": `vec4 dxso_nrm(vec4 a)
{
    float d = dot(a.xyz, a.xyz);
    return d == 0.0 ? a : a * inversesqrt(d);
}`,
}

func (w *Writer) writeHelpers(h *strings.Builder) {
	names := make([]string, 0, len(w.helpers))
	for name := range w.helpers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.WriteString(helperSource[name])
		h.WriteString("\n\n")
	}
}

// helper marks a helper function as referenced and returns its name.
func (w *Writer) helper(name string) string {
	w.helpers[name] = true
	return name
}

func samplerType(tt bytecode.TextureType) string {
	switch tt {
	case bytecode.TextureCube:
		return "samplerCube"
	case bytecode.TextureVolume:
		return "sampler3D"
	}
	return "sampler2D"
}

// formatFloat formats a float32 for GLSL output.
func formatFloat(f float32) string {
	switch {
	case math.IsNaN(float64(f)):
		return "(0.0 / 0.0)"
	case math.IsInf(float64(f), 1):
		return "(1.0 / 0.0)"
	case math.IsInf(float64(f), -1):
		return "(-1.0 / 0.0)"
	}
	s := fmt.Sprintf("%g", f)
	// Ensure it has a decimal point or exponent
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
