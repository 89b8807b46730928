// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/isa"
)

// swizzle returns the GLSL swizzle suffix of s, always four components
// so that the result stays a vec4.
func swizzle(s bytecode.Swizzle) string {
	if s == bytecode.Identity {
		return ""
	}
	b := []byte{'.', 0, 0, 0, 0}
	for lane := 0; lane < 4; lane++ {
		b[lane+1] = bytecode.ComponentName(s.Component(lane))
	}
	return string(b)
}

// paren parenthesizes expr unless it is a plain variable reference.
func paren(expr string) string {
	if strings.ContainsAny(expr, " +-*/(),?!<>=") {
		return "(" + expr + ")"
	}
	return expr
}

// member applies a swizzle or component suffix to an expression.
func member(expr, suffix string) string {
	if suffix == "" {
		return expr
	}
	return paren(expr) + suffix
}

func lane(c uint8) string {
	return "." + string(bytecode.ComponentName(c))
}

// register returns the GLSL name of op offset by row registers.
func (w *Writer) register(op *bytecode.Operand, row int) string {
	idx := int(op.Index) + row
	switch op.Type {
	case bytecode.RegTemp:
		return fmt.Sprintf("R%d", idx)

	case bytecode.RegInput:
		return w.input(uint32(idx))

	case bytecode.RegConst, bytecode.RegConst2, bytecode.RegConst3, bytecode.RegConst4:
		return w.constant(op, row)

	case bytecode.RegAddr:
		if w.v.IsVertex() {
			w.address = true
			return "A0"
		}
		if w.v.Before(1, 4) {
			return fmt.Sprintf("T%d", idx)
		}
		return fmt.Sprintf("gl_TexCoord[%d]", idx)

	case bytecode.RegRastOut:
		switch idx {
		case bytecode.RastPosition:
			return "gl_Position"
		case bytecode.RastFog:
			return "gl_FogFragCoord"
		case bytecode.RastPointSize:
			return "gl_PointSize"
		}

	case bytecode.RegAttrOut:
		switch idx {
		case 0:
			return "gl_FrontColor"
		case 1:
			return "gl_FrontSecondaryColor"
		}

	case bytecode.RegTexCrdOut:
		if w.v.AtLeast(3, 0) {
			return w.outputReg(uint32(idx))
		}
		return fmt.Sprintf("gl_TexCoord[%d]", idx)

	case bytecode.RegColorOut:
		return fmt.Sprintf("gl_FragData[%d]", idx)

	case bytecode.RegDepthOut:
		return "gl_FragDepth"

	case bytecode.RegConstInt:
		name := fmt.Sprintf("I%d", idx)
		if w.defined[name] {
			return name
		}
		w.intConst = true
		return fmt.Sprintf("I[%d]", idx)

	case bytecode.RegConstBool:
		name := fmt.Sprintf("B%d", idx)
		if w.defined[name] {
			return name
		}
		w.boolConst = true
		return fmt.Sprintf("B[%d]", idx)

	case bytecode.RegLoop:
		w.loopReg = true
		return "aL"

	case bytecode.RegPredicate:
		w.predicate = true
		return "P0"

	case bytecode.RegSampler:
		return w.sampler(uint32(idx))

	case bytecode.RegMisc:
		switch idx {
		case bytecode.MiscPosition:
			return "gl_FragCoord"
		case bytecode.MiscFace:
			return "vec4(gl_FrontFacing ? 1.0 : -1.0)"
		}
	}
	w.fail("register type %d index %d has no GLSL name", op.Type, idx)
	return "?"
}

// input returns the name of input register v#.
func (w *Writer) input(idx uint32) string {
	if w.v.IsVertex() {
		w.inputs[idx] = true
		return fmt.Sprintf("v%d", idx)
	}
	if w.v.Before(3, 0) {
		switch idx {
		case 0:
			return "gl_Color"
		case 1:
			return "gl_SecondaryColor"
		}
		w.fail("color input v%d", idx)
		return "?"
	}
	d := w.declaration(bytecode.RegInput, idx)
	if d == nil {
		w.fail("input v%d is not declared", idx)
		return "?"
	}
	switch d.Usage {
	case bytecode.UsageTexCoord:
		return fmt.Sprintf("gl_TexCoord[%d]", d.UsageIndex)
	case bytecode.UsageColor:
		if d.UsageIndex == 0 {
			return "gl_Color"
		}
		return "gl_SecondaryColor"
	}
	return w.varying(d)
}

// outputReg returns the name of vs_3_0 output register o#.
func (w *Writer) outputReg(idx uint32) string {
	d := w.declaration(bytecode.RegOutput, idx)
	if d == nil {
		w.fail("output o%d is not declared", idx)
		return "?"
	}
	switch d.Usage {
	case bytecode.UsagePosition, bytecode.UsagePositionT:
		return "gl_Position"
	case bytecode.UsageTexCoord:
		return fmt.Sprintf("gl_TexCoord[%d]", d.UsageIndex)
	case bytecode.UsageColor:
		if d.UsageIndex == 0 {
			return "gl_FrontColor"
		}
		return "gl_FrontSecondaryColor"
	case bytecode.UsageFog:
		return "gl_FogFragCoord"
	case bytecode.UsagePSize:
		return "gl_PointSize"
	}
	return w.varying(d)
}

// varying declares a user varying for semantics without a built-in.
func (w *Writer) varying(d *bytecode.Declaration) string {
	name := fmt.Sprintf("%s%d", d.Usage, d.UsageIndex)
	w.varyings[name] = true
	return name
}

func (w *Writer) declaration(t bytecode.RegisterType, idx uint32) *bytecode.Declaration {
	for i := range w.prog.Instructions {
		in := &w.prog.Instructions[i]
		if in.Opcode == isa.OpDcl && in.Dst != nil && in.Decl != nil && in.Dst.Type == t && in.Dst.Index == idx {
			return in.Decl
		}
	}
	return nil
}

func (w *Writer) constant(op *bytecode.Operand, row int) string {
	idx := int(op.ConstIndex()) + row
	if op.Relative {
		var base string
		switch ra := op.RelAddr; {
		case ra == nil:
			w.address = true
			base = "A0.x"
		case ra.Type == bytecode.RegAddr && w.v.IsVertex():
			w.address = true
			base = "A0" + lane(ra.Component)
		case ra.Type == bytecode.RegLoop:
			w.loopReg = true
			base = "aL"
		default:
			w.fail("relative addressing through register type %d", ra.Type)
			return "?"
		}
		w.relConst = true
		if idx == 0 {
			return fmt.Sprintf("C[%s]", base)
		}
		return fmt.Sprintf("C[%s + %d]", base, idx)
	}
	name := fmt.Sprintf("C%d", idx)
	if w.defined[name] {
		return name
	}
	if idx > w.maxConst {
		w.maxConst = idx
	}
	return fmt.Sprintf("C[%d]", idx)
}

func (w *Writer) sampler(unit uint32) string {
	tt := w.prog.SamplerType(unit)
	if tt == bytecode.TextureUnknown && int(unit) < len(w.options.Targets) {
		tt = w.options.Targets[unit]
	}
	if tt == bytecode.TextureUnknown {
		tt = bytecode.Texture2D
	}
	w.samplers[unit] = tt
	return fmt.Sprintf("S%d", unit)
}

// value returns op as a vec4 expression before swizzle and modifier.
func (w *Writer) value(op *bytecode.Operand) string {
	name := w.register(op, 0)
	switch op.Type {
	case bytecode.RegAddr:
		if w.v.IsVertex() {
			return "vec4(A0)"
		}
	case bytecode.RegConstInt:
		return "vec4(" + name + ")"
	case bytecode.RegLoop:
		return "vec4(float(aL))"
	case bytecode.RegConstBool:
		return "vec4(float(" + name + "))"
	case bytecode.RegPredicate:
		return "vec4(P0)"
	}
	return name
}

// src returns a source operand as a vec4 expression.
func (w *Writer) src(op *bytecode.Operand) string {
	return modify(op, member(w.value(op), swizzle(op.Swizzle)))
}

// modify wraps the swizzled expression s in the source modifier of op.
func modify(op *bytecode.Operand, s string) string {
	switch op.SrcMod {
	case bytecode.SrcNone:
		return s
	case bytecode.SrcNeg:
		return "-" + s
	case bytecode.SrcBias:
		return "(" + s + " - 0.5)"
	case bytecode.SrcBiasNeg:
		return "(0.5 - " + s + ")"
	case bytecode.SrcSign:
		return "(" + s + " * 2.0 - 1.0)"
	case bytecode.SrcSignNeg:
		return "(1.0 - " + s + " * 2.0)"
	case bytecode.SrcComp:
		return "(1.0 - " + s + ")"
	case bytecode.SrcX2:
		return "(" + s + " * 2.0)"
	case bytecode.SrcX2Neg:
		return "(" + s + " * -2.0)"
	case bytecode.SrcDz:
		return "(" + s + " / " + member(s, ".z") + ")"
	case bytecode.SrcDw:
		return "(" + s + " / " + member(s, ".w") + ")"
	case bytecode.SrcAbs:
		return "abs(" + s + ")"
	case bytecode.SrcAbsNeg:
		return "-abs(" + s + ")"
	case bytecode.SrcNot:
		return "vec4(equal(" + s + ", vec4(0.0)))"
	}
	return s
}

// scalar returns the component of a source operand read by lane.
func (w *Writer) scalar(op *bytecode.Operand, l int) string {
	if op.SrcMod == bytecode.SrcNone || op.SrcMod == bytecode.SrcNeg {
		s := member(w.value(op), lane(op.Swizzle.Component(l)))
		if op.SrcMod == bytecode.SrcNeg {
			return "-" + s
		}
		return s
	}
	return member(w.src(op), lane(uint8(l)))
}

// condition returns a bool expression for a b# or predicate operand.
func (w *Writer) condition(op *bytecode.Operand) string {
	var s string
	switch op.Type {
	case bytecode.RegConstBool:
		s = w.register(op, 0)
	case bytecode.RegPredicate:
		s = w.register(op, 0) + lane(op.Swizzle.Component(0))
	default:
		w.fail("register type %d is not a condition", op.Type)
		return "false"
	}
	if op.SrcMod == bytecode.SrcNot {
		return "!" + s
	}
	return s
}

// row returns row registers after a matrix operand.
func (w *Writer) row(op *bytecode.Operand, row int) string {
	s := member(w.register(op, row), swizzle(op.Swizzle))
	switch op.SrcMod {
	case bytecode.SrcNone:
		return s
	case bytecode.SrcNeg:
		return "-" + s
	}
	w.fail("source modifier %s on a matrix operand", op.SrcMod)
	return s
}

// assign emits the statement writing the vec4 expression expr to dst,
// restricted to mask and the destination write mask.
func (w *Writer) assign(in *bytecode.Instruction, mask bytecode.WriteMask, expr string) {
	dst := in.Dst
	if dst.Shift != 0 {
		expr = paren(expr) + " * " + formatFloat(shiftScale(dst.Shift))
	}
	if dst.Mod&bytecode.DstSaturate != 0 {
		expr = "clamp(" + expr + ", 0.0, 1.0)"
	}
	if dst.Relative {
		w.fail("relatively addressed destination")
		return
	}
	name := w.register(dst, 0)

	switch {
	case name == "gl_FogFragCoord", name == "gl_PointSize", name == "gl_FragDepth":
		w.emit("%s = %s;", name, member(expr, ".x"))
		return
	case dst.Type == bytecode.RegAddr && w.v.IsVertex():
		if in.Predicated {
			w.fail("predicated address register write")
			return
		}
		expr = "ivec4(" + expr + ")"
	}

	mask &= dst.Mask
	if mask == 0 {
		return
	}
	if in.Predicated {
		w.predicated(in, name, mask, expr)
		return
	}
	if mask == bytecode.MaskAll {
		w.emit("%s = %s;", name, expr)
		return
	}
	m := mask.String()
	w.emit("%s%s = %s;", name, m, member(expr, m))
}

// predicated writes each masked component under its predicate lane.
func (w *Writer) predicated(in *bytecode.Instruction, name string, mask bytecode.WriteMask, expr string) {
	p := in.Predicate
	if p == nil || p.Type != bytecode.RegPredicate {
		w.fail("predicated without a predicate register")
		return
	}
	w.predicate = true
	w.scratch = true
	not := ""
	if p.SrcMod == bytecode.SrcNot {
		not = "!"
	}
	w.emit("TMP = %s;", expr)
	for c := 0; c < 4; c++ {
		if !mask.Has(c) {
			continue
		}
		l := lane(uint8(c))
		w.emit("if (%sP0%s) %s%s = TMP%s;", not, lane(p.Swizzle.Component(c)), name, l, l)
	}
}

func shiftScale(shift int8) float32 {
	if shift > 0 {
		return float32(int(1) << shift)
	}
	return 1 / float32(int(1)<<(-shift))
}
