// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/isa"
)

// statement translates an arithmetic or texture instruction.
func (w *Writer) statement(in *bytecode.Instruction) {
	if in.Dst == nil || len(in.Src) < in.Info.Sources() {
		w.fail("malformed operands")
		return
	}
	if in.Is(isa.FlagTexture) {
		w.texture(in)
		return
	}
	s := in.Src
	all := bytecode.MaskAll

	switch in.Opcode {
	case isa.OpMov:
		if in.Dst.Type == bytecode.RegAddr && w.v.IsVertex() {
			w.assign(in, all, "floor("+w.src(&s[0])+")")
			return
		}
		w.assign(in, all, w.src(&s[0]))
	case isa.OpMova:
		w.assign(in, all, "floor("+w.src(&s[0])+" + 0.5)")
	case isa.OpAdd:
		w.assign(in, all, w.src(&s[0])+" + "+w.src(&s[1]))
	case isa.OpSub:
		w.assign(in, all, w.src(&s[0])+" - "+w.src(&s[1]))
	case isa.OpMul:
		w.assign(in, all, w.src(&s[0])+" * "+w.src(&s[1]))
	case isa.OpMad:
		w.assign(in, all, w.src(&s[0])+" * "+w.src(&s[1])+" + "+w.src(&s[2]))
	case isa.OpMin, isa.OpMax:
		w.assign(in, all, fmt.Sprintf("%s(%s, %s)", in.Info.Name, w.src(&s[0]), w.src(&s[1])))
	case isa.OpSlt:
		w.assign(in, all, fmt.Sprintf("vec4(lessThan(%s, %s))", w.src(&s[0]), w.src(&s[1])))
	case isa.OpSge:
		w.assign(in, all, fmt.Sprintf("vec4(greaterThanEqual(%s, %s))", w.src(&s[0]), w.src(&s[1])))
	case isa.OpDp3:
		w.assign(in, all, fmt.Sprintf("vec4(dot(%s, %s))", member(w.src(&s[0]), ".xyz"), member(w.src(&s[1]), ".xyz")))
	case isa.OpDp4:
		w.assign(in, all, fmt.Sprintf("vec4(dot(%s, %s))", w.src(&s[0]), w.src(&s[1])))
	case isa.OpDp2Add:
		w.assign(in, all, fmt.Sprintf("vec4(dot(%s, %s) + %s)",
			member(w.src(&s[0]), ".xy"), member(w.src(&s[1]), ".xy"), w.scalar(&s[2], 0)))

	case isa.OpRcp:
		w.assign(in, all, fmt.Sprintf("vec4(1.0 / %s)", w.scalar(&s[0], 3)))
	case isa.OpRsq:
		w.assign(in, all, fmt.Sprintf("vec4(inversesqrt(abs(%s)))", w.scalar(&s[0], 3)))
	case isa.OpExp:
		w.assign(in, all, fmt.Sprintf("vec4(exp2(%s))", w.scalar(&s[0], 3)))
	case isa.OpLog:
		w.assign(in, all, fmt.Sprintf("vec4(log2(abs(%s)))", w.scalar(&s[0], 3)))
	case isa.OpExpP:
		w.assign(in, all, fmt.Sprintf("%s(%s)", w.helper("dxso_expp"), w.scalar(&s[0], 3)))
	case isa.OpLogP:
		w.assign(in, all, fmt.Sprintf("%s(%s)", w.helper("dxso_logp"), w.scalar(&s[0], 3)))
	case isa.OpPow:
		w.assign(in, all, fmt.Sprintf("vec4(pow(abs(%s), %s))", w.scalar(&s[0], 0), w.scalar(&s[1], 0)))
	case isa.OpLit:
		w.assign(in, all, fmt.Sprintf("%s(%s)", w.helper("dxso_lit"), w.src(&s[0])))
	case isa.OpDst:
		w.assign(in, all, fmt.Sprintf("vec4(1.0, %s * %s, %s, %s)",
			w.scalar(&s[0], 1), w.scalar(&s[1], 1), w.scalar(&s[0], 2), w.scalar(&s[1], 3)))
	case isa.OpLrp:
		w.assign(in, all, fmt.Sprintf("mix(%s, %s, %s)", w.src(&s[2]), w.src(&s[1]), w.src(&s[0])))
	case isa.OpFrc:
		w.assign(in, all, fmt.Sprintf("vec4(fract(%s), 0.0, 1.0)", member(w.src(&s[0]), ".xy")))
	case isa.OpAbs:
		w.assign(in, all, "abs("+w.src(&s[0])+")")
	case isa.OpSgn:
		w.assign(in, all, "sign("+w.src(&s[0])+")")
	case isa.OpNrm:
		w.assign(in, all, fmt.Sprintf("%s(%s)", w.helper("dxso_nrm"), w.src(&s[0])))
	case isa.OpCrs:
		w.assign(in, 0x7, fmt.Sprintf("vec4(cross(%s, %s), 0.0)", member(w.src(&s[0]), ".xyz"), member(w.src(&s[1]), ".xyz")))
	case isa.OpSinCos:
		a := w.scalar(&s[0], 0)
		w.assign(in, 0x3, fmt.Sprintf("vec4(cos(%s), sin(%s), 0.0, 0.0)", a, a))

	case isa.OpCmp:
		w.assign(in, all, fmt.Sprintf("%s(%s, %s, %s)", w.helper("dxso_cmp"), w.src(&s[0]), w.src(&s[1]), w.src(&s[2])))
	case isa.OpCnd:
		w.assign(in, all, fmt.Sprintf("%s(%s, %s, %s)", w.helper("dxso_cnd"), w.src(&s[0]), w.src(&s[1]), w.src(&s[2])))

	case isa.OpDsx, isa.OpDsy:
		if !w.v.IsPixel() {
			w.fail("derivative in a vertex shader")
			return
		}
		fn := "dFdx"
		if in.Opcode == isa.OpDsy {
			fn = "dFdy"
		}
		w.assign(in, all, fn+"("+w.src(&s[0])+")")

	case isa.OpSetP:
		w.setp(in)

	case isa.OpM4x4, isa.OpM4x3, isa.OpM3x4, isa.OpM3x3, isa.OpM3x2:
		w.matrix(in)

	default:
		w.fail("no GLSL expression")
	}
}

// matrix expands m4x4 and friends into a vector of dot products.
func (w *Writer) matrix(in *bytecode.Instruction) {
	rows, cols := 4, ""
	switch in.Opcode {
	case isa.OpM4x3:
		rows = 3
	case isa.OpM3x4:
		cols = ".xyz"
	case isa.OpM3x3:
		rows, cols = 3, ".xyz"
	case isa.OpM3x2:
		rows, cols = 2, ".xyz"
	}
	a := member(w.src(&in.Src[0]), cols)
	lanes := make([]string, 4)
	for i := range lanes {
		if i >= rows {
			lanes[i] = "0.0"
			continue
		}
		lanes[i] = fmt.Sprintf("dot(%s, %s)", a, member(w.row(&in.Src[1], i), cols))
	}
	w.assign(in, bytecode.WriteMask(1<<rows-1),
		fmt.Sprintf("vec4(%s, %s, %s, %s)", lanes[0], lanes[1], lanes[2], lanes[3]))
}

// comparisonFunc maps a comparison to its bvec4 built-in.
var comparisonFunc = map[isa.Comparison]string{
	isa.CmpGT: "greaterThan",
	isa.CmpEQ: "equal",
	isa.CmpGE: "greaterThanEqual",
	isa.CmpLT: "lessThan",
	isa.CmpNE: "notEqual",
	isa.CmpLE: "lessThanEqual",
}

// comparisonOp maps a comparison to its scalar operator.
var comparisonOp = map[isa.Comparison]string{
	isa.CmpGT: ">",
	isa.CmpEQ: "==",
	isa.CmpGE: ">=",
	isa.CmpLT: "<",
	isa.CmpNE: "!=",
	isa.CmpLE: "<=",
}

func (w *Writer) setp(in *bytecode.Instruction) {
	fn, ok := comparisonFunc[in.Comparison()]
	if !ok {
		w.fail("comparison %d", in.Control)
		return
	}
	if in.Dst.Type != bytecode.RegPredicate {
		w.fail("setp writes register type %d", in.Dst.Type)
		return
	}
	w.predicate = true
	expr := fmt.Sprintf("%s(%s, %s)", fn, w.src(&in.Src[0]), w.src(&in.Src[1]))
	mask := in.Dst.Mask
	if mask == bytecode.MaskAll {
		w.emit("P0 = %s;", expr)
		return
	}
	m := mask.String()
	w.emit("P0%s = %s;", m, member(expr, m))
}

// compare returns the scalar comparison of lane x of the first two sources.
func (w *Writer) compare(in *bytecode.Instruction) string {
	op, ok := comparisonOp[in.Comparison()]
	if !ok {
		w.fail("comparison %d", in.Control)
		return "false"
	}
	if len(in.Src) < 2 {
		w.fail("comparison needs two sources")
		return "false"
	}
	return fmt.Sprintf("%s %s %s", w.scalar(&in.Src[0], 0), op, w.scalar(&in.Src[1], 0))
}

// coord returns the coordinate components a sampler of type tt reads.
func coord(expr string, tt bytecode.TextureType) string {
	if tt == bytecode.TextureCube || tt == bytecode.TextureVolume {
		return member(expr, ".xyz")
	}
	return member(expr, ".xy")
}

func lookupFunc(tt bytecode.TextureType) string {
	switch tt {
	case bytecode.TextureCube:
		return "textureCube"
	case bytecode.TextureVolume:
		return "texture3D"
	}
	return "texture2D"
}

// texture translates texture addressing instructions.
func (w *Writer) texture(in *bytecode.Instruction) {
	dst := in.Dst
	n := dst.Index
	legacy := w.v.Before(1, 4)
	all := bytecode.MaskAll

	switch in.Opcode {
	case isa.OpTexCoord:
		if legacy {
			w.emit("T%d = vec4(clamp(gl_TexCoord[%d].xyz, 0.0, 1.0), 1.0);", n, n)
			return
		}
		w.assign(in, all, w.src(&in.Src[0]))

	case isa.OpTexKill:
		r := fmt.Sprintf("gl_TexCoord[%d]", n)
		if !legacy {
			r = w.register(dst, 0)
		}
		w.emit("if (any(lessThan(%s.xyz, vec3(0.0)))) discard;", r)

	case isa.OpTex:
		switch {
		case legacy:
			w.sample(in, n, fmt.Sprintf("gl_TexCoord[%d]", n), 0)
		case w.v.Before(2, 0):
			w.sample(in, n, w.src(&in.Src[0]), 0)
		default:
			w.sample(in, in.Src[1].Index, w.src(&in.Src[0]), in.Control)
		}

	case isa.OpTexLdl:
		unit := in.Src[1].Index
		s := w.sampler(unit)
		tt := w.samplers[unit]
		c := w.src(&in.Src[0])
		if w.v.IsPixel() {
			w.exts["GL_ARB_shader_texture_lod"] = true
		}
		w.assign(in, all, fmt.Sprintf("%sLod(%s, %s, %s)", lookupFunc(tt), s, coord(c, tt), member(c, ".w")))

	default:
		w.fail("no GLSL expansion")
	}
}

// sample emits a texture lookup into in.Dst. control selects projection or
// bias as in texld.
func (w *Writer) sample(in *bytecode.Instruction, unit uint32, c string, control uint8) {
	s := w.sampler(unit)
	tt := w.samplers[unit]
	fn := lookupFunc(tt)
	var expr string
	switch {
	case control&isa.TexLdProject != 0:
		if tt == bytecode.TextureCube {
			expr = fmt.Sprintf("%s(%s, %s / %s)", fn, s, member(c, ".xyz"), member(c, ".w"))
		} else {
			expr = fmt.Sprintf("%sProj(%s, %s)", fn, s, c)
		}
	case control&isa.TexLdBias != 0:
		expr = fmt.Sprintf("%s(%s, %s, %s)", fn, s, coord(c, tt), member(c, ".w"))
	default:
		expr = fmt.Sprintf("%s(%s, %s)", fn, s, coord(c, tt))
	}
	w.assign(in, bytecode.MaskAll, expr)
}

// flow translates flow-control instructions into structured statements.
// They are written directly since their structure cannot be dropped.
func (w *Writer) flow(in *bytecode.Instruction) error {
	if in.Predicated {
		return fmt.Errorf("predicated %s", in.Name())
	}
	switch in.Opcode {
	case isa.OpIf:
		w.open(block{kind: blockIf}, "if (%s) {", w.condition(&in.Src[0]))
	case isa.OpIfC:
		w.open(block{kind: blockIf}, "if (%s) {", w.compare(in))
	case isa.OpElse:
		if len(w.blocks) == 0 || w.blocks[len(w.blocks)-1].kind != blockIf {
			return fmt.Errorf("else without if")
		}
		w.blocks[len(w.blocks)-1].kind = blockElse
		w.popIndent()
		w.writeLine("} else {")
		w.pushIndent()
	case isa.OpEndIf:
		if _, err := w.close(blockIf, blockElse); err != nil {
			return err
		}

	case isa.OpRep:
		id := w.nextLoop
		w.nextLoop++
		count := member(w.register(&in.Src[0], 0), ".x")
		w.open(block{kind: blockRep, id: id}, "for (int rep%d = 0; rep%d < %s; rep%d++) {", id, id, count, id)
	case isa.OpLoop:
		if len(in.Src) < 2 {
			return fmt.Errorf("loop needs an integer constant")
		}
		id := w.nextLoop
		w.nextLoop++
		w.loopReg = true
		ic := w.register(&in.Src[1], 0)
		w.writeLine("int aL%d = aL;", id)
		w.writeLine("aL = %s;", member(ic, ".y"))
		w.open(block{kind: blockLoop, id: id}, "for (int loop%d = 0; loop%d < %s; loop%d++, aL += %s) {",
			id, id, member(ic, ".x"), id, member(ic, ".z"))
	case isa.OpEndRep:
		if _, err := w.close(blockRep); err != nil {
			return err
		}
	case isa.OpEndLoop:
		b, err := w.close(blockLoop)
		if err != nil {
			return err
		}
		w.writeLine("aL = aL%d;", b.id)

	case isa.OpBreak:
		if !w.inLoop() {
			return fmt.Errorf("break outside a loop")
		}
		w.writeLine("break;")
	case isa.OpBreakC:
		if !w.inLoop() {
			return fmt.Errorf("break outside a loop")
		}
		w.writeLine("if (%s) break;", w.compare(in))
	case isa.OpBreakP:
		if !w.inLoop() {
			return fmt.Errorf("break outside a loop")
		}
		w.writeLine("if (%s) break;", w.condition(&in.Src[0]))

	case isa.OpCall:
		w.writeLine("l%d();", in.Src[0].Index)
	case isa.OpCallNZ:
		w.writeLine("if (%s) l%d();", w.condition(&in.Src[1]), in.Src[0].Index)
	case isa.OpRet:
		w.writeLine("return;")
	case isa.OpLabel:
		if len(w.blocks) != 0 {
			return fmt.Errorf("label inside a flow-control block")
		}
		l := in.Src[0].Index
		w.labels = append(w.labels, l)
		w.popIndent()
		w.writeLine("}")
		w.writeLine("")
		w.writeLine("void l%d()", l)
		w.writeLine("{")
		w.pushIndent()
		w.inFunction = true
	default:
		return fmt.Errorf("%s has no structured form", in.Name())
	}
	return nil
}

func (w *Writer) open(b block, format string, args ...any) {
	w.writeLine(format, args...)
	w.pushIndent()
	w.blocks = append(w.blocks, b)
}

func (w *Writer) close(kinds ...blockKind) (block, error) {
	if len(w.blocks) == 0 {
		return block{}, fmt.Errorf("block end without a block")
	}
	b := w.blocks[len(w.blocks)-1]
	for _, k := range kinds {
		if b.kind == k {
			w.blocks = w.blocks[:len(w.blocks)-1]
			w.popIndent()
			w.writeLine("}")
			return b, nil
		}
	}
	return block{}, fmt.Errorf("mismatched block end")
}

func (w *Writer) inLoop() bool {
	for _, b := range w.blocks {
		if b.kind == blockRep || b.kind == blockLoop {
			return true
		}
	}
	return false
}
