// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package arb

import (
	"fmt"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/isa"
)

func texcoord(n uint32) string {
	return fmt.Sprintf("fragment.texcoord[%d]", n)
}

// textureOp translates texture addressing instructions, including the
// ps_1_x macros that expand into fixed sequences on MODR, NRM and EYE.
func (g *generator) textureOp(in *bytecode.Instruction) {
	if !g.v.IsPixel() {
		g.fail("texture instruction in a vertex program")
		return
	}
	if in.Dst == nil || len(in.Src) < in.Info.Sources() {
		g.fail("malformed operands")
		return
	}
	dst := in.Dst
	n := dst.Index
	legacy := g.v.Before(1, 4)

	switch in.Opcode {
	case isa.OpTexCoord:
		if legacy {
			g.emit("MOV_SAT %s, %s;", g.dest(dst, bytecode.MaskAll), texcoord(n))
			g.emit("MOV %s.w, %s.w;", g.register(dst, 0), g.use("one"))
			return
		}
		g.finish("MOV", dst, bytecode.MaskAll, g.src(&in.Src[0]))

	case isa.OpTexKill:
		// Only xyz take part in the test.
		if legacy {
			g.emit("KIL %s.xyzz;", texcoord(n))
			return
		}
		g.emit("KIL %s.xyzz;", g.register(dst, 0))

	case isa.OpTex:
		switch {
		case legacy:
			g.finish("TEX", dst, bytecode.MaskAll, texcoord(n), g.texture(n), g.target(n))
		case g.v.Before(2, 0):
			g.finish("TEX", dst, bytecode.MaskAll, g.src(&in.Src[0]), g.texture(n), g.target(n))
		default:
			unit := in.Src[1].Index
			op := "TEX"
			switch {
			case in.Control&isa.TexLdProject != 0:
				op = "TXP"
			case in.Control&isa.TexLdBias != 0:
				op = "TXB"
			}
			g.finish(op, dst, bytecode.MaskAll, g.src(&in.Src[0]), g.texture(unit), g.target(unit))
		}

	case isa.OpTexBem, isa.OpTexBemL:
		d := g.lanes(&in.Src[0])
		mat := g.bumpmat(n)
		g.emit("MAD %s.xy, %s.xyxy, %s, %s;", g.use("MODR"), mat, d(0), texcoord(n))
		g.emit("MAD MODR.xy, %s.zwzw, %s, MODR;", mat, d(1))
		if in.Opcode == isa.OpTexBem {
			g.finish("TEX", dst, bytecode.MaskAll, "MODR", g.texture(n), g.target(n))
			return
		}
		g.emit("TEX %s, MODR, %s, %s;", g.dest(dst, bytecode.MaskAll), g.texture(n), g.target(n))
		lum := g.use(fmt.Sprintf("lumenv%d", n))
		g.emit("MAD MODR.w, %s, %s.x, %s.y;", d(2), lum, lum)
		g.finish("MUL", dst, 0x7, g.register(dst, 0), "MODR.w")

	case isa.OpTexReg2AR, isa.OpTexReg2GB, isa.OpTexReg2RGB:
		base := g.register(&in.Src[0], 0)
		swz, target := ".wxyz", g.target(n)
		switch in.Opcode {
		case isa.OpTexReg2GB:
			swz = ".yzxw"
		case isa.OpTexReg2RGB:
			swz, target = "", "3D"
		}
		g.finish("TEX", dst, bytecode.MaskAll, base+swz, g.texture(n), target)

	case isa.OpTexDp3Tex:
		g.emit("DP3 %s.x, %s, %s;", g.use("MODR"), texcoord(n), g.src(&in.Src[0]))
		g.emit("MOV MODR.y, %s.x;", g.use("zero"))
		g.finish("TEX", dst, bytecode.MaskAll, "MODR", g.texture(n), g.target(n))

	case isa.OpTexDp3:
		g.finish("DP3", dst, bytecode.MaskAll, texcoord(n), g.src(&in.Src[0]))

	case isa.OpTexM3x2Pad, isa.OpTexM3x3Pad:
		want := g.row
		if (in.Opcode == isa.OpTexM3x2Pad && want != 0) || want > 1 {
			g.macroSequence(in, "unexpected %s after %d rows", in.Name(), want)
			want = 0
		}
		g.matrixRow(in, want)

	case isa.OpTexM3x2Tex, isa.OpTexM3x2Depth:
		if !g.matrixRow(in, 1) {
			return
		}
		g.row = 0
		if in.Opcode == isa.OpTexM3x2Depth {
			g.emit("RCP NRM.y, NRM.y;")
			g.emit("MUL NRM.x, NRM.x, NRM.y;")
			g.emit("MOV result.depth.z, NRM.x;")
			return
		}
		g.finish("TEX", dst, bytecode.MaskAll, "NRM", g.texture(n), g.target(n))

	case isa.OpTexM3x3Tex, isa.OpTexM3x3Diff, isa.OpTexM3x3Spec, isa.OpTexM3x3VSpec, isa.OpTexM3x3:
		if !g.matrixRow(in, 2) {
			return
		}
		regs := g.rowRegs
		g.row = 0
		switch in.Opcode {
		case isa.OpTexM3x3:
			g.emit("MOV NRM.w, %s.w;", g.use("one"))
			g.finish("MOV", dst, bytecode.MaskAll, "NRM")
			return
		case isa.OpTexM3x3Spec:
			g.reflect(g.src(&in.Src[1]))
		case isa.OpTexM3x3VSpec:
			eye := g.use("EYE")
			for i, r := range regs {
				g.emit("MOV %s.%c, %s.w;", eye, bytecode.ComponentName(uint8(i)), texcoord(r))
			}
			g.reflect(eye)
		}
		g.finish("TEX", dst, bytecode.MaskAll, "NRM", g.texture(n), "CUBE")

	case isa.OpTexDepth:
		r := g.register(dst, 0)
		g.emit("RCP %s.y, %s.y;", g.use("MODR"), r)
		g.emit("MUL MODR.x, %s.x, MODR.y;", r)
		g.emit("MOV result.depth.z, MODR.x;")

	case isa.OpBem:
		a, b := g.src(&in.Src[0]), g.lanes(&in.Src[1])
		mat := g.bumpmat(n)
		g.emit("MAD %s.xy, %s.xyxy, %s, %s;", g.use("MODR"), mat, b(0), a)
		g.finish("MAD", dst, 0x3, mat+".zwzw", b(1), "MODR")

	default:
		g.fail("no assembly expansion")
	}
}

// lanes returns a function selecting single components of a source operand,
// computing any modifier once.
func (g *generator) lanes(op *bytecode.Operand) func(lane int) string {
	if op.SrcMod == bytecode.SrcNone || op.SrcMod == bytecode.SrcNeg {
		return func(lane int) string { return g.srcLane(op, lane) }
	}
	m := g.src(op)
	return func(lane int) string { return fmt.Sprintf("%s.%c", m, bytecode.ComponentName(uint8(lane))) }
}

func (g *generator) bumpmat(stage uint32) string {
	g.bump[stage] = true
	return fmt.Sprintf("bumpmat%d", stage)
}

// matrixRow emits the dot product of row want of a texture matrix sequence.
// It reports a MacroSequence diagnostic and returns false when the
// instruction does not continue the sequence.
func (g *generator) matrixRow(in *bytecode.Instruction, want int) bool {
	n := in.Dst.Index
	if g.row != want {
		g.macroSequence(in, "%s needs %d preceding rows, found %d", in.Name(), want, g.row)
		g.dropped = true
		return false
	}
	if want > 0 && n != g.rowRegs[want-1]+1 {
		g.macroSequence(in, "%s writes t%d after t%d", in.Name(), n, g.rowRegs[want-1])
		g.dropped = true
		return false
	}
	g.emit("DP3 %s.%c, %s, %s;", g.use("NRM"), bytecode.ComponentName(uint8(want)), texcoord(n), g.src(&in.Src[0]))
	g.rowRegs[want] = n
	g.row = want + 1
	return true
}

// reflect replaces the normal in NRM.xyz by the reflection of eye about it:
// 2*N*(N.E)/(N.N) - E.
func (g *generator) reflect(eye string) {
	g.emit("DP3 NRM.w, NRM, NRM;")
	g.emit("RCP NRM.w, NRM.w;")
	g.emit("DP3 %s.w, NRM, %s;", g.use("EYE"), eye)
	g.emit("MUL EYE.w, EYE.w, NRM.w;")
	g.emit("MUL NRM.xyz, NRM, EYE.w;")
	g.emit("MAD NRM.xyz, %s.x, NRM, -%s;", g.use("coefmul"), eye)
}
