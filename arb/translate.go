// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package arb

import (
	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/isa"
)

func (g *generator) translate(in *bytecode.Instruction) {
	if in.Is(isa.FlagTexture) || in.Opcode == isa.OpBem {
		g.textureOp(in)
		return
	}
	if in.Dst == nil || len(in.Src) < in.Info.Sources() {
		g.fail("malformed operands")
		return
	}
	dst := in.Dst
	s := in.Src

	switch in.Opcode {
	case isa.OpMov:
		if dst.Type == bytecode.RegAddr && g.v.IsVertex() {
			g.emit("ARL A0.x, %s;", g.srcLane(&s[0], 0))
			return
		}
		g.finish("MOV", dst, bytecode.MaskAll, g.src(&s[0]))
	case isa.OpMova:
		g.emit("ARL A0.x, %s;", g.srcLane(&s[0], 0))

	case isa.OpRcp, isa.OpRsq, isa.OpExp, isa.OpLog, isa.OpExpP, isa.OpLogP:
		g.finish(in.Info.ARB, dst, bytecode.MaskAll, g.srcLane(&s[0], 3))
	case isa.OpPow:
		a := g.srcLane(&s[0], 0)
		b := g.srcLane(&s[1], 0)
		g.emit("ABS %s.x, %s;", g.use("MODR"), a)
		g.finish("POW", dst, bytecode.MaskAll, "MODR.x", b)
	case isa.OpSinCos:
		g.finish("SCS", dst, 0x3, g.srcLane(&s[0], 0))
	case isa.OpCrs:
		g.finish("XPD", dst, 0x7, g.src(&s[0]), g.src(&s[1]))

	case isa.OpCmp:
		// a >= 0 ? b : c is CMP with the operands exchanged.
		a, b, c := g.src(&s[0]), g.src(&s[1]), g.src(&s[2])
		g.finish("CMP", dst, bytecode.MaskAll, a, c, b)
	case isa.OpCnd:
		a, b, c := g.src(&s[0]), g.src(&s[1]), g.src(&s[2])
		g.emit("SUB %s, %s.x, %s;", g.use("MODR"), g.use("coefdiv"), a)
		g.finish("CMP", dst, bytecode.MaskAll, "MODR", b, c)
	case isa.OpLrp:
		a, b, c := g.src(&s[0]), g.src(&s[1]), g.src(&s[2])
		if g.v.IsPixel() {
			g.finish("LRP", dst, bytecode.MaskAll, a, b, c)
			return
		}
		g.emit("SUB %s, %s, %s;", g.use("MODR"), b, c)
		g.finish("MAD", dst, bytecode.MaskAll, a, "MODR", c)
	case isa.OpDp2Add:
		a, b := g.src(&s[0]), g.src(&s[1])
		c := g.srcLane(&s[2], 0)
		g.emit("MUL %s.xy, %s, %s;", g.use("MODR"), a, b)
		g.emit("ADD MODR.x, MODR.x, MODR.y;")
		g.finish("ADD", dst, bytecode.MaskAll, "MODR.x", c)
	case isa.OpNrm:
		a := g.src(&s[0])
		g.emit("DP3 %s.w, %s, %s;", g.use("NRM"), a, a)
		g.emit("RSQ NRM.w, NRM.w;")
		g.finish("MUL", dst, bytecode.MaskAll, a, "NRM.w")

	case isa.OpM4x4, isa.OpM4x3, isa.OpM3x4, isa.OpM3x3, isa.OpM3x2:
		g.matrix(in)

	default:
		srcs := make([]string, len(s))
		for i := range s {
			srcs[i] = g.src(&s[i])
		}
		g.finish(in.Info.ARB, dst, bytecode.MaskAll, srcs...)
	}
}

// matrix expands m4x4 and friends into one dot product per row. Results
// that are shifted, saturated or alias the vector operand are computed in
// NRM first.
func (g *generator) matrix(in *bytecode.Instruction) {
	rows, op := 4, "DP4"
	switch in.Opcode {
	case isa.OpM4x3:
		rows = 3
	case isa.OpM3x4:
		op = "DP3"
	case isa.OpM3x3:
		rows, op = 3, "DP3"
	case isa.OpM3x2:
		rows, op = 2, "DP3"
	}
	dst := in.Dst
	a := g.src(&in.Src[0])
	mask := dst.Mask & bytecode.WriteMask(1<<rows-1)
	direct := dst.Mod&bytecode.DstSaturate == 0 && dst.Shift == 0 &&
		(in.Src[0].Type != dst.Type || in.Src[0].Index != dst.Index)

	for i := 0; i < rows; i++ {
		if !mask.Has(i) {
			continue
		}
		m := g.rowOperand(&in.Src[1], i)
		if direct {
			g.emit("%s %s, %s, %s;", op, g.dest(dst, bytecode.WriteMask(1<<i)), a, m)
		} else {
			g.emit("%s %s.%c, %s, %s;", op, g.use("NRM"), bytecode.ComponentName(uint8(i)), a, m)
		}
	}
	if !direct {
		g.finish("MOV", dst, mask, "NRM")
	}
}

func isTexm(op isa.Opcode) bool {
	switch op {
	case isa.OpTexM3x2Pad, isa.OpTexM3x2Tex, isa.OpTexM3x2Depth,
		isa.OpTexM3x3Pad, isa.OpTexM3x3Tex, isa.OpTexM3x3Diff,
		isa.OpTexM3x3Spec, isa.OpTexM3x3VSpec, isa.OpTexM3x3:
		return true
	}
	return false
}
