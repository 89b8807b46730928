// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package arb

import (
	"fmt"

	"github.com/gogpu/dxso/bytecode"
)

// register returns the assembly name of op, offset by row registers.
func (g *generator) register(op *bytecode.Operand, row int) string {
	idx := int(op.Index) + row
	switch op.Type {
	case bytecode.RegTemp:
		return fmt.Sprintf("R%d", idx)

	case bytecode.RegInput:
		if g.v.IsVertex() {
			return fmt.Sprintf("vertex.attrib[%d]", idx)
		}
		switch idx {
		case 0:
			return "fragment.color.primary"
		case 1:
			return "fragment.color.secondary"
		}

	case bytecode.RegConst, bytecode.RegConst2, bytecode.RegConst3, bytecode.RegConst4:
		return g.constant(op, row)

	case bytecode.RegAddr:
		if g.v.IsVertex() {
			return "A0"
		}
		if g.v.Before(1, 4) {
			return fmt.Sprintf("T%d", idx)
		}
		return fmt.Sprintf("fragment.texcoord[%d]", idx)

	case bytecode.RegRastOut:
		switch idx {
		case bytecode.RastPosition:
			return "result.position"
		case bytecode.RastFog:
			return "result.fogcoord"
		case bytecode.RastPointSize:
			return "result.pointsize"
		}

	case bytecode.RegAttrOut:
		switch idx {
		case 0:
			return "result.color.primary"
		case 1:
			return "result.color.secondary"
		}

	case bytecode.RegTexCrdOut:
		return fmt.Sprintf("result.texcoord[%d]", idx)

	case bytecode.RegColorOut:
		if idx == 0 {
			return "result.color"
		}
		return fmt.Sprintf("result.color[%d]", idx)

	case bytecode.RegDepthOut:
		return "result.depth"

	case bytecode.RegSampler:
		return g.texture(uint32(idx))
	}
	g.fail("register type %d index %d has no assembly name", op.Type, idx)
	return "?"
}

func (g *generator) constant(op *bytecode.Operand, row int) string {
	idx := int(op.ConstIndex()) + row
	if op.Relative {
		if g.v.IsPixel() {
			g.fail("relative addressing in a fragment program")
			return "?"
		}
		comp := byte('x')
		if ra := op.RelAddr; ra != nil {
			if ra.Type != bytecode.RegAddr {
				g.fail("relative addressing through register type %d", ra.Type)
				return "?"
			}
			comp = bytecode.ComponentName(ra.Component)
		}
		g.relConst = true
		if idx == 0 {
			return fmt.Sprintf("C[A0.%c]", comp)
		}
		return fmt.Sprintf("C[A0.%c + %d]", comp, idx)
	}
	if g.defined[uint32(idx)] {
		return fmt.Sprintf("C%d", idx)
	}
	if idx > g.maxConst {
		g.maxConst = idx
	}
	return fmt.Sprintf("C[%d]", idx)
}

func (g *generator) texture(unit uint32) string {
	g.units[unit] = true
	return fmt.Sprintf("texture[%d]", unit)
}

// target returns the texture target keyword of unit.
func (g *generator) target(unit uint32) string {
	tt := g.prog.SamplerType(unit)
	if tt == bytecode.TextureUnknown && int(unit) < len(g.opts.Targets) {
		tt = g.opts.Targets[unit]
	}
	switch tt {
	case bytecode.TextureCube:
		return "CUBE"
	case bytecode.TextureVolume:
		return "3D"
	}
	return "2D"
}

// dest returns the destination text restricted to mask.
func (g *generator) dest(op *bytecode.Operand, mask bytecode.WriteMask) string {
	name := g.register(op, 0)
	switch op.Type {
	case bytecode.RegRastOut:
		if op.Index != bytecode.RastPosition {
			return name + ".x"
		}
	case bytecode.RegDepthOut:
		return name + ".z"
	}
	if op.Relative {
		g.fail("relatively addressed destination")
	}
	return name + (op.Mask & mask).String()
}

// src returns the text of a source operand with its swizzle and modifier.
func (g *generator) src(op *bytecode.Operand) string {
	return g.srcLane(op, -1)
}

// srcLane returns a source operand; lane >= 0 selects the single component
// read by that lane, as scalar instructions require.
func (g *generator) srcLane(op *bytecode.Operand, lane int) string {
	base := g.register(op, 0)
	switch op.SrcMod {
	case bytecode.SrcNone, bytecode.SrcNeg:
		neg := ""
		if op.SrcMod == bytecode.SrcNeg {
			neg = "-"
		}
		if lane >= 0 {
			return fmt.Sprintf("%s%s.%c", neg, base, bytecode.ComponentName(op.Swizzle.Component(lane)))
		}
		return neg + base + op.Swizzle.String()
	}
	mod, neg := g.modifier(op, base)
	if lane >= 0 {
		return fmt.Sprintf("%s%s.%c", neg, mod, bytecode.ComponentName(uint8(lane)))
	}
	return neg + mod
}

// rowOperand returns matrix operand op advanced by row registers.
func (g *generator) rowOperand(op *bytecode.Operand, row int) string {
	neg := ""
	if op.SrcMod == bytecode.SrcNeg {
		neg = "-"
	} else if op.SrcMod != bytecode.SrcNone {
		g.fail("source modifier %s on a matrix operand", op.SrcMod)
	}
	return neg + g.register(op, row) + op.Swizzle.String()
}

// modifier emits the lines computing a modified source into the next MOD
// temporary and returns its name and sign.
func (g *generator) modifier(op *bytecode.Operand, base string) (string, string) {
	if g.mods >= 3 {
		g.fail("more than three modified sources")
		return "?", ""
	}
	m := fmt.Sprintf("MOD%d", g.mods)
	g.mods++
	if g.mods > g.maxMods {
		g.maxMods = g.mods
	}
	s := base + op.Swizzle.String()
	neg := ""
	switch op.SrcMod {
	case bytecode.SrcBias:
		g.emit("SUB %s, %s, %s.x;", m, s, g.use("coefdiv"))
	case bytecode.SrcBiasNeg:
		g.emit("SUB %s, %s.x, %s;", m, g.use("coefdiv"), s)
	case bytecode.SrcSign:
		g.emit("MAD %s, %s, %s.x, -%s;", m, s, g.use("coefmul"), g.use("one"))
	case bytecode.SrcSignNeg:
		g.emit("MAD %s, %s, -%s.x, %s;", m, s, g.use("coefmul"), g.use("one"))
	case bytecode.SrcComp:
		g.emit("SUB %s, %s, %s;", m, g.use("one"), s)
	case bytecode.SrcX2:
		g.emit("ADD %s, %s, %s;", m, s, s)
	case bytecode.SrcX2Neg:
		g.emit("ADD %s, -%s, -%s;", m, s, s)
	case bytecode.SrcDz, bytecode.SrcDw:
		lane := 2
		if op.SrcMod == bytecode.SrcDw {
			lane = 3
		}
		g.emit("RCP %s.w, %s.%c;", m, base, bytecode.ComponentName(op.Swizzle.Component(lane)))
		g.emit("MUL %s, %s, %s.w;", m, s, m)
	case bytecode.SrcAbs:
		g.emit("ABS %s, %s;", m, s)
	case bytecode.SrcAbsNeg:
		g.emit("ABS %s, %s;", m, s)
		neg = "-"
	case bytecode.SrcNot:
		g.emit("ABS %s, %s;", m, s)
		g.emit("SGE %s, %s, %s;", m, g.use("zero"), m)
	default:
		g.fail("unknown source modifier %d", op.SrcMod)
	}
	return m, neg
}

// finish emits the main line of an instruction writing dst, followed by
// the result shift and saturation.
func (g *generator) finish(mnemonic string, dst *bytecode.Operand, mask bytecode.WriteMask, srcs ...string) {
	d := g.dest(dst, mask)
	sat := dst.Mod&bytecode.DstSaturate != 0
	fragment := g.v.IsPixel()

	suffix := ""
	if sat && fragment && dst.Shift == 0 {
		suffix = "_SAT"
	}
	line := mnemonic + suffix + " " + d
	for _, s := range srcs {
		line += ", " + s
	}
	g.emit("%s;", line)

	if dst.Shift != 0 {
		suffix = ""
		if sat && fragment {
			suffix = "_SAT"
		}
		g.emit("MUL%s %s, %s, %s;", suffix, d, g.register(dst, 0), g.shiftCoef(dst.Shift))
	}
	if sat && !fragment {
		r := g.register(dst, 0)
		g.emit("MAX %s, %s, %s;", d, r, g.use("zero"))
		g.emit("MIN %s, %s, %s;", d, r, g.use("one"))
	}
}

// shiftCoef returns the scalar 2^shift. Shifts of 1..4 use coefmul and
// coefdiv, larger ones the coefmul2 and coefdiv2 banks.
func (g *generator) shiftCoef(shift int8) string {
	const lanes = "xyzw"
	bank, n := "coefmul", int(shift)
	if shift < 0 {
		bank, n = "coefdiv", -int(shift)
	}
	if n > 4 {
		bank += "2"
		n -= 4
	}
	return fmt.Sprintf("%s.%c", g.use(bank), lanes[n-1])
}
