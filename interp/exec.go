// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/isa"
)

// Errors returned by the interpreter.
var (
	// ErrNotImplemented is returned for instructions the interpreter
	// recognizes but does not execute.
	ErrNotImplemented = errors.New("interp: not implemented")

	// ErrRegisterRange is returned for register indices outside the
	// register file.
	ErrRegisterRange = errors.New("interp: register out of range")

	// ErrNoSampler is returned by texture instructions when State.Sampler
	// is nil.
	ErrNoSampler = errors.New("interp: no sampler bound")

	// ErrMacroSequence is returned for texm3x2/texm3x3 instructions out of
	// sequence.
	ErrMacroSequence = errors.New("interp: broken texture matrix sequence")

	// ErrStepLimit is returned when Run exceeds Options.MaxSteps.
	ErrStepLimit = errors.New("interp: step limit exceeded")

	// ErrStopped is returned by an OnStep hook to halt Run without error.
	ErrStopped = errors.New("interp: stopped")
)

func notImplemented(in *bytecode.Instruction) error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, in.Name())
}

// sources reads every source operand of in.
func (st *State) sources(in *bytecode.Instruction) ([]Vec4, error) {
	out := make([]Vec4, len(in.Src))
	for i := range in.Src {
		v, err := st.Read(&in.Src[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func need(in *bytecode.Instruction, n int) error {
	if len(in.Src) < n || (in.Info != nil && in.Info.HasDest && in.Dst == nil) {
		return fmt.Errorf("interp: %s needs %d sources, has %d", in.Name(), n, len(in.Src))
	}
	return nil
}

// ExecInstruction executes one non-flow-control instruction against st.
// Only destination components selected by the write mask change.
func ExecInstruction(st *State, in *bytecode.Instruction) error {
	if in.Predicated {
		return notImplemented(in)
	}
	if in.Is(isa.FlagTexture) || in.Opcode == isa.OpBem {
		return st.execTexture(in)
	}

	switch in.Opcode {
	case isa.OpNop, isa.OpPhase, isa.OpDcl:
		return nil
	case isa.OpDef:
		return st.define(in)
	case isa.OpDefI:
		if int(in.Dst.Index) >= len(st.IntConsts) {
			return outOfRange(in.Dst, int(in.Dst.Index))
		}
		st.IntConsts[in.Dst.Index] = [4]int32{in.Int(0), in.Int(1), in.Int(2), in.Int(3)}
		return nil
	case isa.OpDefB:
		if int(in.Dst.Index) >= len(st.BoolConsts) {
			return outOfRange(in.Dst, int(in.Dst.Index))
		}
		st.BoolConsts[in.Dst.Index] = in.Bool()
		return nil
	case isa.OpDsx, isa.OpDsy, isa.OpSetP:
		return notImplemented(in)
	}

	if in.Is(isa.FlagFlow) {
		return fmt.Errorf("interp: %s must be executed by Run", in.Name())
	}

	switch in.Opcode {
	case isa.OpM4x4, isa.OpM4x3, isa.OpM3x4, isa.OpM3x3, isa.OpM3x2:
		return st.execMatrix(in)
	}

	n := 0
	if in.Info != nil {
		n = in.Info.Sources()
	}
	if err := need(in, n); err != nil {
		return err
	}
	s, err := st.sources(in)
	if err != nil {
		return err
	}

	mask := in.Dst.Mask
	var r Vec4
	switch in.Opcode {
	case isa.OpMov:
		r = s[0]
		if in.Dst.Type == bytecode.RegAddr && st.Version.IsVertex() {
			r = r.each(floor32)
		}
	case isa.OpMova:
		r = s[0].each(func(f float32) float32 { return floor32(f + 0.5) })
	case isa.OpAdd:
		r = s[0].add(s[1])
	case isa.OpSub:
		r = s[0].sub(s[1])
	case isa.OpMul:
		r = s[0].mul(s[1])
	case isa.OpMad:
		r = s[0].mul(s[1]).add(s[2])
	case isa.OpMin:
		r = zip(s[0], s[1], func(x, y float32) float32 { return min(x, y) })
	case isa.OpMax:
		r = zip(s[0], s[1], func(x, y float32) float32 { return max(x, y) })
	case isa.OpSlt:
		r = zip(s[0], s[1], func(x, y float32) float32 { return b2f(x < y) })
	case isa.OpSge:
		r = zip(s[0], s[1], func(x, y float32) float32 { return b2f(x >= y) })
	case isa.OpRcp:
		r = Splat(rcp(s[0][3]))
	case isa.OpRsq:
		r = Splat(rsq(s[0][3]))
	case isa.OpDp3:
		r = Splat(dot3(s[0], s[1]))
	case isa.OpDp4:
		r = Splat(dot4(s[0], s[1]))
	case isa.OpExp:
		r = Splat(exp2(s[0][3]))
	case isa.OpLog:
		r = Splat(logAbs(s[0][3]))
	case isa.OpExpP:
		r = expp(s[0][3])
	case isa.OpLogP:
		r = logp(s[0][3])
	case isa.OpLit:
		r = lit(s[0])
	case isa.OpDst:
		r = Vec4{1, s[0][1] * s[1][1], s[0][2], s[1][3]}
	case isa.OpLrp:
		r = s[2].add(s[0].mul(s[1].sub(s[2])))
	case isa.OpFrc:
		r = Vec4{s[0][0] - floor32(s[0][0]), s[0][1] - floor32(s[0][1]), 0, 1}
	case isa.OpPow:
		r = Splat(pow32(abs32(s[0][0]), s[1][0]))
	case isa.OpCrs:
		a, b := s[0], s[1]
		r = Vec4{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0], 0}
		mask &= 0x7
	case isa.OpSgn:
		r = s[0].each(sign)
	case isa.OpAbs:
		r = s[0].abs()
	case isa.OpNrm:
		r = normalize(s[0])
	case isa.OpSinCos:
		x := float64(s[0][0])
		r = Vec4{float32(math.Cos(x)), float32(math.Sin(x)), 0, 0}
		mask &= 0x3
	case isa.OpCnd:
		r = choose(s[0], s[1], s[2], func(a float32) bool { return a > 0.5 })
	case isa.OpCmp:
		r = choose(s[0], s[1], s[2], func(a float32) bool { return a >= 0 })
	case isa.OpDp2Add:
		r = Splat(s[0][0]*s[1][0] + s[0][1]*s[1][1] + s[2][0])
	default:
		return notImplemented(in)
	}
	return st.writeMasked(in.Dst, mask, r)
}

func (st *State) define(in *bytecode.Instruction) error {
	idx := int(in.Dst.ConstIndex())
	if idx >= len(st.Consts) {
		return outOfRange(in.Dst, idx)
	}
	st.Consts[idx] = in.Floats()
	return nil
}

func (st *State) execMatrix(in *bytecode.Instruction) error {
	if err := need(in, 2); err != nil {
		return err
	}
	a, err := st.Read(&in.Src[0])
	if err != nil {
		return err
	}
	rows, dot := 4, dot4
	switch in.Opcode {
	case isa.OpM4x3:
		rows = 3
	case isa.OpM3x4:
		dot = dot3
	case isa.OpM3x3:
		rows, dot = 3, dot3
	case isa.OpM3x2:
		rows, dot = 2, dot3
	}
	var r Vec4
	for i := 0; i < rows; i++ {
		m, err := st.readRow(&in.Src[1], i)
		if err != nil {
			return err
		}
		r[i] = dot(a, m)
	}
	return st.writeMasked(in.Dst, in.Dst.Mask&bytecode.WriteMask(1<<rows-1), r)
}

func b2f(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

func rcp(w float32) float32 {
	if w == 0 {
		return posInf
	}
	return 1 / w
}

func rsq(w float32) float32 {
	w = abs32(w)
	if w == 0 {
		return posInf
	}
	if w == 1 {
		return 1
	}
	return float32(1 / math.Sqrt(float64(w)))
}

func logAbs(w float32) float32 {
	w = abs32(w)
	if w == 0 {
		return -math.MaxFloat32
	}
	return log2(w)
}

func expp(w float32) Vec4 {
	i := floor32(w)
	return Vec4{exp2(i), w - i, clearLowMantissa(exp2(w)), 1}
}

func logp(w float32) Vec4 {
	w = abs32(w)
	if w == 0 {
		return Vec4{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32, 1}
	}
	e := floor32(log2(w))
	return Vec4{e, w / exp2(e), clearLowMantissa(log2(w)), 1}
}

func lit(a Vec4) Vec4 {
	r := Vec4{1, max(a[0], 0), 0, 1}
	if a[0] > 0 && a[1] > 0 {
		r[2] = pow32(a[1], a[3])
	}
	return r
}

func sign(f float32) float32 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
}

func normalize(a Vec4) Vec4 {
	d := dot3(a, a)
	if d == 0 {
		return a
	}
	return a.scale(float32(1 / math.Sqrt(float64(d))))
}

func choose(a, b, c Vec4, pred func(float32) bool) Vec4 {
	var r Vec4
	for i := range r {
		if pred(a[i]) {
			r[i] = b[i]
		} else {
			r[i] = c[i]
		}
	}
	return r
}
