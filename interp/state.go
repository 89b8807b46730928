// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp

import (
	"fmt"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/isa"
)

// Vec4 is a four-component float register value.
type Vec4 [4]float32

// Splat returns a vector with f in every lane.
func Splat(f float32) Vec4 {
	return Vec4{f, f, f, f}
}

// Sampler answers texture lookups. unit is the sampler or texture stage
// index; lod is the bias or explicit level, 0 otherwise.
type Sampler interface {
	Sample(unit int, target bytecode.TextureType, coord Vec4, lod float32) Vec4
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(unit int, target bytecode.TextureType, coord Vec4, lod float32) Vec4

// Sample calls f.
func (f SamplerFunc) Sample(unit int, target bytecode.TextureType, coord Vec4, lod float32) Vec4 {
	return f(unit, target, coord, lod)
}

// BumpEnv holds the bump-mapping environment of one texture stage.
type BumpEnv struct {
	// Mat is (m00, m01, m10, m11).
	Mat       [4]float32
	LumScale  float32
	LumOffset float32
}

// texmState tracks a texm3x2 or texm3x3 sequence in progress.
type texmState struct {
	row  int // rows computed so far, 0..3
	rows [3]float32
	regs [3]uint32 // destination register of each row
}

// State is the complete register file of one shader invocation.
type State struct {
	Version isa.Version

	Temps      [32]Vec4
	Inputs     [16]Vec4
	Consts     [256]Vec4
	IntConsts  [16][4]int32
	BoolConsts [16]bool
	Addr       [4]int32 // a0
	Loop       int32    // aL
	Predicate  [4]bool

	// TexCoords are the interpolated texture coordinates of a pixel
	// shader. Textures are the t# registers of ps_1_0..ps_1_3.
	TexCoords [8]Vec4
	Textures  [8]Vec4

	// VPos and VFace back the vPos and vFace misc registers.
	VPos  Vec4
	VFace float32

	BumpEnv [8]BumpEnv

	// Vertex outputs.
	Position  Vec4
	Fog       float32
	PointSize float32
	Colors    [2]Vec4
	TexOut    [12]Vec4 // oT# and the o# registers of vs_3_0

	// Pixel outputs.
	ColorOut [4]Vec4
	Depth    float32
	Killed   bool

	Sampler Sampler

	texm         texmState
	samplerTypes [16]bytecode.TextureType
}

// NewState returns a zeroed state for profile v.
func NewState(v isa.Version) *State {
	return &State{Version: v}
}

// Result returns the pixel color: oC0 for ps_2_0 and later, r0 before.
func (st *State) Result() Vec4 {
	if st.Version.IsPixel() && st.Version.Before(2, 0) {
		return st.Temps[0]
	}
	return st.ColorOut[0]
}

func outOfRange(op *bytecode.Operand, idx int) error {
	return fmt.Errorf("%w: register type %d index %d", ErrRegisterRange, op.Type, idx)
}

// relOffset returns the relative-addressing offset of op.
func (st *State) relOffset(op *bytecode.Operand) int {
	if !op.Relative {
		return 0
	}
	ra := op.RelAddr
	if ra == nil {
		return int(st.Addr[0])
	}
	if ra.Type == bytecode.RegLoop {
		return int(st.Loop)
	}
	return int(st.Addr[ra.Component&3])
}

func pick[T any](arr []T, op *bytecode.Operand, idx int) (*T, error) {
	if idx < 0 || idx >= len(arr) {
		return nil, outOfRange(op, idx)
	}
	return &arr[idx], nil
}

func boolVec(b [4]bool) Vec4 {
	var v Vec4
	for i, x := range b {
		if x {
			v[i] = 1
		}
	}
	return v
}

// readRaw returns the register value without swizzle or modifier.
func (st *State) readRaw(op *bytecode.Operand, row int) (Vec4, error) {
	idx := int(op.Index) + row + st.relOffset(op)
	switch op.Type {
	case bytecode.RegTemp:
		p, err := pick(st.Temps[:], op, idx)
		if err != nil {
			return Vec4{}, err
		}
		return *p, nil
	case bytecode.RegInput:
		p, err := pick(st.Inputs[:], op, idx)
		if err != nil {
			return Vec4{}, err
		}
		return *p, nil
	case bytecode.RegConst, bytecode.RegConst2, bytecode.RegConst3, bytecode.RegConst4:
		idx = int(op.ConstIndex()) + row + st.relOffset(op)
		p, err := pick(st.Consts[:], op, idx)
		if err != nil {
			return Vec4{}, err
		}
		return *p, nil
	case bytecode.RegAddr:
		if st.Version.IsVertex() {
			if idx != 0 {
				return Vec4{}, outOfRange(op, idx)
			}
			return Vec4{float32(st.Addr[0]), float32(st.Addr[1]), float32(st.Addr[2]), float32(st.Addr[3])}, nil
		}
		arr := st.TexCoords[:]
		if st.Version.Before(1, 4) {
			arr = st.Textures[:]
		}
		p, err := pick(arr, op, idx)
		if err != nil {
			return Vec4{}, err
		}
		return *p, nil
	case bytecode.RegConstInt:
		p, err := pick(st.IntConsts[:], op, idx)
		if err != nil {
			return Vec4{}, err
		}
		return Vec4{float32(p[0]), float32(p[1]), float32(p[2]), float32(p[3])}, nil
	case bytecode.RegConstBool:
		p, err := pick(st.BoolConsts[:], op, idx)
		if err != nil {
			return Vec4{}, err
		}
		if *p {
			return Splat(1), nil
		}
		return Vec4{}, nil
	case bytecode.RegLoop:
		return Splat(float32(st.Loop)), nil
	case bytecode.RegMisc:
		switch op.Index {
		case bytecode.MiscPosition:
			return st.VPos, nil
		case bytecode.MiscFace:
			return Splat(st.VFace), nil
		}
	case bytecode.RegPredicate:
		return boolVec(st.Predicate), nil
	case bytecode.RegRastOut:
		switch op.Index {
		case bytecode.RastPosition:
			return st.Position, nil
		case bytecode.RastFog:
			return Splat(st.Fog), nil
		case bytecode.RastPointSize:
			return Splat(st.PointSize), nil
		}
	case bytecode.RegAttrOut:
		p, err := pick(st.Colors[:], op, idx)
		if err != nil {
			return Vec4{}, err
		}
		return *p, nil
	case bytecode.RegTexCrdOut:
		p, err := pick(st.TexOut[:], op, idx)
		if err != nil {
			return Vec4{}, err
		}
		return *p, nil
	case bytecode.RegColorOut:
		p, err := pick(st.ColorOut[:], op, idx)
		if err != nil {
			return Vec4{}, err
		}
		return *p, nil
	case bytecode.RegDepthOut:
		return Splat(st.Depth), nil
	}
	return Vec4{}, outOfRange(op, idx)
}

// applySource applies the swizzle and then the source modifier.
func applySource(raw Vec4, op *bytecode.Operand) Vec4 {
	var s Vec4
	for lane := 0; lane < 4; lane++ {
		s[lane] = raw[op.Swizzle.Component(lane)]
	}
	switch op.SrcMod {
	case bytecode.SrcNeg:
		return s.scale(-1)
	case bytecode.SrcBias:
		return s.addScalar(-0.5)
	case bytecode.SrcBiasNeg:
		return s.addScalar(-0.5).scale(-1)
	case bytecode.SrcSign:
		return s.scale(2).addScalar(-1)
	case bytecode.SrcSignNeg:
		return s.scale(2).addScalar(-1).scale(-1)
	case bytecode.SrcComp:
		return s.scale(-1).addScalar(1)
	case bytecode.SrcX2:
		return s.add(s)
	case bytecode.SrcX2Neg:
		return s.add(s).scale(-1)
	case bytecode.SrcDz:
		return s.scale(1 / s[2])
	case bytecode.SrcDw:
		return s.scale(1 / s[3])
	case bytecode.SrcAbs:
		return s.abs()
	case bytecode.SrcAbsNeg:
		return s.abs().scale(-1)
	case bytecode.SrcNot:
		for i := range s {
			if s[i] == 0 {
				s[i] = 1
			} else {
				s[i] = 0
			}
		}
	}
	return s
}

// Read returns the value of a source operand after swizzle and modifier.
func (st *State) Read(op *bytecode.Operand) (Vec4, error) {
	raw, err := st.readRaw(op, 0)
	if err != nil {
		return Vec4{}, err
	}
	return applySource(raw, op), nil
}

// readRow reads the register row registers after op, as used by the
// matrix instructions.
func (st *State) readRow(op *bytecode.Operand, row int) (Vec4, error) {
	raw, err := st.readRaw(op, row)
	if err != nil {
		return Vec4{}, err
	}
	return applySource(raw, op), nil
}

// Write stores val into the destination operand, applying the result shift,
// saturation and the write mask.
func (st *State) Write(op *bytecode.Operand, val Vec4) error {
	return st.writeMasked(op, op.Mask, val)
}

func (st *State) writeMasked(op *bytecode.Operand, mask bytecode.WriteMask, val Vec4) error {
	if op.Shift != 0 {
		val = val.scale(shiftScale(op.Shift))
	}
	if op.Mod&bytecode.DstSaturate != 0 {
		val = val.saturate()
	}

	idx := int(op.Index) + st.relOffset(op)
	var target *Vec4
	var err error
	switch op.Type {
	case bytecode.RegTemp:
		target, err = pick(st.Temps[:], op, idx)
	case bytecode.RegAddr:
		if st.Version.IsVertex() {
			for c := 0; c < 4; c++ {
				if mask.Has(c) {
					st.Addr[c] = int32(val[c])
				}
			}
			return nil
		}
		target, err = pick(st.Textures[:], op, idx)
	case bytecode.RegRastOut:
		switch op.Index {
		case bytecode.RastPosition:
			target = &st.Position
		case bytecode.RastFog:
			st.Fog = val[0]
			return nil
		case bytecode.RastPointSize:
			st.PointSize = val[0]
			return nil
		default:
			return outOfRange(op, idx)
		}
	case bytecode.RegAttrOut:
		target, err = pick(st.Colors[:], op, idx)
	case bytecode.RegTexCrdOut:
		target, err = pick(st.TexOut[:], op, idx)
	case bytecode.RegColorOut:
		target, err = pick(st.ColorOut[:], op, idx)
	case bytecode.RegDepthOut:
		st.Depth = val[0]
		return nil
	case bytecode.RegPredicate:
		for c := 0; c < 4; c++ {
			if mask.Has(c) {
				st.Predicate[c] = val[c] != 0
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: register type %d is not writable", ErrRegisterRange, op.Type)
	}
	if err != nil {
		return err
	}
	for c := 0; c < 4; c++ {
		if mask.Has(c) {
			target[c] = val[c]
		}
	}
	return nil
}

func shiftScale(shift int8) float32 {
	if shift > 0 {
		return float32(int(1) << shift)
	}
	return 1 / float32(int(1)<<(-shift))
}
