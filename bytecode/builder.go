// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"math"

	"github.com/gogpu/dxso/isa"
)

// Param is an encoded parameter token.
type Param uint32

// Dst returns a destination token writing all components.
func Dst(t RegisterType, index uint32) Param {
	return Param(EncodeRegister(t, index) | uint32(MaskAll)<<writeMaskShift)
}

// Src returns a source token with the identity swizzle.
func Src(t RegisterType, index uint32) Param {
	return Param(EncodeRegister(t, index) | uint32(Identity)<<swizzleShift)
}

// Mask replaces the write mask of a destination token.
func (p Param) Mask(m WriteMask) Param {
	return p&^Param(0xF<<writeMaskShift) | Param(m&0xF)<<writeMaskShift
}

// Sat adds the saturate modifier to a destination token.
func (p Param) Sat() Param {
	return p | Param(DstSaturate)<<dstModShift
}

// PP adds the partial-precision modifier to a destination token.
func (p Param) PP() Param {
	return p | Param(DstPartialPrecision)<<dstModShift
}

// Centroid adds the centroid modifier to a destination token.
func (p Param) Centroid() Param {
	return p | Param(DstCentroid)<<dstModShift
}

// Shift sets the result shift (-8..7) of a destination token.
func (p Param) Shift(n int8) Param {
	return p&^Param(0xF<<shiftShift) | Param(uint8(n)&0xF)<<shiftShift
}

// Swz replaces the swizzle of a source token.
func (p Param) Swz(s Swizzle) Param {
	return p&^Param(0xFF<<swizzleShift) | Param(s)<<swizzleShift
}

// Mod sets the source modifier of a source token.
func (p Param) Mod(m SrcMod) Param {
	return p&^Param(0xF<<srcModShift) | Param(m&0xF)<<srcModShift
}

// Rel marks the token as relatively addressed.
func (p Param) Rel() Param {
	return p | Param(relativeBit)
}

// Instruction token flags accepted by Builder.OpX.
const (
	FlagPredicated = predicatedBit
	FlagCoissue    = coissueBit
)

// Builder assembles token streams.
type Builder struct {
	version isa.Version
	words   []uint32
}

// NewBuilder starts a stream with the version token for v.
func NewBuilder(v isa.Version) *Builder {
	b := &Builder{version: v, words: make([]uint32, 0, 32)}
	b.words = append(b.words, v.Token())
	return b
}

// Raw appends words verbatim.
func (b *Builder) Raw(words ...uint32) *Builder {
	b.words = append(b.words, words...)
	return b
}

// Comment appends a comment block holding payload.
func (b *Builder) Comment(payload ...uint32) *Builder {
	b.words = append(b.words, commentLow|uint32(len(payload))<<commentShift)
	b.words = append(b.words, payload...)
	return b
}

// Op appends an instruction with its parameter tokens.
func (b *Builder) Op(op isa.Opcode, params ...Param) *Builder {
	return b.OpX(op, 0, 0, params...)
}

// OpX appends an instruction with control bits and token flags.
func (b *Builder) OpX(op isa.Opcode, control uint8, flags uint32, params ...Param) *Builder {
	tok := uint32(op) | uint32(control)<<controlShift | flags
	if b.version.HasLengthField() {
		tok |= uint32(len(params)) << lengthShift
	}
	b.words = append(b.words, tok)
	for _, p := range params {
		b.words = append(b.words, uint32(p))
	}
	return b
}

func (b *Builder) define(op isa.Opcode, dst Param, literals ...uint32) *Builder {
	tok := uint32(op)
	if b.version.HasLengthField() {
		tok |= uint32(1+len(literals)) << lengthShift
	}
	b.words = append(b.words, tok, uint32(dst))
	b.words = append(b.words, literals...)
	return b
}

// Def appends a float constant definition for c<index>.
func (b *Builder) Def(index uint32, x, y, z, w float32) *Builder {
	return b.define(isa.OpDef, Dst(RegConst, index),
		math.Float32bits(x), math.Float32bits(y), math.Float32bits(z), math.Float32bits(w))
}

// DefI appends an integer constant definition for i<index>.
func (b *Builder) DefI(index uint32, x, y, z, w int32) *Builder {
	return b.define(isa.OpDefI, Dst(RegConstInt, index), uint32(x), uint32(y), uint32(z), uint32(w))
}

// DefB appends a boolean constant definition for b<index>.
func (b *Builder) DefB(index uint32, v bool) *Builder {
	var word uint32
	if v {
		word = 1
	}
	return b.define(isa.OpDefB, Dst(RegConstBool, index), word)
}

// Dcl appends a usage declaration for dst.
func (b *Builder) Dcl(usage Usage, index uint8, dst Param) *Builder {
	decl := paramBit | uint32(usage)&0x1F | uint32(index&0xF)<<16
	return b.OpX(isa.OpDcl, 0, 0, Param(decl), dst)
}

// DclSampler appends a sampler declaration.
func (b *Builder) DclSampler(tt TextureType, s uint32) *Builder {
	decl := paramBit | uint32(tt&0xF)<<27
	return b.OpX(isa.OpDcl, 0, 0, Param(decl), Dst(RegSampler, s))
}

// End appends the end token and returns a copy of the stream.
func (b *Builder) End() []uint32 {
	out := make([]uint32, len(b.words)+1)
	copy(out, b.words)
	out[len(b.words)] = EndToken
	return out
}

// Words returns a copy of the stream without an end token.
func (b *Builder) Words() []uint32 {
	out := make([]uint32, len(b.words))
	copy(out, b.words)
	return out
}
