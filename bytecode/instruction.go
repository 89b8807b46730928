// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"math"

	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/isa"
)

// Usage is the vertex input or output semantic of a DCL instruction.
type Usage uint8

// Declaration usages.
const (
	UsagePosition     Usage = 0
	UsageBlendWeight  Usage = 1
	UsageBlendIndices Usage = 2
	UsageNormal       Usage = 3
	UsagePSize        Usage = 4
	UsageTexCoord     Usage = 5
	UsageTangent      Usage = 6
	UsageBinormal     Usage = 7
	UsageTessFactor   Usage = 8
	UsagePositionT    Usage = 9
	UsageColor        Usage = 10
	UsageFog          Usage = 11
	UsageDepth        Usage = 12
	UsageSample       Usage = 13
)

var usageNames = [...]string{
	"position", "blendweight", "blendindices", "normal", "psize", "texcoord",
	"tangent", "binormal", "tessfactor", "positiont", "color", "fog", "depth", "sample",
}

func (u Usage) String() string {
	if int(u) < len(usageNames) {
		return usageNames[u]
	}
	return "unknown"
}

// TextureType is the sampler dimensionality declared by dcl_2d and friends.
type TextureType uint8

// Sampler texture types.
const (
	TextureUnknown TextureType = 0
	Texture2D      TextureType = 2
	TextureCube    TextureType = 3
	TextureVolume  TextureType = 4
)

func (t TextureType) String() string {
	switch t {
	case Texture2D:
		return "2d"
	case TextureCube:
		return "cube"
	case TextureVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// Declaration is the usage token of a DCL instruction.
type Declaration struct {
	Usage       Usage
	UsageIndex  uint8
	TextureType TextureType
	Raw         uint32
}

func decodeDeclaration(word uint32) Declaration {
	return Declaration{
		Usage:       Usage(word & 0x1F),
		UsageIndex:  uint8(word >> 16 & 0xF),
		TextureType: TextureType(word >> 27 & 0xF),
		Raw:         word,
	}
}

// Instruction is one decoded instruction.
type Instruction struct {
	Info   *isa.Instruction
	Opcode isa.Opcode

	// Offset is the word offset of the instruction token.
	Offset int

	// Words is the number of words consumed, including the instruction token.
	Words int

	Control    uint8
	Coissue    bool
	Predicated bool

	// Predicate is the predicate register of a predicated instruction.
	Predicate *Operand

	// Dst is nil for instructions without a destination.
	Dst *Operand
	Src []Operand

	// Decl is set for DCL instructions.
	Decl *Declaration

	// Literal holds the raw constant words of DEF, DEFI and DEFB.
	Literal [4]uint32
}

// Float returns literal i of a DEF instruction.
func (in *Instruction) Float(i int) float32 {
	return math.Float32frombits(in.Literal[i&3])
}

// Floats returns the four literals of a DEF instruction.
func (in *Instruction) Floats() [4]float32 {
	return [4]float32{in.Float(0), in.Float(1), in.Float(2), in.Float(3)}
}

// Int returns literal i of a DEFI instruction.
func (in *Instruction) Int(i int) int32 {
	return int32(in.Literal[i&3])
}

// Bool returns the literal of a DEFB instruction.
func (in *Instruction) Bool() bool {
	return in.Literal[0] != 0
}

// Comparison returns the comparison held in the control bits.
func (in *Instruction) Comparison() isa.Comparison {
	return isa.Comparison(in.Control & 0x7)
}

// Name returns the version-appropriate mnemonic.
func (in *Instruction) Name() string {
	if in.Info != nil {
		return in.Info.Name
	}
	return in.Opcode.String()
}

// Is reports whether the instruction carries all flags in f.
func (in *Instruction) Is(f isa.Flags) bool {
	return in.Info != nil && in.Info.Is(f)
}

// Program is a fully decoded token stream.
type Program struct {
	Version      isa.Version
	Instructions []Instruction

	// Words is the number of words consumed, including the end token.
	Words int

	// Skipped lists unknown instructions dropped while decoding. A program
	// with skipped instructions can be disassembled and executed but not
	// translated.
	Skipped []Skipped
}

// Skipped is an unknown instruction dropped by the decoder.
type Skipped struct {
	Opcode isa.Opcode
	Offset int
}

// CheckTranslatable returns an UnknownOpcode error for the first skipped
// instruction, if any.
func (p *Program) CheckTranslatable() error {
	if len(p.Skipped) == 0 {
		return nil
	}
	s := p.Skipped[0]
	return NewError(diag.UnknownOpcode, s.Offset,
		"opcode %d was skipped while decoding and cannot be translated", uint16(s.Opcode))
}

// Defines returns the DEF, DEFI and DEFB instructions in program order.
func (p *Program) Defines() []*Instruction {
	var out []*Instruction
	for i := range p.Instructions {
		switch p.Instructions[i].Opcode {
		case isa.OpDef, isa.OpDefI, isa.OpDefB:
			out = append(out, &p.Instructions[i])
		}
	}
	return out
}

// SamplerType returns the texture type declared for sampler s, or
// TextureUnknown.
func (p *Program) SamplerType(s uint32) TextureType {
	for i := range p.Instructions {
		in := &p.Instructions[i]
		if in.Opcode == isa.OpDcl && in.Dst != nil && in.Dst.Type == RegSampler && in.Dst.Index == s {
			return in.Decl.TextureType
		}
	}
	return TextureUnknown
}
