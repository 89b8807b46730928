// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package usage computes which registers a shader touches before any code
// is generated.
package usage

import (
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/isa"
)

// Bitmaps records register usage, one bit per register index.
type Bitmaps struct {
	Temps    uint32
	Textures uint32 // t# in pixel shaders
	Samplers uint32
	Address  uint32 // a# in vertex shaders

	// MaxConst is the highest float constant index referenced, or -1.
	MaxConst int

	// RelativeConst is set when any float constant is relatively addressed.
	RelativeConst bool
}

// TempCount returns the number of temporaries used.
func (b Bitmaps) TempCount() int { return bits.OnesCount32(b.Temps) }

// TextureCount returns the number of texture registers used.
func (b Bitmaps) TextureCount() int { return bits.OnesCount32(b.Textures) }

// SamplerCount returns the number of samplers used.
func (b Bitmaps) SamplerCount() int { return bits.OnesCount32(b.Samplers) }

// Scan walks tokens and returns the usage bitmaps. Declarations and comments
// are skipped; unknown opcodes are skipped by the continuation convention.
func Scan(tokens []uint32) (Bitmaps, error) {
	return ScanWith(tokens, nil)
}

// ScanWith is Scan with a sink for decoder warnings and for register
// indices outside the bitmaps.
func ScanWith(tokens []uint32, sink diag.Sink) (Bitmaps, error) {
	bm := Bitmaps{MaxConst: -1}
	sink = diag.Or(sink)
	d := bytecode.NewDecoder(tokens, bytecode.Options{SkipUnknown: true, Sink: sink})
	for {
		in, err := d.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return bm, nil
			}
			return Bitmaps{MaxConst: -1}, err
		}
		if in.Is(isa.FlagDeclaration) {
			continue
		}
		bm.add(d.Version(), in, sink)
	}
}

// FromProgram computes the bitmaps of an already decoded program.
func FromProgram(prog *bytecode.Program) Bitmaps {
	return FromProgramWith(prog, nil)
}

// FromProgramWith is FromProgram with a sink for register indices outside
// the bitmaps.
func FromProgramWith(prog *bytecode.Program, sink diag.Sink) Bitmaps {
	sink = diag.Or(sink)
	bm := Bitmaps{MaxConst: -1}
	for i := range prog.Instructions {
		in := &prog.Instructions[i]
		if in.Is(isa.FlagDeclaration) {
			continue
		}
		bm.add(prog.Version, in, sink)
	}
	return bm
}

func (b *Bitmaps) add(v isa.Version, in *bytecode.Instruction, sink diag.Sink) {
	u := user{b: b, v: v, in: in, sink: sink}
	if in.Dst != nil {
		u.operand(in.Dst)
	}
	if in.Predicate != nil {
		u.operand(in.Predicate)
	}
	for i := range in.Src {
		u.operand(&in.Src[i])
	}
}

// user adds the operands of one instruction.
type user struct {
	b    *Bitmaps
	v    isa.Version
	in   *bytecode.Instruction
	sink diag.Sink
}

// bit returns the bitmap bit of register idx, or 0 after reporting an index
// that does not fit.
func (u user) bit(t bytecode.RegisterType, idx uint32) uint32 {
	if idx < 32 {
		return 1 << idx
	}
	u.sink.Report(diag.Diagnostic{
		Kind:     diag.VersionMismatch,
		Severity: diag.Warning,
		Offset:   u.in.Offset,
		Opcode:   uint16(u.in.Opcode),
		Backend:  "usage",
		Message:  fmt.Sprintf("register type %d index %d is outside the register file", t, idx),
	})
	return 0
}

func (u user) operand(op *bytecode.Operand) {
	b, v := u.b, u.v
	var bit uint32
	switch op.Type {
	case bytecode.RegTemp, bytecode.RegAddr, bytecode.RegSampler:
		bit = u.bit(op.Type, op.Index)
	}
	switch op.Type {
	case bytecode.RegTemp:
		b.Temps |= bit
	case bytecode.RegAddr:
		if v.IsPixel() {
			b.Textures |= bit
		} else {
			b.Address |= bit
		}
	case bytecode.RegSampler:
		b.Samplers |= bit
	case bytecode.RegConst, bytecode.RegConst2, bytecode.RegConst3, bytecode.RegConst4:
		if idx := int(op.ConstIndex()); idx > b.MaxConst {
			b.MaxConst = idx
		}
		if op.Relative {
			b.RelativeConst = true
		}
	}

	if op.Relative {
		if op.RelAddr != nil && op.RelAddr.Type == bytecode.RegAddr {
			b.Address |= u.bit(op.RelAddr.Type, op.RelAddr.Index)
		} else if op.RelAddr == nil && v.IsVertex() {
			b.Address |= 1
		}
	}
}
