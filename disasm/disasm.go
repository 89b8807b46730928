// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package disasm

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/isa"
)

// Options configures whole-program listings.
type Options struct {
	// Offsets prefixes each instruction with its word offset.
	Offsets bool

	// Indent indents the bodies of flow-control blocks.
	Indent bool

	// IndentString is one level of indentation (default: 4 spaces).
	IndentString string
}

// DefaultOptions returns the listing options used by Program.
func DefaultOptions() Options {
	return Options{IndentString: "    "}
}

// Register formats the register part of an operand without modifiers,
// swizzle or write mask.
func Register(v isa.Version, op *bytecode.Operand) string {
	base := registerBase(v, op)
	if !op.Relative {
		return base + registerIndex(v, op)
	}
	idx := op.Index
	if op.IsConstFloat() {
		idx = op.ConstIndex()
	}
	addr := "a0.x"
	if ra := op.RelAddr; ra != nil {
		if ra.Type == bytecode.RegLoop {
			addr = "aL"
		} else {
			addr = fmt.Sprintf("a%d.%c", ra.Index, bytecode.ComponentName(ra.Component))
		}
	}
	if idx == 0 {
		return fmt.Sprintf("%s[%s]", base, addr)
	}
	return fmt.Sprintf("%s[%s + %d]", base, addr, idx)
}

func registerBase(v isa.Version, op *bytecode.Operand) string {
	switch op.Type {
	case bytecode.RegTemp:
		return "r"
	case bytecode.RegInput:
		return "v"
	case bytecode.RegConst, bytecode.RegConst2, bytecode.RegConst3, bytecode.RegConst4:
		return "c"
	case bytecode.RegAddr:
		if v.IsPixel() {
			return "t"
		}
		return "a"
	case bytecode.RegRastOut:
		return "o"
	case bytecode.RegAttrOut:
		return "oD"
	case bytecode.RegTexCrdOut:
		if v.IsVertex() && v.AtLeast(3, 0) {
			return "o"
		}
		return "oT"
	case bytecode.RegConstInt:
		return "i"
	case bytecode.RegColorOut:
		return "oC"
	case bytecode.RegDepthOut:
		return "oDepth"
	case bytecode.RegSampler:
		return "s"
	case bytecode.RegConstBool:
		return "b"
	case bytecode.RegLoop:
		return "aL"
	case bytecode.RegTempFloat16:
		return "h"
	case bytecode.RegMisc:
		return "v"
	case bytecode.RegLabel:
		return "l"
	case bytecode.RegPredicate:
		return "p"
	default:
		return fmt.Sprintf("?%d_", op.Type)
	}
}

func registerIndex(v isa.Version, op *bytecode.Operand) string {
	switch op.Type {
	case bytecode.RegRastOut:
		switch op.Index {
		case bytecode.RastPosition:
			return "Pos"
		case bytecode.RastFog:
			return "Fog"
		case bytecode.RastPointSize:
			return "Pts"
		}
	case bytecode.RegMisc:
		switch op.Index {
		case bytecode.MiscPosition:
			return "Pos"
		case bytecode.MiscFace:
			return "Face"
		}
	case bytecode.RegDepthOut, bytecode.RegLoop:
		return ""
	case bytecode.RegConst2, bytecode.RegConst3, bytecode.RegConst4:
		return fmt.Sprint(op.ConstIndex())
	}
	return fmt.Sprint(op.Index)
}

// Dest formats a destination operand with its write mask.
func Dest(v isa.Version, op *bytecode.Operand) string {
	return Register(v, op) + op.Mask.String()
}

// Source formats a source operand with its modifier and swizzle.
func Source(v isa.Version, op *bytecode.Operand) string {
	reg := Register(v, op)
	swz := op.Swizzle.String()
	switch op.SrcMod {
	case bytecode.SrcNeg:
		return "-" + reg + swz
	case bytecode.SrcBias:
		return reg + "_bias" + swz
	case bytecode.SrcBiasNeg:
		return "-" + reg + "_bias" + swz
	case bytecode.SrcSign:
		return reg + "_bx2" + swz
	case bytecode.SrcSignNeg:
		return "-" + reg + "_bx2" + swz
	case bytecode.SrcComp:
		return "1-" + reg + swz
	case bytecode.SrcX2:
		return reg + "_x2" + swz
	case bytecode.SrcX2Neg:
		return "-" + reg + "_x2" + swz
	case bytecode.SrcDz:
		return reg + "_dz" + swz
	case bytecode.SrcDw:
		return reg + "_dw" + swz
	case bytecode.SrcAbs:
		return reg + "_abs" + swz
	case bytecode.SrcAbsNeg:
		return "-" + reg + "_abs" + swz
	case bytecode.SrcNot:
		return "!" + reg + swz
	default:
		return reg + swz
	}
}

var shiftSuffixes = map[int8]string{
	1: "_x2", 2: "_x4", 3: "_x8",
	-1: "_d2", -2: "_d4", -3: "_d8",
}

// dstSuffix returns the result-modifier suffixes valid for profile v.
func dstSuffix(v isa.Version, dst *bytecode.Operand) string {
	var sb strings.Builder
	if v.IsPixel() && v.Before(2, 0) {
		sb.WriteString(shiftSuffixes[dst.Shift])
	}
	if dst.Mod&bytecode.DstSaturate != 0 {
		sb.WriteString("_sat")
	}
	if v.IsPixel() && v.AtLeast(2, 0) {
		if dst.Mod&bytecode.DstPartialPrecision != 0 {
			sb.WriteString("_pp")
		}
		if dst.Mod&bytecode.DstCentroid != 0 {
			sb.WriteString("_centroid")
		}
	}
	return sb.String()
}

// Mnemonic returns the instruction name including comparison and texld
// variant suffixes, without result modifiers.
func Mnemonic(v isa.Version, in *bytecode.Instruction) string {
	name := in.Name()
	if in.Opcode == isa.OpTex && v.AtLeast(2, 0) {
		switch {
		case in.Control&isa.TexLdProject != 0:
			name = "texldp"
		case in.Control&isa.TexLdBias != 0:
			name = "texldb"
		}
	}
	if in.Is(isa.FlagComparison) {
		if c := in.Comparison(); c != isa.CmpNone {
			name += "_" + c.String()
		}
	}
	return name
}

// Instruction formats one decoded instruction as a single line.
func Instruction(v isa.Version, in *bytecode.Instruction) string {
	var sb strings.Builder
	if in.Coissue {
		sb.WriteByte('+')
	}
	if in.Predicate != nil {
		fmt.Fprintf(&sb, "(%s) ", Source(v, in.Predicate))
	}

	switch in.Opcode {
	case isa.OpDcl:
		sb.WriteString(declaration(v, in))
		return sb.String()
	case isa.OpDef:
		fmt.Fprintf(&sb, "def %s, %s, %s, %s, %s", Register(v, in.Dst),
			formatFloat(in.Float(0)), formatFloat(in.Float(1)), formatFloat(in.Float(2)), formatFloat(in.Float(3)))
		return sb.String()
	case isa.OpDefI:
		fmt.Fprintf(&sb, "defi %s, %d, %d, %d, %d", Register(v, in.Dst), in.Int(0), in.Int(1), in.Int(2), in.Int(3))
		return sb.String()
	case isa.OpDefB:
		fmt.Fprintf(&sb, "defb %s, %t", Register(v, in.Dst), in.Bool())
		return sb.String()
	}

	sb.WriteString(Mnemonic(v, in))
	if in.Dst != nil {
		sb.WriteString(dstSuffix(v, in.Dst))
	}

	sep := " "
	if in.Dst != nil {
		sb.WriteString(sep)
		sb.WriteString(Dest(v, in.Dst))
		sep = ", "
	}
	for i := range in.Src {
		sb.WriteString(sep)
		sb.WriteString(Source(v, &in.Src[i]))
		sep = ", "
	}
	return sb.String()
}

func declaration(v isa.Version, in *bytecode.Instruction) string {
	dst := in.Dst
	if dst.Type == bytecode.RegSampler {
		if tt := in.Decl.TextureType; tt != bytecode.TextureUnknown {
			return fmt.Sprintf("dcl_%s %s", tt, Register(v, dst))
		}
		return "dcl " + Register(v, dst)
	}

	name := "dcl"
	if v.IsVertex() || v.AtLeast(3, 0) {
		name += "_" + in.Decl.Usage.String()
		if in.Decl.UsageIndex > 0 {
			name += fmt.Sprint(in.Decl.UsageIndex)
		}
	}
	return name + dstSuffix(v, dst) + " " + Dest(v, dst)
}

// formatFloat formats a float with at least one decimal digit.
func formatFloat(f float32) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

func opensBlock(op isa.Opcode) bool {
	switch op {
	case isa.OpIf, isa.OpIfC, isa.OpLoop, isa.OpRep, isa.OpElse, isa.OpLabel:
		return true
	}
	return false
}

func closesBlock(op isa.Opcode) bool {
	switch op {
	case isa.OpEndIf, isa.OpEndLoop, isa.OpEndRep, isa.OpElse:
		return true
	}
	return false
}

// Program lists the version line and one line per instruction.
func Program(prog *bytecode.Program) string {
	return ProgramWith(prog, DefaultOptions())
}

// ProgramWith lists prog using opts.
func ProgramWith(prog *bytecode.Program, opts Options) string {
	if opts.IndentString == "" {
		opts.IndentString = "    "
	}
	var sb strings.Builder
	sb.WriteString(prog.Version.String())
	sb.WriteByte('\n')

	depth := 0
	for i := range prog.Instructions {
		in := &prog.Instructions[i]
		if opts.Indent && closesBlock(in.Opcode) && depth > 0 {
			depth--
		}
		if opts.Offsets {
			fmt.Fprintf(&sb, "%04d: ", in.Offset)
		}
		if opts.Indent {
			if in.Opcode == isa.OpLabel {
				depth = 0
			}
			sb.WriteString(strings.Repeat(opts.IndentString, depth))
		}
		sb.WriteString(Instruction(prog.Version, in))
		sb.WriteByte('\n')
		if opts.Indent && opensBlock(in.Opcode) {
			depth++
		}
		if opts.Indent && in.Opcode == isa.OpRet && depth == 1 {
			depth = 0
		}
	}
	return sb.String()
}

// Tokens disassembles a raw stream, skipping unknown opcodes with a
// diagnostic. Malformed streams return the listing so far and the error.
func Tokens(tokens []uint32, sink diag.Sink) (string, error) {
	d := bytecode.NewDecoder(tokens, bytecode.Options{SkipUnknown: true, Sink: sink})
	prog := &bytecode.Program{}
	for {
		in, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			prog.Version = d.Version()
			return Program(prog), err
		}
		prog.Instructions = append(prog.Instructions, *in)
	}
	prog.Version = d.Version()
	prog.Words = d.Offset()
	return Program(prog), nil
}
