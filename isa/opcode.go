// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package isa

import "fmt"

// Opcode is the 16-bit operation code in the low half of an instruction token.
type Opcode uint16

// Opcode values.
const (
	OpNop     Opcode = 0
	OpMov     Opcode = 1
	OpAdd     Opcode = 2
	OpSub     Opcode = 3
	OpMad     Opcode = 4
	OpMul     Opcode = 5
	OpRcp     Opcode = 6
	OpRsq     Opcode = 7
	OpDp3     Opcode = 8
	OpDp4     Opcode = 9
	OpMin     Opcode = 10
	OpMax     Opcode = 11
	OpSlt     Opcode = 12
	OpSge     Opcode = 13
	OpExp     Opcode = 14
	OpLog     Opcode = 15
	OpLit     Opcode = 16
	OpDst     Opcode = 17
	OpLrp     Opcode = 18
	OpFrc     Opcode = 19
	OpM4x4    Opcode = 20
	OpM4x3    Opcode = 21
	OpM3x4    Opcode = 22
	OpM3x3    Opcode = 23
	OpM3x2    Opcode = 24
	OpCall    Opcode = 25
	OpCallNZ  Opcode = 26
	OpLoop    Opcode = 27
	OpRet     Opcode = 28
	OpEndLoop Opcode = 29
	OpLabel   Opcode = 30
	OpDcl     Opcode = 31
	OpPow     Opcode = 32
	OpCrs     Opcode = 33
	OpSgn     Opcode = 34
	OpAbs     Opcode = 35
	OpNrm     Opcode = 36
	OpSinCos  Opcode = 37
	OpRep     Opcode = 38
	OpEndRep  Opcode = 39
	OpIf      Opcode = 40
	OpIfC     Opcode = 41
	OpElse    Opcode = 42
	OpEndIf   Opcode = 43
	OpBreak   Opcode = 44
	OpBreakC  Opcode = 45
	OpMova    Opcode = 46
	OpDefB    Opcode = 47
	OpDefI    Opcode = 48

	OpTexCoord     Opcode = 64
	OpTexKill      Opcode = 65
	OpTex          Opcode = 66
	OpTexBem       Opcode = 67
	OpTexBemL      Opcode = 68
	OpTexReg2AR    Opcode = 69
	OpTexReg2GB    Opcode = 70
	OpTexM3x2Pad   Opcode = 71
	OpTexM3x2Tex   Opcode = 72
	OpTexM3x3Pad   Opcode = 73
	OpTexM3x3Tex   Opcode = 74
	OpTexM3x3Diff  Opcode = 75
	OpTexM3x3Spec  Opcode = 76
	OpTexM3x3VSpec Opcode = 77
	OpExpP         Opcode = 78
	OpLogP         Opcode = 79
	OpCnd          Opcode = 80
	OpDef          Opcode = 81
	OpTexReg2RGB   Opcode = 82
	OpTexDp3Tex    Opcode = 83
	OpTexM3x2Depth Opcode = 84
	OpTexDp3       Opcode = 85
	OpTexM3x3      Opcode = 86
	OpTexDepth     Opcode = 87
	OpCmp          Opcode = 88
	OpBem          Opcode = 89
	OpDp2Add       Opcode = 90
	OpDsx          Opcode = 91
	OpDsy          Opcode = 92
	OpTexLdd       Opcode = 93
	OpSetP         Opcode = 94
	OpTexLdl       Opcode = 95
	OpBreakP       Opcode = 96

	OpPhase   Opcode = 0xFFFD
	OpComment Opcode = 0xFFFE
	OpEnd     Opcode = 0xFFFF
)

// String returns the canonical mnemonic, or "op<N>" for unknown opcodes.
func (op Opcode) String() string {
	for i := range table {
		if table[i].Opcode == op {
			return table[i].Name
		}
	}
	switch op {
	case OpComment:
		return "comment"
	case OpEnd:
		return "end"
	}
	return fmt.Sprintf("op%d", uint16(op))
}

// Comparison is the comparison function carried in the control bits of
// ifc, breakc and setp.
type Comparison uint8

// Comparison values.
const (
	CmpNone Comparison = 0
	CmpGT   Comparison = 1
	CmpEQ   Comparison = 2
	CmpGE   Comparison = 3
	CmpLT   Comparison = 4
	CmpNE   Comparison = 5
	CmpLE   Comparison = 6
)

// String returns the disassembly suffix without the underscore.
func (c Comparison) String() string {
	switch c {
	case CmpGT:
		return "gt"
	case CmpEQ:
		return "eq"
	case CmpGE:
		return "ge"
	case CmpLT:
		return "lt"
	case CmpNE:
		return "ne"
	case CmpLE:
		return "le"
	default:
		return ""
	}
}

// Eval applies the comparison to a and b.
func (c Comparison) Eval(a, b float32) bool {
	switch c {
	case CmpGT:
		return a > b
	case CmpEQ:
		return a == b
	case CmpGE:
		return a >= b
	case CmpLT:
		return a < b
	case CmpNE:
		return a != b
	case CmpLE:
		return a <= b
	default:
		return false
	}
}

// Control bits of texld in shader model 2.0 and later.
const (
	TexLdProject uint8 = 0x01
	TexLdBias    uint8 = 0x02
)
