// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package isa

// Backends is the set of backends that can handle an instruction.
type Backends uint8

const (
	// BackendInterp is the software interpreter.
	BackendInterp Backends = 1 << iota

	// BackendARB is the ARB_vertex_program / ARB_fragment_program generator.
	BackendARB

	// BackendGLSL is the higher-level GLSL generator.
	BackendGLSL

	// BackendAll is every backend.
	BackendAll = BackendInterp | BackendARB | BackendGLSL
)

// Has reports whether b includes all backends in other.
func (b Backends) Has(other Backends) bool {
	return b&other == other
}

// String lists the backend names separated by '|'.
func (b Backends) String() string {
	if b == 0 {
		return "none"
	}
	s := ""
	for _, p := range []struct {
		bit  Backends
		name string
	}{{BackendInterp, "interp"}, {BackendARB, "arb"}, {BackendGLSL, "glsl"}} {
		if b&p.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += p.name
		}
	}
	return s
}

// Flags classify an instruction.
type Flags uint8

const (
	// FlagMacro marks instructions the ARB generator expands into a fixed
	// sequence of target instructions.
	FlagMacro Flags = 1 << iota

	// FlagFlow marks flow-control instructions.
	FlagFlow

	// FlagTexture marks texture addressing and sampling instructions.
	FlagTexture

	// FlagDeclaration marks dcl, def, defi and defb. They carry no
	// register reads or writes and are skipped by the usage pre-pass.
	FlagDeclaration

	// FlagComparison marks instructions whose control bits hold a Comparison.
	FlagComparison
)

// HigherLevelOnly is the ARB mnemonic of instructions the assembly dialect
// cannot express.
const HigherLevelOnly = "<higher-level>"

// Instruction describes one opcode for one range of profile versions.
type Instruction struct {
	Opcode   Opcode
	Name     string
	ARB      string // empty means the instruction emits no line
	Params   int    // parameter tokens: destination plus sources
	HasDest  bool
	Stages   Stage
	Versions VersionRange
	Backends Backends
	Flags    Flags
}

// Sources returns the number of source parameters.
func (in *Instruction) Sources() int {
	if in.HasDest {
		return in.Params - 1
	}
	return in.Params
}

// Is reports whether all flags in f are set.
func (in *Instruction) Is(f Flags) bool {
	return in.Flags&f == f
}

// Supports reports whether backend b can handle the instruction.
func (in *Instruction) Supports(b Backends) bool {
	return in.Backends.Has(b)
}

// Applies reports whether the entry covers version v.
func (in *Instruction) Applies(v Version) bool {
	return in.Stages&v.Stage != 0 && in.Versions.Contains(v)
}

const (
	interpGLSL = BackendInterp | BackendGLSL
	interpARB  = BackendInterp | BackendARB
)

var (
	ps1x     = Between(1, 0, 1, 3)
	ps12to13 = Between(1, 2, 1, 3)
	ps14     = Between(1, 4, 1, 4)
	sm1      = Between(1, 0, 1, 4)
	sm2      = Between(2, 0, 2, 1)
	sm2up    = From(2, 0)
	sm2x     = From(2, 1)
	sm3      = From(3, 0)
)

// table is the process-wide instruction set. Entries with the same opcode
// must have disjoint (stage, version) coverage.
var table = [...]Instruction{
	{OpNop, "nop", "", 0, false, StageAll, Unbounded, BackendAll, 0},
	{OpMov, "mov", "MOV", 2, true, StageAll, Unbounded, BackendAll, 0},
	{OpAdd, "add", "ADD", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpSub, "sub", "SUB", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpMad, "mad", "MAD", 4, true, StageAll, Unbounded, BackendAll, 0},
	{OpMul, "mul", "MUL", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpRcp, "rcp", "RCP", 2, true, StageAll, Unbounded, BackendAll, 0},
	{OpRsq, "rsq", "RSQ", 2, true, StageAll, Unbounded, BackendAll, 0},
	{OpDp3, "dp3", "DP3", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpDp4, "dp4", "DP4", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpMin, "min", "MIN", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpMax, "max", "MAX", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpSlt, "slt", "SLT", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpSge, "sge", "SGE", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpExp, "exp", "EX2", 2, true, StageAll, Unbounded, BackendAll, 0},
	{OpLog, "log", "LG2", 2, true, StageAll, Unbounded, BackendAll, 0},
	{OpLit, "lit", "LIT", 2, true, StageAll, Unbounded, BackendAll, 0},
	{OpDst, "dst", "DST", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpLrp, "lrp", "LRP", 4, true, StageAll, Unbounded, BackendAll, 0},
	{OpFrc, "frc", "FRC", 2, true, StageAll, Unbounded, BackendAll, 0},
	{OpM4x4, "m4x4", "DP4", 3, true, StageAll, Unbounded, BackendAll, FlagMacro},
	{OpM4x3, "m4x3", "DP4", 3, true, StageAll, Unbounded, BackendAll, FlagMacro},
	{OpM3x4, "m3x4", "DP3", 3, true, StageAll, Unbounded, BackendAll, FlagMacro},
	{OpM3x3, "m3x3", "DP3", 3, true, StageAll, Unbounded, BackendAll, FlagMacro},
	{OpM3x2, "m3x2", "DP3", 3, true, StageAll, Unbounded, BackendAll, FlagMacro},

	{OpCall, "call", HigherLevelOnly, 1, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpCallNZ, "callnz", HigherLevelOnly, 2, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpLoop, "loop", HigherLevelOnly, 2, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpRet, "ret", HigherLevelOnly, 0, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpEndLoop, "endloop", HigherLevelOnly, 0, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpLabel, "label", HigherLevelOnly, 1, false, StageAll, sm2up, interpGLSL, FlagFlow},

	{OpDcl, "dcl", "", 2, true, StageAll, Unbounded, BackendAll, FlagDeclaration},
	{OpPow, "pow", "POW", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpCrs, "crs", "XPD", 3, true, StageAll, Unbounded, BackendAll, 0},
	{OpSgn, "sgn", HigherLevelOnly, 4, true, StageVertex, sm2, interpGLSL, 0},
	{OpSgn, "sgn", HigherLevelOnly, 2, true, StageAll, sm3, interpGLSL, 0},
	{OpAbs, "abs", "ABS", 2, true, StageAll, Unbounded, BackendAll, 0},
	{OpNrm, "nrm", "DP3", 2, true, StageAll, Unbounded, BackendAll, FlagMacro},
	{OpSinCos, "sincos", HigherLevelOnly, 4, true, StageVertex, sm2, interpGLSL, 0},
	{OpSinCos, "sincos", "SCS", 4, true, StagePixel, sm2, BackendAll, 0},
	{OpSinCos, "sincos", HigherLevelOnly, 2, true, StageAll, sm3, interpGLSL, 0},
	{OpRep, "rep", HigherLevelOnly, 1, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpEndRep, "endrep", HigherLevelOnly, 0, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpIf, "if", HigherLevelOnly, 1, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpIfC, "ifc", HigherLevelOnly, 2, false, StageAll, sm2x, interpGLSL, FlagFlow | FlagComparison},
	{OpElse, "else", HigherLevelOnly, 0, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpEndIf, "endif", HigherLevelOnly, 0, false, StageAll, sm2up, interpGLSL, FlagFlow},
	{OpBreak, "break", HigherLevelOnly, 0, false, StageAll, sm2x, interpGLSL, FlagFlow},
	{OpBreakC, "breakc", HigherLevelOnly, 2, false, StageAll, sm2x, interpGLSL, FlagFlow | FlagComparison},
	{OpMova, "mova", "ARL", 2, true, StageVertex, sm2up, BackendAll, 0},
	{OpDefB, "defb", "", 2, true, StageAll, sm2up, BackendAll, FlagDeclaration},
	{OpDefI, "defi", "", 5, true, StageAll, sm2up, BackendAll, FlagDeclaration},

	{OpTexCoord, "texcoord", "MOV", 1, true, StagePixel, ps1x, BackendAll, FlagTexture},
	{OpTexCoord, "texcrd", "MOV", 2, true, StagePixel, ps14, BackendAll, FlagTexture},
	{OpTexKill, "texkill", "KIL", 1, true, StagePixel, Unbounded, BackendAll, FlagTexture},
	{OpTex, "tex", "TEX", 1, true, StagePixel, ps1x, BackendAll, FlagTexture},
	{OpTex, "texld", "TEX", 2, true, StagePixel, ps14, BackendAll, FlagTexture},
	{OpTex, "texld", "TEX", 3, true, StagePixel, sm2up, BackendAll, FlagTexture},
	{OpTexBem, "texbem", "TEX", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexBemL, "texbeml", "TEX", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexReg2AR, "texreg2ar", "TEX", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexReg2GB, "texreg2gb", "TEX", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexM3x2Pad, "texm3x2pad", "DP3", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexM3x2Tex, "texm3x2tex", "TEX", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexM3x3Pad, "texm3x3pad", "DP3", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexM3x3Tex, "texm3x3tex", "TEX", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexM3x3Diff, "texm3x3diff", "TEX", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexM3x3Spec, "texm3x3spec", "TEX", 3, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpTexM3x3VSpec, "texm3x3vspec", "TEX", 2, true, StagePixel, ps1x, interpARB, FlagTexture | FlagMacro},
	{OpExpP, "expp", "EXP", 2, true, StageVertex, Unbounded, BackendAll, 0},
	{OpLogP, "logp", "LOG", 2, true, StageVertex, Unbounded, BackendAll, 0},
	{OpCnd, "cnd", "CMP", 4, true, StagePixel, sm1, BackendAll, FlagMacro},
	{OpDef, "def", "", 5, true, StageAll, Unbounded, BackendAll, FlagDeclaration},
	{OpTexReg2RGB, "texreg2rgb", "TEX", 2, true, StagePixel, ps12to13, interpARB, FlagTexture | FlagMacro},
	{OpTexDp3Tex, "texdp3tex", "TEX", 2, true, StagePixel, ps12to13, interpARB, FlagTexture | FlagMacro},
	{OpTexM3x2Depth, "texm3x2depth", "DP3", 2, true, StagePixel, Between(1, 3, 1, 3), interpARB, FlagTexture | FlagMacro},
	{OpTexDp3, "texdp3", "DP3", 2, true, StagePixel, ps12to13, interpARB, FlagTexture | FlagMacro},
	{OpTexM3x3, "texm3x3", "DP3", 2, true, StagePixel, ps12to13, interpARB, FlagTexture | FlagMacro},
	{OpTexDepth, "texdepth", "RCP", 1, true, StagePixel, ps14, interpARB, FlagTexture | FlagMacro},
	{OpCmp, "cmp", "CMP", 4, true, StagePixel, From(1, 2), BackendAll, 0},
	{OpBem, "bem", "MAD", 3, true, StagePixel, ps14, interpARB, FlagMacro},
	{OpDp2Add, "dp2add", "DP3", 4, true, StagePixel, sm2up, BackendAll, FlagMacro},
	{OpDsx, "dsx", HigherLevelOnly, 2, true, StagePixel, sm2x, BackendGLSL, 0},
	{OpDsy, "dsy", HigherLevelOnly, 2, true, StagePixel, sm2x, BackendGLSL, 0},
	{OpTexLdd, "texldd", HigherLevelOnly, 5, true, StagePixel, sm2x, 0, FlagTexture},
	{OpSetP, "setp", HigherLevelOnly, 3, true, StageAll, sm2x, BackendGLSL, FlagComparison},
	{OpTexLdl, "texldl", HigherLevelOnly, 3, true, StageAll, sm3, interpGLSL, FlagTexture},
	{OpBreakP, "breakp", HigherLevelOnly, 1, false, StageAll, sm2x, BackendGLSL, FlagFlow},

	{OpPhase, "phase", "", 0, false, StagePixel, ps14, BackendAll, 0},
}

// Lookup returns the table entry for op that applies to version v.
func Lookup(op Opcode, v Version) (*Instruction, bool) {
	for i := range table {
		e := &table[i]
		if e.Opcode == op && e.Applies(v) {
			return e, true
		}
	}
	return nil, false
}

// Closest returns an entry for op when no entry applies to v exactly,
// preferring one of the same stage. It is used to keep decoding an
// instruction that appears outside its legal version range. The second
// result is false when the opcode is not in the table at all.
func Closest(op Opcode, v Version) (*Instruction, bool) {
	var fallback *Instruction
	for i := range table {
		e := &table[i]
		if e.Opcode != op {
			continue
		}
		if e.Stages&v.Stage != 0 {
			return e, true
		}
		if fallback == nil {
			fallback = e
		}
	}
	return fallback, fallback != nil
}

// Entries returns a copy of the table.
func Entries() []Instruction {
	out := make([]Instruction, len(table))
	copy(out, table[:])
	return out
}
