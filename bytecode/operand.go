// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

// RegisterType is the register file an operand refers to.
type RegisterType uint8

// Register types. Some values are shared between stages and profiles.
const (
	RegTemp        RegisterType = 0
	RegInput       RegisterType = 1
	RegConst       RegisterType = 2
	RegAddr        RegisterType = 3 // a# in vertex shaders
	RegRastOut     RegisterType = 4
	RegAttrOut     RegisterType = 5
	RegTexCrdOut   RegisterType = 6 // oT# before vs_3_0
	RegConstInt    RegisterType = 7
	RegColorOut    RegisterType = 8
	RegDepthOut    RegisterType = 9
	RegSampler     RegisterType = 10
	RegConst2      RegisterType = 11
	RegConst3      RegisterType = 12
	RegConst4      RegisterType = 13
	RegConstBool   RegisterType = 14
	RegLoop        RegisterType = 15
	RegTempFloat16 RegisterType = 16
	RegMisc        RegisterType = 17
	RegLabel       RegisterType = 18
	RegPredicate   RegisterType = 19

	RegTexture = RegAddr      // t# in pixel shaders
	RegOutput  = RegTexCrdOut // o# in vs_3_0
)

// Indices of RegRastOut registers.
const (
	RastPosition  = 0
	RastFog       = 1
	RastPointSize = 2
)

// Indices of RegMisc registers.
const (
	MiscPosition = 0
	MiscFace     = 1
)

// WriteMask selects destination components: bit 0 is x, bit 3 is w.
type WriteMask uint8

// MaskAll writes every component.
const MaskAll WriteMask = 0xF

// Has reports whether component c (0..3) is written.
func (m WriteMask) Has(c int) bool {
	return m&(1<<c) != 0
}

// Count returns the number of written components.
func (m WriteMask) Count() int {
	n := 0
	for c := 0; c < 4; c++ {
		if m.Has(c) {
			n++
		}
	}
	return n
}

// String returns ".xyz" style text, or "" when all components are written.
func (m WriteMask) String() string {
	if m == MaskAll || m == 0 {
		return ""
	}
	s := "."
	for c := 0; c < 4; c++ {
		if m.Has(c) {
			s += string(componentNames[c])
		}
	}
	return s
}

const componentNames = "xyzw"

// ComponentName returns 'x', 'y', 'z' or 'w'.
func ComponentName(c uint8) byte {
	return componentNames[c&3]
}

// Swizzle selects a source component for each lane, two bits per lane.
type Swizzle uint8

// Identity is the .xyzw swizzle.
const Identity Swizzle = 0xE4

// Component returns the source component read by lane (0..3).
func (s Swizzle) Component(lane int) uint8 {
	return uint8(s>>(2*lane)) & 3
}

// Replicate returns the swizzle reading component c in every lane.
func Replicate(c uint8) Swizzle {
	c &= 3
	return Swizzle(c | c<<2 | c<<4 | c<<6)
}

// MakeSwizzle builds a swizzle from four components.
func MakeSwizzle(x, y, z, w uint8) Swizzle {
	return Swizzle(x&3 | (y&3)<<2 | (z&3)<<4 | (w&3)<<6)
}

// IsReplicate reports whether every lane reads the same component.
func (s Swizzle) IsReplicate() bool {
	return s == Replicate(s.Component(0))
}

// Compose returns the swizzle equivalent to applying s first and then t.
func (s Swizzle) Compose(t Swizzle) Swizzle {
	return MakeSwizzle(
		s.Component(int(t.Component(0))),
		s.Component(int(t.Component(1))),
		s.Component(int(t.Component(2))),
		s.Component(int(t.Component(3))),
	)
}

// String returns "" for identity, ".x" for replicates and ".yzwx" otherwise.
func (s Swizzle) String() string {
	if s == Identity {
		return ""
	}
	if s.IsReplicate() {
		return "." + string(ComponentName(s.Component(0)))
	}
	b := []byte{'.', 0, 0, 0, 0}
	for lane := 0; lane < 4; lane++ {
		b[lane+1] = ComponentName(s.Component(lane))
	}
	return string(b)
}

// SrcMod is a source modifier, applied after the swizzle.
type SrcMod uint8

// Source modifiers.
const (
	SrcNone    SrcMod = 0
	SrcNeg     SrcMod = 1
	SrcBias    SrcMod = 2
	SrcBiasNeg SrcMod = 3
	SrcSign    SrcMod = 4 // _bx2
	SrcSignNeg SrcMod = 5
	SrcComp    SrcMod = 6 // 1-x
	SrcX2      SrcMod = 7
	SrcX2Neg   SrcMod = 8
	SrcDz      SrcMod = 9
	SrcDw      SrcMod = 10
	SrcAbs     SrcMod = 11
	SrcAbsNeg  SrcMod = 12
	SrcNot     SrcMod = 13
)

var srcModNames = [...]string{
	"none", "neg", "bias", "biasneg", "sign", "signneg", "comp",
	"x2", "x2neg", "dz", "dw", "abs", "absneg", "not",
}

func (m SrcMod) String() string {
	if int(m) < len(srcModNames) {
		return srcModNames[m]
	}
	return "unknown"
}

// DstMod is the set of destination result modifiers.
type DstMod uint8

// Destination modifier bits.
const (
	DstSaturate         DstMod = 1
	DstPartialPrecision DstMod = 2
	DstCentroid         DstMod = 4
)

// RelativeAddress is the register used to offset a relatively addressed
// operand.
type RelativeAddress struct {
	Type      RegisterType
	Index     uint32
	Component uint8
}

// Operand is a decoded parameter token.
type Operand struct {
	Type  RegisterType
	Index uint32

	// Relative is set for relatively addressed operands. RelAddr is nil for
	// shader model 1.x where the offset is implicitly a0.x.
	Relative bool
	RelAddr  *RelativeAddress

	// Destination fields.
	Mask  WriteMask
	Mod   DstMod
	Shift int8

	// Source fields.
	Swizzle Swizzle
	SrcMod  SrcMod

	Raw uint32
}

// Parameter token layout.
const (
	paramBit         uint32 = 1 << 31
	regNumMask       uint32 = 0x7FF
	regTypeLowMask   uint32 = 0x70000000
	regTypeHighMask  uint32 = 0x00001800
	relativeBit      uint32 = 1 << 13
	writeMaskShift          = 16
	dstModShift             = 20
	shiftShift              = 24
	swizzleShift            = 16
	srcModShift             = 24
	relComponentMask uint32 = 0x3
)

func registerType(word uint32) RegisterType {
	return RegisterType((word&regTypeLowMask)>>28 | (word&regTypeHighMask)>>8)
}

// DecodeDest decodes a destination parameter token.
func DecodeDest(word uint32) Operand {
	shift := int8(word>>shiftShift&0xF) << 4 >> 4
	return Operand{
		Type:     registerType(word),
		Index:    word & regNumMask,
		Relative: word&relativeBit != 0,
		Mask:     WriteMask(word >> writeMaskShift & 0xF),
		Mod:      DstMod(word >> dstModShift & 0xF),
		Shift:    shift,
		Swizzle:  Identity,
		Raw:      word,
	}
}

// DecodeSource decodes a source parameter token.
func DecodeSource(word uint32) Operand {
	return Operand{
		Type:     registerType(word),
		Index:    word & regNumMask,
		Relative: word&relativeBit != 0,
		Mask:     MaskAll,
		Swizzle:  Swizzle(word >> swizzleShift & 0xFF),
		SrcMod:   SrcMod(word >> srcModShift & 0xF),
		Raw:      word,
	}
}

// decodeRelative decodes an address-register token of shader model 2.0+.
// The component is taken from the lane 0 swizzle selector.
func decodeRelative(word uint32) *RelativeAddress {
	return &RelativeAddress{
		Type:      registerType(word),
		Index:     word & regNumMask,
		Component: uint8(word>>swizzleShift) & uint8(relComponentMask),
	}
}

// EncodeRegister returns the type and number bits of a parameter token,
// with bit 31 set.
func EncodeRegister(t RegisterType, index uint32) uint32 {
	tt := uint32(t)
	return paramBit | (tt&7)<<28 | (tt&0x18)<<8 | index&regNumMask
}

// ConstIndex returns the flat float-constant index for RegConst..RegConst4.
func (o Operand) ConstIndex() uint32 {
	switch o.Type {
	case RegConst2:
		return o.Index + 2048
	case RegConst3:
		return o.Index + 4096
	case RegConst4:
		return o.Index + 6144
	default:
		return o.Index
	}
}

// IsConstFloat reports whether the operand is a float constant register.
func (o Operand) IsConstFloat() bool {
	switch o.Type {
	case RegConst, RegConst2, RegConst3, RegConst4:
		return true
	}
	return false
}
