// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import "testing"

func TestDecodeDest(t *testing.T) {
	tests := []struct {
		name  string
		param Param
		typ   RegisterType
		index uint32
		mask  WriteMask
		mod   DstMod
		shift int8
	}{
		{"temp", Dst(RegTemp, 3), RegTemp, 3, MaskAll, 0, 0},
		{"masked", Dst(RegTemp, 0).Mask(0x3), RegTemp, 0, 0x3, 0, 0},
		{"saturate", Dst(RegColorOut, 0).Sat(), RegColorOut, 0, MaskAll, DstSaturate, 0},
		{"x2", Dst(RegTemp, 1).Shift(1), RegTemp, 1, MaskAll, 0, 1},
		{"d8", Dst(RegTemp, 1).Shift(-3), RegTemp, 1, MaskAll, 0, -3},
		{"sampler", Dst(RegSampler, 15), RegSampler, 15, MaskAll, 0, 0},
		{"predicate", Dst(RegPredicate, 0), RegPredicate, 0, MaskAll, 0, 0},
		{"const4", Dst(RegConst4, 7).PP(), RegConst4, 7, MaskAll, DstPartialPrecision, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := DecodeDest(uint32(tt.param))
			if op.Type != tt.typ || op.Index != tt.index {
				t.Errorf("register = %d/%d, want %d/%d", op.Type, op.Index, tt.typ, tt.index)
			}
			if op.Mask != tt.mask || op.Mod != tt.mod || op.Shift != tt.shift {
				t.Errorf("mask/mod/shift = %#x/%d/%d, want %#x/%d/%d", op.Mask, op.Mod, op.Shift, tt.mask, tt.mod, tt.shift)
			}
		})
	}
}

func TestDecodeSource(t *testing.T) {
	op := DecodeSource(uint32(Src(RegConst, 12).Swz(Replicate(3)).Mod(SrcBiasNeg)))
	if op.Type != RegConst || op.Index != 12 {
		t.Errorf("register = %d/%d, want const/12", op.Type, op.Index)
	}
	if op.Swizzle != Replicate(3) || op.SrcMod != SrcBiasNeg {
		t.Errorf("swizzle/mod = %#x/%v", op.Swizzle, op.SrcMod)
	}
}

func TestSwizzleString(t *testing.T) {
	tests := []struct {
		swz  Swizzle
		want string
	}{
		{Identity, ""},
		{Replicate(0), ".x"},
		{Replicate(3), ".w"},
		{MakeSwizzle(1, 2, 3, 0), ".yzwx"},
		{MakeSwizzle(0, 1, 2, 2), ".xyzz"},
	}
	for _, tt := range tests {
		if got := tt.swz.String(); got != tt.want {
			t.Errorf("Swizzle(%#x).String() = %q, want %q", uint8(tt.swz), got, tt.want)
		}
	}
}

func TestSwizzleCompose(t *testing.T) {
	s := MakeSwizzle(3, 2, 1, 0) // .wzyx
	if got := s.Compose(Replicate(0)); got != Replicate(3) {
		t.Errorf("wzyx then x = %q, want .w", got.String())
	}
	if got := Identity.Compose(s); got != s {
		t.Errorf("identity then wzyx = %q, want .wzyx", got.String())
	}
}

func TestWriteMaskString(t *testing.T) {
	tests := []struct {
		mask WriteMask
		want string
	}{
		{MaskAll, ""},
		{0x1, ".x"},
		{0x3, ".xy"},
		{0x8, ".w"},
		{0xD, ".xzw"},
	}
	for _, tt := range tests {
		if got := tt.mask.String(); got != tt.want {
			t.Errorf("WriteMask(%#x).String() = %q, want %q", uint8(tt.mask), got, tt.want)
		}
	}
}

func TestConstIndex(t *testing.T) {
	if got := DecodeSource(uint32(Src(RegConst3, 5))).ConstIndex(); got != 4101 {
		t.Errorf("ConstIndex = %d, want 4101", got)
	}
}
