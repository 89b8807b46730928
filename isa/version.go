// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package isa

import "fmt"

// Stage identifies the programmable pipeline stage a shader runs in.
// Stages form a bit set so table entries can apply to both.
type Stage uint8

const (
	// StageVertex is the vertex shader stage (vs_*).
	StageVertex Stage = 1 << iota

	// StagePixel is the pixel (fragment) shader stage (ps_*).
	StagePixel

	// StageAll matches both stages.
	StageAll = StageVertex | StagePixel
)

// String returns the profile prefix for the stage ("vs" or "ps").
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vs"
	case StagePixel:
		return "ps"
	case StageAll:
		return "vs|ps"
	default:
		return "unknown"
	}
}

// Version is a shader profile version such as vs_1_1 or ps_2_0.
type Version struct {
	Stage Stage
	Major uint8
	Minor uint8
}

// Profiles understood by the decoder.
var (
	VS1_1 = Version{Stage: StageVertex, Major: 1, Minor: 1}
	VS2_0 = Version{Stage: StageVertex, Major: 2, Minor: 0}
	VS2_X = Version{Stage: StageVertex, Major: 2, Minor: 1}
	VS3_0 = Version{Stage: StageVertex, Major: 3, Minor: 0}

	PS1_0 = Version{Stage: StagePixel, Major: 1, Minor: 0}
	PS1_1 = Version{Stage: StagePixel, Major: 1, Minor: 1}
	PS1_2 = Version{Stage: StagePixel, Major: 1, Minor: 2}
	PS1_3 = Version{Stage: StagePixel, Major: 1, Minor: 3}
	PS1_4 = Version{Stage: StagePixel, Major: 1, Minor: 4}
	PS2_0 = Version{Stage: StagePixel, Major: 2, Minor: 0}
	PS2_X = Version{Stage: StagePixel, Major: 2, Minor: 1}
	PS3_0 = Version{Stage: StagePixel, Major: 3, Minor: 0}
)

// Version token prefixes in the upper half-word.
const (
	vertexVersionPrefix uint32 = 0xFFFE0000
	pixelVersionPrefix  uint32 = 0xFFFF0000
)

// ParseVersionToken decodes a version token. The second result is false when
// the word is not a version token.
func ParseVersionToken(token uint32) (Version, bool) {
	var stage Stage
	switch token & 0xFFFF0000 {
	case vertexVersionPrefix:
		stage = StageVertex
	case pixelVersionPrefix:
		stage = StagePixel
	default:
		return Version{}, false
	}
	return Version{
		Stage: stage,
		Major: uint8(token >> 8 & 0xFF),
		Minor: uint8(token & 0xFF),
	}, true
}

// Token encodes the version as a version token.
func (v Version) Token() uint32 {
	prefix := vertexVersionPrefix
	if v.Stage == StagePixel {
		prefix = pixelVersionPrefix
	}
	return prefix | uint32(v.Major)<<8 | uint32(v.Minor)
}

// String returns the profile name, e.g. "vs_1_1", "ps_2_0" or "ps_2_x".
func (v Version) String() string {
	if v.Major == 2 && v.Minor == 1 {
		return fmt.Sprintf("%s_2_x", v.Stage)
	}
	return fmt.Sprintf("%s_%d_%d", v.Stage, v.Major, v.Minor)
}

// packed returns major<<8|minor for ordering comparisons.
func (v Version) packed() uint16 {
	return uint16(v.Major)<<8 | uint16(v.Minor)
}

// AtLeast reports whether v is major.minor or newer, ignoring the stage.
func (v Version) AtLeast(major, minor uint8) bool {
	return v.packed() >= uint16(major)<<8|uint16(minor)
}

// Before reports whether v is older than major.minor, ignoring the stage.
func (v Version) Before(major, minor uint8) bool {
	return !v.AtLeast(major, minor)
}

// IsPixel reports whether v is a pixel shader profile.
func (v Version) IsPixel() bool {
	return v.Stage == StagePixel
}

// IsVertex reports whether v is a vertex shader profile.
func (v Version) IsVertex() bool {
	return v.Stage == StageVertex
}

// HasLengthField reports whether instruction tokens carry the instruction
// length in bits 24-27. Shader model 2.0 introduced it.
func (v Version) HasLengthField() bool {
	return v.AtLeast(2, 0)
}

// HasRelativeToken reports whether relative addressing is encoded with an
// explicit address register token after the operand.
func (v Version) HasRelativeToken() bool {
	return v.AtLeast(2, 0)
}

// Known reports whether v is one of the profiles listed above.
func (v Version) Known() bool {
	switch v.Stage {
	case StageVertex:
		return v == VS1_1 || v == VS2_0 || v == VS2_X || v == VS3_0
	case StagePixel:
		return v.Major == 1 && v.Minor <= 4 || v == PS2_0 || v == PS2_X || v == PS3_0
	default:
		return false
	}
}

// RangeKind distinguishes bounded version ranges from the unbounded one.
type RangeKind uint8

const (
	// RangeUnbounded applies to every profile version.
	RangeUnbounded RangeKind = iota

	// RangeBounded applies to versions between Min and Max inclusive.
	RangeBounded
)

// VersionRange is the inclusive set of profile versions an instruction
// table entry applies to.
type VersionRange struct {
	Kind     RangeKind
	Min, Max uint16 // major<<8 | minor
}

// Unbounded is the range that matches every version.
var Unbounded = VersionRange{Kind: RangeUnbounded}

// Between returns the inclusive range minMajor.minMinor .. maxMajor.maxMinor.
func Between(minMajor, minMinor, maxMajor, maxMinor uint8) VersionRange {
	return VersionRange{
		Kind: RangeBounded,
		Min:  uint16(minMajor)<<8 | uint16(minMinor),
		Max:  uint16(maxMajor)<<8 | uint16(maxMinor),
	}
}

// From returns the range starting at major.minor with no upper limit.
func From(major, minor uint8) VersionRange {
	return Between(major, minor, 0xFF, 0xFF)
}

// Contains reports whether v lies within the range.
func (r VersionRange) Contains(v Version) bool {
	if r.Kind == RangeUnbounded {
		return true
	}
	p := v.packed()
	return p >= r.Min && p <= r.Max
}

// String renders the range for diagnostics, e.g. "1.0-1.3" or "any".
func (r VersionRange) String() string {
	if r.Kind == RangeUnbounded {
		return "any"
	}
	if r.Max == 0xFFFF {
		return fmt.Sprintf("%d.%d+", r.Min>>8, r.Min&0xFF)
	}
	return fmt.Sprintf("%d.%d-%d.%d", r.Min>>8, r.Min&0xFF, r.Max>>8, r.Max&0xFF)
}

// Limits lists the register file sizes of a profile.
type Limits struct {
	Temps     int
	Constants int
	Textures  int
	Samplers  int
	Address   int
}

// LimitsFor returns the register file sizes of the profile v.
func LimitsFor(v Version) Limits {
	if v.IsVertex() {
		switch {
		case v.AtLeast(3, 0):
			return Limits{Temps: 32, Constants: 256, Samplers: 4, Address: 1}
		case v.AtLeast(2, 0):
			return Limits{Temps: 12, Constants: 256, Address: 1}
		default:
			return Limits{Temps: 12, Constants: 96, Address: 1}
		}
	}
	switch {
	case v.AtLeast(3, 0):
		return Limits{Temps: 32, Constants: 224, Textures: 0, Samplers: 16}
	case v.AtLeast(2, 0):
		return Limits{Temps: 12, Constants: 32, Textures: 8, Samplers: 16}
	case v.AtLeast(1, 4):
		return Limits{Temps: 6, Constants: 8, Textures: 6, Samplers: 6}
	default:
		return Limits{Temps: 2, Constants: 8, Textures: 4, Samplers: 4}
	}
}
