// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp

import (
	"fmt"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/isa"
)

func (st *State) sample(unit uint32, target bytecode.TextureType, coord Vec4, lod float32) (Vec4, error) {
	if st.Sampler == nil {
		return Vec4{}, ErrNoSampler
	}
	if target == bytecode.TextureUnknown {
		target = bytecode.Texture2D
	}
	return st.Sampler.Sample(int(unit), target, coord, lod), nil
}

func (st *State) texCoord(op *bytecode.Operand, idx uint32) (Vec4, error) {
	if int(idx) >= len(st.TexCoords) {
		return Vec4{}, outOfRange(op, int(idx))
	}
	return st.TexCoords[idx], nil
}

func (st *State) macroError(in *bytecode.Instruction, format string, args ...any) error {
	st.texm = texmState{}
	return fmt.Errorf("%w: %s: %s", ErrMacroSequence, in.Name(), fmt.Sprintf(format, args...))
}

// texmRow computes one row of a texm3x2/texm3x3 sequence: the dot product of
// the texture coordinates of the destination stage with the source register.
func (st *State) texmRow(in *bytecode.Instruction, want int) error {
	if st.texm.row != want {
		return st.macroError(in, "row %d reached with %d rows pending", want, st.texm.row)
	}
	if want > 0 && in.Dst.Index != st.texm.regs[want-1]+1 {
		return st.macroError(in, "t%d does not follow t%d", in.Dst.Index, st.texm.regs[want-1])
	}
	tc, err := st.texCoord(in.Dst, in.Dst.Index)
	if err != nil {
		return err
	}
	n, err := st.Read(&in.Src[0])
	if err != nil {
		return err
	}
	st.texm.rows[want] = dot3(tc, n)
	st.texm.regs[want] = in.Dst.Index
	st.texm.row = want + 1
	return nil
}

func (st *State) texmNormal() Vec4 {
	return Vec4{st.texm.rows[0], st.texm.rows[1], st.texm.rows[2], 0}
}

func reflect(n, e Vec4) Vec4 {
	nn := dot3(n, n)
	if nn == 0 {
		return e.scale(-1)
	}
	k := 2 * dot3(n, e) / nn
	return n.scale(k).sub(e)
}

func (st *State) execTexture(in *bytecode.Instruction) error {
	if in.Opcode != isa.OpTexKill && in.Dst == nil {
		return fmt.Errorf("interp: %s has no destination", in.Name())
	}
	legacy := st.Version.Before(1, 4)

	// Every texture matrix instruction must be part of a sequence and
	// nothing else may interrupt one.
	if st.texm.row != 0 && !isTexm(in.Opcode) {
		return st.macroError(in, "sequence interrupted after %d rows", st.texm.row)
	}

	switch in.Opcode {
	case isa.OpTexCoord:
		if legacy {
			tc, err := st.texCoord(in.Dst, in.Dst.Index)
			if err != nil {
				return err
			}
			tc = tc.saturate()
			tc[3] = 1
			return st.Write(in.Dst, tc)
		}
		v, err := st.Read(&in.Src[0])
		if err != nil {
			return err
		}
		return st.Write(in.Dst, v)

	case isa.OpTexKill:
		var v Vec4
		var err error
		if legacy {
			v, err = st.texCoord(in.Dst, in.Dst.Index)
		} else {
			v, err = st.readRaw(in.Dst, 0)
		}
		if err != nil {
			return err
		}
		if v[0] < 0 || v[1] < 0 || v[2] < 0 {
			st.Killed = true
		}
		return nil

	case isa.OpTex:
		return st.execTex(in, legacy)

	case isa.OpTexLdl:
		coord, err := st.Read(&in.Src[0])
		if err != nil {
			return err
		}
		unit := in.Src[1].Index
		v, err := st.sample(unit, st.samplerType(unit), coord, coord[3])
		if err != nil {
			return err
		}
		return st.Write(in.Dst, v)

	case isa.OpTexLdd:
		return notImplemented(in)

	case isa.OpTexBem, isa.OpTexBemL:
		m := in.Dst.Index
		if int(m) >= len(st.BumpEnv) {
			return outOfRange(in.Dst, int(m))
		}
		tc, err := st.texCoord(in.Dst, m)
		if err != nil {
			return err
		}
		d, err := st.Read(&in.Src[0])
		if err != nil {
			return err
		}
		env := st.BumpEnv[m]
		coord := Vec4{
			tc[0] + env.Mat[0]*d[0] + env.Mat[2]*d[1],
			tc[1] + env.Mat[1]*d[0] + env.Mat[3]*d[1],
		}
		v, err := st.sample(m, bytecode.Texture2D, coord, 0)
		if err != nil {
			return err
		}
		if in.Opcode == isa.OpTexBemL {
			l := d[2]*env.LumScale + env.LumOffset
			v = Vec4{v[0] * l, v[1] * l, v[2] * l, v[3]}
		}
		return st.Write(in.Dst, v)

	case isa.OpTexReg2AR, isa.OpTexReg2GB, isa.OpTexReg2RGB:
		s, err := st.Read(&in.Src[0])
		if err != nil {
			return err
		}
		coord, target := Vec4{s[3], s[0]}, bytecode.Texture2D
		switch in.Opcode {
		case isa.OpTexReg2GB:
			coord = Vec4{s[1], s[2]}
		case isa.OpTexReg2RGB:
			coord, target = Vec4{s[0], s[1], s[2]}, bytecode.TextureVolume
		}
		v, err := st.sample(in.Dst.Index, target, coord, 0)
		if err != nil {
			return err
		}
		return st.Write(in.Dst, v)

	case isa.OpTexDp3, isa.OpTexDp3Tex:
		tc, err := st.texCoord(in.Dst, in.Dst.Index)
		if err != nil {
			return err
		}
		s, err := st.Read(&in.Src[0])
		if err != nil {
			return err
		}
		d := dot3(tc, s)
		if in.Opcode == isa.OpTexDp3 {
			return st.Write(in.Dst, Splat(d))
		}
		v, err := st.sample(in.Dst.Index, bytecode.Texture2D, Vec4{d}, 0)
		if err != nil {
			return err
		}
		return st.Write(in.Dst, v)

	case isa.OpTexM3x2Pad, isa.OpTexM3x3Pad:
		want := st.texm.row
		if in.Opcode == isa.OpTexM3x2Pad && want != 0 {
			return st.macroError(in, "texm3x2pad inside a sequence")
		}
		if in.Opcode == isa.OpTexM3x3Pad && want > 1 {
			return st.macroError(in, "third texm3x3pad")
		}
		return st.texmRow(in, want)

	case isa.OpTexM3x2Tex, isa.OpTexM3x2Depth:
		if err := st.texmRow(in, 1); err != nil {
			return err
		}
		r := st.texm.rows
		st.texm = texmState{}
		if in.Opcode == isa.OpTexM3x2Depth {
			if r[1] == 0 {
				st.Depth = 1
			} else {
				st.Depth = r[0] / r[1]
			}
			return nil
		}
		v, err := st.sample(in.Dst.Index, bytecode.Texture2D, Vec4{r[0], r[1]}, 0)
		if err != nil {
			return err
		}
		return st.Write(in.Dst, v)

	case isa.OpTexM3x3Tex, isa.OpTexM3x3Diff, isa.OpTexM3x3Spec, isa.OpTexM3x3VSpec, isa.OpTexM3x3:
		return st.execTexM3x3(in)

	case isa.OpTexDepth:
		r, err := st.readRaw(in.Dst, 0)
		if err != nil {
			return err
		}
		if r[1] == 0 {
			st.Depth = 1
		} else {
			st.Depth = r[0] / r[1]
		}
		return nil

	case isa.OpBem:
		a, err := st.Read(&in.Src[0])
		if err != nil {
			return err
		}
		b, err := st.Read(&in.Src[1])
		if err != nil {
			return err
		}
		if int(in.Dst.Index) >= len(st.BumpEnv) {
			return outOfRange(in.Dst, int(in.Dst.Index))
		}
		m := st.BumpEnv[in.Dst.Index].Mat
		r := Vec4{
			a[0] + m[0]*b[0] + m[2]*b[1],
			a[1] + m[1]*b[0] + m[3]*b[1],
		}
		return st.writeMasked(in.Dst, in.Dst.Mask&0x3, r)
	}
	return notImplemented(in)
}

func isTexm(op isa.Opcode) bool {
	switch op {
	case isa.OpTexM3x2Pad, isa.OpTexM3x2Tex, isa.OpTexM3x2Depth,
		isa.OpTexM3x3Pad, isa.OpTexM3x3Tex, isa.OpTexM3x3Diff,
		isa.OpTexM3x3Spec, isa.OpTexM3x3VSpec, isa.OpTexM3x3:
		return true
	}
	return false
}

func (st *State) execTexM3x3(in *bytecode.Instruction) error {
	if err := st.texmRow(in, 2); err != nil {
		return err
	}
	regs := st.texm.regs
	n := st.texmNormal()
	st.texm = texmState{}

	var coord Vec4
	switch in.Opcode {
	case isa.OpTexM3x3:
		return st.Write(in.Dst, Vec4{n[0], n[1], n[2], 1})
	case isa.OpTexM3x3Tex, isa.OpTexM3x3Diff:
		coord = n
	case isa.OpTexM3x3Spec:
		e, err := st.Read(&in.Src[1])
		if err != nil {
			return err
		}
		coord = reflect(n, e)
	case isa.OpTexM3x3VSpec:
		e := Vec4{st.TexCoords[regs[0]][3], st.TexCoords[regs[1]][3], st.TexCoords[regs[2]][3]}
		coord = reflect(n, e)
	}
	v, err := st.sample(in.Dst.Index, bytecode.TextureCube, coord, 0)
	if err != nil {
		return err
	}
	return st.Write(in.Dst, v)
}

func (st *State) execTex(in *bytecode.Instruction, legacy bool) error {
	switch {
	case legacy:
		// tex t#: sample stage # at its own coordinates.
		tc, err := st.texCoord(in.Dst, in.Dst.Index)
		if err != nil {
			return err
		}
		v, err := st.sample(in.Dst.Index, bytecode.Texture2D, tc, 0)
		if err != nil {
			return err
		}
		return st.Write(in.Dst, v)

	case st.Version.Before(2, 0):
		// ps_1_4 texld r#, src: the destination index names the stage.
		coord, err := st.Read(&in.Src[0])
		if err != nil {
			return err
		}
		v, err := st.sample(in.Dst.Index, bytecode.Texture2D, coord, 0)
		if err != nil {
			return err
		}
		return st.Write(in.Dst, v)
	}

	coord, err := st.Read(&in.Src[0])
	if err != nil {
		return err
	}
	unit := in.Src[1].Index
	var lod float32
	switch {
	case in.Control&isa.TexLdProject != 0:
		if coord[3] != 0 {
			w := coord[3]
			coord = Vec4{coord[0] / w, coord[1] / w, coord[2] / w, 1}
		}
	case in.Control&isa.TexLdBias != 0:
		lod = coord[3]
	}
	v, err := st.sample(unit, st.samplerType(unit), coord, lod)
	if err != nil {
		return err
	}
	return st.Write(in.Dst, v)
}

// samplerType is filled in by Run from the program's dcl instructions.
func (st *State) samplerType(unit uint32) bytecode.TextureType {
	if int(unit) < len(st.samplerTypes) {
		return st.samplerTypes[unit]
	}
	return bytecode.TextureUnknown
}
