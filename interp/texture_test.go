// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/interp"
	"github.com/gogpu/dxso/isa"
)

type lookup struct {
	unit   int
	target bytecode.TextureType
	coord  interp.Vec4
	lod    float32
}

var _ = Describe("Texture instructions", func() {
	var (
		st    *interp.State
		calls []lookup
	)

	t := func(n uint32) bytecode.Param { return bytecode.Src(bytecode.RegTexture, n) }
	td := func(n uint32) bytecode.Param { return bytecode.Dst(bytecode.RegTexture, n) }
	s := func(n uint32) bytecode.Param { return bytecode.Src(bytecode.RegSampler, n) }

	// The sampler returns the coordinate it was given.
	echo := interp.SamplerFunc(func(unit int, target bytecode.TextureType, coord interp.Vec4, lod float32) interp.Vec4 {
		calls = append(calls, lookup{unit, target, coord, lod})
		return coord
	})

	run := func(prog *bytecode.Program) error {
		return interp.Run(prog, st, interp.DefaultOptions())
	}

	BeforeEach(func() {
		calls = nil
	})

	Context("ps_1_1", func() {
		BeforeEach(func() {
			st = interp.NewState(isa.PS1_1)
			st.Sampler = echo
		})

		It("should sample a stage at its own coordinates", func() {
			st.TexCoords[1] = interp.Vec4{0.25, 0.5, 0, 1}
			Expect(run(decode(bytecode.NewBuilder(isa.PS1_1).Op(isa.OpTex, td(1))))).To(Succeed())
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].unit).To(Equal(1))
			Expect(st.Textures[1]).To(Equal(interp.Vec4{0.25, 0.5, 0, 1}))
		})

		It("should saturate texcoord and set w to one", func() {
			st.TexCoords[0] = interp.Vec4{-1, 0.5, 2, 7}
			Expect(run(decode(bytecode.NewBuilder(isa.PS1_1).Op(isa.OpTexCoord, td(0))))).To(Succeed())
			Expect(st.Textures[0]).To(Equal(interp.Vec4{0, 0.5, 1, 1}))
		})

		It("should kill on a negative coordinate", func() {
			st.TexCoords[0] = interp.Vec4{0.5, -0.1, 0, 0}
			prog := decode(bytecode.NewBuilder(isa.PS1_1).
				Def(0, 1, 1, 1, 1).
				Op(isa.OpTexKill, td(0)).
				Op(isa.OpMov, rd(0), c(0)))
			Expect(run(prog)).To(Succeed())
			Expect(st.Killed).To(BeTrue())
			Expect(st.Temps[0]).To(Equal(interp.Vec4{}))
		})

		It("should perturb coordinates with texbem", func() {
			st.TexCoords[1] = interp.Vec4{0.5, 0.5, 0, 0}
			st.TexCoords[0] = interp.Vec4{1, 2, 0, 0}
			st.BumpEnv[1].Mat = [4]float32{0.5, 0, 0, 0.25}
			Expect(run(decode(bytecode.NewBuilder(isa.PS1_1).
				Op(isa.OpTex, td(0)).
				Op(isa.OpTexBem, td(1), t(0))))).To(Succeed())
			Expect(calls).To(HaveLen(2))
			Expect(calls[1].coord).To(Equal(interp.Vec4{1, 1, 0, 0}))
		})

		It("should run a texm3x3tex sequence", func() {
			st.TexCoords[0] = interp.Vec4{0, 0, 1, 0}
			st.TexCoords[1] = interp.Vec4{1, 0, 0, 0}
			st.TexCoords[2] = interp.Vec4{0, 1, 0, 0}
			st.TexCoords[3] = interp.Vec4{0, 0, 1, 0}
			Expect(run(decode(bytecode.NewBuilder(isa.PS1_1).
				Op(isa.OpTex, td(0)).
				Op(isa.OpTexM3x3Pad, td(1), t(0)).
				Op(isa.OpTexM3x3Pad, td(2), t(0)).
				Op(isa.OpTexM3x3Tex, td(3), t(0))))).To(Succeed())
			Expect(calls).To(HaveLen(2))
			Expect(calls[1].unit).To(Equal(3))
			Expect(calls[1].target).To(Equal(bytecode.TextureCube))
			Expect(calls[1].coord).To(Equal(interp.Vec4{0, 0, 1, 0}))
		})

		It("should reflect the eye vector for texm3x3vspec", func() {
			st.TexCoords[0] = interp.Vec4{0, 0, 1, 0}
			st.TexCoords[1] = interp.Vec4{1, 0, 0, 1}
			st.TexCoords[2] = interp.Vec4{0, 1, 0, 0}
			st.TexCoords[3] = interp.Vec4{0, 0, 1, 1}
			Expect(run(decode(bytecode.NewBuilder(isa.PS1_1).
				Op(isa.OpTex, td(0)).
				Op(isa.OpTexM3x3Pad, td(1), t(0)).
				Op(isa.OpTexM3x3Pad, td(2), t(0)).
				Op(isa.OpTexM3x3VSpec, td(3), t(0))))).To(Succeed())
			// N = (0,0,1), E = (1,0,1): R = 2N(N.E)/(N.N) - E.
			Expect(calls[1].coord).To(Equal(interp.Vec4{-1, 0, 1, 0}))
		})

		It("should reject a texm3x3tex without its pad rows", func() {
			err := run(decode(bytecode.NewBuilder(isa.PS1_1).
				Op(isa.OpTex, td(0)).
				Op(isa.OpTexM3x3Tex, td(3), t(0))))
			Expect(err).To(MatchError(interp.ErrMacroSequence))
		})

		It("should reject an interrupted sequence", func() {
			err := run(decode(bytecode.NewBuilder(isa.PS1_1).
				Op(isa.OpTex, td(0)).
				Op(isa.OpTexM3x2Pad, td(1), t(0)).
				Op(isa.OpTex, td(3))))
			Expect(err).To(MatchError(interp.ErrMacroSequence))
		})

		It("should fail without a sampler", func() {
			st.Sampler = nil
			Expect(run(decode(bytecode.NewBuilder(isa.PS1_1).Op(isa.OpTex, td(0))))).
				To(MatchError(interp.ErrNoSampler))
		})
	})

	Context("ps_2_0", func() {
		BeforeEach(func() {
			st = interp.NewState(isa.PS2_0)
			st.Sampler = echo
			st.TexCoords[0] = interp.Vec4{2, 4, 6, 2}
		})

		It("should sample through the declared sampler type", func() {
			Expect(run(decode(bytecode.NewBuilder(isa.PS2_0).
				DclSampler(bytecode.TextureVolume, 1).
				Op(isa.OpTex, rd(0), t(0), s(1))))).To(Succeed())
			Expect(calls).To(ConsistOf(lookup{1, bytecode.TextureVolume, interp.Vec4{2, 4, 6, 2}, 0}))
			Expect(st.Temps[0]).To(Equal(interp.Vec4{2, 4, 6, 2}))
		})

		It("should divide by w for texldp", func() {
			Expect(run(decode(bytecode.NewBuilder(isa.PS2_0).
				OpX(isa.OpTex, isa.TexLdProject, 0, rd(0), t(0), s(0))))).To(Succeed())
			Expect(calls[0].coord).To(Equal(interp.Vec4{1, 2, 3, 1}))
			Expect(calls[0].target).To(Equal(bytecode.Texture2D))
		})

		It("should pass w as the bias for texldb", func() {
			Expect(run(decode(bytecode.NewBuilder(isa.PS2_0).
				OpX(isa.OpTex, isa.TexLdBias, 0, rd(0), t(0), s(0))))).To(Succeed())
			Expect(calls[0].lod).To(Equal(float32(2)))
		})

		It("should stop on texkill of a temp", func() {
			prog := decode(bytecode.NewBuilder(isa.PS2_0).
				Def(0, -1, 0, 0, 0).
				Def(1, 1, 1, 1, 1).
				Op(isa.OpMov, rd(0), c(0)).
				Op(isa.OpTexKill, rd(0)).
				Op(isa.OpMov, bytecode.Dst(bytecode.RegColorOut, 0), c(1)))
			Expect(run(prog)).To(Succeed())
			Expect(st.Killed).To(BeTrue())
			Expect(st.Result()).To(Equal(interp.Vec4{}))
		})
	})

	Context("ps_1_4", func() {
		It("should apply the bump matrix with bem", func() {
			st = interp.NewState(isa.PS1_4)
			st.Temps[0] = interp.Vec4{1, 1, 9, 9}
			st.Temps[1] = interp.Vec4{2, 4, 0, 0}
			st.Temps[2] = interp.Splat(7)
			st.BumpEnv[2].Mat = [4]float32{1, 0, 0, 0.5}
			Expect(run(decode(bytecode.NewBuilder(isa.PS1_4).
				Op(isa.OpBem, rd(2).Mask(0x3), r(0), r(1))))).To(Succeed())
			Expect(st.Temps[2]).To(Equal(interp.Vec4{3, 3, 7, 7}))
		})

		It("should compute texdepth from x and y", func() {
			st = interp.NewState(isa.PS1_4)
			st.Temps[5] = interp.Vec4{1, 4, 0, 0}
			Expect(run(decode(bytecode.NewBuilder(isa.PS1_4).
				Op(isa.OpTexDepth, rd(5))))).To(Succeed())
			Expect(st.Depth).To(Equal(float32(0.25)))
		})
	})
})
