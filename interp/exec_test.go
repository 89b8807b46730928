// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/interp"
	"github.com/gogpu/dxso/isa"
)

var _ = Describe("ExecInstruction", func() {
	var st *interp.State

	exec := func(prog *bytecode.Program) {
		for i := range prog.Instructions {
			Expect(interp.ExecInstruction(st, &prog.Instructions[i])).To(Succeed())
		}
	}

	BeforeEach(func() {
		st = interp.NewState(isa.VS2_0)
	})

	Context("Arithmetic", func() {
		It("should compute mad as add of mul", func() {
			prog := decode(bytecode.NewBuilder(isa.VS2_0).
				Op(isa.OpMad, rd(0), r(1), r(2), r(3)).
				Op(isa.OpMul, rd(4), r(1), r(2)).
				Op(isa.OpAdd, rd(5), r(4), r(3)))

			rng := rand.New(rand.NewSource(7))
			for n := 0; n < 200; n++ {
				for reg := 1; reg <= 3; reg++ {
					for lane := range st.Temps[reg] {
						st.Temps[reg][lane] = rng.Float32()*20 - 10
					}
				}
				exec(prog)
				for lane := 0; lane < 4; lane++ {
					Expect(st.Temps[0][lane]).To(BeNumerically("~", st.Temps[5][lane], 1e-4))
				}
			}
		})

		It("should compute dp4 as dp3 plus the w product", func() {
			prog := decode(bytecode.NewBuilder(isa.VS2_0).
				Op(isa.OpDp4, rd(0), r(1), r(2)).
				Op(isa.OpDp3, rd(3), r(1), r(2)))

			rng := rand.New(rand.NewSource(11))
			for n := 0; n < 200; n++ {
				for reg := 1; reg <= 2; reg++ {
					for lane := range st.Temps[reg] {
						st.Temps[reg][lane] = rng.Float32()*20 - 10
					}
				}
				exec(prog)
				want := st.Temps[3][0] + st.Temps[1][3]*st.Temps[2][3]
				for lane := 0; lane < 4; lane++ {
					Expect(st.Temps[0][lane]).To(BeNumerically("~", want, 1e-3))
					Expect(st.Temps[3][lane]).To(Equal(st.Temps[3][0]))
				}
			}
		})

		It("should return +Inf in all lanes for rcp of zero", func() {
			exec(decode(bytecode.NewBuilder(isa.VS2_0).Op(isa.OpRcp, rd(0), r(1))))
			for _, v := range st.Temps[0] {
				Expect(math.IsInf(float64(v), 1)).To(BeTrue())
			}
		})

		It("should take the fraction toward negative infinity", func() {
			st.Consts[0] = interp.Vec4{-1.5, 2.25, 7, 7}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).Op(isa.OpFrc, rd(0), c(0))))
			Expect(st.Temps[0]).To(Equal(interp.Vec4{0.5, 0.25, 0, 1}))
		})

		It("should use the w lane for rsq", func() {
			st.Consts[0] = interp.Vec4{9, 9, 9, -4}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).Op(isa.OpRsq, rd(0), c(0))))
			Expect(st.Temps[0]).To(Equal(interp.Splat(0.5)))
		})

		It("should compute lit", func() {
			st.Consts[0] = interp.Vec4{0.5, 2, 0, 3}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).Op(isa.OpLit, rd(0), c(0))))
			Expect(st.Temps[0]).To(Equal(interp.Vec4{1, 0.5, 8, 1}))
		})

		It("should compute dst", func() {
			st.Consts[0] = interp.Vec4{9, 2, 3, 9}
			st.Consts[1] = interp.Vec4{9, 4, 9, 5}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).Op(isa.OpDst, rd(0), c(0), c(1))))
			Expect(st.Temps[0]).To(Equal(interp.Vec4{1, 8, 3, 5}))
		})

		It("should transform by m4x4 rows", func() {
			st.Inputs[0] = interp.Vec4{1, 2, 3, 1}
			st.Consts[4] = interp.Vec4{1, 0, 0, 10}
			st.Consts[5] = interp.Vec4{0, 1, 0, 20}
			st.Consts[6] = interp.Vec4{0, 0, 1, 30}
			st.Consts[7] = interp.Vec4{0, 0, 0, 1}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).
				Op(isa.OpM4x4, bytecode.Dst(bytecode.RegRastOut, bytecode.RastPosition),
					bytecode.Src(bytecode.RegInput, 0), c(4))))
			Expect(st.Position).To(Equal(interp.Vec4{11, 22, 33, 1}))
		})

		It("should leave w untouched for m3x3", func() {
			st.Temps[0] = interp.Splat(9)
			st.Consts[0] = interp.Vec4{1, 0, 0, 0}
			st.Consts[1] = interp.Vec4{0, 2, 0, 0}
			st.Consts[2] = interp.Vec4{0, 0, 3, 0}
			st.Temps[1] = interp.Vec4{1, 1, 1, 1}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).Op(isa.OpM3x3, rd(0), r(1), c(0))))
			Expect(st.Temps[0]).To(Equal(interp.Vec4{1, 2, 3, 9}))
		})

		It("should write x=cos and y=sin for sincos", func() {
			st = interp.NewState(isa.PS2_0)
			st.Temps[0] = interp.Splat(5)
			st.Consts[0] = interp.Vec4{0, 0, 0, 0}
			prog := decode(bytecode.NewBuilder(isa.PS2_0).
				Op(isa.OpSinCos, rd(0), c(0).Swz(bytecode.Replicate(0)), c(1), c(2)))
			exec(prog)
			Expect(st.Temps[0]).To(Equal(interp.Vec4{1, 0, 5, 5}))
		})

		It("should select with cmp", func() {
			st = interp.NewState(isa.PS2_0)
			st.Consts[0] = interp.Vec4{-1, 0, 1, -0.5}
			st.Consts[1] = interp.Splat(1)
			st.Consts[2] = interp.Splat(2)
			exec(decode(bytecode.NewBuilder(isa.PS2_0).Op(isa.OpCmp, rd(0), c(0), c(1), c(2))))
			Expect(st.Temps[0]).To(Equal(interp.Vec4{2, 1, 1, 2}))
		})

		It("should round for mova and floor for mov to a0", func() {
			st.Consts[0] = interp.Vec4{1.6, -1.6, 2.5, 0}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).
				Op(isa.OpMova, bytecode.Dst(bytecode.RegAddr, 0), c(0))))
			Expect(st.Addr).To(Equal([4]int32{2, -2, 3, 0}))

			st = interp.NewState(isa.VS1_1)
			st.Consts[0] = interp.Vec4{1.6, -1.6, 2.5, 0}
			exec(decode(bytecode.NewBuilder(isa.VS1_1).
				Op(isa.OpMov, bytecode.Dst(bytecode.RegAddr, 0).Mask(0x1), c(0))))
			Expect(st.Addr[0]).To(Equal(int32(1)))
		})
	})

	Context("Operands", func() {
		It("should change only the components in the write mask", func() {
			st.Temps[0] = interp.Splat(9)
			st.Consts[0] = interp.Vec4{1, 2, 3, 4}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).Op(isa.OpMov, rd(0).Mask(0x5), c(0))))
			Expect(st.Temps[0]).To(Equal(interp.Vec4{1, 9, 3, 9}))
		})

		It("should apply swizzle before the source modifier", func() {
			st.Consts[0] = interp.Vec4{1, 2, 3, 4}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).
				Op(isa.OpMov, rd(0), c(0).Swz(bytecode.MakeSwizzle(3, 2, 1, 0)).Mod(bytecode.SrcNeg))))
			Expect(st.Temps[0]).To(Equal(interp.Vec4{-4, -3, -2, -1}))
		})

		It("should apply shift before saturate", func() {
			st = interp.NewState(isa.PS1_1)
			st.Inputs[0] = interp.Vec4{0.25, 0.75, -1, 0.5}
			exec(decode(bytecode.NewBuilder(isa.PS1_1).
				Op(isa.OpMov, rd(0).Shift(1).Sat(), bytecode.Src(bytecode.RegInput, 0))))
			Expect(st.Temps[0]).To(Equal(interp.Vec4{0.5, 1, 0, 1}))
		})

		It("should scale by the full shift range", func() {
			for shift, want := range map[int8]float32{5: 32, 7: 128, -5: 0.03125, -8: 0.00390625} {
				st = interp.NewState(isa.PS1_4)
				st.Consts[0] = interp.Splat(1)
				exec(decode(bytecode.NewBuilder(isa.PS1_4).Op(isa.OpMov, rd(0).Shift(shift), c(0))))
				Expect(st.Temps[0]).To(Equal(interp.Splat(want)), "shift %d", shift)
			}
		})

		It("should read relatively addressed constants", func() {
			st.Addr[0] = 2
			st.Consts[5] = interp.Vec4{7, 7, 7, 7}
			exec(decode(bytecode.NewBuilder(isa.VS2_0).
				Op(isa.OpMov, rd(0), c(3).Rel(), bytecode.Src(bytecode.RegAddr, 0))))
			Expect(st.Temps[0]).To(Equal(interp.Splat(7)))
		})

		It("should fail on out-of-range registers", func() {
			st.Addr[0] = 1000
			err := interp.ExecInstruction(st, &decode(bytecode.NewBuilder(isa.VS2_0).
				Op(isa.OpMov, rd(0), c(3).Rel(), bytecode.Src(bytecode.RegAddr, 0))).Instructions[0])
			Expect(err).To(MatchError(interp.ErrRegisterRange))
		})
	})

	Context("Definitions", func() {
		It("should load def, defi and defb constants", func() {
			exec(decode(bytecode.NewBuilder(isa.VS2_0).
				Def(2, 1, 2, 3, 4).
				DefI(1, 5, 6, 7, 8).
				DefB(3, true)))
			Expect(st.Consts[2]).To(Equal(interp.Vec4{1, 2, 3, 4}))
			Expect(st.IntConsts[1]).To(Equal([4]int32{5, 6, 7, 8}))
			Expect(st.BoolConsts[3]).To(BeTrue())
		})
	})

	Context("Unimplemented instructions", func() {
		It("should report dsx as not implemented", func() {
			st = interp.NewState(isa.PS2_X)
			prog := decode(bytecode.NewBuilder(isa.PS2_X).Op(isa.OpDsx, rd(0), r(1)))
			Expect(interp.ExecInstruction(st, &prog.Instructions[0])).To(MatchError(interp.ErrNotImplemented))
		})

		It("should report predicated instructions as not implemented", func() {
			prog := decode(bytecode.NewBuilder(isa.VS2_X).
				OpX(isa.OpMov, 0, bytecode.FlagPredicated, rd(0),
					bytecode.Src(bytecode.RegPredicate, 0), c(0)))
			Expect(interp.ExecInstruction(st, &prog.Instructions[0])).To(MatchError(interp.ErrNotImplemented))
		})
	})
})
