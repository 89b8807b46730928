// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp_test

import (
	"bytes"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/interp"
	"github.com/gogpu/dxso/isa"
)

var _ = Describe("Run", func() {
	var (
		st   *interp.State
		opts interp.Options
	)

	i := func(n uint32) bytecode.Param { return bytecode.Src(bytecode.RegConstInt, n) }
	b := func(n uint32) bytecode.Param { return bytecode.Src(bytecode.RegConstBool, n) }
	label := func(n uint32) bytecode.Param { return bytecode.Src(bytecode.RegLabel, n) }

	BeforeEach(func() {
		st = interp.NewState(isa.VS2_0)
		opts = interp.DefaultOptions()
	})

	Context("Flow control", func() {
		It("should repeat a rep block", func() {
			prog := decode(bytecode.NewBuilder(isa.VS2_0).
				Def(0, 1, 1, 1, 1).
				DefI(0, 3, 0, 0, 0).
				Op(isa.OpRep, i(0)).
				Op(isa.OpAdd, rd(0), r(0), c(0)).
				Op(isa.OpEndRep))
			Expect(interp.Run(prog, st, opts)).To(Succeed())
			Expect(st.Temps[0]).To(Equal(interp.Splat(3)))
		})

		It("should skip a rep block with a zero count", func() {
			prog := decode(bytecode.NewBuilder(isa.VS2_0).
				Def(0, 1, 1, 1, 1).
				DefI(0, 0, 0, 0, 0).
				Op(isa.OpRep, i(0)).
				Op(isa.OpAdd, rd(0), r(0), c(0)).
				Op(isa.OpEndRep).
				Op(isa.OpMov, rd(1), c(0)))
			Expect(interp.Run(prog, st, opts)).To(Succeed())
			Expect(st.Temps[0]).To(Equal(interp.Vec4{}))
			Expect(st.Temps[1]).To(Equal(interp.Splat(1)))
		})

		It("should step aL through a loop block and restore it", func() {
			st.Loop = 42
			prog := decode(bytecode.NewBuilder(isa.VS2_0).
				DefI(0, 3, 2, 3, 0).
				Op(isa.OpLoop, bytecode.Src(bytecode.RegLoop, 0), i(0)).
				Op(isa.OpAdd, rd(0), r(0), bytecode.Src(bytecode.RegLoop, 0)).
				Op(isa.OpEndLoop))
			Expect(interp.Run(prog, st, opts)).To(Succeed())
			Expect(st.Temps[0][0]).To(Equal(float32(2 + 5 + 8)))
			Expect(st.Loop).To(Equal(int32(42)))
		})

		DescribeTable("if/else on a boolean constant",
			func(value bool, mod bytecode.SrcMod, want float32) {
				prog := decode(bytecode.NewBuilder(isa.VS2_0).
					Def(0, 1, 1, 1, 1).
					Def(1, 2, 2, 2, 2).
					DefB(0, value).
					Op(isa.OpIf, b(0).Mod(mod)).
					Op(isa.OpMov, rd(0), c(0)).
					Op(isa.OpElse).
					Op(isa.OpMov, rd(0), c(1)).
					Op(isa.OpEndIf))
				Expect(interp.Run(prog, st, opts)).To(Succeed())
				Expect(st.Temps[0]).To(Equal(interp.Splat(want)))
			},
			Entry("true", true, bytecode.SrcNone, float32(1)),
			Entry("false", false, bytecode.SrcNone, float32(2)),
			Entry("not true", true, bytecode.SrcNot, float32(2)),
		)

		It("should leave a rep block on breakc", func() {
			st = interp.NewState(isa.VS2_X)
			prog := decode(bytecode.NewBuilder(isa.VS2_X).
				Def(0, 1, 1, 1, 1).
				Def(1, 3, 3, 3, 3).
				DefI(0, 10, 0, 0, 0).
				Op(isa.OpRep, i(0)).
				Op(isa.OpAdd, rd(0), r(0), c(0)).
				OpX(isa.OpBreakC, uint8(isa.CmpGE), 0, r(0), c(1)).
				Op(isa.OpEndRep))
			Expect(interp.Run(prog, st, opts)).To(Succeed())
			Expect(st.Temps[0]).To(Equal(interp.Splat(3)))
		})

		It("should call a subroutine and return", func() {
			prog := decode(bytecode.NewBuilder(isa.VS2_0).
				Def(0, 1, 1, 1, 1).
				Def(1, 2, 2, 2, 2).
				Op(isa.OpCall, label(1)).
				Op(isa.OpMov, rd(1), c(1)).
				Op(isa.OpRet).
				Op(isa.OpLabel, label(1)).
				Op(isa.OpMov, rd(0), c(0)).
				Op(isa.OpRet))
			Expect(interp.Run(prog, st, opts)).To(Succeed())
			Expect(st.Temps[0]).To(Equal(interp.Splat(1)))
			Expect(st.Temps[1]).To(Equal(interp.Splat(2)))
		})

		It("should skip callnz when the condition is false", func() {
			prog := decode(bytecode.NewBuilder(isa.VS2_0).
				Def(0, 1, 1, 1, 1).
				DefB(0, false).
				Op(isa.OpCallNZ, label(1), b(0)).
				Op(isa.OpRet).
				Op(isa.OpLabel, label(1)).
				Op(isa.OpMov, rd(0), c(0)).
				Op(isa.OpRet))
			Expect(interp.Run(prog, st, opts)).To(Succeed())
			Expect(st.Temps[0]).To(Equal(interp.Vec4{}))
		})

		It("should reject unbalanced blocks", func() {
			prog := decode(bytecode.NewBuilder(isa.VS2_0).
				Op(isa.OpEndIf))
			Expect(interp.Run(prog, st, opts)).NotTo(Succeed())
		})

		It("should stop at the step limit", func() {
			opts.MaxSteps = 10
			prog := decode(bytecode.NewBuilder(isa.VS2_0).
				DefI(0, 200, 0, 0, 0).
				Op(isa.OpRep, i(0)).
				Op(isa.OpNop).
				Op(isa.OpEndRep))
			Expect(interp.Run(prog, st, opts)).To(MatchError(interp.ErrStepLimit))
		})
	})

	Context("Unimplemented instructions", func() {
		var prog *bytecode.Program

		BeforeEach(func() {
			st = interp.NewState(isa.PS2_X)
			prog = decode(bytecode.NewBuilder(isa.PS2_X).
				Def(0, 1, 1, 1, 1).
				Op(isa.OpDsx, rd(1), r(0)).
				Op(isa.OpMov, bytecode.Dst(bytecode.RegColorOut, 0), c(0)))
		})

		It("should report a diagnostic and continue", func() {
			var list diag.List
			opts.Sink = &list
			Expect(interp.Run(prog, st, opts)).To(Succeed())
			Expect(list.Count(diag.NotImplemented)).To(Equal(1))
			Expect(list.Degraded()).To(BeTrue())
			Expect(st.Result()).To(Equal(interp.Splat(1)))
		})

		It("should fail in strict mode", func() {
			opts.Strict = true
			Expect(interp.Run(prog, st, opts)).To(MatchError(interp.ErrNotImplemented))
		})
	})

	Context("Hooks", func() {
		prog := func() *bytecode.Program {
			return decode(bytecode.NewBuilder(isa.VS2_0).
				Def(0, 1, 1, 1, 1).
				Op(isa.OpAdd, rd(0), r(0), c(0)).
				Op(isa.OpAdd, rd(0), r(0), c(0)))
		}

		It("should stop when OnStep returns ErrStopped", func() {
			opts.OnStep = func(pc int, in *bytecode.Instruction, _ *interp.State) error {
				if pc == 2 {
					return interp.ErrStopped
				}
				return nil
			}
			Expect(interp.Run(prog(), st, opts)).To(Succeed())
			Expect(st.Temps[0]).To(Equal(interp.Splat(1)))
		})

		It("should abort on other OnStep errors", func() {
			boom := errors.New("boom")
			opts.OnStep = func(int, *bytecode.Instruction, *interp.State) error { return boom }
			Expect(interp.Run(prog(), st, opts)).To(MatchError(boom))
		})

		It("should trace every instruction at LevelTrace", func() {
			var buf bytes.Buffer
			opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: interp.LevelTrace}))
			Expect(interp.Run(prog(), st, opts)).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("add r0, r0, c0"))
			Expect(bytes.Count(buf.Bytes(), []byte("msg=exec"))).To(Equal(3))
		})

		It("should not trace below LevelTrace", func() {
			var buf bytes.Buffer
			opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
			Expect(interp.Run(prog(), st, opts)).To(Succeed())
			Expect(buf.Len()).To(BeZero())
		})
	})
})
