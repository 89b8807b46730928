// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/isa"
)

// Options configures Run.
type Options struct {
	// Sink receives a NotImplemented diagnostic for every stubbed
	// instruction executed. Nil discards them.
	Sink diag.Sink

	// Logger, when set, receives one LevelTrace record per executed
	// instruction.
	Logger *slog.Logger

	// MaxSteps bounds the number of executed instructions. Zero means
	// the default of 65536.
	MaxSteps int

	// Strict makes stubbed instructions fail Run instead of being skipped.
	Strict bool

	// OnStep is called before each instruction executes. Returning
	// ErrStopped ends Run without error; any other error aborts it.
	OnStep func(pc int, in *bytecode.Instruction, st *State) error
}

// DefaultOptions returns the default interpreter options.
func DefaultOptions() Options {
	return Options{MaxSteps: 1 << 16}
}

type loopFrame struct {
	start     int // pc of the rep/loop instruction
	remaining int32
	step      int32
	savedLoop int32
	isLoop    bool
}

// flowTable holds the precomputed jump targets of a program.
type flowTable struct {
	// match maps if/ifc to its else or endif, else to endif, rep/loop to
	// endrep/endloop and break/breakc to the end of the enclosing loop.
	match  map[int]int
	labels map[uint32]int
}

func buildFlow(prog *bytecode.Program) (*flowTable, error) {
	ft := &flowTable{match: make(map[int]int), labels: make(map[uint32]int)}
	var ifs, loops []int
	var breaks [][]int
	for pc := range prog.Instructions {
		in := &prog.Instructions[pc]
		switch in.Opcode {
		case isa.OpIf, isa.OpIfC:
			ifs = append(ifs, pc)
		case isa.OpElse:
			if len(ifs) == 0 {
				return nil, flowError(in, "else without if")
			}
			ft.match[ifs[len(ifs)-1]] = pc
			ifs[len(ifs)-1] = pc
		case isa.OpEndIf:
			if len(ifs) == 0 {
				return nil, flowError(in, "endif without if")
			}
			ft.match[ifs[len(ifs)-1]] = pc
			ifs = ifs[:len(ifs)-1]
		case isa.OpRep, isa.OpLoop:
			loops = append(loops, pc)
			breaks = append(breaks, nil)
		case isa.OpEndRep, isa.OpEndLoop:
			if len(loops) == 0 {
				return nil, flowError(in, "%s without loop", in.Name())
			}
			start := loops[len(loops)-1]
			ft.match[start] = pc
			ft.match[pc] = start
			for _, b := range breaks[len(breaks)-1] {
				ft.match[b] = pc
			}
			loops = loops[:len(loops)-1]
			breaks = breaks[:len(breaks)-1]
		case isa.OpBreak, isa.OpBreakC, isa.OpBreakP:
			if len(loops) == 0 {
				return nil, flowError(in, "break outside a loop")
			}
			breaks[len(breaks)-1] = append(breaks[len(breaks)-1], pc)
		case isa.OpLabel:
			if len(in.Src) > 0 {
				ft.labels[in.Src[0].Index] = pc
			}
		}
	}
	if len(ifs) != 0 || len(loops) != 0 {
		return nil, fmt.Errorf("interp: unterminated flow-control block")
	}
	return ft, nil
}

func flowError(in *bytecode.Instruction, format string, args ...any) error {
	return fmt.Errorf("interp: word %d: %s", in.Offset, fmt.Sprintf(format, args...))
}

// machine is the control state of one Run.
type machine struct {
	prog  *bytecode.Program
	st    *State
	opts  Options
	flow  *flowTable
	loops []loopFrame
	calls []int
}

// Run executes prog against st from the first instruction until the end of
// the main function, a ret at call depth zero, or a pixel kill.
func Run(prog *bytecode.Program, st *State, opts Options) error {
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultOptions().MaxSteps
	}
	ft, err := buildFlow(prog)
	if err != nil {
		return err
	}
	st.Version = prog.Version
	for s := range st.samplerTypes {
		st.samplerTypes[s] = prog.SamplerType(uint32(s))
	}
	m := &machine{prog: prog, st: st, opts: opts, flow: ft}
	return m.run()
}

func (m *machine) run() error {
	pc, steps := 0, 0
	for pc < len(m.prog.Instructions) {
		in := &m.prog.Instructions[pc]
		if in.Opcode == isa.OpLabel && len(m.calls) == 0 {
			// Subroutines follow the main function.
			return nil
		}
		if steps++; steps > m.opts.MaxSteps {
			return fmt.Errorf("%w (%d)", ErrStepLimit, m.opts.MaxSteps)
		}
		if m.opts.OnStep != nil {
			if err := m.opts.OnStep(pc, in, m.st); err != nil {
				if errors.Is(err, ErrStopped) {
					return nil
				}
				return err
			}
		}
		if m.opts.Logger != nil {
			Trace(m.opts.Logger, m.prog.Version, pc, in)
		}

		next, done, err := m.step(pc, in)
		if err != nil {
			if !errors.Is(err, ErrNotImplemented) || m.opts.Strict {
				return fmt.Errorf("interp: word %d: %w", in.Offset, err)
			}
			m.report(in, err)
			next = pc + 1
		}
		if done || m.st.Killed {
			return nil
		}
		pc = next
	}
	return nil
}

func (m *machine) report(in *bytecode.Instruction, err error) {
	diag.Or(m.opts.Sink).Report(diag.Diagnostic{
		Kind:     diag.NotImplemented,
		Severity: diag.Degraded,
		Offset:   in.Offset,
		Opcode:   uint16(in.Opcode),
		Backend:  "interp",
		Message:  err.Error(),
	})
	if m.opts.Logger != nil {
		m.opts.Logger.LogAttrs(context.Background(), slog.LevelWarn, "instruction skipped",
			slog.String("op", in.Name()), slog.Int("offset", in.Offset))
	}
}

// step executes the instruction at pc and returns the next pc. done reports
// that execution of the program has finished.
func (m *machine) step(pc int, in *bytecode.Instruction) (next int, done bool, err error) {
	if !in.Is(isa.FlagFlow) {
		return pc + 1, false, ExecInstruction(m.st, in)
	}
	if in.Predicated {
		return pc + 1, false, notImplemented(in)
	}
	st := m.st

	switch in.Opcode {
	case isa.OpIf:
		ok, err := m.boolSource(&in.Src[0])
		if err != nil {
			return 0, false, err
		}
		return m.branch(pc, ok), false, nil

	case isa.OpIfC:
		ok, err := m.compare(in)
		if err != nil {
			return 0, false, err
		}
		return m.branch(pc, ok), false, nil

	case isa.OpElse:
		// Reached from the taken branch: skip to endif.
		return m.flow.match[pc] + 1, false, nil

	case isa.OpEndIf:
		return pc + 1, false, nil

	case isa.OpRep:
		ic, err := st.readRaw(&in.Src[0], 0)
		if err != nil {
			return 0, false, err
		}
		return m.enter(pc, loopFrame{start: pc, remaining: int32(ic[0])}), false, nil

	case isa.OpLoop:
		if len(in.Src) < 2 {
			return 0, false, fmt.Errorf("interp: loop needs an integer constant")
		}
		ic, err := st.readRaw(&in.Src[1], 0)
		if err != nil {
			return 0, false, err
		}
		f := loopFrame{start: pc, remaining: int32(ic[0]), step: int32(ic[2]), savedLoop: st.Loop, isLoop: true}
		if f.remaining > 0 {
			st.Loop = int32(ic[1])
		}
		return m.enter(pc, f), false, nil

	case isa.OpEndRep, isa.OpEndLoop:
		if len(m.loops) == 0 {
			return 0, false, flowError(in, "%s outside a loop", in.Name())
		}
		f := &m.loops[len(m.loops)-1]
		f.remaining--
		if f.remaining > 0 {
			if f.isLoop {
				st.Loop += f.step
			}
			return f.start + 1, false, nil
		}
		m.leave()
		return pc + 1, false, nil

	case isa.OpBreak:
		return m.breakLoop(pc), false, nil

	case isa.OpBreakC:
		ok, err := m.compare(in)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return m.breakLoop(pc), false, nil
		}
		return pc + 1, false, nil

	case isa.OpBreakP:
		return pc + 1, false, notImplemented(in)

	case isa.OpCall:
		return m.call(pc, in.Src[0].Index)

	case isa.OpCallNZ:
		ok, err := m.boolSource(&in.Src[1])
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return pc + 1, false, nil
		}
		return m.call(pc, in.Src[0].Index)

	case isa.OpLabel:
		// Falling into the next subroutine ends the current one.
		return m.ret()

	case isa.OpRet:
		return m.ret()
	}
	return pc + 1, false, notImplemented(in)
}

func (m *machine) branch(pc int, taken bool) int {
	if taken {
		return pc + 1
	}
	target := m.flow.match[pc]
	return target + 1
}

func (m *machine) enter(pc int, f loopFrame) int {
	if f.remaining <= 0 {
		if f.isLoop {
			m.st.Loop = f.savedLoop
		}
		return m.flow.match[pc] + 1
	}
	m.loops = append(m.loops, f)
	return pc + 1
}

func (m *machine) leave() {
	f := m.loops[len(m.loops)-1]
	if f.isLoop {
		m.st.Loop = f.savedLoop
	}
	m.loops = m.loops[:len(m.loops)-1]
}

func (m *machine) breakLoop(pc int) int {
	end := m.flow.match[pc]
	if len(m.loops) > 0 {
		m.leave()
	}
	return end + 1
}

func (m *machine) call(pc int, label uint32) (int, bool, error) {
	target, ok := m.flow.labels[label]
	if !ok {
		return 0, false, fmt.Errorf("interp: call to undefined label l%d", label)
	}
	if len(m.calls) >= 16 {
		return 0, false, fmt.Errorf("interp: call depth exceeded")
	}
	m.calls = append(m.calls, pc+1)
	return target + 1, false, nil
}

func (m *machine) ret() (int, bool, error) {
	if len(m.calls) == 0 {
		return 0, true, nil
	}
	next := m.calls[len(m.calls)-1]
	m.calls = m.calls[:len(m.calls)-1]
	return next, false, nil
}

// boolSource evaluates a b# or predicate operand, honoring the not modifier.
func (m *machine) boolSource(op *bytecode.Operand) (bool, error) {
	v, err := m.st.Read(op)
	if err != nil {
		return false, err
	}
	return v[0] != 0, nil
}

func (m *machine) compare(in *bytecode.Instruction) (bool, error) {
	if len(in.Src) < 2 {
		return false, fmt.Errorf("interp: %s needs two sources", in.Name())
	}
	a, err := m.st.Read(&in.Src[0])
	if err != nil {
		return false, err
	}
	b, err := m.st.Read(&in.Src[1])
	if err != nil {
		return false, err
	}
	return in.Comparison().Eval(a[0], b[0]), nil
}
