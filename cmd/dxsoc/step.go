// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/disasm"
	"github.com/gogpu/dxso/interp"
	"github.com/gogpu/dxso/usage"
)

const stepHelp = `commands:
  s, <enter>   execute the next instruction
  c            continue to the end
  b <pc>       continue until instruction <pc>
  r            print used temporaries
  o            print outputs
  q            stop
`

// stepper drives one interactive interpreter session.
type stepper struct {
	out     io.Writer
	version string
	bm      usage.Bitmaps

	running bool // continue without prompting
	until   int  // breakpoint pc, or -1
}

type stepAction uint8

const (
	actionPrompt stepAction = iota // ask again
	actionStep                     // run the instruction
	actionStop
)

// handle interprets one command line.
func (s *stepper) handle(line string, st *interp.State) stepAction {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return actionStep
	}
	switch fields[0] {
	case "s", "step":
		return actionStep
	case "c", "continue":
		s.running = true
		return actionStep
	case "b", "break":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "usage: b <pc>")
			return actionPrompt
		}
		pc, err := strconv.Atoi(fields[1])
		if err != nil || pc < 0 {
			fmt.Fprintf(s.out, "bad pc %q\n", fields[1])
			return actionPrompt
		}
		s.until = pc
		s.running = true
		return actionStep
	case "r", "regs":
		if rows := tempRows(st, s.bm); len(rows) > 0 {
			fmt.Fprintln(s.out, registerTable("Temporaries", rows).Render())
		}
		return actionPrompt
	case "o", "outputs":
		fmt.Fprintln(s.out, registerTable("Outputs ("+s.version+")", outputRows(st)).Render())
		return actionPrompt
	case "q", "quit":
		return actionStop
	default:
		fmt.Fprint(s.out, stepHelp)
		return actionPrompt
	}
}

// hook returns an interp.Options.OnStep function reading commands from
// readLine.
func (s *stepper) hook(readLine func() (string, error)) func(int, *bytecode.Instruction, *interp.State) error {
	return func(pc int, in *bytecode.Instruction, st *interp.State) error {
		if s.running {
			if pc != s.until {
				return nil
			}
			s.running = false
			s.until = -1
		}
		fmt.Fprintf(s.out, "%04d: %s\n", pc, disasm.Instruction(st.Version, in))
		for {
			line, err := readLine()
			if err != nil {
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					return interp.ErrStopped
				}
				return err
			}
			switch s.handle(line, st) {
			case actionStep:
				return nil
			case actionStop:
				return interp.ErrStopped
			}
		}
	}
}

func newStepCmd(g *globals) *cobra.Command {
	var inputs string
	cmd := &cobra.Command{
		Use:   "step <shader>",
		Short: "Execute a shader one instruction at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shader, err := g.load(args[0])
			if err != nil {
				return err
			}
			st := interp.NewState(shader.Version)
			in := &Inputs{}
			if inputs != "" {
				if in, err = loadInputs(inputs); err != nil {
					return err
				}
			}
			if err := in.Apply(st); err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt: "(dxsoc) ",
				Stdout: cmd.OutOrStdout(),
			})
			if err != nil {
				return fmt.Errorf("start readline: %w", err)
			}
			defer rl.Close()

			s := &stepper{
				out:     cmd.OutOrStdout(),
				version: shader.Version.String(),
				bm:      shader.Bitmaps,
				until:   -1,
			}
			opts := interp.DefaultOptions()
			opts.Logger = g.logger
			opts.OnStep = s.hook(rl.Readline)
			if err := shader.Execute(st, opts); err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), st, shader.Bitmaps)
			return nil
		},
	}
	cmd.Flags().StringVar(&inputs, "inputs", "", "YAML file with input and constant registers")
	return cmd
}
