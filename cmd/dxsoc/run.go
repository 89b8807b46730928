// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gogpu/dxso/interp"
	"github.com/gogpu/dxso/isa"
	"github.com/gogpu/dxso/usage"
)

func newRunCmd(g *globals) *cobra.Command {
	var (
		inputs   string
		maxSteps int
		strict   bool
	)
	cmd := &cobra.Command{
		Use:   "run <shader>",
		Short: "Execute a shader on the software interpreter",
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

			opts := interp.DefaultOptions()
			opts.Logger = g.logger
			opts.Strict = strict
			if maxSteps > 0 {
				opts.MaxSteps = maxSteps
			}
			if err := shader.Execute(st, opts); err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), st, shader.Bitmaps)
			return nil
		},
	}
	cmd.Flags().StringVar(&inputs, "inputs", "", "YAML file with input and constant registers")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "instruction limit (default 65536)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on instructions the interpreter does not implement")
	return cmd
}

// outputRows lists the result registers of st's stage.
func outputRows(st *interp.State) []table.Row {
	var rows []table.Row
	add := func(name string, v interp.Vec4) {
		rows = append(rows, table.Row{name, v[0], v[1], v[2], v[3]})
	}
	if st.Version.IsPixel() {
		if st.Version.Before(2, 0) {
			add("r0", st.Temps[0])
		} else {
			for i, c := range st.ColorOut {
				if i == 0 || c != (interp.Vec4{}) {
					add(fmt.Sprintf("oC%d", i), c)
				}
			}
			add("oDepth", interp.Splat(st.Depth))
		}
		return rows
	}

	add("oPos", st.Position)
	add("oFog", interp.Splat(st.Fog))
	add("oPts", interp.Splat(st.PointSize))
	for i, c := range st.Colors {
		add(fmt.Sprintf("oD%d", i), c)
	}
	prefix := "oT"
	if st.Version.AtLeast(3, 0) {
		prefix = "o"
	}
	for i, t := range st.TexOut {
		if t != (interp.Vec4{}) {
			add(fmt.Sprintf("%s%d", prefix, i), t)
		}
	}
	return rows
}

func registerTable(title string, rows []table.Row) table.Writer {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Register", "x", "y", "z", "w"})
	t.AppendRows(rows)
	return t
}

// tempRows lists the temporaries the program uses.
func tempRows(st *interp.State, bm usage.Bitmaps) []table.Row {
	var rows []table.Row
	for i := range st.Temps {
		if bm.Temps&(1<<i) != 0 {
			v := st.Temps[i]
			rows = append(rows, table.Row{fmt.Sprintf("r%d", i), v[0], v[1], v[2], v[3]})
		}
	}
	return rows
}

func printState(w io.Writer, st *interp.State, bm usage.Bitmaps) {
	fmt.Fprintln(w, registerTable("Outputs ("+st.Version.String()+")", outputRows(st)).Render())
	if st.Version.IsPixel() && st.Killed {
		fmt.Fprintln(w, "pixel killed")
	}
	if rows := tempRows(st, bm); len(rows) > 0 {
		fmt.Fprintln(w, registerTable("Temporaries", rows).Render())
	}
}

// stageName is used in table titles.
func stageName(v isa.Version) string {
	if v.IsPixel() {
		return "pixel"
	}
	return "vertex"
}
