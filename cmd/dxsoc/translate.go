// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gogpu/dxso/arb"
	"github.com/gogpu/dxso/disasm"
	"github.com/gogpu/dxso/glsl"
)

func newDisCmd(g *globals) *cobra.Command {
	var (
		opts disasm.Options
		raw  bool
	)
	cmd := &cobra.Command{
		Use:   "dis <shader>",
		Short: "Disassemble a shader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw {
				// Lists as much as decodes, even from a malformed stream.
				tokens, err := g.readTokens(args[0])
				if err != nil {
					return err
				}
				text, err := disasm.Tokens(tokens, g.sink())
				if werr := writeOutput(cmd, "", text); werr != nil {
					return werr
				}
				return err
			}
			shader, err := g.load(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, "", disasm.ProgramWith(shader.Program, opts))
		},
	}
	cmd.Flags().BoolVar(&opts.Offsets, "offsets", false, "prefix instructions with their word offset")
	cmd.Flags().BoolVar(&opts.Indent, "indent", false, "indent flow-control blocks")
	cmd.Flags().BoolVar(&raw, "raw", false, "list the stream without decoding it as a whole")
	return cmd
}

func newARBCmd(g *globals) *cobra.Command {
	var (
		output   string
		comments bool
		targets  []string
	)
	cmd := &cobra.Command{
		Use:   "arb <shader>",
		Short: "Translate a shader to ARB vertex or fragment program text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shader, err := g.load(args[0])
			if err != nil {
				return err
			}
			opts := arb.DefaultOptions()
			opts.Comments = comments
			if opts.Targets, err = parseTargets(targets); err != nil {
				return err
			}
			out, err := shader.CompileARB(opts)
			if err != nil {
				return err
			}
			if out.Degraded {
				g.logger.Warn("output degraded", "diagnostics", len(out.Diagnostics))
			}
			g.logger.Info("generated ARB program", "temps", out.Temps, "samplers", out.Samplers)
			return writeOutput(cmd, output, out.Text)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&comments, "comments", false, "annotate lines with the source instruction")
	cmd.Flags().StringArrayVar(&targets, "target", nil, "texture target of an undeclared unit, as unit=2d|cube|3d")
	return cmd
}

func newGLSLCmd(g *globals) *cobra.Command {
	var (
		output   string
		lang     string
		comments bool
		targets  []string
	)
	cmd := &cobra.Command{
		Use:   "glsl <shader>",
		Short: "Translate a shader to GLSL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseGLSLVersion(lang)
			if err != nil {
				return err
			}
			shader, err := g.load(args[0])
			if err != nil {
				return err
			}
			opts := glsl.DefaultOptions()
			opts.LangVersion = version
			opts.Comments = comments
			if opts.Targets, err = parseTargets(targets); err != nil {
				return err
			}
			out, err := shader.CompileGLSL(opts)
			if err != nil {
				return err
			}
			if out.Degraded {
				g.logger.Warn("output degraded", "diagnostics", len(out.Diagnostics))
			}
			return writeOutput(cmd, output, out.Text)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&lang, "lang", "120", "GLSL version (110, 120 or 130)")
	cmd.Flags().BoolVar(&comments, "comments", false, "annotate statements with the source instruction")
	cmd.Flags().StringArrayVar(&targets, "target", nil, "sampler type of an undeclared unit, as unit=2d|cube|3d")
	return cmd
}

// parseGLSLVersion parses "130" or "1.30".
func parseGLSLVersion(s string) (glsl.Version, error) {
	var major, minor int
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil {
		n, err := strconv.Atoi(s)
		if err != nil || n < 100 {
			return glsl.Version{}, fmt.Errorf("bad GLSL version %q", s)
		}
		major, minor = n/100, n%100
	}
	if major > 255 || minor > 255 || major < 0 || minor < 0 {
		return glsl.Version{}, fmt.Errorf("bad GLSL version %q", s)
	}
	return glsl.Version{Major: uint8(major), Minor: uint8(minor)}, nil
}
