// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/gogpu/dxso"
	"github.com/gogpu/dxso/disasm"
	"github.com/gogpu/dxso/isa"
)

// Summary is the machine readable form of "dxsoc info".
type Summary struct {
	Profile      string         `json:"profile"`
	Stage        string         `json:"stage"`
	Words        int            `json:"words"`
	Instructions int            `json:"instructions"`
	Temps        []int          `json:"temps"`
	Textures     []int          `json:"textures"`
	Samplers     []int          `json:"samplers"`
	Address      []int          `json:"address"`
	MaxConst     int            `json:"max_const"`
	Relative     bool           `json:"relative_const"`
	Definitions  []string       `json:"definitions"`
	Declarations []string       `json:"declarations"`
	Opcodes      map[string]int `json:"opcodes"`
	Diagnostics  []string       `json:"diagnostics"`
}

func bitList(mask uint32) []int {
	out := []int{}
	for i := 0; i < 32; i++ {
		if mask&(1<<i) != 0 {
			out = append(out, i)
		}
	}
	return out
}

func summarize(shader *dxso.Shader) Summary {
	prog := shader.Program
	bm := shader.Bitmaps
	s := Summary{
		Profile:      prog.Version.String(),
		Stage:        stageName(prog.Version),
		Words:        prog.Words,
		Instructions: len(prog.Instructions),
		Temps:        bitList(bm.Temps),
		Textures:     bitList(bm.Textures),
		Samplers:     bitList(bm.Samplers),
		Address:      bitList(bm.Address),
		MaxConst:     bm.MaxConst,
		Relative:     bm.RelativeConst,
		Definitions:  []string{},
		Declarations: []string{},
		Opcodes:      map[string]int{},
		Diagnostics:  []string{},
	}
	for i := range prog.Instructions {
		in := &prog.Instructions[i]
		switch in.Opcode {
		case isa.OpDef, isa.OpDefI, isa.OpDefB:
			s.Definitions = append(s.Definitions, disasm.Instruction(prog.Version, in))
		case isa.OpDcl:
			s.Declarations = append(s.Declarations, disasm.Instruction(prog.Version, in))
		default:
			s.Opcodes[disasm.Mnemonic(prog.Version, in)]++
		}
	}
	for _, d := range shader.Diagnostics {
		s.Diagnostics = append(s.Diagnostics, d.String())
	}
	return s
}

// Tree renders the summary as a tree.
func (s Summary) Tree() treeprint.Tree {
	tree := treeprint.NewWithRoot(fmt.Sprintf("%s (%s, %d words)", s.Profile, s.Stage, s.Words))

	regs := tree.AddBranch("registers")
	regs.AddMetaNode("temps", fmt.Sprint(s.Temps))
	if len(s.Textures) > 0 {
		regs.AddMetaNode("textures", fmt.Sprint(s.Textures))
	}
	if len(s.Samplers) > 0 {
		regs.AddMetaNode("samplers", fmt.Sprint(s.Samplers))
	}
	if len(s.Address) > 0 {
		regs.AddMetaNode("address", fmt.Sprint(s.Address))
	}
	if s.MaxConst >= 0 {
		c := fmt.Sprintf("c0..c%d", s.MaxConst)
		if s.Relative {
			c += " (relative)"
		}
		regs.AddMetaNode("constants", c)
	}

	if len(s.Definitions) > 0 {
		defs := tree.AddBranch("definitions")
		for _, d := range s.Definitions {
			defs.AddNode(d)
		}
	}
	if len(s.Declarations) > 0 {
		decls := tree.AddBranch("declarations")
		for _, d := range s.Declarations {
			decls.AddNode(d)
		}
	}

	names := make([]string, 0, len(s.Opcodes))
	for name := range s.Opcodes {
		names = append(names, name)
	}
	sort.Strings(names)
	ops := tree.AddMetaBranch(s.Instructions, "instructions")
	for _, name := range names {
		ops.AddMetaNode(s.Opcodes[name], name)
	}

	if len(s.Diagnostics) > 0 {
		diags := tree.AddBranch("diagnostics")
		for _, d := range s.Diagnostics {
			diags.AddNode(d)
		}
	}
	return tree
}

func newInfoCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <shader>",
		Short: "Summarize a shader's registers, constants and instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shader, err := g.load(args[0])
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), summarize(shader), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a tree")
	return cmd
}

func writeSummary(w io.Writer, s Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	_, err := io.WriteString(w, s.Tree().String())
	return err
}
