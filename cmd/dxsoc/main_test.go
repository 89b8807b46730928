// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/dxso"
	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/interp"
	"github.com/gogpu/dxso/isa"
)

var (
	dst = bytecode.Dst
	src = bytecode.Src
)

func movAdd() []uint32 {
	return bytecode.NewBuilder(isa.PS2_0).
		Op(isa.OpMov, dst(bytecode.RegTemp, 0), src(bytecode.RegInput, 0)).
		Op(isa.OpAdd, dst(bytecode.RegTemp, 0).Mask(0x3), src(bytecode.RegTemp, 0), src(bytecode.RegConst, 3)).
		End()
}

func writeShader(t *testing.T, tokens []uint32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shader.pso")
	require.NoError(t, os.WriteFile(path, bytecode.ToBytes(tokens), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", interp.LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if err != nil {
			t.Errorf("parseLevel(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("parseLevel(loud) succeeded")
	}
}

func TestParseHex(t *testing.T) {
	words, err := parseHex("ffff0200 # ps_2_0\n0x02000001, 0x800f0000 // mov\n0000FFFF\n")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0xFFFF0200, 0x02000001, 0x800F0000, 0x0000FFFF}, words)

	_, err = parseHex("ffff0200 zz")
	assert.Error(t, err)
	_, err = parseHex("# nothing\n")
	assert.Error(t, err)
}

func TestParseGLSLVersion(t *testing.T) {
	for in, want := range map[string]string{"110": "110", "1.30": "130", "120": "120"} {
		v, err := parseGLSLVersion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, v.String())
	}
	_, err := parseGLSLVersion("x")
	assert.Error(t, err)
}

func TestParseTargets(t *testing.T) {
	targets, err := parseTargets([]string{"1=cube", "3=3d"})
	require.NoError(t, err)
	assert.Equal(t, bytecode.TextureCube, targets[1])
	assert.Equal(t, bytecode.TextureVolume, targets[3])
	assert.Equal(t, bytecode.TextureUnknown, targets[0])

	for _, bad := range []string{"cube", "16=2d", "0=1d"} {
		_, err := parseTargets([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestDis(t *testing.T) {
	path := writeShader(t, movAdd())

	out, err := execute(t, "dis", path)
	require.NoError(t, err)
	assert.Equal(t, "ps_2_0\nmov r0, v0\nadd r0.xy, r0, c3\n", out)

	out, err = execute(t, "dis", "--offsets", path)
	require.NoError(t, err)
	assert.Equal(t, "ps_2_0\n0001: mov r0, v0\n0004: add r0.xy, r0, c3\n", out)
}

func TestDisHex(t *testing.T) {
	var sb strings.Builder
	for _, w := range movAdd() {
		fmt.Fprintf(&sb, "0x%08x\n", w)
	}
	path := filepath.Join(t.TempDir(), "shader.hex")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	out, err := execute(t, "--hex", "dis", path)
	require.NoError(t, err)
	assert.Equal(t, "ps_2_0\nmov r0, v0\nadd r0.xy, r0, c3\n", out)
}

func TestDisRawMalformed(t *testing.T) {
	tokens := movAdd()
	path := writeShader(t, tokens[:len(tokens)-1])

	out, err := execute(t, "dis", "--raw", path)
	assert.Error(t, err)
	assert.Equal(t, "ps_2_0\nmov r0, v0\nadd r0.xy, r0, c3\n", out)

	_, err = execute(t, "dis", path)
	assert.Error(t, err)
}

func TestARB(t *testing.T) {
	path := writeShader(t, movAdd())
	outPath := filepath.Join(t.TempDir(), "shader.fp")

	_, err := execute(t, "arb", "-o", outPath, path)
	require.NoError(t, err)
	text, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "!!ARBfp1.0\n"))
	assert.Contains(t, string(text), "ADD R0.xy, R0, C[3];\n")

	out, err := execute(t, "arb", "--comments", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# add r0.xy, r0, c3\n")
}

func TestGLSL(t *testing.T) {
	path := writeShader(t, movAdd())

	out, err := execute(t, "glsl", "--lang", "1.30", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "#version 130\n"), out)

	_, err = execute(t, "glsl", "--lang", "450", path)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	tokens := bytecode.NewBuilder(isa.PS2_0).
		Op(isa.OpMov, dst(bytecode.RegTemp, 0), src(bytecode.RegInput, 0)).
		Op(isa.OpAdd, dst(bytecode.RegTemp, 0), src(bytecode.RegTemp, 0), src(bytecode.RegConst, 3)).
		Op(isa.OpMov, dst(bytecode.RegColorOut, 0), src(bytecode.RegTemp, 0)).
		End()
	path := writeShader(t, tokens)
	inputs := filepath.Join(t.TempDir(), "inputs.yaml")
	require.NoError(t, os.WriteFile(inputs, []byte("registers:\n  v0: [1, 2, 3, 4]\n  c3: [0.5]\n"), 0o644))

	out, err := execute(t, "run", "--inputs", inputs, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Outputs (ps_2_0)")
	assert.Contains(t, out, "oC0")
	assert.Contains(t, out, "4.5")
	assert.Contains(t, out, "Temporaries")
}

func TestInputsApply(t *testing.T) {
	in := &Inputs{
		Registers: map[string][]float32{"v1": {1, 2, 3, 4}, "c10": {2}, "t0": {0.25}},
		Ints:      map[string][]int32{"i0": {4, 0, 1, 0}},
		Bools:     map[string]bool{"b2": true},
		Texture:   []float32{0.5},
	}
	st := interp.NewState(isa.PS2_0)
	require.NoError(t, in.Apply(st))
	assert.Equal(t, interp.Vec4{1, 2, 3, 4}, st.Inputs[1])
	assert.Equal(t, interp.Splat(2), st.Consts[10])
	assert.Equal(t, interp.Splat(0.25), st.TexCoords[0])
	assert.Equal(t, [4]int32{4, 0, 1, 0}, st.IntConsts[0])
	assert.True(t, st.BoolConsts[2])
	assert.Equal(t, interp.Splat(0.5), st.Sampler.Sample(0, bytecode.Texture2D, interp.Vec4{}, 0))

	for _, bad := range []*Inputs{
		{Registers: map[string][]float32{"x0": {1}}},
		{Registers: map[string][]float32{"v99": {1}}},
		{Registers: map[string][]float32{"v0": {1, 2}}},
		{Ints: map[string][]int32{"c0": {1, 2, 3, 4}}},
		{Bools: map[string]bool{"b99": true}},
	} {
		assert.Error(t, bad.Apply(interp.NewState(isa.PS2_0)))
	}
}

func TestInfoJSON(t *testing.T) {
	path := writeShader(t, movAdd())

	out, err := execute(t, "info", "--json", path)
	require.NoError(t, err)

	want := `{
		"profile": "ps_2_0",
		"stage": "pixel",
		"words": 9,
		"instructions": 2,
		"temps": [0],
		"textures": [],
		"samplers": [],
		"address": [],
		"max_const": 3,
		"relative_const": false,
		"definitions": [],
		"declarations": [],
		"opcodes": {"add": 1, "mov": 1},
		"diagnostics": []
	}`
	opts := jsondiff.DefaultConsoleOptions()
	diff, explanation := jsondiff.Compare([]byte(out), []byte(want), &opts)
	if diff != jsondiff.FullMatch {
		t.Errorf("info --json mismatch (%s):\n%s", diff, explanation)
	}
}

func TestInfoTree(t *testing.T) {
	tokens := bytecode.NewBuilder(isa.VS1_1).
		Def(2, 1, 2, 3, 4).
		Dcl(bytecode.UsagePosition, 0, dst(bytecode.RegInput, 0)).
		Op(isa.OpM4x4, dst(bytecode.RegRastOut, bytecode.RastPosition), src(bytecode.RegInput, 0), src(bytecode.RegConst, 4)).
		End()
	out, err := execute(t, "info", writeShader(t, tokens))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "vs_1_1 (vertex, "), out)
	assert.Contains(t, out, "definitions")
	assert.Contains(t, out, "def c2, 1.0, 2.0, 3.0, 4.0")
	assert.Contains(t, out, "dcl_position v0")
	assert.Contains(t, out, "[1]  m4x4")
	assert.Contains(t, out, "c0..c4")
}

func TestStepper(t *testing.T) {
	shader, err := dxso.Load(movAdd(), dxso.DefaultOptions())
	require.NoError(t, err)

	var out bytes.Buffer
	s := &stepper{out: &out, version: "ps_2_0", bm: shader.Bitmaps, until: -1}
	script := []string{"", "r", "q"}
	readLine := func() (string, error) {
		if len(script) == 0 {
			return "", errors.New("script exhausted")
		}
		line := script[0]
		script = script[1:]
		return line, nil
	}

	st := interp.NewState(isa.PS2_0)
	st.Inputs[0] = interp.Vec4{1, 2, 3, 4}
	st.Consts[3] = interp.Splat(1)
	opts := interp.DefaultOptions()
	opts.OnStep = s.hook(readLine)
	require.NoError(t, shader.Execute(st, opts))

	assert.Empty(t, script)
	assert.Equal(t, interp.Vec4{1, 2, 3, 4}, st.Temps[0], "add never ran")
	assert.Contains(t, out.String(), "0000: mov r0, v0\n")
	assert.Contains(t, out.String(), "0001: add r0.xy, r0, c3\n")
	assert.Contains(t, out.String(), "Temporaries")
}

func TestStepperBreakpoint(t *testing.T) {
	s := &stepper{out: &bytes.Buffer{}, until: -1}
	st := interp.NewState(isa.PS2_0)

	assert.Equal(t, actionPrompt, s.handle("b", st))
	assert.Equal(t, actionPrompt, s.handle("b x", st))
	assert.Equal(t, actionStep, s.handle("b 3", st))
	assert.True(t, s.running)
	assert.Equal(t, 3, s.until)
	assert.Equal(t, actionPrompt, s.handle("help", st))
	assert.Equal(t, actionStop, s.handle("quit", st))
}
