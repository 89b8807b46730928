// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dxso

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/dxso/arb"
	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/glsl"
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

// kindIs matches a diag.Diagnostic of one kind.
type kindIs diag.Kind

func (k kindIs) Matches(x interface{}) bool {
	d, ok := x.(diag.Diagnostic)
	return ok && d.Kind == diag.Kind(k)
}

func (k kindIs) String() string {
	return "diagnostic of kind " + diag.Kind(k).String()
}

func TestLoad_MovAdd(t *testing.T) {
	shader, err := Load(movAdd(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, isa.PS2_0, shader.Version)
	assert.Equal(t, "ps_2_0\nmov r0, v0\nadd r0.xy, r0, c3\n", shader.Disassemble())
	assert.Equal(t, uint32(1), shader.Bitmaps.Temps)
	assert.Zero(t, shader.Bitmaps.Samplers)
	assert.Empty(t, shader.Diagnostics)

	out, err := shader.CompileARB(arb.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"MOV R0, fragment.color.primary;",
		"ADD R0.xy, R0, C[3];",
	}, out.Lines)
	assert.Equal(t, 1, out.Temps)
	assert.False(t, out.Degraded)
	assert.Same(t, out, shader.ARB)
	assert.Nil(t, shader.GLSL)
}

func TestLoad_CopiesTokens(t *testing.T) {
	tokens := movAdd()
	want := append([]uint32(nil), tokens...)

	shader, err := Load(tokens, DefaultOptions())
	require.NoError(t, err)

	tokens[1] = 0xDEADBEEF
	assert.Equal(t, want, shader.Tokens())

	got := shader.Tokens()
	got[0] = 0
	assert.Equal(t, want, shader.Tokens(), "Tokens returns a copy")
	assert.Equal(t, "ps_2_0\nmov r0, v0\nadd r0.xy, r0, c3\n", shader.Disassemble())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		tokens []uint32
	}{
		{"empty", nil},
		{"missing end token", bytecode.NewBuilder(isa.PS1_1).
			Op(isa.OpMov, dst(bytecode.RegTemp, 0), src(bytecode.RegTemp, 1)).
			Words()},
		{"truncated parameters", []uint32{isa.VS1_1.Token(), uint32(isa.OpAdd), uint32(dst(bytecode.RegTemp, 0))}},
		{"unknown opcode", bytecode.NewBuilder(isa.VS1_1).
			Raw(250, uint32(src(bytecode.RegTemp, 1))).
			End()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shader, err := Load(tt.tokens, DefaultOptions())
			require.Error(t, err)
			assert.Nil(t, shader)
			assert.True(t, strings.HasPrefix(err.Error(), "dxso: "), err.Error())
		})
	}
}

func TestLoad_MalformedIsBytecodeError(t *testing.T) {
	_, err := Load([]uint32{isa.PS2_0.Token()}, DefaultOptions())
	var derr *bytecode.Error
	require.ErrorAs(t, err, &derr)
	assert.True(t, derr.IsMalformed())
}

func TestLoad_SkipUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Report(kindIs(diag.UnknownOpcode)).Times(1)

	tokens := bytecode.NewBuilder(isa.VS1_1).
		Raw(250, uint32(dst(bytecode.RegTemp, 9)), uint32(src(bytecode.RegTemp, 10))).
		Op(isa.OpMov, dst(bytecode.RegTemp, 1), src(bytecode.RegInput, 0)).
		End()

	shader, err := Load(tokens, Options{SkipUnknown: true, Sink: sink})
	require.NoError(t, err)
	require.Len(t, shader.Program.Instructions, 1)
	assert.Equal(t, 1, shader.Diagnostics.Count(diag.UnknownOpcode))
	assert.Equal(t, uint32(1<<1), shader.Bitmaps.Temps)
	assert.Equal(t, "vs_1_1\nmov r1, v0\n", shader.Disassemble())

	_, err = shader.CompileARB(arb.DefaultOptions())
	var derr *bytecode.Error
	require.ErrorAs(t, err, &derr)
	assert.True(t, derr.IsUnknownOpcode())
	assert.Nil(t, shader.ARB)

	_, err = shader.CompileGLSL(glsl.DefaultOptions())
	require.ErrorAs(t, err, &derr)
	assert.True(t, derr.IsUnknownOpcode())
	assert.Nil(t, shader.GLSL)
}

func TestLoad_RegisterOutOfRange(t *testing.T) {
	tokens := bytecode.NewBuilder(isa.VS3_0).
		Op(isa.OpMov, dst(bytecode.RegTemp, 32), src(bytecode.RegInput, 0)).
		End()
	shader, err := Load(tokens, DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, shader.Bitmaps.Temps)
	assert.Equal(t, 1, shader.Diagnostics.Count(diag.VersionMismatch))
}

func TestLoadBytes(t *testing.T) {
	shader, err := LoadBytes(bytecode.ToBytes(movAdd()), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, movAdd(), shader.Tokens())

	_, err = LoadBytes([]byte{1, 2, 3}, DefaultOptions())
	assert.Error(t, err)
}

func TestCompileARB_UnsupportedContainment(t *testing.T) {
	ctrl := gomock.NewController(t)
	loadSink := NewMockSink(ctrl)
	compileSink := NewMockSink(ctrl)
	loadSink.EXPECT().Report(kindIs(diag.UnsupportedForBackend)).Times(1)
	compileSink.EXPECT().Report(kindIs(diag.UnsupportedForBackend)).Times(1)

	tokens := bytecode.NewBuilder(isa.PS2_X).
		Op(isa.OpMov, dst(bytecode.RegTemp, 0), src(bytecode.RegInput, 0)).
		Op(isa.OpDsx, dst(bytecode.RegTemp, 1), src(bytecode.RegTemp, 0)).
		Op(isa.OpAdd, dst(bytecode.RegTemp, 0), src(bytecode.RegTemp, 0), src(bytecode.RegConst, 0)).
		End()
	shader, err := Load(tokens, Options{Sink: loadSink})
	require.NoError(t, err)

	opts := arb.DefaultOptions()
	opts.Sink = compileSink
	out, err := shader.CompileARB(opts)
	require.NoError(t, err)

	assert.True(t, out.Degraded)
	assert.Len(t, out.Lines, 2)
	assert.Equal(t, 1, shader.Diagnostics.Count(diag.UnsupportedForBackend))
	assert.True(t, shader.Diagnostics.Degraded())
}

func TestCompileARB_ShaderModel3(t *testing.T) {
	tokens := bytecode.NewBuilder(isa.VS3_0).
		Op(isa.OpMov, dst(bytecode.RegOutput, 0), src(bytecode.RegInput, 0)).
		End()
	shader, err := Load(tokens, DefaultOptions())
	require.NoError(t, err)

	_, err = shader.CompileARB(arb.DefaultOptions())
	assert.ErrorIs(t, err, arb.ErrUnsupportedProfile)
}

func TestCompileGLSL(t *testing.T) {
	shader, err := Load(movAdd(), DefaultOptions())
	require.NoError(t, err)

	out, err := shader.CompileGLSL(glsl.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Text, "#version 120\n"))
	assert.Contains(t, out.Text, "    R0.xy = (R0 + C[3]).xy;\n")
	assert.Same(t, out, shader.GLSL)
	assert.Zero(t, shader.GLSL.Samplers)

	_, err = shader.CompileGLSL(glsl.Options{LangVersion: glsl.Version{Major: 4, Minor: 50}})
	assert.ErrorIs(t, err, glsl.ErrUnsupportedVersion)
	assert.Same(t, out, shader.GLSL, "a failed compile keeps the previous output")
}

func TestExecute(t *testing.T) {
	tokens := bytecode.NewBuilder(isa.PS2_0).
		Op(isa.OpMov, dst(bytecode.RegTemp, 0), src(bytecode.RegInput, 0)).
		Op(isa.OpAdd, dst(bytecode.RegTemp, 0).Mask(0x3), src(bytecode.RegTemp, 0), src(bytecode.RegConst, 3)).
		Op(isa.OpMov, dst(bytecode.RegColorOut, 0), src(bytecode.RegTemp, 0)).
		End()
	shader, err := Load(tokens, DefaultOptions())
	require.NoError(t, err)

	st := &interp.State{}
	st.Inputs[0] = interp.Vec4{1, 2, 3, 4}
	st.Consts[3] = interp.Splat(0.5)
	require.NoError(t, shader.Execute(st, interp.DefaultOptions()))

	assert.Equal(t, isa.PS2_0, st.Version)
	assert.Equal(t, interp.Vec4{1.5, 2.5, 3, 4}, st.Result())
}

func TestExecute_StateMismatch(t *testing.T) {
	shader, err := Load(movAdd(), DefaultOptions())
	require.NoError(t, err)

	assert.Error(t, shader.Execute(interp.NewState(isa.VS1_1), interp.DefaultOptions()))
	assert.Error(t, shader.Execute(nil, interp.DefaultOptions()))
}

func TestHandleIsOpaque(t *testing.T) {
	shader, err := Load(movAdd(), DefaultOptions())
	require.NoError(t, err)

	type driverProgram struct{ id uint32 }
	shader.Handle = &driverProgram{id: 7}
	_, err = shader.CompileARB(arb.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, &driverProgram{id: 7}, shader.Handle)
}

// concurrentProgram returns a distinct vs_1_1 program for seed.
func concurrentProgram(seed int) []uint32 {
	b := bytecode.NewBuilder(isa.VS1_1).
		Def(uint32(seed%8), float32(seed), 1, 2, 3)
	for i := 0; i <= seed%5; i++ {
		b.Op(isa.OpMad, dst(bytecode.RegTemp, uint32(i)),
			src(bytecode.RegInput, 0), src(bytecode.RegConst, uint32(seed%8)), src(bytecode.RegConst, 20))
	}
	return b.
		Op(isa.OpM4x4, dst(bytecode.RegRastOut, bytecode.RastPosition), src(bytecode.RegInput, 0), src(bytecode.RegConst, 10)).
		End()
}

func TestConcurrentCompile(t *testing.T) {
	const n = 32

	type result struct {
		listing, arb, glsl string
	}
	compile := func(seed int) (result, error) {
		shader, err := Load(concurrentProgram(seed), DefaultOptions())
		if err != nil {
			return result{}, err
		}
		a, err := shader.CompileARB(arb.DefaultOptions())
		if err != nil {
			return result{}, err
		}
		g, err := shader.CompileGLSL(glsl.DefaultOptions())
		if err != nil {
			return result{}, err
		}
		return result{shader.Disassemble(), a.Text, g.Text}, nil
	}

	want := make([]result, n)
	for i := range want {
		r, err := compile(i)
		require.NoError(t, err)
		want[i] = r
	}

	got := make([]result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = compile(i)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], fmt.Sprintf("program %d", i))
		assert.Equal(t, want[i], got[i], "program %d", i)
	}
}
