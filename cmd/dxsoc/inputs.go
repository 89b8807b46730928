// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/interp"
)

// Inputs describes the register file of one interpreter invocation.
//
//	registers:
//	  v0: [1, 0, 0, 1]
//	  c3: [0.5]          # one value is replicated
//	ints:
//	  i0: [4, 0, 1, 0]
//	bools:
//	  b0: true
//	texture: [1, 1, 1, 1]
type Inputs struct {
	// Registers holds float registers by name: v# inputs, c# constants,
	// r# temporaries and t# texture coordinates.
	Registers map[string][]float32 `yaml:"registers"`

	Ints  map[string][]int32 `yaml:"ints"`
	Bools map[string]bool    `yaml:"bools"`

	// Texture is the color every sampler returns. Unset samplers return
	// opaque white.
	Texture []float32 `yaml:"texture"`
}

func loadInputs(path string) (*Inputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in Inputs
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &in, nil
}

func vec(vals []float32) (interp.Vec4, error) {
	switch len(vals) {
	case 1:
		return interp.Splat(vals[0]), nil
	case 4:
		return interp.Vec4{vals[0], vals[1], vals[2], vals[3]}, nil
	default:
		return interp.Vec4{}, fmt.Errorf("want 1 or 4 values, got %d", len(vals))
	}
}

// splitRegister splits "c12" into 'c' and 12.
func splitRegister(name string) (byte, int, error) {
	if len(name) < 2 {
		return 0, 0, fmt.Errorf("bad register %q", name)
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 {
		return 0, 0, fmt.Errorf("bad register %q", name)
	}
	return name[0], n, nil
}

// Apply loads the inputs into st.
func (in *Inputs) Apply(st *interp.State) error {
	for name, vals := range in.Registers {
		v, err := vec(vals)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		kind, n, err := splitRegister(name)
		if err != nil {
			return err
		}
		var bank []interp.Vec4
		switch kind {
		case 'v':
			bank = st.Inputs[:]
		case 'c':
			bank = st.Consts[:]
		case 'r':
			bank = st.Temps[:]
		case 't':
			bank = st.TexCoords[:]
		default:
			return fmt.Errorf("bad register %q", name)
		}
		if n >= len(bank) {
			return fmt.Errorf("register %q out of range", name)
		}
		bank[n] = v
	}

	for name, vals := range in.Ints {
		kind, n, err := splitRegister(name)
		if err != nil || kind != 'i' || n >= len(st.IntConsts) {
			return fmt.Errorf("bad integer register %q", name)
		}
		if len(vals) != 4 {
			return fmt.Errorf("%s: want 4 values, got %d", name, len(vals))
		}
		copy(st.IntConsts[n][:], vals)
	}

	for name, b := range in.Bools {
		kind, n, err := splitRegister(name)
		if err != nil || kind != 'b' || n >= len(st.BoolConsts) {
			return fmt.Errorf("bad boolean register %q", name)
		}
		st.BoolConsts[n] = b
	}

	color := interp.Splat(1)
	if in.Texture != nil {
		v, err := vec(in.Texture)
		if err != nil {
			return fmt.Errorf("texture: %w", err)
		}
		color = v
	}
	st.Sampler = interp.SamplerFunc(func(int, bytecode.TextureType, interp.Vec4, float32) interp.Vec4 {
		return color
	})
	return nil
}
