// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp

import "math"

func (v Vec4) scale(f float32) Vec4 {
	return Vec4{v[0] * f, v[1] * f, v[2] * f, v[3] * f}
}

func (v Vec4) addScalar(f float32) Vec4 {
	return Vec4{v[0] + f, v[1] + f, v[2] + f, v[3] + f}
}

func (v Vec4) add(o Vec4) Vec4 {
	return Vec4{v[0] + o[0], v[1] + o[1], v[2] + o[2], v[3] + o[3]}
}

func (v Vec4) sub(o Vec4) Vec4 {
	return Vec4{v[0] - o[0], v[1] - o[1], v[2] - o[2], v[3] - o[3]}
}

func (v Vec4) mul(o Vec4) Vec4 {
	return Vec4{v[0] * o[0], v[1] * o[1], v[2] * o[2], v[3] * o[3]}
}

func (v Vec4) abs() Vec4 {
	return v.each(abs32)
}

func (v Vec4) saturate() Vec4 {
	return v.each(func(f float32) float32 {
		switch {
		case f < 0:
			return 0
		case f > 1:
			return 1
		}
		return f
	})
}

func (v Vec4) each(f func(float32) float32) Vec4 {
	return Vec4{f(v[0]), f(v[1]), f(v[2]), f(v[3])}
}

func zip(a, b Vec4, f func(x, y float32) float32) Vec4 {
	return Vec4{f(a[0], b[0]), f(a[1], b[1]), f(a[2], b[2]), f(a[3], b[3])}
}

func dot3(a, b Vec4) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func dot4(a, b Vec4) float32 {
	return dot3(a, b) + a[3]*b[3]
}

func abs32(f float32) float32 {
	return float32(math.Abs(float64(f)))
}

func floor32(f float32) float32 {
	return float32(math.Floor(float64(f)))
}

func exp2(f float32) float32 {
	return float32(math.Exp2(float64(f)))
}

func log2(f float32) float32 {
	return float32(math.Log2(float64(f)))
}

func pow32(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}

// clearLowMantissa drops the low 8 mantissa bits, the reduced precision
// of expp and logp.
func clearLowMantissa(f float32) float32 {
	return math.Float32frombits(math.Float32bits(f) &^ 0xFF)
}

var posInf = float32(math.Inf(1))
