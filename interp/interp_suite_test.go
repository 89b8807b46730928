// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gogpu/dxso/bytecode"
)

func TestInterp(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Interp Suite")
}

func decode(b *bytecode.Builder) *bytecode.Program {
	prog, err := bytecode.Decode(b.End(), bytecode.Options{})
	Expect(err).NotTo(HaveOccurred())
	return prog
}

// r and c are shorthands for temp and float-constant operands.
func r(i uint32) bytecode.Param  { return bytecode.Src(bytecode.RegTemp, i) }
func rd(i uint32) bytecode.Param { return bytecode.Dst(bytecode.RegTemp, i) }
func c(i uint32) bytecode.Param  { return bytecode.Src(bytecode.RegConst, i) }
