// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp

import (
	"context"
	"log/slog"

	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/disasm"
	"github.com/gogpu/dxso/isa"
)

// LevelTrace is the slog level of per-instruction execution records.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace logs one executed instruction at LevelTrace.
func Trace(logger *slog.Logger, v isa.Version, pc int, in *bytecode.Instruction) {
	ctx := context.Background()
	if !logger.Enabled(ctx, LevelTrace) {
		return
	}
	logger.LogAttrs(ctx, LevelTrace, "exec",
		slog.Int("pc", pc),
		slog.Int("offset", in.Offset),
		slog.String("inst", disasm.Instruction(v, in)),
	)
}
