// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/gogpu/dxso"
	"github.com/gogpu/dxso/bytecode"
	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/interp"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	logLevel string
	logFile  string
	hex      bool
	tolerant bool

	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:          "dxsoc",
		Short:        "Direct3D shader bytecode tool",
		Version:      dxsocVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.logLevel, g.logFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			g.logger = logger
			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&g.logFile, "log-file", "", "write JSON logs to this file instead of stderr")
	flags.BoolVar(&g.hex, "hex", false, "read the shader as whitespace separated hex words")
	flags.BoolVar(&g.tolerant, "tolerant", false, "skip unknown opcodes instead of failing")

	rootCmd.AddCommand(
		newDisCmd(g),
		newARBCmd(g),
		newGLSLCmd(g),
		newRunCmd(g),
		newInfoCmd(g),
		newStepCmd(g),
	)
	return rootCmd
}

// parseLevel maps a level name to a slog level. "trace" enables the
// interpreter's per-instruction records.
func parseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "TRACE":
		return interp.LevelTrace, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid level: %s", lvl)
	}
}

func newLogger(level, file string, stderr io.Writer) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.Any() == interp.LevelTrace {
				a.Value = slog.StringValue("TRACE")
			}
			return a
		},
	}
	if file == "" {
		return slog.New(slog.NewTextHandler(stderr, opts)), nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	atexit.Register(func() {
		_ = f.Sync()
		_ = f.Close()
	})
	return slog.New(slog.NewJSONHandler(f, opts)), nil
}

func (g *globals) sink() diag.Sink {
	return diag.NewSlogSink(g.logger)
}

// load reads and decodes the shader at path.
func (g *globals) load(path string) (*dxso.Shader, error) {
	tokens, err := g.readTokens(path)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("loaded token stream", "path", path, "words", len(tokens))
	return dxso.Load(tokens, dxso.Options{SkipUnknown: g.tolerant, Sink: g.sink()})
}

func (g *globals) readTokens(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if g.hex {
		return parseHex(string(data))
	}
	return bytecode.FromBytes(data)
}

// parseHex parses whitespace or comma separated hex words. Text after '#'
// or "//" on a line is ignored.
func parseHex(text string) ([]uint32, error) {
	var words []uint32
	for n, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r'
		})
		for _, f := range fields {
			f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
			w, err := strconv.ParseUint(f, 16, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad word %q", n+1, f)
			}
			words = append(words, uint32(w))
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("no words")
	}
	return words, nil
}

// writeOutput writes text to path, or to the command's stdout when path is
// empty.
func writeOutput(cmd *cobra.Command, path, text string) error {
	if path == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// parseTargets parses "unit=type" texture target overrides.
func parseTargets(specs []string) ([16]bytecode.TextureType, error) {
	var targets [16]bytecode.TextureType
	for _, spec := range specs {
		unit, kind, ok := strings.Cut(spec, "=")
		if !ok {
			return targets, fmt.Errorf("target %q: want unit=type", spec)
		}
		n, err := strconv.Atoi(unit)
		if err != nil || n < 0 || n >= len(targets) {
			return targets, fmt.Errorf("target %q: bad texture unit", spec)
		}
		switch strings.ToLower(kind) {
		case "2d":
			targets[n] = bytecode.Texture2D
		case "cube":
			targets[n] = bytecode.TextureCube
		case "3d", "volume":
			targets[n] = bytecode.TextureVolume
		default:
			return targets, fmt.Errorf("target %q: unknown type %q", spec, kind)
		}
	}
	return targets, nil
}
