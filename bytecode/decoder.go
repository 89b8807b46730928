// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gogpu/dxso/diag"
	"github.com/gogpu/dxso/isa"
)

// Special token values.
const (
	EndToken uint32 = 0x0000FFFF

	commentLow   uint32 = 0xFFFE
	commentShift        = 16
	commentMask  uint32 = 0x7FFF

	opcodeMask     uint32 = 0xFFFF
	controlShift          = 16
	lengthShift           = 24
	predicatedBit  uint32 = 1 << 28
	coissueBit     uint32 = 1 << 30
	lengthFieldMax uint32 = 0xF
)

// IsComment reports whether word is a comment token.
func IsComment(word uint32) bool {
	return word&opcodeMask == commentLow
}

// CommentLength returns the number of words following a comment token.
func CommentLength(word uint32) int {
	return int(word >> commentShift & commentMask)
}

// IsParameter reports whether word has the parameter bit set.
func IsParameter(word uint32) bool {
	return word&paramBit != 0
}

// FromBytes converts little-endian bytes into token words.
func FromBytes(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, NewError(diag.MalformedStream, len(data)/4, "byte length %d is not a multiple of 4", len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words, nil
}

// ToBytes converts token words into little-endian bytes.
func ToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// Options configures a Decoder.
type Options struct {
	// SkipUnknown skips unknown opcodes by the continuation convention
	// and reports them as warnings instead of failing.
	SkipUnknown bool

	// Sink receives warnings. Nil discards them.
	Sink diag.Sink
}

type state uint8

const (
	stateStart state = iota
	stateExpectVersion
	stateExpectInstruction
	stateSkipComment
	stateConsumeLiterals
	stateEnd
)

// Decoder walks a token stream one instruction at a time.
type Decoder struct {
	tokens  []uint32
	pos     int
	state   state
	version isa.Version
	opts    Options
	skipped []Skipped
}

// NewDecoder creates a decoder over tokens. The slice is not copied.
func NewDecoder(tokens []uint32, opts Options) *Decoder {
	opts.Sink = diag.Or(opts.Sink)
	return &Decoder{tokens: tokens, opts: opts}
}

// Version returns the profile version. It is valid after the first call to
// Next.
func (d *Decoder) Version() isa.Version {
	return d.version
}

// Skipped returns the unknown instructions dropped so far under
// Options.SkipUnknown.
func (d *Decoder) Skipped() []Skipped {
	return d.skipped
}

// Offset returns the index of the next word to decode.
func (d *Decoder) Offset() int {
	return d.pos
}

func (d *Decoder) warn(kind diag.Kind, offset int, op isa.Opcode, format string, args ...any) {
	d.opts.Sink.Report(diag.Diagnostic{
		Kind:     kind,
		Severity: diag.Warning,
		Offset:   offset,
		Opcode:   uint16(op),
		Backend:  "decode",
		Message:  fmt.Sprintf(format, args...),
	})
}

// Next decodes the next instruction. It returns io.EOF after the end token.
func (d *Decoder) Next() (*Instruction, error) {
	for {
		switch d.state {
		case stateStart:
			d.state = stateExpectVersion

		case stateExpectVersion:
			if d.pos >= len(d.tokens) {
				return nil, NewError(diag.MalformedStream, d.pos, "stream ends before the version token")
			}
			tok := d.tokens[d.pos]
			if IsComment(tok) {
				if err := d.skipComment(); err != nil {
					return nil, err
				}
				continue
			}
			if v, ok := isa.ParseVersionToken(tok); ok {
				d.version = v
				d.pos++
				if !v.Known() {
					d.warn(diag.VersionMismatch, d.pos-1, 0, "unrecognized profile %s", v)
				}
				d.state = stateExpectInstruction
				continue
			}
			if tok == EndToken || IsParameter(tok) {
				return nil, NewError(diag.MalformedStream, d.pos, "missing version token (first word %#08x)", tok)
			}
			d.version = isa.VS1_1
			d.warn(diag.VersionMismatch, d.pos, 0, "missing version token, decoding as %s", d.version)
			d.state = stateExpectInstruction

		case stateExpectInstruction:
			if d.pos >= len(d.tokens) {
				return nil, NewError(diag.MalformedStream, d.pos, "stream ends without an end token")
			}
			tok := d.tokens[d.pos]
			if tok == EndToken {
				d.pos++
				d.state = stateEnd
				return nil, io.EOF
			}
			if IsComment(tok) {
				d.state = stateSkipComment
				continue
			}
			in, err := d.decodeInstruction()
			if err != nil {
				return nil, err
			}
			if in == nil {
				continue
			}
			return in, nil

		case stateSkipComment:
			if err := d.skipComment(); err != nil {
				return nil, err
			}
			d.state = stateExpectInstruction

		case stateEnd:
			return nil, io.EOF

		default:
			return nil, NewError(diag.MalformedStream, d.pos, "decoder in invalid state %d", d.state)
		}
	}
}

func (d *Decoder) skipComment() error {
	n := CommentLength(d.tokens[d.pos])
	if d.pos+1+n > len(d.tokens) {
		return NewError(diag.MalformedStream, d.pos, "comment of %d words overruns the stream", n)
	}
	d.pos += 1 + n
	return nil
}

// continuation returns the index after the words of an unknown instruction:
// every extra word has bit 31 set.
func (d *Decoder) continuation(start int) int {
	end := start + 1
	for end < len(d.tokens) && IsParameter(d.tokens[end]) {
		end++
	}
	return end
}

func (d *Decoder) fetch(start int) (uint32, error) {
	if d.pos >= len(d.tokens) {
		return 0, NewError(diag.MalformedStream, start, "instruction truncated at word %d", d.pos)
	}
	w := d.tokens[d.pos]
	d.pos++
	return w, nil
}

func (d *Decoder) fetchParam(start int) (uint32, error) {
	w, err := d.fetch(start)
	if err != nil {
		return 0, err
	}
	if !IsParameter(w) {
		return 0, NewError(diag.MalformedStream, start, "word %d is not a parameter token (%#08x)", d.pos-1, w)
	}
	return w, nil
}

func (d *Decoder) fetchRelative(start int, op *Operand) error {
	if !op.Relative || !d.version.HasRelativeToken() {
		return nil
	}
	w, err := d.fetchParam(start)
	if err != nil {
		return err
	}
	op.RelAddr = decodeRelative(w)
	return nil
}

func (d *Decoder) decodeInstruction() (*Instruction, error) {
	start := d.pos
	tok := d.tokens[start]
	op := isa.Opcode(tok & opcodeMask)

	info, ok := isa.Lookup(op, d.version)
	if !ok {
		closest, known := isa.Closest(op, d.version)
		if !known {
			end := d.continuation(start)
			if !d.opts.SkipUnknown {
				return nil, NewError(diag.UnknownOpcode, start, "unknown opcode %d in %s", uint16(op), d.version)
			}
			d.warn(diag.UnknownOpcode, start, op, "skipping unknown opcode %d (%d words)", uint16(op), end-start)
			d.pos = end
			d.skipped = append(d.skipped, Skipped{Opcode: op, Offset: start})
			return nil, nil
		}
		d.warn(diag.VersionMismatch, start, op, "%s is not legal in %s (legal in %v %v)",
			closest.Name, d.version, closest.Stages, closest.Versions)
		info = closest
	}

	in := &Instruction{
		Info:       info,
		Opcode:     op,
		Offset:     start,
		Control:    uint8(tok >> controlShift),
		Coissue:    tok&coissueBit != 0,
		Predicated: tok&predicatedBit != 0,
	}
	d.pos++

	var err error
	switch op {
	case isa.OpDcl:
		err = d.decodeDcl(in)
	case isa.OpDef, isa.OpDefI:
		err = d.decodeDef(in, 4)
	case isa.OpDefB:
		err = d.decodeDef(in, 1)
	default:
		err = d.decodeOperands(in)
	}
	if err != nil {
		return nil, err
	}

	in.Words = d.pos - start
	if d.version.HasLengthField() {
		length := int(tok >> lengthShift & lengthFieldMax)
		if length != in.Words-1 {
			return nil, NewError(diag.MalformedStream, start,
				"%s length field says %d words, decoded %d", info.Name, length, in.Words-1)
		}
	}
	return in, nil
}

func (d *Decoder) decodeDcl(in *Instruction) error {
	w, err := d.fetchParam(in.Offset)
	if err != nil {
		return err
	}
	decl := decodeDeclaration(w)
	in.Decl = &decl

	w, err = d.fetchParam(in.Offset)
	if err != nil {
		return err
	}
	dst := DecodeDest(w)
	in.Dst = &dst
	return nil
}

func (d *Decoder) decodeDef(in *Instruction, literals int) error {
	w, err := d.fetchParam(in.Offset)
	if err != nil {
		return err
	}
	dst := DecodeDest(w)
	in.Dst = &dst

	d.state = stateConsumeLiterals
	for i := 0; i < literals; i++ {
		if in.Literal[i], err = d.fetch(in.Offset); err != nil {
			return err
		}
	}
	d.state = stateExpectInstruction
	return nil
}

func (d *Decoder) decodeOperands(in *Instruction) error {
	if in.Info.HasDest {
		w, err := d.fetchParam(in.Offset)
		if err != nil {
			return err
		}
		dst := DecodeDest(w)
		if err := d.fetchRelative(in.Offset, &dst); err != nil {
			return err
		}
		in.Dst = &dst
	}

	if in.Predicated {
		w, err := d.fetchParam(in.Offset)
		if err != nil {
			return err
		}
		pred := DecodeSource(w)
		in.Predicate = &pred
	}

	n := in.Info.Sources()
	if n > 0 {
		in.Src = make([]Operand, n)
	}
	for i := 0; i < n; i++ {
		w, err := d.fetchParam(in.Offset)
		if err != nil {
			return err
		}
		in.Src[i] = DecodeSource(w)
		if err := d.fetchRelative(in.Offset, &in.Src[i]); err != nil {
			return err
		}
	}
	return nil
}

// Decode decodes a whole token stream.
func Decode(tokens []uint32, opts Options) (*Program, error) {
	d := NewDecoder(tokens, opts)
	prog := &Program{}
	for {
		in, err := d.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		prog.Instructions = append(prog.Instructions, *in)
	}
	prog.Version = d.Version()
	prog.Words = d.Offset()
	prog.Skipped = d.Skipped()
	return prog, nil
}
