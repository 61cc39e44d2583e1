// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gta3sc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// scmbuf is a little-endian tagged-byte accumulator: every write that
// can fail records its error and every later write becomes a no-op, so
// the caller only needs to check err once at the end.
type scmbuf struct {
	w   bytes.Buffer
	err error
}

func (b *scmbuf) u8(v uint8) {
	if b.err != nil {
		return
	}
	b.err = b.w.WriteByte(v)
}

func (b *scmbuf) i8(v int8)   { b.u8(uint8(v)) }
func (b *scmbuf) i16(v int16) { b.fixed(v) }
func (b *scmbuf) i32(v int32) { b.fixed(v) }
func (b *scmbuf) u16(v uint16) { b.fixed(v) }
func (b *scmbuf) u32(v uint32) { b.fixed(v) }
func (b *scmbuf) f32(v float32) { b.fixed(v) }

func (b *scmbuf) fixed(v interface{}) {
	if b.err != nil {
		return
	}
	b.err = binary.Write(&b.w, binary.LittleEndian, v)
}

func (b *scmbuf) raw(p []byte) {
	if b.err != nil {
		return
	}
	_, b.err = b.w.Write(p)
}

func (b *scmbuf) textLabel(s string, width int) {
	buf := make([]byte, width)
	copy(buf, s)
	b.raw(buf)
}

// Operand type tags, matching the source compiler's wire encoding this
// emitter reproduces.
const (
	scmTagEOAL       = 0x00
	scmTagInt32      = 0x01
	scmTagGlobalVar  = 0x02
	scmTagLocalVar   = 0x03
	scmTagInt8       = 0x04
	scmTagInt16      = 0x05
	scmTagFloat      = 0x06
	scmTagGlobalArr  = 0x07
	scmTagLocalArr   = 0x08
	scmTagString8    = 0x09
)

// ScriptMeta carries the job-level metadata the binary header needs
// beyond the instruction stream itself: how much global variable
// storage this compile unit claims, and the model table it was
// compiled against.
type ScriptMeta struct {
	GlobalVarWords int
	Models         *ModelRegistry
}

// streamedEntry is one row of San Andreas's streamed-script table. This
// driver compiles one script per output file (see driver.go), so the
// table this emitter writes covers only the job's own script, not a
// cross-job catalog; a linker stage packing several compiled scripts
// into one streamed-script archive would be the place to grow this
// into a real multi-entry table.
type streamedEntry struct {
	Name string
	Size int32
}

// SCMGenerator emits the binary SCM encoding of a lowered instruction
// stream in two passes: the first computes every instruction's byte
// offset so label operands can be resolved to absolute offsets, the
// second writes the final bytes.
type SCMGenerator struct {
	opts   *Options
	meta   ScriptMeta
	labels map[string]int // label name -> byte offset, from pass one
}

// NewSCMGenerator creates a generator for the given target version and
// feature flags.
func NewSCMGenerator(opts *Options, meta ScriptMeta) *SCMGenerator {
	return &SCMGenerator{opts: opts, meta: meta}
}

// headerSize computes the exact byte length writeHeader will produce,
// used as a post-write sanity check against the scmbuf it actually
// wrote.
func headerSize(v HeaderVersion, cleo bool, modelCount, streamedCount int) int {
	if cleo {
		return 4 + 4 // "CLEO" magic + version word
	}
	switch v {
	case GTASA:
		size := 4           // variable-storage size
		size += 4 + modelCount*24 // model count + 24-byte name records
		size += 4                 // main script size
		size += 4 + streamedCount*(8+4)
		return size
	case GTAVC:
		return 1 + 4 + 4 // format tag + variable-storage size + main size
	default: // GTA3
		return 4 + 4 // variable-storage size + main size
	}
}

func (g *SCMGenerator) writeHeader(w io.Writer, totalSize int) error {
	if g.opts.Headerless {
		return nil
	}
	var models []ModelEntry
	if g.meta.Models != nil {
		models = g.meta.Models.Entries()
	}
	var streamed []streamedEntry
	if g.opts.StreamedScripts {
		streamed = []streamedEntry{{Name: "script", Size: int32(totalSize)}}
	}

	hb := &scmbuf{}
	switch {
	case g.opts.Cleo:
		hb.raw([]byte("CLEO"))
		hb.u32(uint32(g.opts.CleoVersion))
	case g.opts.Config == GTASA:
		hb.u32(uint32(g.meta.GlobalVarWords * 4))
		hb.u32(uint32(len(models)))
		for _, m := range models {
			hb.textLabel(m.Name, 24)
		}
		hb.u32(uint32(totalSize))
		hb.u32(uint32(len(streamed)))
		for _, s := range streamed {
			hb.textLabel(s.Name, 8)
			hb.u32(uint32(s.Size))
		}
	case g.opts.Config == GTAVC:
		hb.u8(1)
		hb.u32(uint32(g.meta.GlobalVarWords * 4))
		hb.u32(uint32(totalSize))
	default: // GTA3
		hb.u32(uint32(g.meta.GlobalVarWords * 4))
		hb.u32(uint32(totalSize))
	}
	if hb.err != nil {
		return hb.err
	}
	if want := headerSize(g.opts.Config, g.opts.Cleo, len(models), len(streamed)); hb.w.Len() != want {
		return fmt.Errorf("internal: wrote %d header bytes, expected %d", hb.w.Len(), want)
	}
	_, err := w.Write(hb.w.Bytes())
	return err
}

// sizeOf returns the encoded byte size of instr under the current
// options, used by the first offset-resolution pass.
func (g *SCMGenerator) sizeOf(instr *Instruction) int {
	size := 2 // opcode id, little-endian uint16
	for _, a := range instr.Args {
		size += g.operandSize(a)
	}
	return size
}

func (g *SCMGenerator) operandSize(o Operand) int {
	switch o.Kind {
	case OperandInt:
		switch o.Width {
		case Width8:
			return 2
		case Width16:
			return 3
		default:
			return 5
		}
	case OperandFloat:
		return 5
	case OperandGlobalVar, OperandLocalVar:
		return 3
	case OperandLabel:
		return 5
	case OperandString, OperandTextLabel:
		return 1 + 8
	default:
		return 0
	}
}

// ResolveOffsets runs the first pass, assigning each label a byte
// offset relative to the start of the instruction stream.
func (g *SCMGenerator) ResolveOffsets(instrs []*Instruction) {
	g.labels = make(map[string]int)
	offset := 0
	for _, instr := range instrs {
		for _, lbl := range instr.Labels {
			g.labels[lbl] = offset
		}
		offset += g.sizeOf(instr)
	}
}

func (g *SCMGenerator) labelOffset(name string) (int32, bool) {
	off, ok := g.labels[name]
	if !ok {
		return 0, false
	}
	if g.opts.UseLocalOffsets {
		return -int32(off), true
	}
	return int32(off), true
}

// Generate runs the second pass, writing the resolved binary image.
func (g *SCMGenerator) Generate(w io.Writer, instrs []*Instruction, opcodes *CommandDB) error {
	if g.labels == nil {
		g.ResolveOffsets(instrs)
	}
	body := &scmbuf{}
	for _, instr := range instrs {
		g.writeInstruction(body, instr, opcodes)
	}
	if body.err != nil {
		return body.err
	}
	if err := g.writeHeader(w, body.w.Len()); err != nil {
		return err
	}
	_, err := w.Write(body.w.Bytes())
	return err
}

func (g *SCMGenerator) writeInstruction(b *scmbuf, instr *Instruction, opcodes *CommandDB) {
	opcode := uint16(0)
	if c, ok := opcodes.FindCommand(instr.Opcode); ok {
		opcode = c.Opcode
	}
	if instr.Negated && g.opts.RelaxNot {
		opcode |= 0x8000
	}
	b.u16(opcode)
	for _, a := range instr.Args {
		g.writeOperand(b, a)
	}
}

func (g *SCMGenerator) writeOperand(b *scmbuf, o Operand) {
	switch o.Kind {
	case OperandInt:
		switch o.Width {
		case Width8:
			b.u8(scmTagInt8)
			b.i8(int8(o.IntValue))
		case Width16:
			b.u8(scmTagInt16)
			b.i16(int16(o.IntValue))
		default:
			b.u8(scmTagInt32)
			b.i32(int32(o.IntValue))
		}
	case OperandFloat:
		b.u8(scmTagFloat)
		b.f32(float32(o.FloatValue))
	case OperandGlobalVar:
		b.u8(scmTagGlobalVar)
		b.u16(uint16(o.VarIndex))
	case OperandLocalVar:
		b.u8(scmTagLocalVar)
		b.u16(uint16(o.VarIndex))
	case OperandString, OperandTextLabel:
		b.u8(scmTagString8)
		b.textLabel(o.StrValue, 8)
	case OperandLabel:
		off, ok := g.labelOffset(o.Label)
		if !ok {
			b.err = fmt.Errorf("unresolved label %q", o.Label)
			return
		}
		b.u8(scmTagInt32)
		b.i32(off)
	default:
		b.err = fmt.Errorf("unencodable operand kind %v", o.Kind)
	}
}
