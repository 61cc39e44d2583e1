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
	"testing"
)

func simpleInstrs() []*Instruction {
	return []*Instruction{
		{Opcode: "WAIT", Args: []Operand{IntOperand(100)}},
		{Opcode: "GOTO", Args: []Operand{LabelOperand("loop")}, Labels: []string{"loop"}},
	}
}

func TestSCMGeneratorGTA3Header(t *testing.T) {
	opts := DefaultOptions()
	opts.Config = GTA3
	gen := NewSCMGenerator(opts, ScriptMeta{GlobalVarWords: 10})
	gen.ResolveOffsets(simpleInstrs())

	var buf bytes.Buffer
	commands := NewCommandDB()
	commands.AddCommand(&Command{Name: "WAIT", Opcode: 0x0001})
	commands.AddCommand(&Command{Name: "GOTO", Opcode: 0x0002})
	if err := gen.Generate(&buf, simpleInstrs(), commands); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if buf.Len() < 8 {
		t.Fatalf("output too short for a GTA3 header: %d bytes", buf.Len())
	}
	varWords := binary.LittleEndian.Uint32(buf.Bytes()[0:4])
	if varWords != 40 {
		t.Errorf("variable-storage size = %d, want 40 (10 words * 4)", varWords)
	}
}

func TestSCMGeneratorGTAVCHeader(t *testing.T) {
	opts := DefaultOptions()
	opts.Config = GTAVC
	gen := NewSCMGenerator(opts, ScriptMeta{GlobalVarWords: 2})
	instrs := simpleInstrs()
	gen.ResolveOffsets(instrs)

	var buf bytes.Buffer
	commands := NewCommandDB()
	if err := gen.Generate(&buf, instrs, commands); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if buf.Bytes()[0] != 1 {
		t.Errorf("GTAVC header format tag = %d, want 1", buf.Bytes()[0])
	}
	varWords := binary.LittleEndian.Uint32(buf.Bytes()[1:5])
	if varWords != 8 {
		t.Errorf("variable-storage size = %d, want 8 (2 words * 4)", varWords)
	}
}

func TestSCMGeneratorGTASAHeaderWithModels(t *testing.T) {
	opts := DefaultOptions()
	opts.Config = GTASA
	models := NewModelRegistry()
	models.set("player", 0)
	models.set("cj", 1)

	gen := NewSCMGenerator(opts, ScriptMeta{GlobalVarWords: 4, Models: models})
	instrs := simpleInstrs()
	gen.ResolveOffsets(instrs)

	var buf bytes.Buffer
	commands := NewCommandDB()
	if err := gen.Generate(&buf, instrs, commands); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	b := buf.Bytes()
	varWords := binary.LittleEndian.Uint32(b[0:4])
	if varWords != 16 {
		t.Errorf("variable-storage size = %d, want 16", varWords)
	}
	modelCount := binary.LittleEndian.Uint32(b[4:8])
	if modelCount != 2 {
		t.Errorf("model count = %d, want 2", modelCount)
	}
	wantHeaderLen := headerSize(GTASA, false, 2, 0)
	if len(b) < wantHeaderLen {
		t.Fatalf("output shorter than computed header size: %d < %d", len(b), wantHeaderLen)
	}
}

func TestSCMGeneratorGTASAStreamedScripts(t *testing.T) {
	opts := DefaultOptions()
	opts.Config = GTASA
	opts.StreamedScripts = true
	gen := NewSCMGenerator(opts, ScriptMeta{})
	instrs := simpleInstrs() // body is 11 bytes: WAIT(2+2) + GOTO(2+5)

	var buf bytes.Buffer
	commands := NewCommandDB()
	if err := gen.Generate(&buf, instrs, commands); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	wantHeader := headerSize(GTASA, false, 0, 1)
	if buf.Len() != wantHeader+11 {
		t.Errorf("output length = %d, want %d (header) + 11 (body)", buf.Len(), wantHeader)
	}
	if withoutTable := headerSize(GTASA, false, 0, 0); wantHeader == withoutTable {
		t.Fatalf("headerSize does not grow with streamedCount")
	}
}

func TestSCMGeneratorCleoHeader(t *testing.T) {
	opts := DefaultOptions()
	opts.Config = GTASA
	opts.Cleo = true
	opts.CleoVersion = 3
	gen := NewSCMGenerator(opts, ScriptMeta{GlobalVarWords: 99})
	instrs := simpleInstrs()
	gen.ResolveOffsets(instrs)

	var buf bytes.Buffer
	commands := NewCommandDB()
	if err := gen.Generate(&buf, instrs, commands); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b := buf.Bytes()
	if len(b) < 8 || string(b[0:4]) != "CLEO" {
		n := len(b)
		if n > 8 {
			n = 8
		}
		t.Fatalf("CLEO header missing magic, got %q", b[:n])
	}
	version := binary.LittleEndian.Uint32(b[4:8])
	if version != 3 {
		t.Errorf("CLEO version word = %d, want 3", version)
	}
}

func TestSCMGeneratorHeaderless(t *testing.T) {
	opts := DefaultOptions()
	opts.Headerless = true
	gen := NewSCMGenerator(opts, ScriptMeta{})
	instrs := simpleInstrs()
	gen.ResolveOffsets(instrs)

	var buf bytes.Buffer
	commands := NewCommandDB()
	if err := gen.Generate(&buf, instrs, commands); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	// WAIT (2 opcode + 2 tag/value) + GOTO (2 opcode + 5 tag/offset)
	if buf.Len() != 11 {
		t.Errorf("headerless output length = %d, want 11 (body only)", buf.Len())
	}
}

func TestSCMGeneratorLabelOffsetResolution(t *testing.T) {
	opts := DefaultOptions()
	gen := NewSCMGenerator(opts, ScriptMeta{})
	instrs := []*Instruction{
		{Opcode: "GOTO", Args: []Operand{LabelOperand("target")}},
		{Opcode: "WAIT", Args: []Operand{IntOperand(0)}, Labels: []string{"target"}},
	}
	gen.ResolveOffsets(instrs)

	off, ok := gen.labelOffset("target")
	if !ok {
		t.Fatalf("labelOffset(%q) not found", "target")
	}
	// GOTO's own instruction (opcode + label operand) is 2+5=7 bytes.
	if off != 7 {
		t.Errorf("labelOffset(target) = %d, want 7", off)
	}

	if _, ok := gen.labelOffset("missing"); ok {
		t.Errorf("labelOffset(missing) reported resolved, want unresolved")
	}
}

func TestSCMGeneratorUnresolvedLabelFails(t *testing.T) {
	opts := DefaultOptions()
	gen := NewSCMGenerator(opts, ScriptMeta{})
	instrs := []*Instruction{
		{Opcode: "GOTO", Args: []Operand{LabelOperand("nowhere")}},
	}
	gen.ResolveOffsets(instrs)

	var buf bytes.Buffer
	commands := NewCommandDB()
	commands.AddCommand(&Command{Name: "GOTO", Opcode: 0x0002})
	if err := gen.Generate(&buf, instrs, commands); err == nil {
		t.Fatal("Generate() with an unresolved label succeeded, want an error")
	}
}

func TestSCMGeneratorUseLocalOffsetsNegatesLabel(t *testing.T) {
	opts := DefaultOptions()
	opts.UseLocalOffsets = true
	gen := NewSCMGenerator(opts, ScriptMeta{})
	instrs := []*Instruction{
		{Opcode: "WAIT", Args: []Operand{IntOperand(0)}, Labels: []string{"here"}},
		{Opcode: "GOTO", Args: []Operand{LabelOperand("here")}},
	}
	gen.ResolveOffsets(instrs)

	off, ok := gen.labelOffset("here")
	if !ok {
		t.Fatalf("labelOffset(%q) not found", "here")
	}
	if off != 0 {
		t.Errorf("labelOffset(here) = %d, want 0 (negated offset of 0 is still 0)", off)
	}

	instrs2 := []*Instruction{
		{Opcode: "GOTO", Args: []Operand{LabelOperand("here")}},
		{Opcode: "WAIT", Args: []Operand{IntOperand(0)}, Labels: []string{"here"}},
	}
	gen2 := NewSCMGenerator(opts, ScriptMeta{})
	gen2.ResolveOffsets(instrs2)
	off2, ok := gen2.labelOffset("here")
	if !ok {
		t.Fatalf("labelOffset(%q) not found", "here")
	}
	if off2 >= 0 {
		t.Errorf("labelOffset(here) = %d, want a negative local offset", off2)
	}
}

func TestSCMGeneratorNegatedOpcodeBit(t *testing.T) {
	opts := DefaultOptions()
	opts.RelaxNot = true
	gen := NewSCMGenerator(opts, ScriptMeta{})
	instrs := []*Instruction{
		{Opcode: "IS_GREATER", Args: nil, Negated: true},
	}
	gen.ResolveOffsets(instrs)

	var buf bytes.Buffer
	commands := NewCommandDB()
	commands.AddCommand(&Command{Name: "IS_GREATER", Opcode: 0x0010})
	if err := gen.Generate(&buf, instrs, commands); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	opcode := binary.LittleEndian.Uint16(buf.Bytes()[:2])
	if opcode&0x8000 == 0 {
		t.Errorf("opcode = %#x, want high bit set for a negated condition under RelaxNot", opcode)
	}
}

func TestModelRegistryEntriesSortedByID(t *testing.T) {
	m := NewModelRegistry()
	m.set("zeta", 5)
	m.set("alpha", 1)
	m.set("mid", 3)

	entries := m.Entries()
	if len(entries) != 3 {
		t.Fatalf("Entries() len = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID > entries[i].ID {
			t.Fatalf("Entries() not sorted ascending by ID: %v", entries)
		}
	}
}
