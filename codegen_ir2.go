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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// IR2Generator emits the textual intermediate representation of a
// lowered instruction stream: one instruction per line, typed-suffix
// operands, mangled labels, walking the Instruction slice and writing
// to a buffered writer.
type IR2Generator struct {
	scriptName string
	w          *bufio.Writer
}

// NewIR2Generator creates a generator for one job's output.
func NewIR2Generator(w io.Writer, scriptName string) *IR2Generator {
	return &IR2Generator{scriptName: scriptName, w: bufio.NewWriter(w)}
}

// mangleLabel applies the {script}_{seq} convention for labels that
// didn't come from a user-declared label, keeping user labels as-is.
// The lowerer marks its own synthesized labels with syntheticLabelPrefix
// so this is the one place that convention turns into the printed name;
// a name already in {script}_{seq} form (from a prior mangling, as
// happens re-emitting a parsed-back IR2 stream) passes through
// unchanged.
func mangleLabel(scriptName, name string) string {
	seq, ok := strings.CutPrefix(name, syntheticLabelPrefix)
	if !ok {
		return name
	}
	return fmt.Sprintf("%s_%s", scriptName, seq)
}

// Generate writes every instruction in order, labels first.
func (g *IR2Generator) Generate(instrs []*Instruction) error {
	for _, instr := range instrs {
		for _, lbl := range instr.Labels {
			fmt.Fprintf(g.w, "%s:\n", mangleLabel(g.scriptName, lbl))
		}
		g.writeInstruction(instr)
	}
	return g.w.Flush()
}

func (g *IR2Generator) writeInstruction(instr *Instruction) {
	opcode := instr.Opcode
	if instr.Negated {
		opcode = "NOT " + opcode
	}
	if instr.Predicated {
		g.w.WriteString("  ")
	}
	g.w.WriteString(opcode)
	for _, arg := range instr.Args {
		g.w.WriteByte(' ')
		g.w.WriteString(g.argString(arg))
	}
	g.w.WriteByte('\n')
}

func (g *IR2Generator) argString(o Operand) string {
	if o.Kind == OperandLabel {
		return "@" + mangleLabel(g.scriptName, o.Label)
	}
	return o.String()
}

// parseIR2 reads back the exact textual form Generate writes: label
// lines ("name:"), then one instruction per line with a "NOT " opcode
// prefix for a negated condition and a two-space prefix for a
// predicated instruction. It exists solely to drive -fverify-ir2's
// round-trip check, not as a general IR2 front-end.
func parseIR2(r io.Reader) ([]*Instruction, error) {
	var instrs []*Instruction
	var pending []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, " ") && strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			pending = append(pending, strings.TrimSuffix(line, ":"))
			continue
		}
		predicated := strings.HasPrefix(line, "  ")
		line = strings.TrimPrefix(line, "  ")
		negated := strings.HasPrefix(line, "NOT ")
		line = strings.TrimPrefix(line, "NOT ")

		fields, err := splitIR2Fields(line)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty instruction line")
		}
		args := make([]Operand, 0, len(fields)-1)
		for _, f := range fields[1:] {
			arg, err := parseIR2Operand(f)
			if err != nil {
				return nil, fmt.Errorf("operand %q: %w", f, err)
			}
			args = append(args, arg)
		}
		instrs = append(instrs, &Instruction{
			Opcode:     fields[0],
			Args:       args,
			Labels:     pending,
			Negated:    negated,
			Predicated: predicated,
		})
		pending = nil
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return instrs, nil
}

// splitIR2Fields splits s on spaces, treating a double-quoted run (as
// produced by fmt's %q, which argString relies on for string/text-label
// operands) as a single field even when it contains internal spaces.
func splitIR2Fields(s string) ([]string, error) {
	var fields []string
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		if s[i] == '"' {
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				i++
			}
			if i >= len(s) {
				return nil, fmt.Errorf("unterminated quoted operand in %q", s)
			}
			i++
		} else {
			for i < len(s) && s[i] != ' ' {
				i++
			}
		}
		fields = append(fields, s[start:i])
	}
	return fields, nil
}

func parseIR2Operand(tok string) (Operand, error) {
	switch {
	case strings.HasPrefix(tok, `"`):
		s, err := strconv.Unquote(tok)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandString, StrValue: s}, nil
	case strings.HasPrefix(tok, "@"):
		return LabelOperand(tok[1:]), nil
	case strings.HasPrefix(tok, "&"):
		n, err := strconv.Atoi(tok[1:])
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandGlobalVar, VarIndex: n}, nil
	case strings.HasSuffix(tok, "@"):
		n, err := strconv.Atoi(tok[:len(tok)-1])
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandLocalVar, VarIndex: n}, nil
	case strings.HasSuffix(tok, "f"):
		v, err := strconv.ParseFloat(tok[:len(tok)-1], 64)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandFloat, FloatValue: v}, nil
	case strings.HasSuffix(tok, "i8"), strings.HasSuffix(tok, "i16"), strings.HasSuffix(tok, "i32"):
		cut := strings.IndexAny(tok, "i")
		n, err := strconv.ParseInt(tok[:cut], 10, 64)
		if err != nil {
			return Operand{}, err
		}
		return IntOperand(n), nil
	default:
		return Operand{}, fmt.Errorf("unrecognized operand syntax")
	}
}

// VerifyIR2RoundTrip emits instrs as IR2, re-parses that output, emits
// it again, and reports an error if the two emissions diverge. This is
// -fverify-ir2's round-trip check: a drift here means the IR2 writer
// and the shape it produces have come apart from each other.
func VerifyIR2RoundTrip(scriptName string, instrs []*Instruction) error {
	var first bytes.Buffer
	if err := NewIR2Generator(&first, scriptName).Generate(instrs); err != nil {
		return fmt.Errorf("emitting ir2: %w", err)
	}
	reparsed, err := parseIR2(bytes.NewReader(first.Bytes()))
	if err != nil {
		return fmt.Errorf("re-parsing ir2: %w", err)
	}
	var second bytes.Buffer
	if err := NewIR2Generator(&second, scriptName).Generate(reparsed); err != nil {
		return fmt.Errorf("re-emitting ir2: %w", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		return fmt.Errorf("ir2 output is not stable across a parse/re-emit round trip")
	}
	return nil
}
