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

import "fmt"

// OperandKind tags an Operand's variant: a single-byte discriminator
// over a tagged value union.
type OperandKind byte

const (
	OperandInt OperandKind = iota
	OperandFloat
	OperandGlobalVar
	OperandLocalVar
	OperandString
	OperandTextLabel
	OperandLabel
)

// IntWidth is the chosen serialization width of an integer Operand,
// picked by the code generator's integer-width minimality rule — never
// by the analyzer or lowerer.
type IntWidth int

const (
	WidthNone IntWidth = iota
	Width8
	Width16
	Width32
)

// Operand is one argument of a lowered Instruction.
type Operand struct {
	Kind OperandKind

	IntValue   int64
	Width      IntWidth // meaningful only when Kind == OperandInt
	FloatValue float64
	VarIndex   int    // meaningful for OperandGlobalVar/OperandLocalVar
	StrValue   string // meaningful for OperandString/OperandTextLabel
	Label      string // meaningful for OperandLabel; resolved late
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandInt:
		suffix := map[IntWidth]string{Width8: "i8", Width16: "i16", Width32: "i32"}[o.Width]
		return fmt.Sprintf("%d%s", o.IntValue, suffix)
	case OperandFloat:
		return fmt.Sprintf("%gf", o.FloatValue)
	case OperandGlobalVar:
		return fmt.Sprintf("&%d", o.VarIndex)
	case OperandLocalVar:
		return fmt.Sprintf("%d@", o.VarIndex)
	case OperandString, OperandTextLabel:
		return fmt.Sprintf("%q", o.StrValue)
	case OperandLabel:
		return "@" + o.Label
	default:
		return "?"
	}
}

// MinimalIntWidth picks the smallest signed width holding v: int8 for
// [-128,127], int16 for [-32768,32767], else int32.
func MinimalIntWidth(v int64) IntWidth {
	switch {
	case v >= -128 && v <= 127:
		return Width8
	case v >= -32768 && v <= 32767:
		return Width16
	default:
		return Width32
	}
}

// IntOperand builds an Operand for an integer literal at its minimal
// width.
func IntOperand(v int64) Operand {
	return Operand{Kind: OperandInt, IntValue: v, Width: MinimalIntWidth(v)}
}

// LabelOperand builds an unresolved label reference.
func LabelOperand(name string) Operand {
	return Operand{Kind: OperandLabel, Label: name}
}

// Instruction is one IR2/SCM instruction after lowering: an opcode name
// (resolved against the CommandDB at emission time) plus its operands.
type Instruction struct {
	Opcode string
	Args   []Operand
	Pos    SourcePos

	// Labels holds every label name defined at this instruction's IR
	// position (normally zero or one, but a user label and a
	// lowering-synthesized label can coincide).
	Labels []string

	// Negated sets the binary encoder's high opcode bit for a NOT-style
	// condition test, governed by Options.RelaxNot.
	Negated bool

	// Predicated marks an instruction lowered by the skip_single_ifs
	// fusion: it executes only if the condition
	// instruction immediately preceding it evaluated true, with no
	// intervening jump or label.
	Predicated bool

	// byteOffset and size are not set by any pass; the binary emitter's
	// first pass keeps label offsets in SCMGenerator.labels instead.
	byteOffset int
	size       int
}

// SwitchTable is the case/default/end-label shape SWITCH_START and the
// chained SWITCH_CONTINUED instructions are packed from.
type SwitchTable struct {
	Discriminant *Variable
	Cases        []SwitchCaseEntry // sorted ascending by Value
	Default      string            // label name
	End          string            // label name
}

// SwitchCaseEntry is one (value, label) pair.
type SwitchCaseEntry struct {
	Value int64
	Label string
}

const (
	// SwitchStartSlots is the fixed payload width of SWITCH_START.
	SwitchStartSlots = 7
	// SwitchContinuedSlots is the fixed payload width of each chained
	// SWITCH_CONTINUED.
	SwitchContinuedSlots = 9
	// SwitchSentinelValue fills unused trailing slots.
	SwitchSentinelValue = -1
)

// NumContinuations returns how many SWITCH_CONTINUED instructions follow
// SWITCH_START for n casesstep 4.
func NumContinuations(n int) int {
	if n <= SwitchStartSlots {
		return 0
	}
	rem := n - SwitchStartSlots
	return (rem + SwitchContinuedSlots - 1) / SwitchContinuedSlots
}
