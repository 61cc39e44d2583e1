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
	"fmt"
	"sort"
)

// loopFrame is one entry of the lowerer's breakable-statement stack,
// mirroring the analyzer's: each enclosing breakable statement pushes
// (break_target, continue_target)
type loopFrame struct {
	kind breakableKind
	brk  string
	cont string // empty for a SWITCH frame; only loops carry one
}

// Lowerer translates an analyzed statement list into a labeled linear
// sequence of Instructions, accumulating into a mutable builder and
// finalizing labels once the whole statement list has been walked.
type Lowerer struct {
	syms       *SymbolTable
	opts       *Options
	scriptName string
	stats      *Stats

	instrs   []*Instruction
	labelPos map[string]int // label name -> instruction index (== len(instrs) for a trailing label)
	seq      int

	frames []loopFrame
}

// NewLowerer creates a Lowerer for one job, after a successful Analyze.
// stats may be nil, in which case pass counters are simply not
// collected.
func NewLowerer(syms *SymbolTable, opts *Options, scriptName string, stats *Stats) *Lowerer {
	return &Lowerer{
		syms:       syms,
		opts:       opts,
		scriptName: scriptName,
		stats:      stats,
		labelPos:   make(map[string]int),
	}
}

// Lower runs the lowerer over a full statement list and returns the
// resulting linear instruction stream plus the synthetic label ->
// position table (user labels are resolved the same way, via
// attachLabelToNext called from lowerLabel).
func (l *Lowerer) Lower(stmts []Stmt) ([]*Instruction, map[string]int) {
	for _, s := range stmts {
		s.lower(l)
	}
	return l.instrs, l.labelPos
}

// syntheticLabelPrefix marks a lowerer-generated label name so
// mangleLabel can tell it apart from a user-declared one: GOTO/label
// source identifiers never start with '$'.
const syntheticLabelPrefix = "$"

func (l *Lowerer) newLabel() string {
	l.seq++
	return fmt.Sprintf("%s%d", syntheticLabelPrefix, l.seq)
}

func (l *Lowerer) defineLabel(name string) {
	idx := len(l.instrs)
	l.labelPos[name] = idx
	if idx < len(l.instrs) {
		return
	}
}

// attachLabelToNext records that the instruction about to be emitted (or, if
// none follows, the trailing position) is the target of name. Call
// before emit() for the instruction the label should point to.
func (l *Lowerer) attachLabelToNext(name string) {
	l.labelPos[name] = len(l.instrs)
}

func (l *Lowerer) emit(opcode string, args ...Operand) *Instruction {
	instr := &Instruction{Opcode: opcode, Args: args}
	l.instrs = append(l.instrs, instr)
	if l.stats != nil {
		l.stats.Add(StatInstructionsEmitted, 1)
	}
	return instr
}

// finalizeLabels tags every Instruction at a recorded label position
// with the label names that target it, so codegen can read labels
// straight off the instruction stream instead of consulting labelPos.
func (l *Lowerer) finalizeLabels() {
	for name, idx := range l.labelPos {
		if idx < len(l.instrs) {
			l.instrs[idx].Labels = append(l.instrs[idx].Labels, name)
		}
	}
}

func exprToOperand(e Expr) Operand {
	switch v := e.(type) {
	case *IntLit:
		return IntOperand(v.Value)
	case *FloatLit:
		return Operand{Kind: OperandFloat, FloatValue: v.Value}
	case *StringLit:
		return Operand{Kind: OperandString, StrValue: v.Value}
	case *VarRef:
		if v.Resolved == nil {
			return Operand{}
		}
		if v.Resolved.Scope == ScopeGlobal {
			return Operand{Kind: OperandGlobalVar, VarIndex: v.Resolved.Index}
		}
		return Operand{Kind: OperandLocalVar, VarIndex: v.Resolved.Index}
	case *EnumRef:
		return IntOperand(int64(v.Resolved))
	default:
		return Operand{}
	}
}

func (l *Lowerer) lowerCommand(s *CommandStmt) {
	args := make([]Operand, len(s.Args))
	for i, a := range s.Args {
		args[i] = exprToOperand(a)
	}
	name := s.Name
	if s.Resolved != nil {
		name = s.Resolved.Name
	}
	l.emit(name, args...)
}

func (l *Lowerer) lowerScriptName(s *ScriptNameStmt) {
	l.emit("SCRIPT_NAME", Operand{Kind: OperandTextLabel, StrValue: s.Name})
}

func (l *Lowerer) lowerLabel(s *LabelStmt) {
	l.attachLabelToNext(s.Name)
	if s.Resolved != nil {
		l.syms.DefineLabelTarget(s.Resolved, len(l.instrs))
	}
}

func (l *Lowerer) lowerGoto(s *GotoStmt) {
	l.emit("GOTO", LabelOperand(s.Label))
}

// lowerConds emits every condition in conds as its own instruction
// (Negated set per-condition) and, when there's more than one, an ANDOR
// combinator instruction expressing whether they're ANDed or ORed
// together — the realization this repo picked for GTA3script's
// multi-condition IF/WHILE forms.
func (l *Lowerer) lowerConds(conds []*CondExpr, any bool) {
	for _, c := range conds {
		args := make([]Operand, len(c.Args))
		for i, a := range c.Args {
			args[i] = exprToOperand(a)
		}
		instr := l.emit(c.Command, args...)
		instr.Negated = c.Not
	}
	if len(conds) > 1 {
		n := int64(len(conds))
		if any {
			n = -n
		}
		l.emit("ANDOR", IntOperand(n))
	}
}

func (l *Lowerer) lowerIf(s *IfStmt) {
	if l.opts.SkipSingleIfs && len(s.Conds) == 1 && s.Else == nil && len(s.Then) == 1 {
		l.lowerConds(s.Conds, s.Any)
		for _, st := range s.Then {
			st.lower(l)
		}
		if len(l.instrs) > 0 {
			l.instrs[len(l.instrs)-1].Predicated = true
		}
		return
	}

	l.lowerConds(s.Conds, s.Any)
	elseOrEnd := l.newLabel()
	l.emit("JUMP_IF_FALSE", LabelOperand(elseOrEnd))
	for _, st := range s.Then {
		st.lower(l)
	}
	if s.Else != nil {
		end := l.newLabel()
		l.emit("GOTO", LabelOperand(end))
		l.attachLabelToNext(elseOrEnd)
		for _, st := range s.Else {
			st.lower(l)
		}
		l.attachLabelToNext(end)
		return
	}
	l.attachLabelToNext(elseOrEnd)
}

func (l *Lowerer) lowerWhile(s *WhileStmt) {
	top := l.newLabel()
	end := l.newLabel()
	l.attachLabelToNext(top)
	l.lowerConds(s.Conds, s.Any)
	l.emit("JUMP_IF_FALSE", LabelOperand(end))
	l.frames = append(l.frames, loopFrame{kind: breakableLoop, brk: end, cont: top})
	for _, st := range s.Body {
		st.lower(l)
	}
	l.frames = l.frames[:len(l.frames)-1]
	l.emit("GOTO", LabelOperand(top))
	l.attachLabelToNext(end)
}

func (l *Lowerer) lowerRepeat(s *RepeatStmt) {
	zero := IntOperand(0)
	_ = zero
	top := l.newLabel()
	end := l.newLabel()
	countOp := exprToOperand(s.Count)
	varOp := exprToOperand(s.Var)
	l.emit("SET_VAR_INT", varOp, IntOperand(0))
	l.attachLabelToNext(top)
	l.frames = append(l.frames, loopFrame{kind: breakableLoop, brk: end, cont: top})
	for _, st := range s.Body {
		st.lower(l)
	}
	l.frames = l.frames[:len(l.frames)-1]
	l.emit("ADD_VAL_TO_INT_VAR", varOp, IntOperand(1))
	isGreater := l.emit("IS_GREATER", varOp, countOp)
	_ = isGreater
	l.emit("JUMP_IF_FALSE", LabelOperand(top))
	l.attachLabelToNext(end)
}

func (l *Lowerer) lowerBreak(s *BreakStmt) {
	if len(l.frames) == 0 {
		return
	}
	top := l.frames[len(l.frames)-1]
	l.emit("GOTO", LabelOperand(top.brk))
}

func (l *Lowerer) lowerContinue(s *ContinueStmt) {
	for i := len(l.frames) - 1; i >= 0; i-- {
		if l.frames[i].kind == breakableLoop {
			l.emit("GOTO", LabelOperand(l.frames[i].cont))
			return
		}
	}
}

func (l *Lowerer) lowerScope(s *ScopeStmt) {
	for _, st := range s.Body {
		st.lower(l)
	}
}

// lowerSwitch is the design kernel: it packs cases into
// SWITCH_START plus chained SWITCH_CONTINUED instructions, each with a
// fixed slot width, sentinel-padded, case bodies emitted afterward in
// source order.
func (l *Lowerer) lowerSwitch(s *SwitchStmt) {
	if l.stats != nil {
		l.stats.Add(StatSwitchesLowered, 1)
	}
	end := l.newLabel()
	var defaultLabel string
	if s.Default != nil {
		defaultLabel = l.newLabel()
	} else {
		defaultLabel = end
	}

	// Assign one body label per source CASE group, in source order.
	bodyLabels := make([]string, len(s.Cases))
	var entries []SwitchCaseEntry
	for i, c := range s.Cases {
		bodyLabels[i] = l.newLabel()
		for _, v := range c.Values {
			entries = append(entries, SwitchCaseEntry{Value: v, Label: bodyLabels[i]})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Value < entries[j].Value })

	discOp := exprToOperand(s.Discriminant)
	sentinel := func() (Operand, Operand) {
		return Operand{Kind: OperandInt, IntValue: SwitchSentinelValue, Width: Width8}, LabelOperand(end)
	}

	emitSlots := func(opcode string, slots int, chunk []SwitchCaseEntry, prefix []Operand) {
		args := append([]Operand{}, prefix...)
		for i := 0; i < slots; i++ {
			if i < len(chunk) {
				e := chunk[i]
				args = append(args, Operand{Kind: OperandInt, IntValue: e.Value, Width: MinimalIntWidth(e.Value)}, LabelOperand(e.Label))
			} else {
				v, lbl := sentinel()
				args = append(args, v, lbl)
			}
		}
		l.emit(opcode, args...)
	}

	first := entries
	if len(first) > SwitchStartSlots {
		first = entries[:SwitchStartSlots]
	}
	emitSlots("SWITCH_START", SwitchStartSlots, first,
		[]Operand{discOp, IntOperand(int64(len(entries))), LabelOperand(defaultLabel)})

	rest := entries[len(first):]
	for len(rest) > 0 {
		chunk := rest
		if len(chunk) > SwitchContinuedSlots {
			chunk = rest[:SwitchContinuedSlots]
		}
		emitSlots("SWITCH_CONTINUED", SwitchContinuedSlots, chunk, nil)
		rest = rest[len(chunk):]
	}

	l.frames = append(l.frames, loopFrame{kind: breakableSwitch, brk: end})
	for i, c := range s.Cases {
		l.attachLabelToNext(bodyLabels[i])
		for _, st := range c.Body {
			st.lower(l)
		}
	}
	if s.Default != nil {
		l.attachLabelToNext(defaultLabel)
		for _, st := range s.Default {
			st.lower(l)
		}
	}
	l.frames = l.frames[:len(l.frames)-1]
	l.attachLabelToNext(end)
}

// BuildSwitchTable reconstructs the logical SwitchTable a lowered
// SWITCH_START/SWITCH_CONTINUED chain encodes, used by tests asserting
// the packing invariants of
func BuildSwitchTable(discriminant *Variable, start *Instruction, continuations []*Instruction) *SwitchTable {
	t := &SwitchTable{Discriminant: discriminant}
	if len(start.Args) < 3 {
		return t
	}
	t.Default = start.Args[2].Label
	rest := start.Args[3:]
	readPairs := func(ops []Operand) {
		for i := 0; i+1 < len(ops); i += 2 {
			if ops[i].IntValue == SwitchSentinelValue && ops[i].Width == Width8 {
				t.End = ops[i+1].Label
				continue
			}
			t.Cases = append(t.Cases, SwitchCaseEntry{Value: ops[i].IntValue, Label: ops[i+1].Label})
		}
	}
	readPairs(rest)
	for _, c := range continuations {
		readPairs(c.Args)
	}
	return t
}
