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

import "testing"

func lowerStmts(t *testing.T, stmts []Stmt) []*Instruction {
	t.Helper()
	l := NewLowerer(NewSymbolTable(1024, 32, 256), DefaultOptions(), "test", nil)
	instrs, _ := l.Lower(stmts)
	l.finalizeLabels()
	return instrs
}

func countOpcode(instrs []*Instruction, opcode string) int {
	n := 0
	for _, i := range instrs {
		if i.Opcode == opcode {
			n++
		}
	}
	return n
}

// TestLowerSwitchSmall covers a SWITCH with fewer cases than
// SwitchStartSlots: no SWITCH_CONTINUED should be emitted, and the
// sentinel pair should point at the end label.
func TestLowerSwitchSmall(t *testing.T) {
	sw := &SwitchStmt{
		Discriminant: &VarRef{Name: "x"},
		Cases: []SwitchCase{
			{Values: []int64{2}, Body: []Stmt{&BreakStmt{}}},
			{Values: []int64{1}, Body: []Stmt{&BreakStmt{}}},
		},
	}
	instrs := lowerStmts(t, []Stmt{sw})

	if n := countOpcode(instrs, "SWITCH_START"); n != 1 {
		t.Fatalf("SWITCH_START count = %d, want 1", n)
	}
	if n := countOpcode(instrs, "SWITCH_CONTINUED"); n != 0 {
		t.Fatalf("SWITCH_CONTINUED count = %d, want 0 for 2 cases", n)
	}

	start := instrs[0]
	if len(start.Args) != 3+2*SwitchStartSlots {
		t.Fatalf("SWITCH_START arg count = %d, want %d", len(start.Args), 3+2*SwitchStartSlots)
	}
	// Cases are packed sorted ascending by value: 1 before 2.
	firstVal := start.Args[3]
	secondVal := start.Args[5]
	if firstVal.IntValue != 1 || secondVal.IntValue != 2 {
		t.Errorf("packed case order = (%d, %d), want (1, 2) ascending", firstVal.IntValue, secondVal.IntValue)
	}
	// Unused trailing slots are the (-1i8, @end) sentinel.
	lastVal := start.Args[3+2*2]
	if lastVal.IntValue != SwitchSentinelValue || lastVal.Width != Width8 {
		t.Errorf("sentinel value = %d (width %v), want %d (width Width8)", lastVal.IntValue, lastVal.Width, SwitchSentinelValue)
	}
}

// TestLowerSwitchContinuations covers a SWITCH with more cases than
// SwitchStartSlots, verifying NumContinuations chained
// SWITCH_CONTINUED instructions follow SWITCH_START.
func TestLowerSwitchContinuations(t *testing.T) {
	const numCases = 20
	sw := &SwitchStmt{Discriminant: &VarRef{Name: "x"}}
	for i := 0; i < numCases; i++ {
		sw.Cases = append(sw.Cases, SwitchCase{Values: []int64{int64(i)}, Body: []Stmt{&BreakStmt{}}})
	}
	instrs := lowerStmts(t, []Stmt{sw})

	want := NumContinuations(numCases)
	if got := countOpcode(instrs, "SWITCH_CONTINUED"); got != want {
		t.Fatalf("SWITCH_CONTINUED count = %d, want %d", got, want)
	}
}

// TestLowerSwitchCaseBodyOrder verifies case bodies are emitted in
// source order even though the packed table is sorted by value.
func TestLowerSwitchCaseBodyOrder(t *testing.T) {
	sw := &SwitchStmt{
		Discriminant: &VarRef{Name: "x"},
		Cases: []SwitchCase{
			{Values: []int64{9}, Body: []Stmt{&CommandStmt{Name: "FIRST"}, &BreakStmt{}}},
			{Values: []int64{1}, Body: []Stmt{&CommandStmt{Name: "SECOND"}, &BreakStmt{}}},
		},
	}
	instrs := lowerStmts(t, []Stmt{sw})

	var order []string
	for _, i := range instrs {
		if i.Opcode == "FIRST" || i.Opcode == "SECOND" {
			order = append(order, i.Opcode)
		}
	}
	if len(order) != 2 || order[0] != "FIRST" || order[1] != "SECOND" {
		t.Errorf("case body emission order = %v, want [FIRST SECOND] (source order)", order)
	}
}

func TestLowerIfElse(t *testing.T) {
	stmt := &IfStmt{
		Conds: []*CondExpr{{Command: "IS_GREATER", Args: []Expr{&VarRef{Name: "x"}, &IntLit{Value: 5}}}},
		Then:  []Stmt{&CommandStmt{Name: "THEN_BRANCH"}},
		Else:  []Stmt{&CommandStmt{Name: "ELSE_BRANCH"}},
	}
	instrs := lowerStmts(t, []Stmt{stmt})

	var names []string
	for _, i := range instrs {
		names = append(names, i.Opcode)
	}
	if countOpcode(instrs, "THEN_BRANCH") != 1 || countOpcode(instrs, "ELSE_BRANCH") != 1 {
		t.Fatalf("lowerIf output = %v, want both branches present", names)
	}
	if countOpcode(instrs, "JUMP_IF_FALSE") != 1 || countOpcode(instrs, "GOTO") != 1 {
		t.Errorf("lowerIf output = %v, want one JUMP_IF_FALSE and one GOTO", names)
	}
}

func TestLowerIfSkipSingle(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipSingleIfs = true
	stmt := &IfStmt{
		Conds: []*CondExpr{{Command: "IS_GREATER", Args: []Expr{&VarRef{Name: "x"}, &IntLit{Value: 5}}}},
		Then:  []Stmt{&CommandStmt{Name: "ONLY_BRANCH"}},
	}
	l := NewLowerer(NewSymbolTable(1024, 32, 256), opts, "test", nil)
	instrs, _ := l.Lower([]Stmt{stmt})

	if countOpcode(instrs, "JUMP_IF_FALSE") != 0 {
		t.Errorf("skip_single_ifs should avoid emitting JUMP_IF_FALSE, got %d", countOpcode(instrs, "JUMP_IF_FALSE"))
	}
	last := instrs[len(instrs)-1]
	if last.Opcode != "ONLY_BRANCH" || !last.Predicated {
		t.Errorf("last instruction = %+v, want Predicated ONLY_BRANCH", last)
	}
}

func TestLowerContinueSkipsSwitchFrame(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowBreakContinue = true
	whileStmt := &WhileStmt{
		Conds: []*CondExpr{{Command: "IS_GREATER", Args: []Expr{&VarRef{Name: "x"}, &IntLit{Value: 0}}}},
		Body: []Stmt{
			&SwitchStmt{
				Discriminant: &VarRef{Name: "y"},
				Cases: []SwitchCase{
					{Values: []int64{1}, Body: []Stmt{&ContinueStmt{}}},
				},
			},
		},
	}
	l := NewLowerer(NewSymbolTable(1024, 32, 256), opts, "test", nil)
	instrs, labels := l.Lower([]Stmt{whileStmt})
	l.finalizeLabels()

	// The WHILE's own top label must be the CONTINUE's GOTO target, not
	// the SWITCH's end label.
	var gotoCount int
	var target string
	for _, i := range instrs {
		if i.Opcode == "GOTO" {
			gotoCount++
			// CONTINUE's GOTO is emitted before the WHILE's own back-edge GOTO.
			if len(i.Args) == 1 && target == "" {
				target = i.Args[0].Label
			}
		}
	}
	if gotoCount == 0 {
		t.Fatal("expected at least one GOTO from CONTINUE")
	}
	pos, ok := labels[target]
	if !ok {
		t.Errorf("CONTINUE's GOTO target %q has no recorded label position", target)
	}
	if pos != 0 {
		t.Errorf("CONTINUE's GOTO target %q is at instruction %d, want 0 (the WHILE's condition)", target, pos)
	}
}
