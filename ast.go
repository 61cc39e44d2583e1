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

// Stmt is a parsed GTA3script statement. Each concrete type double-
// dispatches into the Analyzer and Lowerer via its own analyze/lower
// methods, kept as two separate passes since semantic analysis and
// control-flow lowering are distinct stages rather than one combined
// evaluation pass.
type Stmt interface {
	Pos() SourcePos
	analyze(a *Analyzer)
	lower(l *Lowerer)
}

type stmtBase struct {
	pos SourcePos
}

func (s stmtBase) Pos() SourcePos { return s.pos }

// Expr is a parsed expression: a literal, a variable reference, or an
// enum member reference.
type Expr interface {
	Pos() SourcePos
	String() string
}

type exprBase struct {
	pos SourcePos
}

func (e exprBase) Pos() SourcePos { return e.pos }

// IntLit is an integer literal; its emitted width is chosen later by the
// code generator, never at parse time.
type IntLit struct {
	exprBase
	Value int64
}

func (e *IntLit) String() string { return fmt.Sprintf("%d", e.Value) }

// FloatLit is a floating point literal.
type FloatLit struct {
	exprBase
	Value float64
}

func (e *FloatLit) String() string { return fmt.Sprintf("%g", e.Value) }

// StringLit is a quoted string or text-label literal.
type StringLit struct {
	exprBase
	Value string
}

func (e *StringLit) String() string { return fmt.Sprintf("%q", e.Value) }

// VarRef is a reference to a declared variable.
type VarRef struct {
	exprBase
	Name string

	// Resolved is filled in by the Analyzer.
	Resolved *Variable
}

func (e *VarRef) String() string { return e.Name }

// EnumRef is a reference to an enum member, e.g. CAR_TYPE.TAXI.
type EnumRef struct {
	exprBase
	Enum   string
	Member string

	Resolved int32
}

func (e *EnumRef) String() string { return e.Enum + "." + e.Member }

// CondExpr is a single boolean-valued command test used inside IF/WHILE,
// e.g. IS_GREATER player_health 50. GTA3script has no general boolean
// expression grammar: every condition is a command call, optionally
// negated.
type CondExpr struct {
	exprBase
	Not     bool
	Command string
	Args    []Expr

	Resolved *Command
}

func (e *CondExpr) String() string {
	if e.Not {
		return "NOT " + e.Command
	}
	return e.Command
}

// CommandStmt is a call to a command or alternator, used both for plain
// statements (e.g. `PRINT_HELP "FOO"`) and for the operator-sugar forms
// GTA3script desugars to alternator calls (e.g. `x = 5` resolving to the
// SET alternator).
type CommandStmt struct {
	stmtBase
	Name string
	Args []Expr

	Resolved *Command
}

// ScriptNameStmt declares SCRIPT_NAME, whose argument must be unique
// across the whole program.
type ScriptNameStmt struct {
	stmtBase
	Name string
}

// VarDeclStmt declares one or more variables of a single scope and type.
type VarDeclStmt struct {
	stmtBase
	Scope     VarScope
	Type      VarType
	Names     []string
	ArrayLens []int // parallel to Names; 0 when not an array
}

// DefineStmt is a #DEFINE preprocessor constant.
type DefineStmt struct {
	stmtBase
	Name  string
	Value string
}

// LabelStmt defines a label at the current position.
type LabelStmt struct {
	stmtBase
	Name     string
	Resolved *Label // bound by the analyzer, consulted by the lowerer
}

// GotoStmt is an explicit GOTO, distinct from the implicit gotos the
// lowerer synthesizes for control flow.
type GotoStmt struct {
	stmtBase
	Label string
}

// IfStmt is IF/ELSE. Multiple Conds are combined by Any: false means
// every condition must hold (AND), true means any one suffices (OR),
// matching GTA3script's ANDOR condition-combining keyword.
type IfStmt struct {
	stmtBase
	Conds []*CondExpr
	Any   bool
	Then  []Stmt
	Else  []Stmt // nil when there is no ELSE
}

// WhileStmt is WHILE, with the same condition-combining shape as IfStmt.
type WhileStmt struct {
	stmtBase
	Conds []*CondExpr
	Any   bool
	Body  []Stmt
}

// RepeatStmt is REPEAT n var.
type RepeatStmt struct {
	stmtBase
	Count Expr
	Var   *VarRef
	Body  []Stmt
}

// BreakStmt is BREAK.
type BreakStmt struct{ stmtBase }

// ContinueStmt is CONTINUE.
type ContinueStmt struct{ stmtBase }

// ScopeStmt is a lexical `{ ... }` block introducing scoped labels.
type ScopeStmt struct {
	stmtBase
	Body []Stmt
}

// SwitchCase is one CASE (or group of fallthrough-free CASE labels
// sharing one body).
type SwitchCase struct {
	Values []int64
	Body   []Stmt
}

// SwitchStmt is SWITCH, the design kernel of the lowerer.
type SwitchStmt struct {
	stmtBase
	Discriminant *VarRef
	Cases        []SwitchCase
	Default      []Stmt // nil when there is no DEFAULT
}

func (s *CommandStmt) analyze(a *Analyzer)    { a.analyzeCommand(s) }
func (s *ScriptNameStmt) analyze(a *Analyzer) { a.analyzeScriptName(s) }
func (s *VarDeclStmt) analyze(a *Analyzer)    { a.analyzeVarDecl(s) }
func (s *DefineStmt) analyze(a *Analyzer)     { a.analyzeDefine(s) }
func (s *LabelStmt) analyze(a *Analyzer)      { a.analyzeLabel(s) }
func (s *GotoStmt) analyze(a *Analyzer)       { a.analyzeGoto(s) }
func (s *IfStmt) analyze(a *Analyzer)         { a.analyzeIf(s) }
func (s *WhileStmt) analyze(a *Analyzer)      { a.analyzeWhile(s) }
func (s *RepeatStmt) analyze(a *Analyzer)     { a.analyzeRepeat(s) }
func (s *BreakStmt) analyze(a *Analyzer)      { a.analyzeBreak(s) }
func (s *ContinueStmt) analyze(a *Analyzer)   { a.analyzeContinue(s) }
func (s *ScopeStmt) analyze(a *Analyzer)      { a.analyzeScope(s) }
func (s *SwitchStmt) analyze(a *Analyzer)     { a.analyzeSwitch(s) }

func (s *CommandStmt) lower(l *Lowerer)    { l.lowerCommand(s) }
func (s *ScriptNameStmt) lower(l *Lowerer) { l.lowerScriptName(s) }
func (s *VarDeclStmt) lower(l *Lowerer)    {}
func (s *DefineStmt) lower(l *Lowerer)     {}
func (s *LabelStmt) lower(l *Lowerer)      { l.lowerLabel(s) }
func (s *GotoStmt) lower(l *Lowerer)       { l.lowerGoto(s) }
func (s *IfStmt) lower(l *Lowerer)         { l.lowerIf(s) }
func (s *WhileStmt) lower(l *Lowerer)      { l.lowerWhile(s) }
func (s *RepeatStmt) lower(l *Lowerer)     { l.lowerRepeat(s) }
func (s *BreakStmt) lower(l *Lowerer)      { l.lowerBreak(s) }
func (s *ContinueStmt) lower(l *Lowerer)   { l.lowerContinue(s) }
func (s *ScopeStmt) lower(l *Lowerer)      { l.lowerScope(s) }
func (s *SwitchStmt) lower(l *Lowerer)     { l.lowerSwitch(s) }
