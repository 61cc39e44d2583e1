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

// breakableKind distinguishes the statement kinds BREAK/CONTINUE may
// escape's allow_break_continue rule.
type breakableKind int

const (
	breakableSwitch breakableKind = iota
	breakableLoop
)

// Analyzer walks a parsed tree, binding identifiers and resolving
// commands. It accumulates non-fatal diagnostics into the
// shared Sink and keeps going to surface as many as possible; only a
// Halted return aborts the job. Analysis and lowering are kept as two
// separate passes over the tree rather than one combined walk.
type Analyzer struct {
	ctx   *ProgramContext
	syms  *SymbolTable
	sink  *Sink
	jobID string

	scriptName string // current script's declared name, for diagnostics
	breakStack []breakableKind

	stats  *Stats
	halted *Halted
}

// NewAnalyzer creates an Analyzer for one job. stats may be nil, in
// which case pass counters are simply not collected.
func NewAnalyzer(ctx *ProgramContext, syms *SymbolTable, sink *Sink, jobID string, stats *Stats) *Analyzer {
	syms.ScopeThenLabel = ctx.Options.ScopeThenLabel
	return &Analyzer{ctx: ctx, syms: syms, sink: sink, jobID: jobID, stats: stats}
}

func (a *Analyzer) countStat(name string) {
	if a.stats != nil {
		a.stats.Add(name, 1)
	}
}

// Analyze runs the analyzer over a full statement list (one script's
// body). It returns a non-nil *Halted only when a Fatal diagnostic (or
// an exhausted error budget) stopped the job early.
func (a *Analyzer) Analyze(stmts []Stmt) *Halted {
	for _, s := range stmts {
		if a.halted != nil {
			return a.halted
		}
		s.analyze(a)
	}
	return a.halted
}

func (a *Analyzer) report(d Diagnostic) {
	if a.halted != nil {
		return
	}
	if h := a.sink.Report(a.jobID, d); h != nil {
		a.halted = h
	}
}

func (a *Analyzer) errorf(pos SourcePos, format string, args ...interface{}) {
	a.report(Diagnostic{Severity: Error, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (a *Analyzer) warnf(pos SourcePos, format string, args ...interface{}) {
	a.report(Diagnostic{Severity: Warning, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (a *Analyzer) fatalf(pos SourcePos, format string, args ...interface{}) {
	a.report(Diagnostic{Severity: Fatal, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// argType statically infers the ArgType of expr, resolving VarRef/EnumRef
// against the symbol table as a side effect.
func (a *Analyzer) argType(expr Expr) ArgType {
	switch e := expr.(type) {
	case *IntLit:
		return ArgType{Kind: KindInt32, IntValue: e.Value, HasIntValue: true}
	case *FloatLit:
		return ArgType{Kind: KindFloat32}
	case *StringLit:
		return ArgType{Kind: KindString}
	case *VarRef:
		v, ok := a.syms.LookupVariable(e.Name)
		if !ok {
			if a.ctx.Options.Guesser {
				nv, err := a.syms.DeclareVariable(e.Name, ScopeGlobal, TypeInt, 0)
				if err != nil {
					a.errorf(e.Pos(), "%s", err)
					return ArgType{}
				}
				a.warnf(e.Pos(), "variable %q inferred as global int (guesser)", e.Name)
				v = nv
			} else {
				a.errorf(e.Pos(), "undeclared variable %q", e.Name)
				return ArgType{}
			}
		}
		e.Resolved = v
		if v.Scope == ScopeGlobal {
			return ArgType{Kind: KindGlobalVar}
		}
		return ArgType{Kind: KindLocalVar}
	case *EnumRef:
		en, ok := a.syms.LookupEnum(e.Enum)
		if !ok {
			a.errorf(e.Pos(), "undeclared enum %q", e.Enum)
			return ArgType{}
		}
		val, ok := en.Members[e.Member]
		if !ok {
			a.errorf(e.Pos(), "enum %q has no member %q", e.Enum, e.Member)
			return ArgType{}
		}
		e.Resolved = val
		return ArgType{Kind: KindEnum, EnumRef: e.Enum, IntValue: int64(val), HasIntValue: true}
	default:
		return ArgType{}
	}
}

// resolveCall resolves name against either a direct Command or an
// Alternator, reporting a no-match or ambiguous-call diagnostic when
// resolution fails.
func (a *Analyzer) resolveCall(pos SourcePos, name string, args []Expr) *Command {
	argTypes := make([]ArgType, len(args))
	for i, arg := range args {
		argTypes[i] = a.argType(arg)
	}
	if c, ok := a.ctx.Commands.FindCommand(name); ok {
		if !c.Supported {
			a.reportUnsupported(pos, name)
			return nil
		}
		a.countStat(StatCommandsResolved)
		return c
	}
	if alt, ok := a.ctx.Commands.FindAlternator(name); ok {
		a.countStat(StatAlternatorsCalled)
		c, rerr := a.ctx.Commands.ResolveAlternator(alt, argTypes)
		switch rerr {
		case ResolveOK:
			a.countStat(StatCommandsResolved)
			return c
		case ResolveNoMatch:
			a.errorf(pos, "no overload of %q matches the given arguments", name)
		case ResolveAmbiguous:
			a.errorf(pos, "ambiguous call to %q: more than one overload matches", name)
		}
		return nil
	}
	a.errorf(pos, "unknown command or alternator %q", name)
	return nil
}

func (a *Analyzer) reportUnsupported(pos SourcePos, name string) {
	if a.ctx.Options.Pedantic {
		a.errorf(pos, "command %q is not supported by --config=%s", name, a.ctx.Options.Config)
		return
	}
	a.fatalf(pos, "command %q is not supported by --config=%s", name, a.ctx.Options.Config)
}

func (a *Analyzer) propagateEntityType(c *Command, args []Expr) {
	if !a.ctx.Options.EntityTracking || c.EntityType == "" {
		return
	}
	for i, p := range c.Params {
		if !p.Out || i >= len(args) {
			continue
		}
		if vr, ok := args[i].(*VarRef); ok && vr.Resolved != nil {
			vr.Resolved.EntityType = c.EntityType
		}
	}
}

func (a *Analyzer) analyzeCommand(s *CommandStmt) {
	c := a.resolveCall(s.Pos(), s.Name, s.Args)
	s.Resolved = c
	if c != nil {
		a.propagateEntityType(c, s.Args)
	}
}

func (a *Analyzer) analyzeCond(e *CondExpr) {
	c := a.resolveCall(e.Pos(), e.Command, e.Args)
	e.Resolved = c
}

func (a *Analyzer) analyzeScriptName(s *ScriptNameStmt) {
	a.scriptName = s.Name
	if !a.ctx.Options.ScriptNameCheck {
		return
	}
	if prior, dup := a.ctx.CheckScriptName(s.Name, s.Pos()); dup {
		a.errorf(s.Pos(), "duplicate SCRIPT_NAME %q (first declared at %s)", s.Name, prior)
	}
}

func (a *Analyzer) analyzeVarDecl(s *VarDeclStmt) {
	for i, name := range s.Names {
		arrLen := 0
		if i < len(s.ArrayLens) {
			arrLen = s.ArrayLens[i]
		}
		if arrLen > 0 && !a.ctx.Options.Arrays {
			a.errorf(s.Pos(), "array declaration of %q requires -farrays", name)
			continue
		}
		if _, err := a.syms.DeclareVariable(name, s.Scope, s.Type, arrLen); err != nil {
			a.errorf(s.Pos(), "%s", err)
		}
	}
}

func (a *Analyzer) analyzeDefine(s *DefineStmt) {
	a.syms.DefineConstant(&Constant{Name: s.Name, Val: s.Value})
}

func (a *Analyzer) analyzeLabel(s *LabelStmt) {
	l, err := a.syms.DeclareLabel(s.Name, a.scriptName, s.Pos())
	if err != nil {
		a.errorf(s.Pos(), "%s", err)
		return
	}
	s.Resolved = l
}

func (a *Analyzer) analyzeGoto(s *GotoStmt) {
	if _, ok := a.syms.LookupLabel(s.Label); !ok {
		a.errorf(s.Pos(), "GOTO references undeclared label %q", s.Label)
	}
}

func (a *Analyzer) analyzeConds(conds []*CondExpr) {
	for _, c := range conds {
		a.analyzeCond(c)
	}
}

func (a *Analyzer) analyzeIf(s *IfStmt) {
	a.analyzeConds(s.Conds)
	if !s.Any && len(s.Conds) == 0 {
		a.errorf(s.Pos(), "IF has no conditions")
	}
	for _, st := range s.Then {
		if a.halted != nil {
			return
		}
		st.analyze(a)
	}
	for _, st := range s.Else {
		if a.halted != nil {
			return
		}
		st.analyze(a)
	}
}

func (a *Analyzer) analyzeWhile(s *WhileStmt) {
	a.analyzeConds(s.Conds)
	a.breakStack = append(a.breakStack, breakableLoop)
	for _, st := range s.Body {
		if a.halted != nil {
			break
		}
		st.analyze(a)
	}
	a.breakStack = a.breakStack[:len(a.breakStack)-1]
}

func (a *Analyzer) analyzeRepeat(s *RepeatStmt) {
	a.argType(s.Count)
	a.argType(s.Var)
	a.breakStack = append(a.breakStack, breakableLoop)
	for _, st := range s.Body {
		if a.halted != nil {
			break
		}
		st.analyze(a)
	}
	a.breakStack = a.breakStack[:len(a.breakStack)-1]
}

// analyzeBreak checks BREAK against the *nearest* enclosing breakable
// frame, switch or loop.
func (a *Analyzer) analyzeBreak(s *BreakStmt) {
	if len(a.breakStack) == 0 {
		a.errorf(s.Pos(), "BREAK outside of a SWITCH or loop")
		return
	}
	top := a.breakStack[len(a.breakStack)-1]
	if top == breakableLoop && !a.ctx.Options.AllowBreakContinue {
		a.errorf(s.Pos(), "BREAK inside a loop requires allow_break_continue")
	}
}

// analyzeContinue checks CONTINUE against the nearest enclosing *loop*
// frame specifically: an intervening SWITCH frame does not block it, it
// simply searches past it. The breakable-statement stack is per-frame,
// but only loop frames carry a continue target.
func (a *Analyzer) analyzeContinue(s *ContinueStmt) {
	for i := len(a.breakStack) - 1; i >= 0; i-- {
		if a.breakStack[i] == breakableLoop {
			if !a.ctx.Options.AllowBreakContinue {
				a.errorf(s.Pos(), "CONTINUE inside a loop requires allow_break_continue")
			}
			return
		}
	}
	a.errorf(s.Pos(), "CONTINUE outside of a loop")
}

func (a *Analyzer) analyzeScope(s *ScopeStmt) {
	a.syms.PushScope("<block>")
	for _, st := range s.Body {
		if a.halted != nil {
			break
		}
		st.analyze(a)
	}
	a.syms.PopScope()
}

func (a *Analyzer) analyzeSwitch(s *SwitchStmt) {
	if !a.ctx.Options.Switch {
		a.errorf(s.Pos(), "SWITCH requires -fswitch")
		return
	}
	a.argType(s.Discriminant)

	limit := a.ctx.Options.SwitchCaseLimit
	seen := make(map[int64]bool)
	total := 0
	for _, c := range s.Cases {
		total += len(c.Values)
	}
	if limit > 0 && total > limit {
		a.errorf(s.Pos(), "SWITCH has %d cases, exceeding switch_case_limit of %d", total, limit)
	}

	a.breakStack = append(a.breakStack, breakableSwitch)
	for _, c := range s.Cases {
		for _, v := range c.Values {
			if seen[v] {
				a.errorf(s.Pos(), "duplicate CASE value %d", v)
				continue
			}
			seen[v] = true
		}
		if err := a.analyzeCaseBody(c.Body); err != nil {
			a.errorf(s.Pos(), "%s", err)
		}
	}
	if s.Default != nil {
		if err := a.analyzeCaseBody(s.Default); err != nil {
			a.errorf(s.Pos(), "%s", err)
		}
	}
	a.breakStack = a.breakStack[:len(a.breakStack)-1]
}

// analyzeCaseBody walks one CASE/DEFAULT body and enforces the
// fall-through prohibition: the body must end in BREAK (or another
// terminating statement) rather than simply running off the end into
// the next case.
func (a *Analyzer) analyzeCaseBody(body []Stmt) error {
	for _, st := range body {
		if a.halted != nil {
			return nil
		}
		st.analyze(a)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty CASE body falls through, which is not permitted")
	}
	switch body[len(body)-1].(type) {
	case *BreakStmt, *GotoStmt:
		return nil
	default:
		return fmt.Errorf("CASE body must end in BREAK (fall-through is not permitted)")
	}
}
