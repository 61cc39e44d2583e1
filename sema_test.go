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
	"strings"
	"testing"
)

func newTestAnalyzer(opts *Options) (*Analyzer, *Sink) {
	syms := NewSymbolTable(1024, 32, 256)
	sink := NewSink(func(string) {})
	ctx := NewProgramContext(opts, NewCommandDB(), NewModelRegistry())
	return NewAnalyzer(ctx, syms, sink, "job-1", nil), sink
}

func TestAnalyzeBreakOutsideAnything(t *testing.T) {
	a, sink := newTestAnalyzer(DefaultOptions())
	a.analyzeBreak(&BreakStmt{})
	if _, _, errs, _, _ := sink.Counts(); errs == 0 {
		t.Error("BREAK outside SWITCH/loop should report an error")
	}
}

func TestAnalyzeBreakInsideSwitchAlwaysAllowed(t *testing.T) {
	a, sink := newTestAnalyzer(DefaultOptions())
	a.breakStack = append(a.breakStack, breakableSwitch)
	a.analyzeBreak(&BreakStmt{})
	if _, _, errs, _, _ := sink.Counts(); errs != 0 {
		t.Error("BREAK inside SWITCH should never require allow_break_continue")
	}
}

func TestAnalyzeBreakInsideLoopRequiresFlag(t *testing.T) {
	a, sink := newTestAnalyzer(DefaultOptions())
	a.breakStack = append(a.breakStack, breakableLoop)
	a.analyzeBreak(&BreakStmt{})
	if _, _, errs, _, _ := sink.Counts(); errs == 0 {
		t.Error("BREAK inside a loop without allow_break_continue should report an error")
	}
}

func TestAnalyzeContinueSkipsEnclosingSwitchFrame(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowBreakContinue = true
	a, sink := newTestAnalyzer(opts)
	a.breakStack = append(a.breakStack, breakableLoop, breakableSwitch)
	a.analyzeContinue(&ContinueStmt{})
	if _, _, errs, _, _ := sink.Counts(); errs != 0 {
		t.Error("CONTINUE should reach past an intervening SWITCH frame to the enclosing loop")
	}
}

func TestAnalyzeContinueInsideSwitchOnlyIsError(t *testing.T) {
	a, sink := newTestAnalyzer(DefaultOptions())
	a.breakStack = append(a.breakStack, breakableSwitch)
	a.analyzeContinue(&ContinueStmt{})
	if _, _, errs, _, _ := sink.Counts(); errs == 0 {
		t.Error("CONTINUE with only an enclosing SWITCH (no loop) should report an error")
	}
}

func TestResolveCallUnknownCommand(t *testing.T) {
	a, sink := newTestAnalyzer(DefaultOptions())
	c := a.resolveCall(SourcePos{}, "NOT_A_REAL_COMMAND", nil)
	if c != nil {
		t.Errorf("resolveCall() = %v, want nil for an unknown command", c)
	}
	if _, _, errs, _, _ := sink.Counts(); errs == 0 {
		t.Error("unknown command should report an error")
	}
}

func TestReportUnsupportedIsFatalByDefault(t *testing.T) {
	a, sink := newTestAnalyzer(DefaultOptions())
	a.reportUnsupported(SourcePos{}, "SOME_COMMAND")
	if _, _, _, fatals, _ := sink.Counts(); fatals == 0 {
		t.Error("unsupported command should be fatal without --pedantic")
	}
	if a.halted == nil {
		t.Error("reportUnsupported should halt the job without --pedantic")
	}
}

func TestReportUnsupportedIsNonFatalUnderPedantic(t *testing.T) {
	opts := DefaultOptions()
	opts.Pedantic = true
	a, sink := newTestAnalyzer(opts)
	a.reportUnsupported(SourcePos{}, "SOME_COMMAND")
	if _, _, errs, fatals, _ := sink.Counts(); errs == 0 || fatals != 0 {
		t.Errorf("unsupported command under --pedantic should report a non-fatal error, got errs=%d fatals=%d", errs, fatals)
	}
	if a.halted != nil {
		t.Error("reportUnsupported under --pedantic should not halt the job")
	}
}

func TestDuplicateScriptNameReferencesBothLocations(t *testing.T) {
	var lines []string
	sink := NewSink(func(line string) { lines = append(lines, line) })
	ctx := NewProgramContext(DefaultOptions(), NewCommandDB(), NewModelRegistry())

	first := SourcePos{File: "one.sc", Line: 1, Col: 1}
	a1 := NewAnalyzer(ctx, NewSymbolTable(1024, 32, 256), sink, "job-1", nil)
	a1.analyzeScriptName(&ScriptNameStmt{stmtBase: stmtBase{pos: first}, Name: "MAIN"})
	if _, _, errs, _, _ := sink.Counts(); errs != 0 {
		t.Fatalf("first SCRIPT_NAME declaration should not error, got %d errors", errs)
	}

	second := SourcePos{File: "two.sc", Line: 5, Col: 1}
	a2 := NewAnalyzer(ctx, NewSymbolTable(1024, 32, 256), sink, "job-2", nil)
	a2.analyzeScriptName(&ScriptNameStmt{stmtBase: stmtBase{pos: second}, Name: "MAIN"})
	if _, _, errs, _, _ := sink.Counts(); errs == 0 {
		t.Fatal("duplicate SCRIPT_NAME across jobs should report an error")
	}
	if a2.halted != nil {
		t.Error("duplicate SCRIPT_NAME is an Error, not a Fatal; the job should not halt")
	}

	var report string
	for _, l := range lines {
		if strings.Contains(l, "duplicate SCRIPT_NAME") {
			report = l
		}
	}
	if !strings.Contains(report, "two.sc") || !strings.Contains(report, "one.sc") {
		t.Errorf("duplicate SCRIPT_NAME diagnostic = %q, want it to reference both one.sc and two.sc", report)
	}
}
