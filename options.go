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

// HeaderVersion selects the target game's header/opcode layout.
type HeaderVersion int

const (
	GTA3 HeaderVersion = iota
	GTAVC
	GTASA
)

func (v HeaderVersion) String() string {
	switch v {
	case GTA3:
		return "gta3"
	case GTAVC:
		return "gtavc"
	case GTASA:
		return "gtasa"
	default:
		return "unknown"
	}
}

// Options is the plain record of every compiler flag, one typed field
// per option rather than a dynamically-typed container.
type Options struct {
	Config HeaderVersion

	Guesser       bool
	Pedantic      bool
	EmitIR2       bool
	SyntaxOnly    bool
	VerifyIR2     bool
	Switch        bool
	Arrays        bool
	ScopeThenLabel bool
	Cleo          bool
	CleoVersion   int
	Headerless    bool
	StreamedScripts bool
	Defines       map[string]string

	// EntityTracking controls whether the analyzer propagates
	// entity-type annotations onto assigned variables.
	EntityTracking bool
	// AllowBreakContinue permits BREAK/CONTINUE inside WHILE/REPEAT in
	// addition to SWITCH.
	AllowBreakContinue bool
	// SkipSingleIfs fuses a single-statement, else-less IF into one
	// conditional instruction.
	SkipSingleIfs bool
	// RelaxNot governs whether NOT-style condition negation is encoded
	// as a high opcode bit instead of a distinct opcode.
	RelaxNot bool
	// UseLocalOffsets negates resolved label offsets for mission and
	// streamed scripts.
	UseLocalOffsets bool
	// TextLabelVars widens text-label parameter slots to accept
	// text-label variables.
	TextLabelVars bool
	// ScriptNameCheck enforces SCRIPT_NAME uniqueness.
	ScriptNameCheck bool
	// SwitchCaseLimit bounds the number of cases a single SWITCH may
	// declare; 0 means unbounded.
	SwitchCaseLimit int
	// MaxErrors bounds per-job Error diagnostics before suppression;
	// 0 means unbounded.
	MaxErrors int

	// Variable index layout.
	MissionVarBegin int
	LocalVarLimit   int
	MissionVarLimit int
}

// DefaultOptions returns the conservative defaults matching a plain
// `--config=gta3` invocation with no feature flags raised.
func DefaultOptions() *Options {
	return &Options{
		Config:          GTA3,
		Defines:         make(map[string]string),
		ScriptNameCheck: true,
		MissionVarBegin: 16 * 1024,
		LocalVarLimit:   32,
		MissionVarLimit: 8 * 1024,
	}
}
