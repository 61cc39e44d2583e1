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

import "sync"

// ProgramContext is the shared, read-only-after-construction compile
// state every job consults.
//
// scriptNames is a deliberate, narrow exception to that rule: enforcing
// script_name_check requires detecting a duplicate
// SCRIPT_NAME across *independently running* jobs, so that one table
// has to be shared mutable state too, alongside the Sink's diagnostic
// counters. It is guarded by its own mutex and touched only through
// CheckScriptName, never iterated or mutated directly by a job.
type ProgramContext struct {
	Options  *Options
	Commands *CommandDB
	Models   *ModelRegistry

	mu          sync.Mutex
	scriptNames map[string]SourcePos
}

// NewProgramContext assembles the shared state used by every parallel
// job. Call this once before spawning any job.
func NewProgramContext(opts *Options, commands *CommandDB, models *ModelRegistry) *ProgramContext {
	if opts.TextLabelVars && commands != nil {
		commands.TextLabelVars = true
	}
	return &ProgramContext{
		Options:     opts,
		Commands:    commands,
		Models:      models,
		scriptNames: make(map[string]SourcePos),
	}
}

// CheckScriptName registers name as declared at pos, returning the
// position of a prior declaration if name was already taken.
func (pc *ProgramContext) CheckScriptName(name string, pos SourcePos) (prior SourcePos, dup bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if p, ok := pc.scriptNames[name]; ok {
		return p, true
	}
	pc.scriptNames[name] = pos
	return SourcePos{}, false
}
