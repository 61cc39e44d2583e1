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
	"sync"
)

// Stats accumulates per-pass compile counters across every parallel job
// (commands resolved, switches lowered, instructions emitted, and so
// on), keyed by an arbitrary counter name: a mutex-protected map instead
// of per-counter atomics, since counters here are read only once at the
// end of a run rather than polled during it.
type Stats struct {
	mu   sync.Mutex
	data map[string]int
}

// NewStats creates an empty counter set.
func NewStats() *Stats {
	return &Stats{data: make(map[string]int)}
}

// Add increments the named counter by delta. Safe for concurrent use by
// multiple jobs.
func (s *Stats) Add(name string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] += delta
}

// Get returns the current value of a counter.
func (s *Stats) Get(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[name]
}

// Report returns every counter sorted by name; the CLI logs these lines
// at glog verbosity 1.
func (s *Stats) Report() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for k := range s.data {
		names = append(names, k)
	}
	sort.Strings(names)
	var lines []string
	for _, n := range names {
		lines = append(lines, fmt.Sprintf("%s: %d", n, s.data[n]))
	}
	return lines
}

// Well-known counter names used by the analyzer, lowerer, and code
// generators.
const (
	StatCommandsResolved  = "commands_resolved"
	StatAlternatorsCalled = "alternators_called"
	StatSwitchesLowered   = "switches_lowered"
	StatInstructionsEmitted = "instructions_emitted"
	StatJobsCompleted    = "jobs_completed"
	StatDiagnostics      = "diagnostics"
)
