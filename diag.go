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
	"bytes"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Severity is a diagnostic's taxonomy level.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
	Fatal
	InternalError
)

func (s Severity) String() string {
	switch s {
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal error"
	case InternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// SourcePos is a location in a GTA3script source file.
type SourcePos struct {
	File string
	Line int
	Col  int
}

func (p SourcePos) String() string {
	if p.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Halted is returned by a job's pipeline once a Fatal diagnostic has
// been raised, signaling a non-local unwind. A reference-implementation
// compiler might use an exception for this, which has no idiomatic Go
// analogue, so a sentinel error threaded through ordinary returns stands
// in for it.
type Halted struct {
	Reason string
}

func (h *Halted) Error() string {
	return fmt.Sprintf("halted: %s", h.Reason)
}

// Diagnostic is one reported note/warning/error/fatal/internal_error.
type Diagnostic struct {
	Severity   Severity
	Pos        SourcePos
	Message    string
	SourceLine string // optional full line of source, for caret context
}

// Format renders the diagnostic:
//
//	{file}:{line}:{col}: {kind}: {message}
//	 {source-line}
//	 {caret}
func (d Diagnostic) Format() string {
	var buf bytes.Buffer
	if pos := d.Pos.String(); pos != "" {
		fmt.Fprintf(&buf, "%s: %s: %s\n", pos, d.Severity, d.Message)
	} else {
		fmt.Fprintf(&buf, "%s: %s\n", d.Severity, d.Message)
	}
	if d.SourceLine != "" {
		fmt.Fprintf(&buf, " %s\n", d.SourceLine)
		col := d.Pos.Col
		if col < 1 {
			col = 1
		}
		fmt.Fprintf(&buf, " %s^\n", strings.Repeat(" ", col-1))
	}
	return buf.String()
}

// Sink is a process-wide diagnostic destination. Shared mutable state is
// limited to atomic counters; everything else a job owns
// is per-job and never touches the Sink directly except to report.
type Sink struct {
	mu sync.Mutex
	w  func(string)

	notes    int64
	warnings int64
	errors   int64
	fatals   int64
	internal int64

	// MaxErrors bounds the number of Error-severity diagnostics a single
	// job will surface before suppressing the rest with one trailing
	// note. Zero means unbounded.
	MaxErrors int

	perJobErrors map[string]int
	perJobFailed map[string]bool
}

// NewSink creates a Sink that writes formatted diagnostics to w.
func NewSink(w func(string)) *Sink {
	return &Sink{w: w, perJobErrors: make(map[string]int), perJobFailed: make(map[string]bool)}
}

// Report records a diagnostic and writes it out. It returns a non-nil
// *Halted if this diagnostic (or the job's error budget) means the
// calling job must stop.
func (s *Sink) Report(jobID string, d Diagnostic) *Halted {
	switch d.Severity {
	case Note:
		atomic.AddInt64(&s.notes, 1)
	case Warning:
		atomic.AddInt64(&s.warnings, 1)
	case Error:
		atomic.AddInt64(&s.errors, 1)
		s.markJobFailed(jobID)
		if s.MaxErrors > 0 {
			s.mu.Lock()
			s.perJobErrors[jobID]++
			n := s.perJobErrors[jobID]
			s.mu.Unlock()
			if n == s.MaxErrors {
				s.write(d)
				s.write(Diagnostic{Severity: Note, Message: "too many errors, suppressing further diagnostics"})
				return &Halted{Reason: "error budget exceeded"}
			}
			if n > s.MaxErrors {
				return nil
			}
		}
	case Fatal:
		atomic.AddInt64(&s.fatals, 1)
		s.markJobFailed(jobID)
		s.write(d)
		return &Halted{Reason: d.Message}
	case InternalError:
		atomic.AddInt64(&s.internal, 1)
		s.markJobFailed(jobID)
	}
	s.write(d)
	return nil
}

func (s *Sink) markJobFailed(jobID string) {
	if jobID == "" {
		return
	}
	s.mu.Lock()
	s.perJobFailed[jobID] = true
	s.mu.Unlock()
}

// JobFailed reports whether jobID has reported an Error, Fatal, or
// InternalError diagnostic, meaning the pipeline must not write an
// output file for it even if it otherwise ran to completion.
func (s *Sink) JobFailed(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perJobFailed[jobID]
}

func (s *Sink) write(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w(d.Format())
}

// Counts returns the current error/warning/fatal totals.
func (s *Sink) Counts() (notes, warnings, errors, fatals, internal int64) {
	return atomic.LoadInt64(&s.notes), atomic.LoadInt64(&s.warnings),
		atomic.LoadInt64(&s.errors), atomic.LoadInt64(&s.fatals),
		atomic.LoadInt64(&s.internal)
}

// Failed reports whether accumulated diagnostics should suppress output
// writing and cause a non-zero process exit
func (s *Sink) Failed() bool {
	_, _, errs, fatals, internal := s.Counts()
	return errs+fatals+internal > 0
}
