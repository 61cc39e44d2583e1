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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Job is one independent translation unit: a single GTA3script source
// file compiled to its own output. Jobs carry no dependency edges to
// each other — every script compiles independently — so the scheduler
// needs no ready-queue/heap machinery, only a bounded fan-out.
type Job struct {
	ID         string
	SourcePath string
	OutputPath string
}

// JobResult is one job's outcome, returned to the driver's caller for
// reporting.
type JobResult struct {
	Job   Job
	Err   error
	Halt  *Halted
}

// Driver runs a set of independent compile jobs across a worker pool,
// aggregating diagnostics into a single shared Sink and errors via
// errgroup: no ready queue, no dependency bookkeeping, just a bounded
// concurrent fan-out. Each job gets a correlation id from google/uuid
// so its diagnostics and glog trace lines can be tied back to one
// invocation.
type Driver struct {
	ctx     *ProgramContext
	sink    *Sink
	stats   *Stats
	numJobs int
}

// NewDriver creates a Driver bounded to run at most numJobs compile
// jobs concurrently.
func NewDriver(ctx *ProgramContext, sink *Sink, stats *Stats, numJobs int) *Driver {
	if numJobs < 1 {
		numJobs = 1
	}
	return &Driver{ctx: ctx, sink: sink, stats: stats, numJobs: numJobs}
}

// Run compiles every job, writing each one's IR2 or SCM output per
// ctx.Options, and returns one JobResult per input job in the same
// order they were given (errgroup only bounds concurrency; ordering of
// results is restored after the fact so output is deterministic).
func (d *Driver) Run(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.numJobs)

	for i, j := range jobs {
		i, j := i, j
		if j.ID == "" {
			j.ID = uuid.NewString()
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			err, halt := d.runOne(j)
			results[i] = JobResult{Job: j, Err: err, Halt: halt}
			return nil
		})
	}
	// Errors are per-job, carried in JobResult; g.Wait() only surfaces a
	// cancellation from the shared context, never a single job's failure.
	_ = g.Wait()
	return results
}

func (d *Driver) runOne(j Job) (error, *Halted) {
	glog.V(1).Infof("job %s: compiling %s", j.ID, j.SourcePath)

	f, err := os.Open(j.SourcePath)
	if err != nil {
		return fmt.Errorf("job %s: %w", j.ID, err), nil
	}
	defer f.Close()

	stmts, err := ParseFile(f, j.SourcePath)
	if err != nil {
		return fmt.Errorf("job %s: parse: %w", j.ID, err), nil
	}

	syms := NewSymbolTable(d.ctx.Options.MissionVarBegin, d.ctx.Options.LocalVarLimit, d.ctx.Options.MissionVarLimit)
	analyzer := NewAnalyzer(d.ctx, syms, d.sink, j.ID, d.stats)
	if halt := analyzer.Analyze(stmts); halt != nil {
		return nil, halt
	}
	// spec.md §7: error_count + fatal_count > 0 suppresses output; a job
	// that only ever reported non-fatal Errors still must not produce a
	// file, so this is checked explicitly rather than inferred from halt.
	if d.ctx.Options.SyntaxOnly || d.sink.JobFailed(j.ID) {
		return nil, nil
	}

	scriptName := strings.TrimSuffix(filepath.Base(j.SourcePath), filepath.Ext(j.SourcePath))
	lowerer := NewLowerer(syms, d.ctx.Options, scriptName, d.stats)
	instrs, _ := lowerer.Lower(stmts)
	lowerer.finalizeLabels()

	for _, l := range syms.UnresolvedLabels() {
		d.sink.Report(j.ID, Diagnostic{
			Severity: Error,
			Pos:      l.Pos,
			Message:  fmt.Sprintf("label %q is declared but never reached by the lowerer", l.Name),
		})
	}
	if d.sink.JobFailed(j.ID) {
		return nil, nil
	}

	if d.ctx.Options.VerifyIR2 {
		if err := VerifyIR2RoundTrip(scriptName, instrs); err != nil {
			d.sink.Report(j.ID, Diagnostic{Severity: Error, Message: fmt.Sprintf("ir2 round-trip verification: %s", err)})
			return nil, nil
		}
	}

	out, err := os.Create(j.OutputPath)
	if err != nil {
		return fmt.Errorf("job %s: %w", j.ID, err), nil
	}
	defer out.Close()

	if err := d.emit(out, scriptName, syms, instrs); err != nil {
		return fmt.Errorf("job %s: emit: %w", j.ID, err), nil
	}

	if d.stats != nil {
		d.stats.Add(StatJobsCompleted, 1)
	}
	return nil, nil
}

func (d *Driver) emit(w io.Writer, scriptName string, syms *SymbolTable, instrs []*Instruction) error {
	if d.ctx.Options.EmitIR2 {
		gen := NewIR2Generator(w, scriptName)
		return gen.Generate(instrs)
	}
	meta := ScriptMeta{GlobalVarWords: syms.GlobalWordCount(), Models: d.ctx.Models}
	gen := NewSCMGenerator(d.ctx.Options, meta)
	gen.ResolveOffsets(instrs)
	return gen.Generate(w, instrs, d.ctx.Commands)
}
