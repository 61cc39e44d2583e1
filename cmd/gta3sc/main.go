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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	gta3sc "github.com/gta3script/gta3sc"
)

// projectConfig is the optional TOML project file loaded via
// --project-config, merged under whatever the CLI flags set (flags win
// on conflict).
type projectConfig struct {
	Config          string   `toml:"config"`
	CommandDB       string   `toml:"command_db"`
	ModelFile       string   `toml:"model_file"`
	Guesser         bool     `toml:"guesser"`
	Pedantic        bool     `toml:"pedantic"`
	Arrays          bool     `toml:"arrays"`
	SwitchCaseLimit int      `toml:"switch_case_limit"`
	MaxErrors       int      `toml:"max_errors"`
	Sources         []string `toml:"sources"`
}

func main() {
	defer glog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliFlags struct {
	config          string
	commandDB       string
	modelFile       string
	projectConfig   string
	outDir          string
	jobs            int
	guesser         bool
	pedantic        bool
	arrays          bool
	emitIR2         bool
	syntaxOnly      bool
	verifyIR2       bool
	switchFlag      bool
	scopeThenLabel  bool
	defines         []string
	cleoVersion     int
	headerless      bool
	streamedScripts bool
	switchCaseLimit int
	maxErrors       int
	verbose         int
}

func newRootCmd() *cobra.Command {
	var f cliFlags

	cmd := &cobra.Command{
		Use:          "gta3sc [sources...]",
		Short:        "Compile GTA3script source into IR2 or binary SCM",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(&f, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.config, "config", "gta3", "target game: gta3, gtavc, or gtasa")
	flags.StringVar(&f.commandDB, "command-db", "", "path to the command database XML file")
	flags.StringVar(&f.modelFile, "model-file", "", "path to a whitespace-delimited model name/id file")
	flags.StringVar(&f.projectConfig, "project-config", "", "path to a TOML project configuration file")
	flags.StringVar(&f.outDir, "output-dir", ".", "directory to write compiled output into")
	flags.IntVar(&f.jobs, "jobs", runtime.NumCPU(), "number of scripts to compile in parallel")
	flags.BoolVar(&f.guesser, "guesser", false, "infer undeclared identifiers as global int variables")
	flags.BoolVar(&f.pedantic, "pedantic", false, "treat unsupported commands as errors instead of fatal")
	flags.BoolVar(&f.arrays, "farrays", false, "allow array variable declarations")
	flags.BoolVar(&f.emitIR2, "emit-ir2", false, "emit textual IR2 instead of binary SCM")
	flags.BoolVar(&f.syntaxOnly, "fsyntax-only", false, "stop after semantic analysis")
	flags.BoolVar(&f.verifyIR2, "fverify-ir2", false, "round-trip verify IR2 output against the source")
	flags.BoolVar(&f.switchFlag, "fswitch", false, "enable the SWITCH statement")
	flags.BoolVar(&f.scopeThenLabel, "fscope-then-label", false, "let a scoped block's own labels shadow outer ones within the block")
	flags.StringArrayVarP(&f.defines, "D", "D", nil, "define a preprocessor symbol as NAME or NAME=VALUE (repeatable)")
	flags.IntVar(&f.cleoVersion, "cleo", 0, "emit a CLEO-compatible header for the given major version (0 disables CLEO)")
	flags.BoolVar(&f.headerless, "headerless", false, "omit the SCM header entirely")
	flags.BoolVar(&f.streamedScripts, "streamed-scripts", false, "target a streamed (.scm) mission script layout")
	flags.IntVar(&f.switchCaseLimit, "switch-case-limit", 0, "maximum CASE count per SWITCH; 0 is unbounded")
	flags.IntVar(&f.maxErrors, "max-errors", 100, "maximum Error diagnostics per job before suppression; 0 is unbounded")
	flags.CountVarP(&f.verbose, "verbose", "v", "increase internal trace verbosity (glog -v)")

	return cmd
}

func run(f *cliFlags, sources []string) error {
	if f.verbose > 0 {
		if vf := flag.Lookup("v"); vf != nil {
			vf.Value.Set(fmt.Sprintf("%d", f.verbose))
		}
	}

	opts := gta3sc.DefaultOptions()
	opts.Guesser = f.guesser
	opts.Pedantic = f.pedantic
	opts.Arrays = f.arrays
	opts.EmitIR2 = f.emitIR2
	opts.SyntaxOnly = f.syntaxOnly
	opts.VerifyIR2 = f.verifyIR2
	opts.Switch = f.switchFlag
	opts.ScopeThenLabel = f.scopeThenLabel
	opts.CleoVersion = f.cleoVersion
	opts.Cleo = f.cleoVersion > 0
	opts.Headerless = f.headerless
	opts.StreamedScripts = f.streamedScripts
	opts.SwitchCaseLimit = f.switchCaseLimit
	opts.MaxErrors = f.maxErrors
	opts.Config = parseHeaderVersion(f.config)
	if err := applyDefines(opts, f.defines); err != nil {
		return err
	}

	if f.projectConfig != "" {
		var pc projectConfig
		if _, err := toml.DecodeFile(f.projectConfig, &pc); err != nil {
			return fmt.Errorf("project config: %w", err)
		}
		applyProjectConfig(&pc, f, opts)
		if len(sources) == 0 {
			sources = pc.Sources
		}
	}

	if len(sources) == 0 {
		return fmt.Errorf("no source files given")
	}

	commands := gta3sc.NewCommandDB()
	if f.commandDB != "" {
		db, err := loadCommandDB(f.commandDB)
		if err != nil {
			return err
		}
		commands = db
	}

	models := gta3sc.NewModelRegistry()
	if f.modelFile != "" {
		mr, err := loadModels(f.modelFile)
		if err != nil {
			return err
		}
		models = mr
	}

	ctx := gta3sc.NewProgramContext(opts, commands, models)
	stats := gta3sc.NewStats()
	sink := gta3sc.NewSink(func(line string) { fmt.Fprintln(os.Stderr, line) })
	sink.MaxErrors = opts.MaxErrors

	jobs := make([]gta3sc.Job, len(sources))
	for i, src := range sources {
		ext := ".scm"
		if opts.EmitIR2 {
			ext = ".ir2"
		}
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		jobs[i] = gta3sc.Job{
			SourcePath: src,
			OutputPath: filepath.Join(f.outDir, base+ext),
		}
	}

	driver := gta3sc.NewDriver(ctx, sink, stats, f.jobs)
	results := driver.Run(context.Background(), jobs)

	for _, r := range results {
		if r.Err != nil {
			glog.Errorf("job %s (%s): %v", r.Job.ID, r.Job.SourcePath, r.Err)
		}
		if r.Halt != nil {
			glog.Errorf("job %s (%s): halted: %s", r.Job.ID, r.Job.SourcePath, r.Halt.Reason)
		}
	}

	notes, warnings, errs, fatals, internal := sink.Counts()
	glog.V(1).Infof("notes=%d warnings=%d errors=%d fatals=%d internal=%d", notes, warnings, errs, fatals, internal)
	for _, line := range stats.Report() {
		glog.V(1).Info(line)
	}

	if sink.Failed() {
		return fmt.Errorf("compilation failed")
	}
	return nil
}

// applyDefines parses each -D NAME or -D NAME=VALUE entry into
// opts.Defines, GTA3script's #DEFINE equivalent supplied from the
// command line.
func applyDefines(opts *gta3sc.Options, defines []string) error {
	for _, d := range defines {
		name, value, _ := strings.Cut(d, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("-D %q: empty symbol name", d)
		}
		opts.Defines[name] = value
	}
	return nil
}

func applyProjectConfig(pc *projectConfig, f *cliFlags, opts *gta3sc.Options) {
	if pc.Config != "" && f.config == "gta3" {
		opts.Config = parseHeaderVersion(pc.Config)
	}
	if pc.CommandDB != "" && f.commandDB == "" {
		f.commandDB = pc.CommandDB
	}
	if pc.ModelFile != "" && f.modelFile == "" {
		f.modelFile = pc.ModelFile
	}
	if pc.SwitchCaseLimit != 0 && f.switchCaseLimit == 0 {
		opts.SwitchCaseLimit = pc.SwitchCaseLimit
	}
	if pc.MaxErrors != 0 && f.maxErrors == 100 {
		opts.MaxErrors = pc.MaxErrors
	}
	opts.Guesser = opts.Guesser || pc.Guesser
	opts.Pedantic = opts.Pedantic || pc.Pedantic
	opts.Arrays = opts.Arrays || pc.Arrays
}

func parseHeaderVersion(s string) gta3sc.HeaderVersion {
	switch strings.ToLower(s) {
	case "gtavc":
		return gta3sc.GTAVC
	case "gtasa":
		return gta3sc.GTASA
	default:
		return gta3sc.GTA3
	}
}

func loadCommandDB(path string) (*gta3sc.CommandDB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("command db: %w", err)
	}
	defer f.Close()
	return gta3sc.LoadCommandDBXML(f)
}

func loadModels(path string) (*gta3sc.ModelRegistry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	defer f.Close()
	return gta3sc.WhitespaceModelSource.LoadModels(f)
}
