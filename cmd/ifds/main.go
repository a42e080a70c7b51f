// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/awslabs/argot-ifds/analysis"
	"github.com/awslabs/argot-ifds/analysis/config"
	"github.com/awslabs/argot-ifds/analysis/report"
	"github.com/awslabs/argot-ifds/analysis/ssataint"
	"github.com/awslabs/argot-ifds/internal/formatutil"
	"golang.org/x/tools/go/ssa"
)

var (
	configPath = flag.String("config", "", "configuration file path")
	outDir     = flag.String("out", "", "directory of the report file")
	showPath   = flag.String("show", "", "report file to print")
	verbose    = flag.Bool("verbose", false, "verbose printing on standard output")
	format     = flag.String("f", "text", "output `format` of the findings (valid choices are 'text' and 'sarif')")
)

var buildmode = ssa.InstantiateGenerics

func init() {
	flag.Var(&buildmode, "build", ssa.BuilderModeDoc)
}

const usage = `Perform an IFDS taint analysis on your packages.
Usage:
  ifds [options] <package path(s)>
  ifds -show <report file>
Examples:
  % ifds -config config.yaml package...
  % ifds -config config.yaml -out reports main.go
  % ifds -f sarif -config config.yaml package... > findings.sarif
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *format != "text" && *format != "sarif" {
		fmt.Fprintf(os.Stderr, "unsupported output format %q\n", *format)
		os.Exit(2)
	}

	if *showPath != "" {
		if err := show(*showPath); err != nil {
			errExit(err)
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Args()); err != nil {
		errExit(err)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("could not load config %q: %w", *configPath, err)
	}
	if *verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)
	if *format == "sarif" {
		// standard output only holds the sarif log
		logger.SetAllOutput(os.Stderr)
	}

	logger.Infof(formatutil.Faint("Reading sources"))
	program, err := analysis.LoadProgram(nil, "", buildmode, args)
	if err != nil {
		return fmt.Errorf("could not load program: %w", err)
	}

	start := time.Now()
	result, err := ssataint.Analyze(cfg, logger, program.Program, program.Directives)
	duration := time.Since(start)
	if err != nil {
		return fmt.Errorf("taint analysis failed: %w", err)
	}

	stats := result.Graph.Statistics()
	logger.Debugf("Supergraph: %d functions, %d blocks, %d instructions, %d call sites, %d recursive functions",
		stats.Functions, stats.Blocks, stats.Instructions, stats.CallSites, stats.Recursive)
	if !stats.Acyclic {
		logger.Debugf("Call graph has %d cycles", stats.Cycles)
	}
	logger.Infof(strings.Repeat("*", 80))
	logger.Infof("Analysis took %3.4f s (%d instances, %d path edges)",
		duration.Seconds(), result.Instances, result.Stats.PathEdges)
	if len(result.Flows) == 0 {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Green("No taint flows detected ✓"))
	} else {
		logger.Errorf("RESULT:\n\t\t%s", formatutil.Red(fmt.Sprintf("%d taint flows detected!", len(result.Flows))))
	}
	if err := writeReport(os.Stdout, result.Report, *format); err != nil {
		return fmt.Errorf("could not print findings: %w", err)
	}

	dir := cfg.ReportsDir
	if *outDir != "" {
		dir = *outDir
	}
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create reports directory: %w", err)
	}
	name, err := result.Report.WriteFile(dir)
	if err != nil {
		return err
	}
	logger.Infof("Report written in %s", name)
	return nil
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if hint := hintForErrorMessage(err.Error()); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(1)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewDefault(), nil
	}
	return config.Load(path)
}

func show(filename string) error {
	r, err := report.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("could not read report: %w", err)
	}
	return writeReport(os.Stdout, r, *format)
}

// writeReport writes the findings of r to w in the given format
func writeReport(w io.Writer, r *report.Report, format string) error {
	if format == "sarif" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = ""
		}
		return r.WriteSarif(w, report.SarifOptions{Tool: "ifds", BaseDir: cwd})
	}
	return r.Print(w)
}
