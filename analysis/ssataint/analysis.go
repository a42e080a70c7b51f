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

// Package ssataint implements a taint analysis of Go programs in SSA form with the ifds solver. The sources, sinks
// and sanitizers of the taint problems are read from the configuration. Every source is solved by its own instance,
// so that each flow found at a sink is attributed to its source, and the instances run in parallel.
package ssataint

import (
	"errors"
	"fmt"
	"go/token"
	"os"

	"github.com/awslabs/argot-ifds/analysis"
	"github.com/awslabs/argot-ifds/analysis/config"
	"github.com/awslabs/argot-ifds/analysis/ifds"
	"github.com/awslabs/argot-ifds/analysis/lang"
	"github.com/awslabs/argot-ifds/analysis/report"
	"github.com/awslabs/argot-ifds/analysis/ssagraph"
	"github.com/awslabs/argot-ifds/analysis/taint"
	"github.com/awslabs/argot-ifds/internal/analysisutil"
	"github.com/awslabs/argot-ifds/internal/funcutil"
	"golang.org/x/tools/go/ssa"
)

// Kind is the prefix of the kind of the findings, followed by the name of the taint problem
const Kind = "taint"

// ErrNoEntryPoints is returned when no function of the program is an entry point of the analysis
var ErrNoEntryPoints = errors.New("no entry points")

// A Flow is tainted data going from a source to a sink
type Flow struct {
	// Problem is the name of the taint problem
	Problem string
	Source  ssa.Instruction
	Sink    ssa.Instruction
	// Path is the tainted argument of the sink
	Path Path
	// Trace is a possible stack trace from the entry point to the sink
	Trace []ssa.Instruction
	// Traces are the stack traces found from every entry point, Trace first
	Traces    [][]ssa.Instruction
	SourcePos token.Position
	SinkPos   token.Position
}

// Result holds the flows found by the analysis
type Result struct {
	Graph       *ssagraph.Graph
	EntryPoints []*ssa.Function
	Flows       []Flow
	Report      *report.Report
	// Stats are the sums of the statistics of all the instances
	Stats ifds.Stats
	// Instances is the number of instances solved, one per problem and source
	Instances int
	// BidiStats are the sums of the hand-off counters, when the analysis is bidirectional
	BidiStats taint.BidiStats
}

// Analyze builds the supergraph of prog and solves the taint problems of cfg. The findings on lines with an ignore
// directive are not reported. A nil logger is built from cfg.
func Analyze(cfg *config.Config, logger *config.LogGroup, prog *ssa.Program,
	directives analysis.Directives) (*Result, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	exclude := excludedPaths(cfg)
	keep := func(f *ssa.Function) bool {
		if f.Pkg != nil && !cfg.MatchPkgFilter(f.Pkg.Pkg.Path()) {
			return false
		}
		return !analysisutil.IsExcluded(prog, f, exclude)
	}
	g, err := ssagraph.New(prog, cfg.CallgraphAlgo, keep)
	if err != nil {
		return nil, fmt.Errorf("could not build the supergraph: %w", err)
	}
	return AnalyzeGraph(cfg, logger, g, directives)
}

func excludedPaths(cfg *config.Config) []string {
	if len(cfg.Exclude) == 0 {
		return nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return analysisutil.MakeAbsolute(cwd, funcutil.Map(cfg.Exclude, cfg.RelPath))
}

// EntryPoints returns the main functions of the main packages of g and the functions matching the entrypoints of
// cfg
func EntryPoints(cfg *config.Config, g *ssagraph.Graph) []*ssa.Function {
	return funcutil.Filter(g.Functions(), func(f *ssa.Function) bool {
		isMain := f.Name() == "main" && f.Signature.Recv() == nil && f.Parent() == nil &&
			f.Pkg != nil && f.Pkg.Pkg.Name() == "main"
		return isMain || cfg.IsEntryPoint(analysisutil.FunctionIdentifier(f))
	})
}

// hasSomeSource returns true if some instruction of g matches a source of any problem of cfg
func hasSomeSource(cfg *config.Config, g *ssagraph.Graph) bool {
	for _, f := range g.Functions() {
		found := false
		lang.IterateInstructions(f, func(_ int, instr ssa.Instruction) {
			if n, ok := instr.(ssa.Node); ok && !found {
				found = analysisutil.IsMatchingNode(n, cfg.IsSomeSource)
			}
		})
		if found {
			return true
		}
	}
	return false
}

// job is one instance to solve: the data of source, from the entry points that reach it
type job struct {
	spec    *config.TaintSpec
	roles   Roles
	source  ssa.Instruction
	entries []*ssa.Function
}

type jobResult struct {
	flows     []Flow
	stats     ifds.Stats
	bidiStats taint.BidiStats
}

// solver is either a forward instance or a bidirectional one
type solver interface {
	AddStart(*ssa.Function)
	Run()
	CollectResults() *ifds.Result[*ssa.Function, ssa.Instruction, Fact]
}

// solverOptions are the settings shared by all the jobs
type solverOptions struct {
	devirtualizer ifds.Devirtualizer[*ssa.Function, ssa.Instruction]
	maxPathLength int
	bidirectional bool
}

// AnalyzeGraph solves the taint problems of cfg over g.
func AnalyzeGraph(cfg *config.Config, logger *config.LogGroup, g *ssagraph.Graph,
	directives analysis.Directives) (*Result, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	entries := EntryPoints(cfg, g)
	if len(entries) == 0 {
		return nil, ErrNoEntryPoints
	}
	res := &Result{Graph: g, EntryPoints: entries, Report: &report.Report{}}
	if !hasSomeSource(cfg, g) {
		logger.Warnf("no instruction of the program matches a source of the configuration\n")
		return res, nil
	}
	reachable := make([]map[*ssa.Function]bool, len(entries))
	for i, entry := range entries {
		reachable[i] = g.Reachable([]*ssa.Function{entry})
	}

	var jobs []job
	for i := range cfg.TaintTrackingProblems {
		spec := &cfg.TaintTrackingProblems[i]
		roles := ClassifyInstructions(g, *spec)
		for _, f := range g.Functions() {
			lang.IterateInstructions(f, func(_ int, instr ssa.Instruction) {
				if !roles.IsSource(instr) {
					return
				}
				var from []*ssa.Function
				for j, entry := range entries {
					if reachable[j][f] {
						from = append(from, entry)
					}
				}
				if len(from) > 0 {
					jobs = append(jobs, job{spec: spec, roles: roles, source: instr, entries: from})
				}
			})
		}
	}
	logger.Infof("solving %d taint instances from %d entry points\n", len(jobs), len(entries))

	opts := solverOptions{maxPathLength: cfg.MaxPathLength, bidirectional: cfg.Bidirectional}
	if cfg.UseDevirtualizer {
		opts.devirtualizer = ssagraph.NewVTADevirtualizer(g)
	}
	if opts.maxPathLength <= 0 {
		opts.maxPathLength = config.DefaultMaxPathLength
	}
	solve := func(j job) jobResult {
		return solveJob(logger, g, opts, j)
	}
	results := funcutil.MapParallel(jobs, solve, cfg.NumRoutines)

	for _, r := range results {
		res.Stats = addStats(res.Stats, r.stats)
		res.BidiStats = addBidiStats(res.BidiStats, r.bidiStats)
	}
	fset := g.Program().Fset
	full := false
	for _, r := range results {
		if full {
			break
		}
		// the findings of every instance are reported together
		found := &report.Report{}
		for _, flow := range r.flows {
			if directives.Ignores(flow.SinkPos) {
				logger.Debugf("ignoring flow to %s\n", flow.SinkPos)
				continue
			}
			if cfg.ExceedsMaxAlarms(len(res.Flows) + 1) {
				logger.Warnf("more than %d alarms, stopping\n", cfg.MaxAlarms)
				full = true
				break
			}
			res.Flows = append(res.Flows, flow)
			found.Add(finding(fset, flow))
		}
		res.Report.Merge(found)
	}
	res.Instances = len(jobs)
	logger.Infof("%d tainted flows found\n", len(res.Flows))
	return res, nil
}

func solveJob(logger *config.LogGroup, g *ssagraph.Graph, so solverOptions, j job) jobResult {
	fset := g.Program().Fset
	sourcePos := lang.InstrPosition(fset, j.source)
	opts := ifds.Options[*ssa.Function, ssa.Instruction]{
		Devirtualizer: so.devirtualizer,
		Logger:        logger,
		Name:          fmt.Sprintf("%s@%s", j.spec.Name, sourcePos),
	}
	forward := NewFlowFunctions(j.roles, j.source, so.maxPathLength)
	var (
		s         solver
		instance  *ifds.Instance[*ssa.Function, ssa.Instruction, Fact]
		bidi      *taint.Bidi[*ssa.Function, ssa.Instruction, ssa.Value, string]
		bidiStats taint.BidiStats
	)
	if so.bidirectional {
		bidi = taint.NewBidi[*ssa.Function, ssa.Instruction, ssa.Value, string](g, forward,
			NewBackwardFunctions(j.roles, so.maxPathLength), HeapInspector{MaxPathLength: so.maxPathLength}, opts)
		s, instance = bidi, bidi.Forward()
	} else {
		instance = ifds.NewInstance[*ssa.Function, ssa.Instruction, Fact](g, forward, opts)
		s = instance
	}
	for _, entry := range j.entries {
		s.AddStart(entry)
	}
	s.Run()
	facts := s.CollectResults()
	if bidi != nil {
		bidiStats = bidi.Stats()
	}

	var flows []Flow
	for _, stmt := range facts.Statements() {
		if !j.roles.IsSink(stmt) {
			continue
		}
		args, _ := actuals(stmt)
		for _, fact := range facts.FactsAt(stmt) {
			// aliases found by the backward analysis only hold once activated
			if _, pending := fact.Activation(); pending {
				continue
			}
			if fact.IsZero() || !funcutil.Contains(args, fact.Path().Root()) {
				continue
			}
			v := ifds.Vertex[ssa.Instruction, Fact]{Statement: stmt, Fact: fact}
			traces := possibleTraces(logger, facts, v, j.entries)
			flows = append(flows, Flow{
				Problem:   j.spec.Name,
				Source:    j.source,
				Sink:      stmt,
				Path:      fact.Path(),
				Trace:     traces[0],
				Traces:    traces,
				SourcePos: sourcePos,
				SinkPos:   lang.InstrPosition(fset, stmt),
			})
			// one flow per sink
			break
		}
	}
	return jobResult{flows: flows, stats: instance.Stats(), bidiStats: bidiStats}
}

// possibleTraces returns the stack traces found from the entries to v, or only the statement of v when there is
// none
func possibleTraces(logger *config.LogGroup, facts *ifds.Result[*ssa.Function, ssa.Instruction, Fact],
	v ifds.Vertex[ssa.Instruction, Fact], entries []*ssa.Function) [][]ssa.Instruction {
	var res [][]ssa.Instruction
	for _, entry := range entries {
		trace, err := traceFrom(facts, v, entry)
		if err != nil {
			logger.Tracef("no stack trace for %s from %s: %v\n", v, entry, err)
			continue
		}
		res = append(res, trace)
	}
	if len(res) == 0 {
		return [][]ssa.Instruction{{v.Statement}}
	}
	return res
}

func traceFrom(facts *ifds.Result[*ssa.Function, ssa.Instruction, Fact], v ifds.Vertex[ssa.Instruction, Fact],
	entry *ssa.Function) (trace []ssa.Instruction, err error) {
	defer func() {
		if x := recover(); x != nil {
			var lookupErr *ifds.LookupError
			e, ok := x.(error)
			if !ok || !errors.As(e, &lookupErr) {
				panic(x)
			}
			err = e
		}
	}()
	return facts.ResolvePossibleStackTrace(v, entry), nil
}

func finding(fset *token.FileSet, flow Flow) report.Finding {
	trace := make([]string, 0, len(flow.Trace)+1)
	trace = append(trace, fmt.Sprintf("%s %s", flow.SourcePos, lang.FmtInstr(flow.Source)))
	for _, instr := range flow.Trace {
		trace = append(trace, fmt.Sprintf("%s %s", lang.InstrPosition(fset, instr), lang.FmtInstr(instr)))
	}
	f := report.Finding{
		Kind:      Kind + "/" + flow.Problem,
		Position:  flow.SinkPos.String(),
		Statement: lang.FmtInstr(flow.Sink),
		Path:      PathString(flow.Path),
		Trace:     trace,
		Location:  location(flow.SinkPos, flow.Sink),
	}
	for _, t := range flow.Traces {
		steps := []report.Step{{Location: location(flow.SourcePos, flow.Source), Statement: lang.FmtInstr(flow.Source)}}
		for _, instr := range t {
			steps = append(steps, report.Step{
				Location:  location(lang.InstrPosition(fset, instr), instr),
				Statement: lang.FmtInstr(instr),
			})
		}
		steps[len(steps)-1].Fact = PathString(flow.Path)
		f.Flows = append(f.Flows, steps)
	}
	return f
}

func location(pos token.Position, instr ssa.Instruction) report.Location {
	l := report.Location{File: pos.Filename, Line: pos.Line, Column: pos.Column}
	if instr.Parent() != nil {
		l.Function = instr.Parent().String()
	}
	return l
}

func addBidiStats(a, b taint.BidiStats) taint.BidiStats {
	return taint.BidiStats{
		ToBackward:   a.ToBackward + b.ToBackward,
		ToForward:    a.ToForward + b.ToForward,
		BackwardRuns: a.BackwardRuns + b.BackwardRuns,
	}
}

func addStats(a, b ifds.Stats) ifds.Stats {
	return ifds.Stats{
		PathEdges:        a.PathEdges + b.PathEdges,
		SummaryEdges:     a.SummaryEdges + b.SummaryEdges,
		CallToStartEdges: a.CallToStartEdges + b.CallToStartEdges,
		CallSites:        a.CallSites + b.CallSites,
		Processed:        a.Processed + b.Processed,
	}
}
