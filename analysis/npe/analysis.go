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

// Package npe implements a null-dereference analysis over the register IR. The facts are the access paths that may
// hold null. When the configuration asks for it, a backward instance finds the aliases of the null fields, so that
// a field set to null through one path is also known to be null through the others.
package npe

import (
	"errors"
	"fmt"

	"github.com/awslabs/argot-ifds/analysis/config"
	"github.com/awslabs/argot-ifds/analysis/ifds"
	"github.com/awslabs/argot-ifds/analysis/ir"
	"github.com/awslabs/argot-ifds/analysis/report"
	"github.com/awslabs/argot-ifds/analysis/taint"
	"github.com/awslabs/argot-ifds/internal/funcutil"
)

// Kind is the kind of the findings of the analysis
const Kind = "npe"

// OverridesLimit is the maximum number of methods a virtual call is resolved to when the devirtualizer is used
const OverridesLimit = 3

// Result holds the facts computed by the analysis and the dereferences of possibly null values
type Result struct {
	Graph  *ir.Graph
	Start  *ir.Method
	Facts  *ifds.Result[*ir.Method, ir.Inst, Fact]
	Report *report.Report
	// Stats are the statistics of the forward instance
	Stats ifds.Stats
	// BidiStats are the hand-off counters, when the analysis is bidirectional
	BidiStats taint.BidiStats
}

// Analyze builds prog and runs the analysis from the method start.
func Analyze(cfg *config.Config, logger *config.LogGroup, prog *ir.Program, start string) (*Result, error) {
	g, err := prog.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid program: %w", err)
	}
	m := g.Method(start)
	if m == nil {
		return nil, fmt.Errorf("%w: start method %s", ir.ErrUnknownMethod, start)
	}
	return AnalyzeGraph(cfg, logger, g, m), nil
}

// AnalyzeGraph runs the analysis on g from the method start. A nil cfg is the default configuration, and a nil logger
// is built from cfg.
func AnalyzeGraph(cfg *config.Config, logger *config.LogGroup, g *ir.Graph, start *ir.Method) *Result {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	k := cfg.MaxPathLength
	if k <= 0 {
		k = config.DefaultMaxPathLength
	}
	for _, m := range g.Methods() {
		if unreachable := m.Unreachable(); len(unreachable) > 0 {
			logger.Debugf("%s has %d unreachable instructions\n", m, len(unreachable))
		}
	}

	opts := ifds.Options[*ir.Method, ir.Inst]{Logger: logger, Name: Kind}
	if cfg.UseDevirtualizer {
		opts.Devirtualizer = ir.NewOverridesDevirtualizer(g, OverridesLimit)
	}
	forward := NewForwardFunctions(g, k)
	res := &Result{Graph: g, Start: start}
	if cfg.Bidirectional {
		bidi := taint.NewBidi[*ir.Method, ir.Inst, string, string](g, forward, NewBackwardFunctions(k),
			HeapInspector{MaxPathLength: k}, opts)
		bidi.AddStart(start)
		bidi.Run()
		res.Facts = bidi.CollectResults()
		res.Stats = bidi.Forward().Stats()
		res.BidiStats = bidi.Stats()
	} else {
		instance := ifds.NewInstance[*ir.Method, ir.Inst, Fact](g, forward, opts)
		instance.AddStart(start)
		instance.Run()
		res.Facts = instance.CollectResults()
		res.Stats = instance.Stats()
	}
	res.Report = findDereferences(cfg, logger, res.Facts, start, k)
	logger.Infof("%s: %d possible null dereferences in %d methods\n", start, res.Report.Len(), len(res.Facts.Methods()))
	return res
}

// findDereferences reports the statements where a fact holds for a value that is dereferenced
func findDereferences(cfg *config.Config, logger *config.LogGroup, facts *ifds.Result[*ir.Method, ir.Inst, Fact],
	start *ir.Method, k int) *report.Report {
	r := &report.Report{}
	for _, s := range facts.Statements() {
		for _, fact := range facts.FactsAt(s) {
			if _, hasActivation := fact.Activation(); fact.IsZero() || hasActivation {
				continue
			}
			if !dereferencedAt(fact.Path(), s, k) {
				continue
			}
			if cfg.ExceedsMaxAlarms(r.Len() + 1) {
				logger.Warnf("more than %d alarms, stopping\n", cfg.MaxAlarms)
				return r
			}
			trace := possibleTrace(logger, facts, ifds.Vertex[ir.Inst, Fact]{Statement: s, Fact: fact}, start)
			steps := funcutil.Map(trace, func(i ir.Inst) report.Step {
				return report.Step{Location: report.Location{Function: i.Method().Name}, Statement: i.String()}
			})
			steps[len(steps)-1].Fact = fact.Path().String()
			r.Add(report.Finding{
				Kind:      Kind,
				Statement: s.String(),
				Path:      fact.Path().String(),
				Trace:     funcutil.Map(trace, ir.Inst.String),
				Location:  report.Location{Function: s.Method().Name},
				Flows:     [][]report.Step{steps},
			})
		}
	}
	return r
}

// possibleTrace returns a possible stack trace leading to v, or only the statement of v when the trace cannot be
// rebuilt. This happens for facts handed over by the backward analysis in a callee.
func possibleTrace(logger *config.LogGroup, facts *ifds.Result[*ir.Method, ir.Inst, Fact],
	v ifds.Vertex[ir.Inst, Fact], start *ir.Method) (trace []ir.Inst) {
	defer func() {
		if x := recover(); x != nil {
			var lookupErr *ifds.LookupError
			err, ok := x.(error)
			if !ok || !errors.As(err, &lookupErr) {
				panic(x)
			}
			logger.Debugf("no stack trace for %s: %v\n", v, err)
			trace = []ir.Inst{v.Statement}
		}
	}()
	return facts.ResolvePossibleStackTrace(v, start)
}

// HeapInspector gives the paths written by the instructions to the bidirectional solver
type HeapInspector struct {
	MaxPathLength int
}

var _ taint.HeapInspector[ir.Inst, string, string] = HeapInspector{}

// AssignedPath returns the path of the left-hand side of an assignment
func (h HeapInspector) AssignedPath(s ir.Inst) (ir.Path, bool) {
	return assignedPath(s, h.MaxPathLength)
}

// CallOperandPaths returns the paths of the receiver and the arguments of a call
func (h HeapInspector) CallOperandPaths(s ir.Inst) []ir.Path {
	call, ok := ir.CallOf(s)
	if !ok {
		return nil
	}
	var res []ir.Path
	for _, v := range call.Operands() {
		if p, ok := ir.PathOf(v, h.MaxPathLength); ok {
			res = append(res, p)
		}
	}
	return res
}
