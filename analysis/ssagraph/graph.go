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

// Package ssagraph exposes Go programs in SSA form as supergraphs for the ifds solver. Statements are SSA
// instructions and methods are SSA functions with bodies.
package ssagraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/awslabs/argot-ifds/analysis/config"
	"github.com/awslabs/argot-ifds/analysis/ifds"
	"github.com/awslabs/argot-ifds/analysis/lang"
	"github.com/awslabs/argot-ifds/internal/graphutil"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// ComputeCallgraph computes the call graph of prog with the algorithm named by algo, one of config.CallgraphStatic,
// config.CallgraphCha or config.CallgraphVta.
func ComputeCallgraph(prog *ssa.Program, algo string) (*callgraph.Graph, error) {
	switch algo {
	case config.CallgraphStatic:
		// under-approximating: only statically dispatched calls
		return static.CallGraph(prog), nil
	case config.CallgraphCha:
		// "Optimization of Object-Oriented Programs Using Static Class Hierarchy Analysis",
		// J. Dean, D. Grove, and C. Chambers, ECOOP'95.
		return cha.CallGraph(prog), nil
	case config.CallgraphVta, "":
		return vta.CallGraph(ssautil.AllFunctions(prog), cha.CallGraph(prog)), nil
	default:
		return nil, fmt.Errorf("unsupported callgraph algorithm %q", algo)
	}
}

type position struct {
	block *ssa.BasicBlock
	index int
}

// Graph is the supergraph of a program. All the functions, callers and callees are computed when the graph is
// built, so a Graph is never modified afterwards and can be shared by analyses running in parallel.
type Graph struct {
	prog      *ssa.Program
	cg        *callgraph.Graph
	functions []*ssa.Function
	members   map[*ssa.Function]bool
	keep      func(*ssa.Function) bool
	positions map[ssa.Instruction]position
	exits     map[*ssa.Function][]ssa.Instruction
	callees   map[ssa.Instruction][]*ssa.Function
	callers   map[*ssa.Function][]ssa.Instruction
}

var _ ifds.Supergraph[*ssa.Function, ssa.Instruction] = (*Graph)(nil)

// New computes the call graph of prog with algo and returns the supergraph over it. Only the functions with bodies
// for which keep returns true are part of the graph; a nil keep keeps all of them.
func New(prog *ssa.Program, algo string, keep func(*ssa.Function) bool) (*Graph, error) {
	cg, err := ComputeCallgraph(prog, algo)
	if err != nil {
		return nil, err
	}
	return FromCallgraph(prog, cg, keep), nil
}

// FromCallgraph returns the supergraph of prog with the callees given by cg.
func FromCallgraph(prog *ssa.Program, cg *callgraph.Graph, keep func(*ssa.Function) bool) *Graph {
	g := &Graph{
		prog:      prog,
		cg:        cg,
		keep:      keep,
		members:   map[*ssa.Function]bool{},
		positions: map[ssa.Instruction]position{},
		exits:     map[*ssa.Function][]ssa.Instruction{},
		callees:   map[ssa.Instruction][]*ssa.Function{},
		callers:   map[*ssa.Function][]ssa.Instruction{},
	}
	for f := range ssautil.AllFunctions(prog) {
		if g.contains(f) {
			g.functions = append(g.functions, f)
			g.members[f] = true
		}
	}
	sortFunctions(g.functions)

	for _, f := range g.functions {
		for _, block := range f.Blocks {
			for i, instr := range block.Instrs {
				g.positions[instr] = position{block: block, index: i}
				switch instr.(type) {
				case *ssa.Return, *ssa.Panic:
					g.exits[f] = append(g.exits[f], instr)
				}
			}
		}
		node := cg.Nodes[f]
		if node == nil {
			continue
		}
		for _, e := range node.Out {
			call, ok := e.Site.(*ssa.Call)
			if !ok || !g.contains(e.Callee.Func) || slices.Contains(g.callees[call], e.Callee.Func) {
				continue
			}
			g.callees[call] = append(g.callees[call], e.Callee.Func)
		}
	}
	for _, f := range g.functions {
		lang.IterateInstructions(f, func(_ int, instr ssa.Instruction) {
			callees := g.callees[instr]
			sortFunctions(callees)
			for _, callee := range callees {
				g.callers[callee] = append(g.callers[callee], instr)
			}
		})
	}
	return g
}

func (g *Graph) contains(f *ssa.Function) bool {
	return f != nil && len(f.Blocks) > 0 && (g.keep == nil || g.keep(f))
}

func sortFunctions(funcs []*ssa.Function) {
	slices.SortStableFunc(funcs, func(a, b *ssa.Function) int {
		if c := strings.Compare(a.String(), b.String()); c != 0 {
			return c
		}
		return int(a.Pos() - b.Pos())
	})
}

// Program returns the program of the graph
func (g *Graph) Program() *ssa.Program {
	return g.prog
}

// Callgraph returns the call graph the callees are taken from
func (g *Graph) Callgraph() *callgraph.Graph {
	return g.cg
}

// Functions returns the functions of the graph, sorted by name
func (g *Graph) Functions() []*ssa.Function {
	return g.functions
}

// Contains returns true if f is a function of the graph
func (g *Graph) Contains(f *ssa.Function) bool {
	return g.members[f]
}

// Predecessors returns the instruction before s in its block, or the last instructions of the predecessor blocks
func (g *Graph) Predecessors(s ssa.Instruction) []ssa.Instruction {
	p, ok := g.positions[s]
	if !ok {
		return nil
	}
	if p.index > 0 {
		return []ssa.Instruction{p.block.Instrs[p.index-1]}
	}
	var preds []ssa.Instruction
	for _, b := range p.block.Preds {
		if last := lang.LastInstr(b); last != nil {
			preds = append(preds, last)
		}
	}
	return preds
}

// Successors returns the instruction after s in its block, or the first instructions of the successor blocks
func (g *Graph) Successors(s ssa.Instruction) []ssa.Instruction {
	p, ok := g.positions[s]
	if !ok {
		return nil
	}
	if p.index < len(p.block.Instrs)-1 {
		return []ssa.Instruction{p.block.Instrs[p.index+1]}
	}
	var succs []ssa.Instruction
	for _, b := range p.block.Succs {
		if first := lang.FirstInstr(b); first != nil {
			succs = append(succs, first)
		}
	}
	return succs
}

// Callees returns the functions of the graph that the call graph says s may call. Only *ssa.Call instructions
// have callees: go and defer statements are not entered.
func (g *Graph) Callees(s ssa.Instruction) []*ssa.Function {
	return g.callees[s]
}

// Callers returns the call instructions that may call m
func (g *Graph) Callers(m *ssa.Function) []ssa.Instruction {
	return g.callers[m]
}

// EntryPoints returns the first instruction of m
func (g *Graph) EntryPoints(m *ssa.Function) []ssa.Instruction {
	if len(m.Blocks) == 0 {
		return nil
	}
	if first := lang.FirstInstr(m.Blocks[0]); first != nil {
		return []ssa.Instruction{first}
	}
	return nil
}

// ExitPoints returns the return and panic instructions of m
func (g *Graph) ExitPoints(m *ssa.Function) []ssa.Instruction {
	return g.exits[m]
}

// MethodOf returns the function of s
func (g *Graph) MethodOf(s ssa.Instruction) *ssa.Function {
	return s.Parent()
}

func (g *Graph) calledFunctions(f *ssa.Function) []*ssa.Function {
	var res []*ssa.Function
	lang.IterateInstructions(f, func(_ int, instr ssa.Instruction) {
		for _, callee := range g.callees[instr] {
			if !slices.Contains(res, callee) {
				res = append(res, callee)
			}
		}
	})
	return res
}

// RecursiveFunctions returns the functions that may call themselves through calls of the graph, in name order
func (g *Graph) RecursiveFunctions() []*ssa.Function {
	sccs := graphutil.StronglyConnectedComponents(g.functions, g.calledFunctions)
	recursive := graphutil.RecursiveNodes(sccs, g.calledFunctions)
	var res []*ssa.Function
	for _, f := range g.functions {
		if recursive[f] {
			res = append(res, f)
		}
	}
	return res
}

// CallCycles returns the sets of functions that call each other in a cycle. A function calling itself is a cycle.
func (g *Graph) CallCycles() [][]*ssa.Function {
	var res [][]*ssa.Function
	for _, c := range graphutil.StrongComponents(g.functions, g.calledFunctions) {
		if len(c) > 1 || slices.Contains(g.calledFunctions(c[0]), c[0]) {
			res = append(res, c)
		}
	}
	return res
}

// IsAcyclic returns true if no function of the graph is recursive
func (g *Graph) IsAcyclic() bool {
	return graphutil.IsAcyclic(g.functions, g.calledFunctions)
}

// Reachable returns the functions of the graph reachable from roots through the call graph
func (g *Graph) Reachable(roots []*ssa.Function) map[*ssa.Function]bool {
	return lang.ReachableFrom(g.cg, roots, func(f *ssa.Function) bool { return !g.contains(f) })
}
