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

package ifds

import (
	"slices"

	"github.com/awslabs/argot-ifds/internal/funcutil"
)

const zero = "0"

// testGraph is a supergraph whose statements and methods are strings
type testGraph struct {
	succs    map[string][]string
	preds    map[string][]string
	callees  map[string][]string
	callers  map[string][]string
	methodOf map[string]string
	entries  map[string][]string
	exits    map[string][]string
}

func newTestGraph() *testGraph {
	return &testGraph{
		succs:    map[string][]string{},
		preds:    map[string][]string{},
		callees:  map[string][]string{},
		callers:  map[string][]string{},
		methodOf: map[string]string{},
		entries:  map[string][]string{},
		exits:    map[string][]string{},
	}
}

// method adds a straight-line method: the first statement is the entry and the last one is the exit
func (g *testGraph) method(name string, stmts ...string) *testGraph {
	for i, s := range stmts {
		g.methodOf[s] = name
		if i > 0 {
			g.edge(stmts[i-1], s)
		}
	}
	g.entries[name] = []string{stmts[0]}
	g.exits[name] = []string{stmts[len(stmts)-1]}
	return g
}

func (g *testGraph) edge(from, to string) *testGraph {
	g.succs[from] = append(g.succs[from], to)
	g.preds[to] = append(g.preds[to], from)
	return g
}

func (g *testGraph) call(stmt string, callee string) *testGraph {
	g.callees[stmt] = append(g.callees[stmt], callee)
	g.callers[callee] = append(g.callers[callee], stmt)
	return g
}

func (g *testGraph) Predecessors(s string) []string { return g.preds[s] }
func (g *testGraph) Successors(s string) []string   { return g.succs[s] }
func (g *testGraph) Callees(s string) []string      { return g.callees[s] }
func (g *testGraph) Callers(m string) []string      { return g.callers[m] }
func (g *testGraph) EntryPoints(m string) []string  { return g.entries[m] }
func (g *testGraph) ExitPoints(m string) []string   { return g.exits[m] }
func (g *testGraph) MethodOf(s string) string       { return g.methodOf[s] }

// testSpace is a gen/kill problem over string facts. Calls pass all facts to the callee, and only the zero fact
// bypasses the callee.
type testSpace struct {
	start   []string
	gen     map[string][]string
	kill    map[string][]string
	panicOn string
}

func newTestSpace(start ...string) *testSpace {
	return &testSpace{
		start: append([]string{zero}, start...),
		gen:   map[string][]string{},
		kill:  map[string][]string{},
	}
}

func (sp *testSpace) StartFacts(_ string) []string {
	return sp.start
}

func (sp *testSpace) SequentFlowFunction(current, _ string) FlowFunction[string] {
	return func(fact string) []string {
		if sp.panicOn != "" && fact == sp.panicOn {
			panic("flow function failure on " + fact)
		}
		if slices.Contains(sp.kill[current], fact) {
			return nil
		}
		res := []string{fact}
		if fact == zero {
			res = append(res, sp.gen[current]...)
		}
		return res
	}
}

func (sp *testSpace) CallToStartFlowFunction(_ string, _ string) FlowFunction[string] {
	return Identity[string]()
}

func (sp *testSpace) CallToReturnFlowFunction(_, _ string) FlowFunction[string] {
	return func(fact string) []string {
		if fact == zero {
			return []string{zero}
		}
		return nil
	}
}

func (sp *testSpace) ExitToReturnSiteFlowFunction(_, _, _ string) FlowFunction[string] {
	return Identity[string]()
}

type propagation struct {
	edge  Edge[string, string]
	pred  string
	isNew bool
}

// recorder is a listener that records all the events of an instance
type recorder struct {
	propagations []propagation
	exits        []Edge[string, string]
}

func (r *recorder) listener() Listener[string, string] {
	return ListenerFuncs[string, string]{
		Propagate: func(edge Edge[string, string], pred funcutil.Optional[string], isNew bool) {
			r.propagations = append(r.propagations, propagation{edge, pred.ValueOr(""), isNew})
		},
		ExitPoint: func(edge Edge[string, string]) {
			r.exits = append(r.exits, edge)
		},
	}
}

func edge(s1, d1, s2, d2 string) Edge[string, string] {
	return Edge[string, string]{From: Vertex[string, string]{s1, d1}, To: Vertex[string, string]{s2, d2}}
}

func sorted(facts []string) []string {
	res := slices.Clone(facts)
	slices.Sort(res)
	return res
}
