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

package ir

import (
	"fmt"

	"github.com/awslabs/argot-ifds/analysis/ifds"
	"github.com/awslabs/argot-ifds/internal/funcutil"
	"github.com/awslabs/argot-ifds/internal/graphutil"
	"github.com/awslabs/argot-ifds/internal/ordered"
)

// Graph is the supergraph of a built program.
type Graph struct {
	methods   []*Method
	byName    map[string]*Method
	callers   *ordered.Map[*Method, []Inst]
	overrides map[*Method][]*Method
}

var _ ifds.Supergraph[*Method, Inst] = (*Graph)(nil)

// link records the callers of the methods called in m
func (g *Graph) link(m *Method) []error {
	var errs []error
	for _, inst := range m.Insts {
		call, ok := CallOf(inst)
		if !ok {
			continue
		}
		callee, ok := g.byName[call.Method]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s called at %s", ErrUnknownMethod, call.Method, inst))
			continue
		}
		if len(call.Args) != len(callee.Params) {
			errs = append(errs, fmt.Errorf("%w: %s expects %d, got %d at %s", ErrArity, callee.Name,
				len(callee.Params), len(call.Args), inst))
			continue
		}
		g.callers.Store(callee, append(g.callers.Value(callee), inst))
	}
	return errs
}

// Methods returns the methods of the program in declaration order
func (g *Graph) Methods() []*Method {
	return g.methods
}

// Method returns the method name, or nil
func (g *Graph) Method(name string) *Method {
	return g.byName[name]
}

// Overrides returns the methods registered as overrides of m
func (g *Graph) Overrides(m *Method) []*Method {
	return g.overrides[m]
}

func (g *Graph) Predecessors(s Inst) []Inst { return s.Method().Predecessors(s) }
func (g *Graph) Successors(s Inst) []Inst   { return s.Method().Successors(s) }
func (g *Graph) MethodOf(s Inst) *Method    { return s.Method() }
func (g *Graph) Callers(m *Method) []Inst   { return g.callers.Value(m) }
func (g *Graph) EntryPoints(m *Method) []Inst {
	return []Inst{m.Entry()}
}
func (g *Graph) ExitPoints(m *Method) []Inst {
	return m.Exits()
}

// Callees returns the method named by the call in s
func (g *Graph) Callees(s Inst) []*Method {
	call, ok := CallOf(s)
	if !ok {
		return nil
	}
	if m, ok := g.byName[call.Method]; ok {
		return []*Method{m}
	}
	return nil
}

// calledMethods returns the methods called in m, without duplicates
func (g *Graph) calledMethods(m *Method) []*Method {
	called := ordered.NewSet[*Method]()
	for _, inst := range m.Insts {
		funcutil.Iter(g.Callees(inst), func(c *Method) { called.Add(c) })
	}
	return called.Items()
}

// RecursiveMethods returns the methods that may call themselves, directly or through other methods, in declaration
// order.
func (g *Graph) RecursiveMethods() []*Method {
	sccs := graphutil.StronglyConnectedComponents(g.methods, g.calledMethods)
	rec := graphutil.RecursiveNodes(sccs, g.calledMethods)
	return funcutil.Filter(g.methods, func(m *Method) bool { return rec[m] })
}

// OverridesDevirtualizer resolves virtual calls to the called method and some of its overrides.
type OverridesDevirtualizer struct {
	graph *Graph
	limit int
}

// NewOverridesDevirtualizer returns a devirtualizer that returns at most limit methods for each virtual call: the
// called method and the first limit-1 of its overrides. limit is at least 1.
func NewOverridesDevirtualizer(g *Graph, limit int) *OverridesDevirtualizer {
	return &OverridesDevirtualizer{graph: g, limit: max(limit, 1)}
}

// FindPossibleCallees implements ifds.Devirtualizer
func (d *OverridesDevirtualizer) FindPossibleCallees(s Inst) []*Method {
	callees := d.graph.Callees(s)
	call, ok := CallOf(s)
	if !ok || !call.IsVirtual() {
		return callees
	}
	var res []*Method
	for _, m := range callees {
		res = append(res, m)
		overrides := d.graph.Overrides(m)
		res = append(res, overrides[:min(len(overrides), d.limit-1)]...)
	}
	return res
}
