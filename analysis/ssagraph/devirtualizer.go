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

package ssagraph

import (
	"github.com/awslabs/argot-ifds/analysis/ifds"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// VTADevirtualizer refines the callees of dynamic calls with a variable type analysis seeded with the call graph of
// a Graph. Static calls keep the callees of the graph.
type VTADevirtualizer struct {
	graph   *Graph
	callees map[ssa.Instruction][]*ssa.Function
}

var _ ifds.Devirtualizer[*ssa.Function, ssa.Instruction] = (*VTADevirtualizer)(nil)

// NewVTADevirtualizer runs the variable type analysis over the program of g
func NewVTADevirtualizer(g *Graph) *VTADevirtualizer {
	refined := vta.CallGraph(ssautil.AllFunctions(g.prog), g.cg)
	d := &VTADevirtualizer{graph: g, callees: map[ssa.Instruction][]*ssa.Function{}}
	for _, f := range g.functions {
		node := refined.Nodes[f]
		if node == nil {
			continue
		}
		for _, e := range node.Out {
			call, ok := e.Site.(*ssa.Call)
			if !ok || !isDynamic(call) || !g.contains(e.Callee.Func) {
				continue
			}
			d.callees[call] = append(d.callees[call], e.Callee.Func)
		}
	}
	for _, callees := range d.callees {
		sortFunctions(callees)
	}
	return d
}

func isDynamic(call *ssa.Call) bool {
	return call.Call.StaticCallee() == nil
}

// FindPossibleCallees returns the refined callees of s
func (d *VTADevirtualizer) FindPossibleCallees(s ssa.Instruction) []*ssa.Function {
	call, ok := s.(*ssa.Call)
	if !ok {
		return nil
	}
	if !isDynamic(call) {
		return d.graph.Callees(s)
	}
	return d.callees[s]
}
