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
	"golang.org/x/tools/go/ssa"
)

// Statistics are counts over the functions of a supergraph
type Statistics struct {
	Functions    int
	Blocks       int
	Instructions int
	// CallSites is the number of calls that have at least one callee in the graph
	CallSites int
	Defers    int
	Closures  int
	// Recursive is the number of functions that are part of a call cycle
	Recursive int
	// Cycles is the number of call cycles
	Cycles int
	// Acyclic is true when the call graph has no cycle
	Acyclic bool
}

// Statistics returns general statistics about the SSA representation of the functions of the graph.
func (g *Graph) Statistics() Statistics {
	var s Statistics
	for _, f := range g.functions {
		s.Functions++
		for _, b := range f.Blocks {
			s.Blocks++
			s.Instructions += len(b.Instrs)
			for _, instr := range b.Instrs {
				switch instr.(type) {
				case *ssa.Defer:
					s.Defers++
				case *ssa.MakeClosure:
					s.Closures++
				}
				if len(g.callees[instr]) > 0 {
					s.CallSites++
				}
			}
		}
	}
	s.Recursive = len(g.RecursiveFunctions())
	s.Cycles = len(g.CallCycles())
	s.Acyclic = g.IsAcyclic()
	return s
}
