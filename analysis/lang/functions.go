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

package lang

import (
	"go/token"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// IterateInstructions iterates through all the instructions in the function, block by block.
func IterateInstructions(function *ssa.Function, f func(index int, instruction ssa.Instruction)) {
	for _, block := range function.Blocks {
		for index, instruction := range block.Instrs {
			f(index, instruction)
		}
	}
}

// FunctionPosition returns the position of f, or of its first instruction with a position when f is synthetic
func FunctionPosition(f *ssa.Function) token.Pos {
	if f.Pos().IsValid() {
		return f.Pos()
	}
	pos := token.NoPos
	IterateInstructions(f, func(_ int, instr ssa.Instruction) {
		if !pos.IsValid() {
			pos = instr.Pos()
		}
	})
	return pos
}

// ReachableFrom returns the functions reachable from the roots according to cg. Functions for which filter returns
// true are not traversed.
func ReachableFrom(cg *callgraph.Graph, roots []*ssa.Function, filter func(*ssa.Function) bool) map[*ssa.Function]bool {
	reachable := make(map[*ssa.Function]bool, len(cg.Nodes))
	var frontier []*callgraph.Node
	for _, root := range roots {
		if node := cg.Nodes[root]; node != nil && !reachable[root] {
			reachable[root] = true
			frontier = append(frontier, node)
		}
	}

	for len(frontier) != 0 {
		node := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, edge := range node.Out {
			callee := edge.Callee.Func
			if filter != nil && filter(callee) {
				continue
			}
			if !reachable[callee] {
				reachable[callee] = true
				frontier = append(frontier, edge.Callee)
			}
		}
	}
	return reachable
}
