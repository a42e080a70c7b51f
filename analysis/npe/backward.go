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

package npe

import (
	"github.com/awslabs/argot-ifds/analysis/ifds"
	"github.com/awslabs/argot-ifds/analysis/ir"
	"github.com/awslabs/argot-ifds/analysis/paths"
)

// BackwardFunctions propagates heap facts backward through copies, to find the paths that may alias them. They are
// meant to run on the reversed supergraph.
type BackwardFunctions struct {
	maxPathLength int
}

var _ ifds.FlowFunctionsSpace[*ir.Method, ir.Inst, Fact] = (*BackwardFunctions)(nil)

// NewBackwardFunctions returns the backward alias flow functions for access paths of at most maxPathLength fields
func NewBackwardFunctions(maxPathLength int) *BackwardFunctions {
	return &BackwardFunctions{maxPathLength: maxPathLength}
}

// StartFacts returns nothing: the backward analysis only receives facts from the forward one
func (b *BackwardFunctions) StartFacts(ir.Inst) []Fact {
	return nil
}

func (b *BackwardFunctions) SequentFlowFunction(current, _ ir.Inst) ifds.FlowFunction[Fact] {
	assign, isAssign := current.(*ir.AssignInst)
	return func(fact Fact) []Fact {
		// the assignment that activates the fact is where it appeared, and is skipped
		if activation, ok := fact.Activation(); !isAssign || (ok && activation == current) {
			return []Fact{fact}
		}
		return b.transmitBack(assign.Lhs, assign.Rhs, fact, false)
	}
}

func (b *BackwardFunctions) CallToStartFlowFunction(call ir.Inst, callee *ir.Method) ifds.FlowFunction[Fact] {
	callExpr, _ := ir.CallOf(call)
	assign, isAssign := call.(*ir.AssignInst)
	return func(fact Fact) []Fact {
		var res []Fact
		if fact.IsZero() {
			res = append(res, fact)
		}
		if isAssign {
			for _, ret := range callee.Returns() {
				res = append(res, b.transmitBack(assign.Lhs, ret, fact, true)...)
			}
		}
		if callExpr.Receiver != nil {
			res = append(res, b.transmitBack(callExpr.Receiver, ir.L(ir.ThisName), fact, true)...)
		}
		for i, formal := range callee.Params {
			if i >= len(callExpr.Args) {
				break
			}
			for _, x := range b.transmitBack(callExpr.Args[i], ir.L(formal), fact, true) {
				// parameters are not assigned in the callee
				if x.IsOnHeap() {
					res = append(res, x)
				}
			}
		}
		return res
	}
}

func (b *BackwardFunctions) CallToReturnFlowFunction(call, _ ir.Inst) ifds.FlowFunction[Fact] {
	callExpr, _ := ir.CallOf(call)
	lhs, isAssign := assignedPath(call, b.maxPathLength)
	return func(fact Fact) []Fact {
		if fact.IsZero() {
			return []Fact{fact}
		}
		if activation, ok := fact.Activation(); ok && activation == call {
			return []Fact{fact}
		}
		p := fact.Path()
		for _, v := range callExpr.Operands() {
			if vp, ok := ir.PathOf(v, b.maxPathLength); ok && p.StartsWith(vp) {
				return nil
			}
		}
		if isAssign && p.StartsWith(lhs) {
			return nil
		}
		return []Fact{fact}
	}
}

func (b *BackwardFunctions) ExitToReturnSiteFlowFunction(call, _, exit ir.Inst) ifds.FlowFunction[Fact] {
	callExpr, _ := ir.CallOf(call)
	callee := exit.Method()
	return func(fact Fact) []Fact {
		var res []Fact
		for i, formal := range callee.Params {
			if i < len(callExpr.Args) {
				res = append(res, b.transmitBack(ir.L(formal), callExpr.Args[i], fact, true)...)
			}
		}
		if callExpr.Receiver != nil {
			res = append(res, b.transmitBack(ir.L(ir.ThisName), callExpr.Receiver, fact, true)...)
		}
		return res
	}
}

// transmitBack returns the facts that hold before the value of to is assigned to from, when fact holds after.
func (b *BackwardFunctions) transmitBack(from ir.Value, to ir.Value, fact Fact, dropFact bool) []Fact {
	if fact.IsZero() {
		return []Fact{fact}
	}
	var def []Fact
	if !dropFact {
		def = []Fact{fact}
	}
	toPath, ok := ir.PathOf(to, b.maxPathLength)
	if !ok {
		return def
	}
	fromPath, ok := ir.PathOf(from, b.maxPathLength)
	if !ok {
		return def
	}
	if diff, ok := fact.Path().Minus(fromPath); ok && fact.Path() != fromPath {
		return []Fact{fact.MoveTo(paths.FromOther(toPath, diff, b.maxPathLength))}
	}
	return def
}
