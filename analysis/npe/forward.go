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
	"github.com/awslabs/argot-ifds/analysis/taint"
	"github.com/awslabs/argot-ifds/internal/funcutil"
)

// Fact is the fact "the value at the access path may be null"
type Fact = taint.Fact[ir.Inst, string, string]

// ForwardFunctions propagates the possibly null values through a program.
type ForwardFunctions struct {
	graph         *ir.Graph
	maxPathLength int
}

var _ ifds.FlowFunctionsSpace[*ir.Method, ir.Inst, Fact] = (*ForwardFunctions)(nil)

// NewForwardFunctions returns the forward null-value flow functions of g, for access paths of at most maxPathLength
// fields.
func NewForwardFunctions(g *ir.Graph, maxPathLength int) *ForwardFunctions {
	return &ForwardFunctions{graph: g, maxPathLength: maxPathLength}
}

// StartFacts returns the zero fact, the nullable parameters and the nullable fields of the receiver
func (f *ForwardFunctions) StartFacts(entry ir.Inst) []Fact {
	m := entry.Method()
	res := []Fact{taint.Zero[ir.Inst, string, string]()}
	for _, p := range m.NullableParams {
		res = append(res, taint.FromPath[ir.Inst](paths.New[string, string](p)))
	}
	for _, field := range m.NullableFields {
		res = append(res, taint.FromPath[ir.Inst](paths.New(ir.ThisName, field)))
	}
	return res
}

func (f *ForwardFunctions) SequentFlowFunction(current, next ir.Inst) ifds.FlowFunction[Fact] {
	return func(fact Fact) []Fact {
		// a fact activated here is subject to the effect of the statement like any other
		fact = fact.CheckActivation(current)
		var def []Fact
		if fact.IsZero() || !dereferencedAt(fact.Path(), current, f.maxPathLength) {
			def = []Fact{fact}
		}
		switch x := current.(type) {
		case *ir.AssignInst:
			return f.transmit(x.Rhs, x.Lhs, fact, false)
		case *ir.IfInst:
			return f.nullCheck(x, next, fact, def)
		}
		return def
	}
}

// nullCheck refines the facts on the branches of conditions comparing a path to null.
func (f *ForwardFunctions) nullCheck(inst *ir.IfInst, next ir.Inst, fact Fact, def []Fact) []Fact {
	compared, ok := comparedToNull(inst, f.maxPathLength)
	if !ok {
		return def
	}
	if (inst.Op == ir.Eq) == (next == inst.True()) {
		// compared is null on this branch
		if fact.IsZero() {
			return []Fact{taint.FromPath[ir.Inst](compared)}
		}
		if _, hasActivation := fact.Activation(); fact.Path().StartsWith(compared) && !hasActivation {
			if fact.Path() == compared {
				// the branch is only taken when the fact holds
				return []Fact{taint.Zero[ir.Inst, string, string]()}
			}
			return nil
		}
		return def
	}
	if !fact.IsZero() && fact.Path() == compared {
		return nil
	}
	return def
}

func (f *ForwardFunctions) CallToStartFlowFunction(call ir.Inst, callee *ir.Method) ifds.FlowFunction[Fact] {
	callExpr, _ := ir.CallOf(call)
	return func(fact Fact) []Fact {
		if activation, ok := fact.Activation(); ok && activation == call {
			return nil
		}
		var res []Fact
		for i, formal := range callee.Params {
			if i < len(callExpr.Args) {
				res = append(res, f.transmit(callExpr.Args[i], ir.L(formal), fact, true)...)
			}
		}
		if callExpr.Receiver != nil {
			this := paths.New[string, string](ir.ThisName)
			for _, x := range f.transmit(callExpr.Receiver, ir.L(ir.ThisName), fact, true) {
				// the receiver of a call is never null in the callee
				if x.IsZero() || x.Path() != this {
					res = append(res, x)
				}
			}
		}
		if fact.IsZero() {
			res = append(res, fact)
		}
		return res
	}
}

func (f *ForwardFunctions) CallToReturnFlowFunction(call, _ ir.Inst) ifds.FlowFunction[Fact] {
	callExpr, _ := ir.CallOf(call)
	lhs, isAssign := assignedPath(call, f.maxPathLength)
	return func(fact Fact) []Fact {
		if fact.IsZero() {
			if isAssign && f.nullableCallee(callExpr) {
				return []Fact{fact, taint.FromPath[ir.Inst](lhs)}
			}
			return []Fact{fact}
		}
		if activation, ok := fact.Activation(); ok && activation == call {
			return []Fact{fact.Activated()}
		}
		p := fact.Path()
		// facts reachable from the operands of the call and the assigned path go through the callee
		for _, v := range callExpr.Operands() {
			if vp, ok := ir.PathOf(v, f.maxPathLength); ok && p.StartsWith(vp) {
				return nil
			}
		}
		if isAssign && p.StartsWith(lhs) {
			return nil
		}
		if dereferencedAt(p, call, f.maxPathLength) {
			return nil
		}
		return []Fact{fact}
	}
}

func (f *ForwardFunctions) ExitToReturnSiteFlowFunction(call, _, exit ir.Inst) ifds.FlowFunction[Fact] {
	callExpr, _ := ir.CallOf(call)
	callee := exit.Method()
	return func(fact Fact) []Fact {
		updated := fact
		if activation, ok := fact.Activation(); ok && activation.Method() == callee {
			updated = fact.WithActivation(call)
		}
		var res []Fact
		if fact.IsOnHeap() {
			// parameters are not assigned in the callee: only the fields of the arguments may have changed
			for i, formal := range callee.Params {
				if i < len(callExpr.Args) {
					res = append(res, f.transmit(ir.L(formal), callExpr.Args[i], updated, true)...)
				}
			}
		}
		if callExpr.Receiver != nil {
			res = append(res, f.transmit(ir.L(ir.ThisName), callExpr.Receiver, updated, true)...)
		}
		if assign, ok := call.(*ir.AssignInst); ok {
			if ret, ok := exit.(*ir.ReturnInst); ok && ret.Value != nil {
				res = append(res, f.transmit(ret.Value, assign.Lhs, updated, true)...)
			}
		}
		return res
	}
}

// transmit returns the facts that hold after the value of from is assigned to to, when fact holds before. When
// dropFact is set, fact itself is not kept.
func (f *ForwardFunctions) transmit(from ir.Value, to ir.Value, fact Fact, dropFact bool) []Fact {
	var def []Fact
	if !dropFact && (fact.IsZero() || !dereferencedIn(fact.Path(), f.maxPathLength, from, to)) {
		def = []Fact{fact}
	}
	toPath, ok := ir.PathOf(to, f.maxPathLength)
	if !ok {
		return def
	}
	overwritten := !fact.IsZero() && fact.Path().StartsWith(toPath)

	generates := false
	switch x := from.(type) {
	case ir.NullConst:
		generates = true
	case *ir.CallExpr:
		generates = f.nullableCallee(x)
		if !generates && overwritten {
			return nil
		}
	case ir.NewExpr, ir.Const:
		if overwritten {
			return nil
		}
		return def
	}
	if generates {
		if fact.IsZero() {
			return []Fact{fact, taint.FromPath[ir.Inst](toPath)}
		}
		if overwritten {
			return nil
		}
		return def
	}

	fromPath, ok := ir.PathOf(from, f.maxPathLength)
	if !ok {
		return def
	}
	if !fact.IsZero() {
		if diff, ok := fact.Path().Minus(fromPath); ok {
			moved := fact.MoveTo(paths.FromOther(toPath, diff, f.maxPathLength))
			if funcutil.Contains(def, moved) {
				return def
			}
			return append(def, moved)
		}
	}
	if overwritten {
		return nil
	}
	return def
}

func (f *ForwardFunctions) nullableCallee(call *ir.CallExpr) bool {
	m := f.graph.Method(call.Method)
	return m != nil && m.Nullable
}

// comparedToNull returns the path compared to null by inst, if any
func comparedToNull(inst *ir.IfInst, k int) (ir.Path, bool) {
	if _, ok := inst.Rhs.(ir.NullConst); ok {
		return ir.PathOf(inst.Lhs, k)
	}
	if _, ok := inst.Lhs.(ir.NullConst); ok {
		return ir.PathOf(inst.Rhs, k)
	}
	return ir.Path{}, false
}

// assignedPath returns the path assigned by inst, if inst is an assignment
func assignedPath(inst ir.Inst, k int) (ir.Path, bool) {
	if assign, ok := inst.(*ir.AssignInst); ok {
		return ir.PathOf(assign.Lhs, k)
	}
	return ir.Path{}, false
}

// dereferencedAt returns true if executing inst reads a field of the value at p, or calls a method on it
func dereferencedAt(p ir.Path, inst ir.Inst, k int) bool {
	if call, ok := ir.CallOf(inst); ok && receiverIs(p, call, k) {
		return true
	}
	return dereferencedIn(p, k, inst.Operands()...)
}

// dereferencedIn returns true if evaluating one of values reads a field of the value at p
func dereferencedIn(p ir.Path, k int, values ...ir.Value) bool {
	for _, v := range values {
		if call, ok := v.(*ir.CallExpr); ok {
			if receiverIs(p, call, k) || dereferencedIn(p, k, call.Operands()...) {
				return true
			}
			continue
		}
		vp, ok := ir.PathOf(v, k)
		if !ok {
			continue
		}
		if diff, ok := vp.Minus(p); ok && len(diff) > 0 {
			return true
		}
	}
	return false
}

func receiverIs(p ir.Path, call *ir.CallExpr, k int) bool {
	if call.Receiver == nil {
		return false
	}
	rp, ok := ir.PathOf(call.Receiver, k)
	return ok && rp.StartsWith(p)
}
