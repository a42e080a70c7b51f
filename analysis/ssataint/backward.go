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

package ssataint

import (
	"go/token"

	"github.com/awslabs/argot-ifds/analysis/ifds"
	"github.com/awslabs/argot-ifds/analysis/lang"
	"github.com/awslabs/argot-ifds/analysis/taint"
	"github.com/awslabs/argot-ifds/internal/analysisutil"
	"golang.org/x/tools/go/ssa"
)

// BackwardFunctions propagates the tainted heap paths backward, to the paths that may alias them. They run on the
// reversed supergraph and only receive facts from the forward functions.
type BackwardFunctions struct {
	roles         Roles
	maxPathLength int
}

var _ ifds.FlowFunctionsSpace[*ssa.Function, ssa.Instruction, Fact] = (*BackwardFunctions)(nil)

// NewBackwardFunctions returns the backward alias flow functions for access paths of at most maxPathLength fields
func NewBackwardFunctions(roles Roles, maxPathLength int) *BackwardFunctions {
	return &BackwardFunctions{roles: roles, maxPathLength: maxPathLength}
}

// StartFacts returns nothing
func (b *BackwardFunctions) StartFacts(ssa.Instruction) []Fact {
	return nil
}

// SequentFlowFunction maps the facts holding after current to the facts holding before it. The statement that
// activates a fact is where the fact appeared, and is skipped.
func (b *BackwardFunctions) SequentFlowFunction(current, _ ssa.Instruction) ifds.FlowFunction[Fact] {
	return func(fact Fact) []Fact {
		if activation, ok := fact.Activation(); fact.IsZero() || (ok && activation == current) {
			return []Fact{fact}
		}
		var res []Fact
		for _, p := range b.sequent(current, fact.Path()) {
			res = append(res, fact.MoveTo(p))
		}
		return res
	}
}

func (b *BackwardFunctions) sequent(instr ssa.Instruction, p Path) []Path {
	k := b.maxPathLength
	switch i := instr.(type) {
	case *ssa.Store:
		if rest, ok := storedAt(locate(i.Addr, k), p); ok {
			if len(rest) == 0 {
				return nil
			}
			return []Path{extend(valuePath(i.Val), k, rest...)}
		}
		return []Path{p}
	case *ssa.MapUpdate:
		return b.inserted(valuePath(i.Map), i.Value, p)
	case *ssa.Send:
		return b.inserted(valuePath(i.Chan), i.X, p)
	case ssa.Value:
		if p.Root() == i {
			return b.origins(i, p.Fields())
		}
		return []Path{p}
	default:
		return []Path{p}
	}
}

// storedAt returns the fields of p below the location l
func storedAt(l Path, p Path) ([]string, bool) {
	if rest, ok := p.Minus(l); ok {
		return rest, true
	}
	if obj, ok := withoutDeref(l); ok && p.Len() > obj.Len() {
		return p.Minus(obj)
	}
	return nil, false
}

// inserted returns the paths before the value x is inserted in the container c, when p holds after
func (b *BackwardFunctions) inserted(c Path, x ssa.Value, p Path) []Path {
	if rest, ok := p.Minus(extend(c, b.maxPathLength, elemField)); ok && len(rest) > 0 {
		return []Path{p, extend(valuePath(x), b.maxPathLength, rest...)}
	}
	return []Path{p}
}

// origins returns the paths that hold the data at rest below v, before v is defined. Allocations and calls without
// callee create new data, which has no origin.
func (b *BackwardFunctions) origins(v ssa.Value, rest []string) []Path {
	k := b.maxPathLength
	from := func(x ssa.Value, fields ...string) []Path {
		return []Path{extend(valuePath(x), k, append(fields, rest...)...)}
	}
	fromTuple := func(x ssa.Value, fields ...string) []Path {
		if len(rest) == 0 || rest[0] != tupleField(0) {
			return nil
		}
		return []Path{extend(valuePath(x), k, append(fields, rest[1:]...)...)}
	}
	switch i := v.(type) {
	case *ssa.UnOp:
		switch i.Op {
		case token.MUL:
			return []Path{under(locate(i.X, k), rest, k)}
		case token.ARROW:
			if i.CommaOk {
				return fromTuple(i.X, elemField)
			}
			return from(i.X, elemField)
		}
	case *ssa.FieldAddr, *ssa.IndexAddr:
		fields := rest
		if len(fields) > 0 && fields[0] == derefField {
			fields = fields[1:]
		}
		return []Path{extend(locate(i, k), k, fields...)}
	case *ssa.Field:
		return from(i.X, analysisutil.FieldFieldName(i))
	case *ssa.Index:
		return from(i.X, elemField)
	case *ssa.Lookup:
		if i.CommaOk {
			return fromTuple(i.X, elemField)
		}
		return from(i.X, elemField)
	case *ssa.Extract:
		return from(i.Tuple, tupleField(i.Index))
	case *ssa.Phi:
		var res []Path
		for _, e := range i.Edges {
			res = append(res, from(e)...)
		}
		return res
	case *ssa.ChangeType:
		return from(i.X)
	case *ssa.ChangeInterface:
		return from(i.X)
	case *ssa.MakeInterface:
		return from(i.X)
	case *ssa.Slice:
		return from(i.X)
	case *ssa.TypeAssert:
		if i.CommaOk {
			return fromTuple(i.X)
		}
		return from(i.X)
	}
	return nil
}

// CallToStartFlowFunction maps the value of the call to the returned values of callee, and the data reachable from
// the arguments to the parameters.
func (b *BackwardFunctions) CallToStartFlowFunction(call ssa.Instruction, callee *ssa.Function) ifds.FlowFunction[Fact] {
	if b.roles.opaque(call) {
		return func(Fact) []Fact { return nil }
	}
	callValue, _ := call.(*ssa.Call)
	args, bindings := actuals(call)
	returns := returnedValues(callee)
	k := b.maxPathLength
	return func(fact Fact) []Fact {
		if fact.IsZero() {
			return []Fact{fact}
		}
		if activation, ok := fact.Activation(); ok && activation == call {
			return nil
		}
		p := fact.Path()
		if _, ok := p.Root().(*ssa.Global); ok {
			return []Fact{fact}
		}
		var res []Fact
		if callValue != nil && p.Root() == callValue {
			for _, results := range returns {
				if len(results) == 1 {
					res = append(res, fact.MoveTo(rebase(p, results[0], k)))
					continue
				}
				fields := p.Fields()
				for i, r := range results {
					if len(fields) > 0 && fields[0] == tupleField(i) {
						res = append(res, fact.MoveTo(extend(valuePath(r), k, fields[1:]...)))
					}
				}
			}
		}
		if !p.IsOnHeap() {
			return res
		}
		for i, arg := range args {
			if arg == p.Root() && i < len(callee.Params) {
				res = append(res, fact.MoveTo(rebase(p, callee.Params[i], k)))
			}
		}
		for i, v := range bindings {
			if v == p.Root() && i < len(callee.FreeVars) {
				res = append(res, fact.MoveTo(rebase(p, callee.FreeVars[i], k)))
			}
		}
		return res
	}
}

// returnedValues returns the results of the return instructions of f
func returnedValues(f *ssa.Function) [][]ssa.Value {
	var res [][]ssa.Value
	lang.IterateInstructions(f, func(_ int, instr ssa.Instruction) {
		if ret, ok := instr.(*ssa.Return); ok && len(ret.Results) > 0 {
			res = append(res, ret.Results)
		}
	})
	return res
}

// CallToReturnFlowFunction keeps the facts the call does not define. The data reachable from the operands goes
// through the callee, unless the callee is not entered.
func (b *BackwardFunctions) CallToReturnFlowFunction(call, _ ssa.Instruction) ifds.FlowFunction[Fact] {
	opaque := b.roles.opaque(call)
	callValue, _ := call.(*ssa.Call)
	args, bindings := actuals(call)
	operands := append(append([]ssa.Value{}, args...), bindings...)
	return func(fact Fact) []Fact {
		if fact.IsZero() {
			return []Fact{fact}
		}
		if activation, ok := fact.Activation(); ok && activation == call {
			return []Fact{fact}
		}
		p := fact.Path()
		if callValue != nil && p.Root() == callValue {
			return nil
		}
		if opaque || !p.IsOnHeap() {
			return []Fact{fact}
		}
		for _, v := range operands {
			if v == p.Root() {
				return nil
			}
		}
		return []Fact{fact}
	}
}

// ExitToReturnSiteFlowFunction maps the data reachable from the parameters and the free variables of the callee
// back to the arguments and the bindings of the call. Parameters are not assigned in the callee.
func (b *BackwardFunctions) ExitToReturnSiteFlowFunction(call, _, exit ssa.Instruction) ifds.FlowFunction[Fact] {
	callee := exit.Parent()
	args, bindings := actuals(call)
	k := b.maxPathLength
	return func(fact Fact) []Fact {
		if fact.IsZero() || !fact.IsOnHeap() {
			return nil
		}
		p := fact.Path()
		if _, ok := p.Root().(*ssa.Global); ok {
			return []Fact{fact}
		}
		var res []Fact
		for i, param := range callee.Params {
			if param == p.Root() && i < len(args) {
				res = append(res, fact.MoveTo(rebase(p, args[i], k)))
			}
		}
		for i, fv := range callee.FreeVars {
			if fv == p.Root() && i < len(bindings) {
				res = append(res, fact.MoveTo(rebase(p, bindings[i], k)))
			}
		}
		return res
	}
}

// HeapInspector gives the bidirectional solver the paths written by the SSA instructions. A value instruction
// assigns its value, and a store the location it writes to.
type HeapInspector struct {
	MaxPathLength int
}

var _ taint.HeapInspector[ssa.Instruction, ssa.Value, string] = HeapInspector{}

// AssignedPath returns the path written by s. The fields of the object a pointer points to are selected from the
// pointer, so a store through a pointer writes all the paths of the pointer.
func (h HeapInspector) AssignedPath(s ssa.Instruction) (Path, bool) {
	switch i := s.(type) {
	case *ssa.Store:
		l := locate(i.Addr, h.MaxPathLength)
		if obj, ok := withoutDeref(l); ok {
			return obj, true
		}
		return l, true
	case ssa.Value:
		return valuePath(i), true
	default:
		return Path{}, false
	}
}

// CallOperandPaths returns the paths of the arguments and the closure bindings of the call in s
func (h HeapInspector) CallOperandPaths(s ssa.Instruction) []Path {
	args, bindings := actuals(s)
	var res []Path
	for _, v := range append(append([]ssa.Value{}, args...), bindings...) {
		res = append(res, valuePath(v))
	}
	return res
}
