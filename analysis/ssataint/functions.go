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
	"go/types"

	"github.com/awslabs/argot-ifds/analysis/config"
	"github.com/awslabs/argot-ifds/analysis/ifds"
	"github.com/awslabs/argot-ifds/analysis/lang"
	"github.com/awslabs/argot-ifds/analysis/ssagraph"
	"github.com/awslabs/argot-ifds/analysis/taint"
	"github.com/awslabs/argot-ifds/internal/analysisutil"
	"golang.org/x/tools/go/ssa"
)

type role uint8

const (
	roleSource role = 1 << iota
	roleSink
	roleSanitizer
)

// Roles maps the instructions of a graph to their role in a taint problem. It is computed once per problem and
// only read afterwards.
type Roles map[ssa.Instruction]role

// ClassifyInstructions finds the sources, sinks and sanitizers of spec in g. Calls, field reads and field addresses
// can be sources; only calls can be sinks and sanitizers.
func ClassifyInstructions(g *ssagraph.Graph, spec config.TaintSpec) Roles {
	roles := Roles{}
	for _, f := range g.Functions() {
		lang.IterateInstructions(f, func(_ int, instr ssa.Instruction) {
			var r role
			switch node := instr.(type) {
			case *ssa.Call:
				if analysisutil.IsMatchingNode(node, spec.IsSource) {
					r |= roleSource
				}
				if analysisutil.IsMatchingNode(node, spec.IsSink) {
					r |= roleSink
				}
				if analysisutil.IsMatchingNode(node, spec.IsSanitizer) {
					r |= roleSanitizer
				}
			case *ssa.Field:
				if analysisutil.IsMatchingNode(node, spec.IsSource) {
					r |= roleSource
				}
			case *ssa.FieldAddr:
				if analysisutil.IsMatchingNode(node, spec.IsSource) {
					r |= roleSource
				}
			}
			if r != 0 {
				roles[instr] = r
			}
		})
	}
	return roles
}

// IsSource returns true if instr is a source
func (r Roles) IsSource(instr ssa.Instruction) bool { return r[instr]&roleSource != 0 }

// IsSink returns true if instr is a sink call
func (r Roles) IsSink(instr ssa.Instruction) bool { return r[instr]&roleSink != 0 }

// IsSanitizer returns true if instr is a sanitizer call
func (r Roles) IsSanitizer(instr ssa.Instruction) bool { return r[instr]&roleSanitizer != 0 }

// opaque calls are not entered: their callees are sources or sanitizers
func (r Roles) opaque(instr ssa.Instruction) bool {
	return r[instr]&(roleSource|roleSanitizer) != 0
}

// FlowFunctions propagates the data of one source through a program. Other sources do not generate facts, so that
// every fact of an instance comes from its source.
type FlowFunctions struct {
	roles         Roles
	source        ssa.Instruction
	maxPathLength int
}

var _ ifds.FlowFunctionsSpace[*ssa.Function, ssa.Instruction, Fact] = (*FlowFunctions)(nil)

// NewFlowFunctions returns the flow functions for the data produced at source
func NewFlowFunctions(roles Roles, source ssa.Instruction, maxPathLength int) *FlowFunctions {
	return &FlowFunctions{roles: roles, source: source, maxPathLength: maxPathLength}
}

// StartFacts returns the zero fact
func (ff *FlowFunctions) StartFacts(ssa.Instruction) []Fact {
	return []Fact{taint.Zero[ssa.Instruction, ssa.Value, string]()}
}

// generated returns the path tainted by executing instr, when instr is the source
func (ff *FlowFunctions) generated(instr ssa.Instruction) (Path, bool) {
	if instr != ff.source {
		return Path{}, false
	}
	switch s := instr.(type) {
	case *ssa.FieldAddr:
		return locate(s, ff.maxPathLength), true
	case ssa.Value:
		return valuePath(s), true
	default:
		return Path{}, false
	}
}

// SequentFlowFunction returns the effect of current. Calls reaching this function have no callee in the graph.
// A fact activated at current is subject to its effect.
func (ff *FlowFunctions) SequentFlowFunction(current, _ ssa.Instruction) ifds.FlowFunction[Fact] {
	gen, generates := ff.generated(current)
	return func(fact Fact) []Fact {
		if fact.IsZero() {
			if generates {
				return []Fact{fact, fromPath(gen)}
			}
			return []Fact{fact}
		}
		fact = fact.CheckActivation(current)
		var res []Fact
		for _, p := range ff.sequent(current, fact.Path()) {
			res = append(res, fact.MoveTo(p))
		}
		return res
	}
}

func (ff *FlowFunctions) sequent(instr ssa.Instruction, p Path) []Path {
	k := ff.maxPathLength
	switch i := instr.(type) {
	case *ssa.Store:
		l := locate(i.Addr, k)
		var res []Path
		if !overwritten(l, p) {
			res = append(res, p)
		}
		if p.Root() == i.Val {
			res = append(res, under(l, p.Fields(), k))
		}
		return res
	case *ssa.MapUpdate:
		if p.Root() == i.Value {
			return []Path{p, extend(valuePath(i.Map), k, append([]string{elemField}, p.Fields()...)...)}
		}
		return []Path{p}
	case *ssa.Send:
		if p.Root() == i.X {
			return []Path{p, extend(valuePath(i.Chan), k, append([]string{elemField}, p.Fields()...)...)}
		}
		return []Path{p}
	case *ssa.Call:
		return append([]Path{p}, ff.externalCall(i, p)...)
	case ssa.Value:
		return append([]Path{p}, ff.value(i, p)...)
	default:
		return []Path{p}
	}
}

// externalCall returns the paths tainted by a call to a function without body in the graph. The result is tainted
// when an argument is, and so is the data pointed to by the pointer arguments.
func (ff *FlowFunctions) externalCall(call *ssa.Call, p Path) []Path {
	if ff.roles.opaque(call) {
		return nil
	}
	args := lang.GetArgs(call)
	tainted := false
	for _, arg := range args {
		if arg == p.Root() {
			tainted = true
		}
	}
	if !tainted {
		return nil
	}
	res := []Path{valuePath(call)}
	for _, arg := range args {
		if _, isPtr := arg.Type().Underlying().(*types.Pointer); isPtr && arg != p.Root() {
			res = append(res, locate(arg, ff.maxPathLength))
		}
	}
	return res
}

// value returns the paths of v tainted when p is. The data moves through loads, field and element selections and
// tuple extractions; any value computed from a tainted operand is tainted.
func (ff *FlowFunctions) value(v ssa.Value, p Path) []Path {
	k := ff.maxPathLength
	var res []Path
	moveFrom := func(from Path, prefix ...string) {
		if rest, ok := p.Minus(from); ok {
			res = append(res, extend(valuePath(v), k, append(prefix, rest...)...))
		}
	}
	switch i := v.(type) {
	case *ssa.UnOp:
		switch i.Op {
		case token.MUL:
			res = append(res, loaded(i, locate(i.X, k), p, k)...)
		case token.ARROW:
			if i.CommaOk {
				moveFrom(extend(valuePath(i.X), k, elemField), tupleField(0))
			} else {
				moveFrom(extend(valuePath(i.X), k, elemField))
			}
		}
	case *ssa.Field:
		moveFrom(extend(valuePath(i.X), k, analysisutil.FieldFieldName(i)))
	case *ssa.Index:
		moveFrom(extend(valuePath(i.X), k, elemField))
	case *ssa.Lookup:
		if i.CommaOk {
			moveFrom(extend(valuePath(i.X), k, elemField), tupleField(0))
		} else {
			moveFrom(extend(valuePath(i.X), k, elemField))
		}
	case *ssa.Extract:
		moveFrom(extend(valuePath(i.Tuple), k, tupleField(i.Index)))
	case *ssa.Phi:
		for _, e := range i.Edges {
			if p.IsOnHeap() && p.Root() == e {
				res = append(res, rebase(p, i, k))
			}
		}
	case *ssa.ChangeType:
		res = append(res, ff.copied(i, i.X, p)...)
	case *ssa.ChangeInterface:
		res = append(res, ff.copied(i, i.X, p)...)
	case *ssa.MakeInterface:
		res = append(res, ff.copied(i, i.X, p)...)
	case *ssa.Slice:
		res = append(res, ff.copied(i, i.X, p)...)
	case *ssa.TypeAssert:
		if !i.CommaOk {
			res = append(res, ff.copied(i, i.X, p)...)
		}
	}
	if !p.IsOnHeap() && isOperand(v, p.Root()) {
		res = append(res, valuePath(v))
	}
	return res
}

// copied returns the paths of v below the paths of x, when v is a copy of x
func (ff *FlowFunctions) copied(v ssa.Value, x ssa.Value, p Path) []Path {
	if p.IsOnHeap() && p.Root() == x {
		return []Path{rebase(p, v, ff.maxPathLength)}
	}
	return nil
}

func isOperand(v ssa.Value, x ssa.Value) bool {
	instr, ok := v.(ssa.Instruction)
	if !ok {
		return false
	}
	for _, op := range instr.Operands(nil) {
		if op != nil && *op == x {
			return true
		}
	}
	return false
}

// actuals returns the arguments and the closure bindings of a call, lined up with the parameters and the free
// variables of the callee
func actuals(call ssa.Instruction) (args []ssa.Value, bindings []ssa.Value) {
	c, ok := call.(ssa.CallInstruction)
	if !ok {
		return nil, nil
	}
	if mc, ok := c.Common().Value.(*ssa.MakeClosure); ok {
		bindings = mc.Bindings
	}
	return lang.GetArgs(c), bindings
}

// CallToStartFlowFunction maps the arguments to the parameters of callee. Globals are visible in the callee.
// Sources and sanitizers are not entered.
func (ff *FlowFunctions) CallToStartFlowFunction(call ssa.Instruction, callee *ssa.Function) ifds.FlowFunction[Fact] {
	if ff.roles.opaque(call) {
		return func(Fact) []Fact { return nil }
	}
	args, bindings := actuals(call)
	k := ff.maxPathLength
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
		for i, arg := range args {
			if arg == p.Root() && i < len(callee.Params) {
				res = append(res, fact.MoveTo(rebase(p, callee.Params[i], k)))
			}
		}
		for i, b := range bindings {
			if b == p.Root() && i < len(callee.FreeVars) {
				res = append(res, fact.MoveTo(rebase(p, callee.FreeVars[i], k)))
			}
		}
		return res
	}
}

// CallToReturnFlowFunction keeps the facts the callee cannot change. The data reachable from the arguments may be
// written by the callee, so it goes through the callee instead. The source generates its value here.
func (ff *FlowFunctions) CallToReturnFlowFunction(call, _ ssa.Instruction) ifds.FlowFunction[Fact] {
	gen, generates := ff.generated(call)
	opaque := ff.roles.opaque(call)
	args, bindings := actuals(call)
	operands := append(append([]ssa.Value{}, args...), bindings...)
	return func(fact Fact) []Fact {
		if fact.IsZero() {
			if generates {
				return []Fact{fact, fromPath(gen)}
			}
			return []Fact{fact}
		}
		if activation, ok := fact.Activation(); ok && activation == call {
			return []Fact{fact.Activated()}
		}
		p := fact.Path()
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

// ExitToReturnSiteFlowFunction maps the returned values to the value of the call, and the data reachable from the
// parameters back to the arguments. Panics do not return. The facts activated in the callee are activated at the
// call in the caller.
func (ff *FlowFunctions) ExitToReturnSiteFlowFunction(call, _, exit ssa.Instruction) ifds.FlowFunction[Fact] {
	ret, ok := exit.(*ssa.Return)
	callValue, isValue := call.(*ssa.Call)
	if !ok || !isValue {
		return func(Fact) []Fact { return nil }
	}
	callee := exit.Parent()
	args, bindings := actuals(call)
	k := ff.maxPathLength
	return func(fact Fact) []Fact {
		if fact.IsZero() {
			return nil
		}
		if activation, ok := fact.Activation(); ok && activation.Parent() == callee {
			fact = fact.WithActivation(call)
		}
		p := fact.Path()
		if _, ok := p.Root().(*ssa.Global); ok {
			return []Fact{fact}
		}
		var res []Fact
		for i, r := range ret.Results {
			if r != p.Root() {
				continue
			}
			if len(ret.Results) == 1 {
				res = append(res, fact.MoveTo(rebase(p, callValue, k)))
			} else {
				res = append(res, fact.MoveTo(extend(valuePath(callValue), k, append([]string{tupleField(i)}, p.Fields()...)...)))
			}
		}
		if !p.IsOnHeap() {
			return res
		}
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
