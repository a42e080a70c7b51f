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
	"fmt"

	"github.com/awslabs/argot-ifds/internal/funcutil"
)

// A Vertex is a statement paired with a fact that holds at that statement.
type Vertex[S comparable, D comparable] struct {
	Statement S
	Fact      D
}

func (v Vertex[S, D]) String() string {
	return fmt.Sprintf("(%v, %v)", v.Statement, v.Fact)
}

// An Edge is a pair of vertices. A path edge From -> To states that To is reachable from From, where From is usually
// a vertex at the entry point of the method of To.
type Edge[S comparable, D comparable] struct {
	From Vertex[S, D]
	To   Vertex[S, D]
}

func (e Edge[S, D]) String() string {
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}

// SelfLoop returns the edge v -> v
func SelfLoop[S comparable, D comparable](v Vertex[S, D]) Edge[S, D] {
	return Edge[S, D]{From: v, To: v}
}

// A FlowFunction maps a fact to the facts that hold after some statement, call or return.
// Flow functions must be pure: the same fact always yields the same facts.
type FlowFunction[D comparable] func(fact D) []D

// Identity returns the flow function that returns its argument.
func Identity[D comparable]() FlowFunction[D] {
	return func(fact D) []D { return []D{fact} }
}

// Compose returns the flow function that applies g to every output of f.
func Compose[D comparable](f, g FlowFunction[D]) FlowFunction[D] {
	return func(fact D) []D {
		var res []D
		for _, x := range f(fact) {
			res = append(res, g(x)...)
		}
		return res
	}
}

// FlowFunctionsSpace is implemented by analyses to tell the solver how facts propagate.
type FlowFunctionsSpace[M comparable, S comparable, D comparable] interface {
	// StartFacts returns the facts that hold at the entry statement when the analysis starts in its method.
	StartFacts(entry S) []D

	// SequentFlowFunction returns the effect of current when control passes to next, with no call involved.
	SequentFlowFunction(current, next S) FlowFunction[D]

	// CallToStartFlowFunction returns the effect of entering callee from call: facts are renamed from the
	// actual arguments to the formal parameters, and facts unrelated to the call are dropped.
	CallToStartFlowFunction(call S, callee M) FlowFunction[D]

	// CallToReturnFlowFunction returns the effect of call that does not need the callee's body, for the facts
	// that go from call to returnSite directly.
	CallToReturnFlowFunction(call, returnSite S) FlowFunction[D]

	// ExitToReturnSiteFlowFunction returns the effect of returning from exit, in the callee, to returnSite after
	// call.
	ExitToReturnSiteFlowFunction(call, returnSite, exit S) FlowFunction[D]
}

// Supergraph is the interprocedural control-flow graph the solver runs on.
type Supergraph[M comparable, S comparable] interface {
	// Predecessors returns the statements of the same method that can execute just before s
	Predecessors(s S) []S
	// Successors returns the statements of the same method that can execute just after s
	Successors(s S) []S
	// Callees returns the methods that may be called at s. Statements that are not calls have no callees.
	Callees(s S) []M
	// Callers returns the statements that may call m
	Callers(m M) []S
	// EntryPoints returns the statements where the execution of m starts
	EntryPoints(m M) []S
	// ExitPoints returns the statements where the execution of m ends
	ExitPoints(m M) []S
	// MethodOf returns the method that contains s
	MethodOf(s S) M
}

// A Devirtualizer refines the callees of call statements.
type Devirtualizer[M comparable, S comparable] interface {
	// FindPossibleCallees returns the methods that may be called at s. It replaces Supergraph.Callees.
	FindPossibleCallees(s S) []M
}

// A Listener observes the mutations of an instance.
type Listener[S comparable, D comparable] interface {
	// OnPropagate is called when edge is inserted in the path edges. pred is the statement the edge was computed
	// from, if any. isNew is true when the fact of edge did not already hold at pred.
	OnPropagate(edge Edge[S, D], pred funcutil.Optional[S], isNew bool)

	// OnExitPoint is called when the instance processes an edge whose target is an exit point of its method.
	OnExitPoint(edge Edge[S, D])
}

// ListenerFuncs implements Listener with functions. Nil functions are ignored.
type ListenerFuncs[S comparable, D comparable] struct {
	Propagate func(edge Edge[S, D], pred funcutil.Optional[S], isNew bool)
	ExitPoint func(edge Edge[S, D])
}

// OnPropagate calls l.Propagate if it is set
func (l ListenerFuncs[S, D]) OnPropagate(edge Edge[S, D], pred funcutil.Optional[S], isNew bool) {
	if l.Propagate != nil {
		l.Propagate(edge, pred, isNew)
	}
}

// OnExitPoint calls l.ExitPoint if it is set
func (l ListenerFuncs[S, D]) OnExitPoint(edge Edge[S, D]) {
	if l.ExitPoint != nil {
		l.ExitPoint(edge)
	}
}
