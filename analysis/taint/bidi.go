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

package taint

import (
	"github.com/awslabs/argot-ifds/analysis/config"
	"github.com/awslabs/argot-ifds/analysis/ifds"
	"github.com/awslabs/argot-ifds/analysis/paths"
	"github.com/awslabs/argot-ifds/internal/funcutil"
)

// HeapInspector gives the bidirectional solver the access paths a statement writes to.
type HeapInspector[S comparable, V comparable, F comparable] interface {
	// AssignedPath returns the path assigned by s, if s is an assignment
	AssignedPath(s S) (paths.AccessPath[V, F], bool)

	// CallOperandPaths returns the paths of the receiver and the arguments of the call in s, if s contains a call
	CallOperandPaths(s S) []paths.AccessPath[V, F]
}

// BidiStats counts the hand-offs between the two instances of a Bidi
type BidiStats struct {
	// ToBackward is the number of edges handed from the forward instance to the backward one
	ToBackward int
	// ToForward is the number of edges handed from the backward instance to the forward one
	ToForward int
	// BackwardRuns is the number of times the backward instance has been run
	BackwardRuns int
}

// Bidi runs a forward instance over a supergraph and a backward instance over the reversed supergraph. Every time
// the forward instance discovers a new fact on the heap, the fact is handed to the backward instance, which is run
// to completion to find the paths that may alias it. When the backward instance reaches a statement that may write
// the fact, or the entry of the method, it hands the alias back to the forward instance.
//
// The backward instance is only run from the forward listener. If the forward instance receives edges from the
// backward one during a hand-off or a backward run, the new forward facts are handed over to the backward worklist
// and processed by the current run, so the runs are never nested. The stack depth is therefore bounded by one
// forward propagation and one backward run.
type Bidi[M comparable, S comparable, V comparable, F comparable] struct {
	graph     ifds.Supergraph[M, S]
	forward   *ifds.Instance[M, S, Fact[S, V, F]]
	backward  *ifds.Instance[M, S, Fact[S, V, F]]
	inspector HeapInspector[S, V, F]
	logger    *config.LogGroup

	backwardBusy bool
	stats        BidiStats
}

// NewBidi returns a bidirectional solver over graph. The backward instance runs on the reversed graph with
// backwardSpace. The options are used for both instances.
func NewBidi[M comparable, S comparable, V comparable, F comparable](
	graph ifds.Supergraph[M, S],
	forwardSpace ifds.FlowFunctionsSpace[M, S, Fact[S, V, F]],
	backwardSpace ifds.FlowFunctionsSpace[M, S, Fact[S, V, F]],
	inspector HeapInspector[S, V, F],
	opts ifds.Options[M, S]) *Bidi[M, S, V, F] {
	logger := opts.Logger
	if logger == nil {
		logger = config.NewLogGroup(nil)
		opts.Logger = logger
	}
	name := opts.Name
	if name == "" {
		name = "bidi"
	}
	fwdOpts, bwdOpts := opts, opts
	fwdOpts.Name = name + "/forward"
	bwdOpts.Name = name + "/backward"
	b := &Bidi[M, S, V, F]{
		graph:     graph,
		forward:   ifds.NewInstance(graph, forwardSpace, fwdOpts),
		backward:  ifds.NewInstance(ifds.Reversed(graph), backwardSpace, bwdOpts),
		inspector: inspector,
		logger:    logger,
	}
	b.forward.AddListener(ifds.ListenerFuncs[S, Fact[S, V, F]]{Propagate: b.onForwardPropagate})
	b.backward.AddListener(ifds.ListenerFuncs[S, Fact[S, V, F]]{
		Propagate: b.onBackwardPropagate,
		ExitPoint: b.onBackwardExitPoint,
	})
	return b
}

// Forward returns the forward instance
func (b *Bidi[M, S, V, F]) Forward() *ifds.Instance[M, S, Fact[S, V, F]] {
	return b.forward
}

// Backward returns the backward instance
func (b *Bidi[M, S, V, F]) Backward() *ifds.Instance[M, S, Fact[S, V, F]] {
	return b.backward
}

// AddStart adds the start facts of method to the forward instance
func (b *Bidi[M, S, V, F]) AddStart(method M) {
	b.forward.AddStart(method)
}

// Run runs the forward instance until it reaches a fixed point. The backward instance is run by the hand-offs.
func (b *Bidi[M, S, V, F]) Run() {
	b.forward.Run()
	b.logger.Debugf("hand-offs: %d to backward, %d to forward, %d backward runs\n",
		b.stats.ToBackward, b.stats.ToForward, b.stats.BackwardRuns)
}

// CollectResults returns the results of the forward instance
func (b *Bidi[M, S, V, F]) CollectResults() *ifds.Result[M, S, Fact[S, V, F]] {
	return b.forward.CollectResults()
}

// Stats returns the hand-off counters
func (b *Bidi[M, S, V, F]) Stats() BidiStats {
	return b.stats
}

func (b *Bidi[M, S, V, F]) onForwardPropagate(edge ifds.Edge[S, Fact[S, V, F]], pred funcutil.Optional[S], isNew bool) {
	if !edge.To.Fact.IsOnHeap() || !isNew {
		return
	}
	b.stats.ToBackward++
	if b.backwardBusy {
		// the hand-off happens during another hand-off or backward run, which will process the new edges
		b.handOff(edge, b.backward, b.localPred(edge, pred), true, true)
		return
	}
	b.backwardBusy = true
	defer func() { b.backwardBusy = false }()
	b.handOff(edge, b.backward, b.localPred(edge, pred), true, true)
	if b.backward.Pending() > 0 {
		b.stats.BackwardRuns++
		b.backward.Run()
	}
}

func (b *Bidi[M, S, V, F]) onBackwardPropagate(edge ifds.Edge[S, Fact[S, V, F]], pred funcutil.Optional[S], _ bool) {
	fact := edge.To.Fact
	if !fact.IsOnHeap() || !b.canBeKilled(edge.To.Statement, fact.Path()) {
		return
	}
	b.stats.ToForward++
	b.handOff(edge, b.forward, b.localPred(edge, pred), false, false)
}

func (b *Bidi[M, S, V, F]) onBackwardExitPoint(edge ifds.Edge[S, Fact[S, V, F]]) {
	if !edge.To.Fact.IsOnHeap() {
		return
	}
	b.stats.ToForward++
	b.handOff(edge, b.forward, funcutil.None[S](), false, false)
}

// canBeKilled returns true if s may write to p: s assigns a prefix of p, or passes a prefix of p to a call
func (b *Bidi[M, S, V, F]) canBeKilled(s S, p paths.AccessPath[V, F]) bool {
	if assigned, ok := b.inspector.AssignedPath(s); ok && p.StartsWith(assigned) {
		return true
	}
	return funcutil.Exists(b.inspector.CallOperandPaths(s), p.StartsWith)
}

// localPred drops the predecessors that are not in the method of the target of the edge, or that are the target
// itself
func (b *Bidi[M, S, V, F]) localPred(edge ifds.Edge[S, Fact[S, V, F]], pred funcutil.Optional[S]) funcutil.Optional[S] {
	p, ok := pred.Get()
	if !ok || p == edge.To.Statement || b.graph.MethodOf(p) != b.graph.MethodOf(edge.To.Statement) {
		return funcutil.None[S]()
	}
	return pred
}

// handOff propagates the edge u -> v to target, where the source is moved to the entry points of the method of u
// and the target to pred when there is one.
func (b *Bidi[M, S, V, F]) handOff(
	edge ifds.Edge[S, Fact[S, V, F]],
	target *ifds.Instance[M, S, Fact[S, V, F]],
	pred funcutil.Optional[S],
	updateActivation bool,
	propagateZero bool) {
	u, v := edge.From, edge.To
	fact := v.Fact
	if fact.IsZero() {
		return
	}
	newStatement := pred.ValueOr(v.Statement)
	if _, hasActivation := fact.Activation(); updateActivation && !hasActivation {
		fact = fact.WithActivation(newStatement)
	}
	if b.logger.LogsTrace() {
		b.logger.Tracef("hand-off %s to %v with %v\n", edge, newStatement, fact)
	}
	for _, entry := range b.graph.EntryPoints(b.graph.MethodOf(u.Statement)) {
		from := ifds.Vertex[S, Fact[S, V, F]]{Statement: entry, Fact: u.Fact}
		target.Propagate(ifds.Edge[S, Fact[S, V, F]]{
			From: from,
			To:   ifds.Vertex[S, Fact[S, V, F]]{Statement: newStatement, Fact: fact},
		}, funcutil.None[S]())
		if propagateZero {
			target.Propagate(ifds.Edge[S, Fact[S, V, F]]{
				From: from,
				To:   ifds.Vertex[S, Fact[S, V, F]]{Statement: newStatement, Fact: Zero[S, V, F]()},
			}, funcutil.None[S]())
		}
	}
}
