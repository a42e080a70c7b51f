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
	"github.com/awslabs/argot-ifds/analysis/config"
	"github.com/awslabs/argot-ifds/internal/funcutil"
	"github.com/awslabs/argot-ifds/internal/ordered"
)

// Options are the optional collaborators of an Instance
type Options[M comparable, S comparable] struct {
	// Devirtualizer, if not nil, replaces the callees of the supergraph
	Devirtualizer Devirtualizer[M, S]

	// Logger receives the statistics of the solver at debug level and every processed edge at trace level.
	// A nil logger is replaced by a logger at info level.
	Logger *config.LogGroup

	// Name prefixes the log messages of the instance
	Name string
}

// Stats counts the elements of an instance
type Stats struct {
	PathEdges        int
	SummaryEdges     int
	CallToStartEdges int
	CallSites        int
	// Processed is the number of edges popped from the worklist
	Processed int
}

// Instance is the tabulation solver of an IFDS problem over one supergraph.
type Instance[M comparable, S comparable, D comparable] struct {
	graph         Supergraph[M, S]
	space         FlowFunctionsSpace[M, S, D]
	devirtualizer Devirtualizer[M, S]
	logger        *config.LogGroup
	name          string

	pathEdges        *edgeStore[S, D]
	summaryEdges     *edgeStore[S, D]
	callToStartEdges *edgeStore[S, D]
	// the path edges processed at exit points, indexed by their start vertex
	startToEndEdges *edgeStore[S, D]

	// worklist[head:] are the edges to process
	worklist []Edge[S, D]
	head     int

	// callSites is the set of call-site vertices processed
	callSites *ordered.Set[Vertex[S, D]]
	// callSitesOf maps a start vertex of a callee to the call-site vertices whose call-to-start image contains it
	callSitesOf *ordered.Map[Vertex[S, D], *ordered.Set[Vertex[S, D]]]

	listeners []Listener[S, D]
	processed int
}

// NewInstance returns a solver with empty sets for the problem defined by space over graph.
func NewInstance[M comparable, S comparable, D comparable](
	graph Supergraph[M, S],
	space FlowFunctionsSpace[M, S, D],
	opts Options[M, S]) *Instance[M, S, D] {
	logger := opts.Logger
	if logger == nil {
		logger = config.NewLogGroup(nil)
	}
	name := opts.Name
	if name == "" {
		name = "ifds"
	}
	return &Instance[M, S, D]{
		graph:            graph,
		space:            space,
		devirtualizer:    opts.Devirtualizer,
		logger:           logger,
		name:             name,
		pathEdges:        newEdgeStore[S, D](),
		summaryEdges:     newEdgeStore[S, D](),
		callToStartEdges: newEdgeStore[S, D](),
		startToEndEdges:  newEdgeStore[S, D](),
		callSites:        ordered.NewSet[Vertex[S, D]](),
		callSitesOf:      ordered.NewMap[Vertex[S, D], *ordered.Set[Vertex[S, D]]](),
	}
}

// Graph returns the supergraph of the instance
func (inst *Instance[M, S, D]) Graph() Supergraph[M, S] {
	return inst.graph
}

// AddListener registers l. Listeners are notified in registration order.
func (inst *Instance[M, S, D]) AddListener(l Listener[S, D]) {
	inst.listeners = append(inst.listeners, l)
}

// AddStart seeds the instance with the self-loops (entry, d) -> (entry, d) for every entry point of method and every
// start fact d of that entry point.
func (inst *Instance[M, S, D]) AddStart(method M) {
	for _, entry := range inst.graph.EntryPoints(method) {
		for _, fact := range inst.space.StartFacts(entry) {
			inst.Propagate(SelfLoop(Vertex[S, D]{Statement: entry, Fact: fact}), funcutil.None[S]())
		}
	}
}

// Propagate inserts edge in the path edges and schedules it for processing. It returns false, and does nothing, if
// the edge is already a path edge.
// When the edge is inserted, the listeners are notified with pred and whether the edge is new: an edge is new when
// no predecessor is given, or when the fact of its target does not already hold at the predecessor statement.
func (inst *Instance[M, S, D]) Propagate(edge Edge[S, D], pred funcutil.Optional[S]) bool {
	if !inst.pathEdges.add(edge) {
		return false
	}
	inst.worklist = append(inst.worklist, edge)
	if pred == nil {
		pred = funcutil.None[S]()
	}
	isNew := true
	if p, ok := pred.Get(); ok {
		isNew = !inst.pathEdges.contains(Edge[S, D]{From: edge.From, To: Vertex[S, D]{Statement: p, Fact: edge.To.Fact}})
	}
	for _, l := range inst.listeners {
		l.OnPropagate(edge, pred, isNew)
	}
	return true
}

// Run processes the worklist until it is empty. Run may be called again after new edges have been propagated; the
// instance then resumes from its current state.
// Panics of flow functions are not recovered. The instance is left in a consistent state, with edges that have not
// been processed.
func (inst *Instance[M, S, D]) Run() {
	for inst.head < len(inst.worklist) {
		edge := inst.worklist[inst.head]
		inst.head++
		if inst.head == len(inst.worklist) {
			inst.worklist = inst.worklist[:0]
			inst.head = 0
		}
		inst.process(edge)
	}
	inst.logger.Debugf("[%s] fixed point: %d path edges, %d summary edges, %d call sites, %d processed\n",
		inst.name, inst.pathEdges.len(), inst.summaryEdges.len(), inst.callSites.Len(), inst.processed)
}

// Pending returns the number of edges waiting to be processed
func (inst *Instance[M, S, D]) Pending() int {
	return len(inst.worklist) - inst.head
}

// Stats returns the current sizes of the sets of the instance
func (inst *Instance[M, S, D]) Stats() Stats {
	return Stats{
		PathEdges:        inst.pathEdges.len(),
		SummaryEdges:     inst.summaryEdges.len(),
		CallToStartEdges: inst.callToStartEdges.len(),
		CallSites:        inst.callSites.Len(),
		Processed:        inst.processed,
	}
}

func (inst *Instance[M, S, D]) callees(n S) []M {
	if inst.devirtualizer != nil {
		return inst.devirtualizer.FindPossibleCallees(n)
	}
	return inst.graph.Callees(n)
}

func (inst *Instance[M, S, D]) isExitPoint(n S) bool {
	return funcutil.Contains(inst.graph.ExitPoints(inst.graph.MethodOf(n)), n)
}

func (inst *Instance[M, S, D]) process(edge Edge[S, D]) {
	inst.processed++
	if inst.logger.LogsTrace() {
		inst.logger.Tracef("[%s] processing %s\n", inst.name, edge)
	}
	n := edge.To.Statement
	if callees := inst.callees(n); len(callees) > 0 {
		inst.processCall(edge, callees)
	} else if inst.isExitPoint(n) {
		inst.processExit(edge)
	} else {
		inst.processSequent(edge)
	}
}

func (inst *Instance[M, S, D]) processCall(edge Edge[S, D], callees []M) {
	u, v := edge.From, edge.To
	n, d2 := v.Statement, v.Fact
	pred := funcutil.Some(n)

	// the start vertices of the callees reached from v
	var starts []Vertex[S, D]
	for _, callee := range callees {
		facts := inst.space.CallToStartFlowFunction(n, callee)(d2)
		for _, entry := range inst.graph.EntryPoints(callee) {
			for _, d3 := range facts {
				start := Vertex[S, D]{Statement: entry, Fact: d3}
				starts = append(starts, start)
				if inst.Propagate(SelfLoop(start), pred) {
					inst.callToStartEdges.add(Edge[S, D]{From: v, To: start})
				}
			}
		}
	}

	for _, returnSite := range inst.graph.Successors(n) {
		for _, d3 := range inst.space.CallToReturnFlowFunction(n, returnSite)(d2) {
			inst.Propagate(Edge[S, D]{From: u, To: Vertex[S, D]{Statement: returnSite, Fact: d3}}, pred)
		}
	}

	if inst.callSites.Add(v) {
		for _, start := range starts {
			inst.callSitesOf.LoadOrStore(start, ordered.NewSet[Vertex[S, D]]).Add(v)
		}
		// summaries for the callee behaviors discovered before this call site
		for _, start := range starts {
			for _, startToEnd := range inst.startToEndEdges.from(start) {
				inst.findNewSummaryEdges(n, d2, startToEnd)
			}
		}
	}

	for _, summary := range inst.summaryEdges.from(v) {
		inst.Propagate(Edge[S, D]{From: u, To: summary.To}, pred)
	}
}

func (inst *Instance[M, S, D]) processExit(edge Edge[S, D]) {
	for _, l := range inst.listeners {
		l.OnExitPoint(edge)
	}
	if callSites, ok := inst.callSitesOf.Load(edge.From); ok {
		for _, cs := range callSites.Items() {
			inst.findNewSummaryEdges(cs.Statement, cs.Fact, edge)
		}
	}
	inst.startToEndEdges.add(edge)
}

func (inst *Instance[M, S, D]) processSequent(edge Edge[S, D]) {
	n, d2 := edge.To.Statement, edge.To.Fact
	pred := funcutil.Some(n)
	for _, m := range inst.graph.Successors(n) {
		for _, d3 := range inst.space.SequentFlowFunction(n, m)(d2) {
			inst.Propagate(Edge[S, D]{From: edge.From, To: Vertex[S, D]{Statement: m, Fact: d3}}, pred)
		}
	}
}

// findNewSummaryEdges derives the summary edges (callSite, d4) -> (returnSite, d5) from the start-to-end edge
// (sp, d1) -> (ep, d2) of a callee. It does nothing when the edge does not end at an exit point, when the callee is
// not called at callSite, or when d1 is not an image of d4 at the entry of the callee.
// New summary edges are applied to all the path edges already ending at (callSite, d4).
func (inst *Instance[M, S, D]) findNewSummaryEdges(callSite S, d4 D, startToEnd Edge[S, D]) {
	sp, d1 := startToEnd.From.Statement, startToEnd.From.Fact
	ep, d2 := startToEnd.To.Statement, startToEnd.To.Fact
	callee := inst.graph.MethodOf(ep)
	if !funcutil.Contains(inst.graph.ExitPoints(callee), ep) {
		return
	}
	if !funcutil.Contains(inst.callees(callSite), callee) ||
		!funcutil.Contains(inst.graph.EntryPoints(callee), sp) ||
		!funcutil.Contains(inst.space.CallToStartFlowFunction(callSite, callee)(d4), d1) {
		return
	}

	callVertex := Vertex[S, D]{Statement: callSite, Fact: d4}
	pred := funcutil.Some(callSite)
	for _, returnSite := range inst.graph.Successors(callSite) {
		for _, d5 := range inst.space.ExitToReturnSiteFlowFunction(callSite, returnSite, ep)(d2) {
			summary := Edge[S, D]{From: callVertex, To: Vertex[S, D]{Statement: returnSite, Fact: d5}}
			if !inst.summaryEdges.add(summary) {
				continue
			}
			inst.logger.Debugf("[%s] new summary edge %s\n", inst.name, summary)
			for _, pathEdge := range inst.pathEdges.to(callVertex) {
				inst.Propagate(Edge[S, D]{From: pathEdge.From, To: summary.To}, pred)
			}
		}
	}
}

// CollectResults returns a snapshot of the current state of the instance. It is usually called after Run.
func (inst *Instance[M, S, D]) CollectResults() *Result[M, S, D] {
	return newResult(inst.graph, inst.pathEdges.items(), inst.summaryEdges.items(), inst.callToStartEdges.items())
}
