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
	"github.com/awslabs/argot-ifds/internal/funcutil"
	"github.com/awslabs/argot-ifds/internal/ordered"
)

// Result is a read-only view of the edges computed by an instance.
type Result[M comparable, S comparable, D comparable] struct {
	graph            Supergraph[M, S]
	pathEdges        []Edge[S, D]
	summaryEdges     []Edge[S, D]
	callToStartEdges []Edge[S, D]

	facts         *ordered.Map[S, *ordered.Set[D]]
	methods       *ordered.Set[M]
	pathEdgesTo   map[Vertex[S, D]][]Edge[S, D]
	callToStartTo map[Vertex[S, D]][]Edge[S, D]
}

func newResult[M comparable, S comparable, D comparable](
	graph Supergraph[M, S],
	pathEdges, summaryEdges, callToStartEdges []Edge[S, D]) *Result[M, S, D] {
	r := &Result[M, S, D]{
		graph:            graph,
		pathEdges:        pathEdges,
		summaryEdges:     summaryEdges,
		callToStartEdges: callToStartEdges,
		facts:            ordered.NewMap[S, *ordered.Set[D]](),
		methods:          ordered.NewSet[M](),
		pathEdgesTo:      make(map[Vertex[S, D]][]Edge[S, D]),
		callToStartTo:    make(map[Vertex[S, D]][]Edge[S, D]),
	}
	for _, e := range pathEdges {
		r.facts.LoadOrStore(e.To.Statement, ordered.NewSet[D]).Add(e.To.Fact)
		r.pathEdgesTo[e.To] = append(r.pathEdgesTo[e.To], e)
	}
	for _, e := range callToStartEdges {
		r.callToStartTo[e.To] = append(r.callToStartTo[e.To], e)
	}
	for _, s := range r.facts.Keys() {
		r.methods.Add(graph.MethodOf(s))
	}
	return r
}

// PathEdges returns the path edges, in the order they were discovered
func (r *Result[M, S, D]) PathEdges() []Edge[S, D] {
	return append([]Edge[S, D](nil), r.pathEdges...)
}

// SummaryEdges returns the summary edges, in the order they were discovered
func (r *Result[M, S, D]) SummaryEdges() []Edge[S, D] {
	return append([]Edge[S, D](nil), r.summaryEdges...)
}

// CallToStartEdges returns the edges from call-site vertices to the start vertices of their callees
func (r *Result[M, S, D]) CallToStartEdges() []Edge[S, D] {
	return append([]Edge[S, D](nil), r.callToStartEdges...)
}

// FactsAt returns the facts reachable at s. The result is empty if s has not been reached.
func (r *Result[M, S, D]) FactsAt(s S) []D {
	set, _ := r.facts.Load(s)
	return set.Items()
}

// HoldsAt returns true if fact is reachable at s
func (r *Result[M, S, D]) HoldsAt(s S, fact D) bool {
	set, _ := r.facts.Load(s)
	return set.Contains(fact)
}

// ResultFacts returns the facts reachable at each statement that has been reached
func (r *Result[M, S, D]) ResultFacts() map[S][]D {
	res := make(map[S][]D, r.facts.Len())
	r.facts.OrderedRange(func(s S, facts *ordered.Set[D]) bool {
		res[s] = facts.Items()
		return true
	})
	return res
}

// Statements returns the statements that have been reached, in the order they were first reached
func (r *Result[M, S, D]) Statements() []S {
	return append([]S(nil), r.facts.Keys()...)
}

// Methods returns the methods that contain some reached statement
func (r *Result[M, S, D]) Methods() []M {
	return r.methods.Items()
}

// ResolvePossibleStackTrace returns a sequence of statements that may lead to vertex, starting at an entry point of
// startMethod and going through the call statements that lead to the method of vertex.
//
// The trace is built backwards: it takes the first path edge ending at the current vertex, then the first
// call-to-start edge ending at the source of that path edge, whose source is the call site in the caller. When
// several edges match, the first one discovered is used and the result is only one of the possible traces.
//
// ResolvePossibleStackTrace panics with a *LookupError if some lookup fails, which happens when vertex is not
// reachable from startMethod in the instance that produced r.
func (r *Result[M, S, D]) ResolvePossibleStackTrace(vertex Vertex[S, D], startMethod M) []S {
	trace := []S{vertex.Statement}
	visited := map[Vertex[S, D]]bool{vertex: true}
	cur := vertex
	for {
		start := r.firstPathEdgeTo(cur).From
		if r.graph.MethodOf(cur.Statement) == startMethod {
			if start.Statement != cur.Statement {
				trace = append(trace, start.Statement)
			}
			break
		}
		cur = r.firstCallToStartEdgeTo(start).From
		if visited[cur] {
			panic(&LookupError{Vertex: cur, Kind: "call-to-start edge", Err: ErrTraceCycle})
		}
		visited[cur] = true
		trace = append(trace, cur.Statement)
	}
	funcutil.Reverse(trace)
	return trace
}

func (r *Result[M, S, D]) firstPathEdgeTo(v Vertex[S, D]) Edge[S, D] {
	edges := r.pathEdgesTo[v]
	if len(edges) == 0 {
		panic(&LookupError{Vertex: v, Kind: "path edge", Err: ErrNoMatchingEdge})
	}
	return edges[0]
}

func (r *Result[M, S, D]) firstCallToStartEdgeTo(v Vertex[S, D]) Edge[S, D] {
	edges := r.callToStartTo[v]
	if len(edges) == 0 {
		panic(&LookupError{Vertex: v, Kind: "call-to-start edge", Err: ErrNoMatchingEdge})
	}
	return edges[0]
}
