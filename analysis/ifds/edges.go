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

import "github.com/awslabs/argot-ifds/internal/ordered"

// edgeStore is a set of edges indexed by their source and their target. Edges are never removed, and the slices
// returned by from and to are in insertion order.
type edgeStore[S comparable, D comparable] struct {
	all    *ordered.Set[Edge[S, D]]
	byFrom map[Vertex[S, D]][]Edge[S, D]
	byTo   map[Vertex[S, D]][]Edge[S, D]
}

func newEdgeStore[S comparable, D comparable]() *edgeStore[S, D] {
	return &edgeStore[S, D]{
		all:    ordered.NewSet[Edge[S, D]](),
		byFrom: make(map[Vertex[S, D]][]Edge[S, D]),
		byTo:   make(map[Vertex[S, D]][]Edge[S, D]),
	}
}

// add returns true if e was not in the store
func (s *edgeStore[S, D]) add(e Edge[S, D]) bool {
	if !s.all.Add(e) {
		return false
	}
	s.byFrom[e.From] = append(s.byFrom[e.From], e)
	s.byTo[e.To] = append(s.byTo[e.To], e)
	return true
}

func (s *edgeStore[S, D]) contains(e Edge[S, D]) bool {
	return s.all.Contains(e)
}

// from returns the edges whose source is v. Later additions do not change the returned slice.
func (s *edgeStore[S, D]) from(v Vertex[S, D]) []Edge[S, D] {
	return s.byFrom[v]
}

// to returns the edges whose target is v. Later additions do not change the returned slice.
func (s *edgeStore[S, D]) to(v Vertex[S, D]) []Edge[S, D] {
	return s.byTo[v]
}

func (s *edgeStore[S, D]) len() int {
	return s.all.Len()
}

func (s *edgeStore[S, D]) items() []Edge[S, D] {
	return s.all.Items()
}
